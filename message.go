// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

const (
	eventSpace     byte = 0x20 // Separator.
	messagePrefix  byte = 0x3A // :
	prefixTag      byte = 0x40 // @
	prefixTagValue byte = 0x3D // =
	prefixUserTag  byte = 0x2B // +
	tagSeparator   byte = 0x3B // ;

	maxLength    = 512 // 510 + CRLF, per RFC 2812 §2.3.
	maxTagLength = 8192
)

// Tags represents the key-value pairs in an IRCv3 message-tag section. The
// map holds the *encoded* (escaped) values; use Tags.Get/Tags.Set for the
// unescaped form (§4.1).
//
// Tag names are always UTF-8; note that retrieving and setting tags is not
// concurrent safe on its own — Event is otherwise treated as immutable
// once parsed (§3).
type Tags map[string]string

// tagDecode/tagEncode implement the escape alphabet from §4.1:
//
//	\: -> ;   \s -> SP   \\ -> \   \r -> CR   \n -> LF   \x -> x (any other x)
//
// A lone trailing backslash decodes to empty.
var tagDecoder = strings.NewReplacer(
	"\\:", ";",
	"\\s", " ",
	"\\\\", "\\",
	"\\r", "\r",
	"\\n", "\n",
)

var tagEncoder = strings.NewReplacer(
	";", "\\:",
	" ", "\\s",
	"\\", "\\\\",
	"\r", "\\r",
	"\n", "\\n",
)

// unescapeTagValue applies the full §4.1 escape table, including the
// "any other x decodes to x, lone trailing backslash decodes to empty"
// rules that a plain strings.Replacer can't express.
func unescapeTagValue(raw string) string {
	if strings.IndexByte(raw, '\\') < 0 {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' {
			b.WriteByte(raw[i])
			continue
		}
		if i+1 >= len(raw) {
			// Lone trailing backslash: decodes to empty.
			break
		}
		switch raw[i+1] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(raw[i+1])
		}
		i++
	}
	return b.String()
}

// ParseTags parses the key-value map of tags. raw should only be the tag
// data (without the leading "@" and without the trailing space), e.g.
// "aaa=bbb;ccc;example.com/ddd=eee". Later duplicate keys overwrite
// earlier ones (§4.1).
func ParseTags(raw string) Tags {
	t := make(Tags)
	if len(raw) > 0 && raw[0] == prefixTag {
		raw = raw[1:]
	}

	for _, part := range strings.Split(raw, string(tagSeparator)) {
		if part == "" {
			continue
		}
		if eq := strings.IndexByte(part, prefixTagValue); eq >= 0 {
			t[part[:eq]] = part[eq+1:]
		} else {
			t[part] = ""
		}
	}
	return t
}

// Get returns the unescaped value of the given tag key.
func (t Tags) Get(key string) (value string, ok bool) {
	raw, ok := t[key]
	if !ok {
		return "", false
	}
	return unescapeTagValue(raw), true
}

// Set escapes value and stores it under key.
func (t Tags) Set(key, value string) {
	t[key] = tagEncoder.Replace(value)
}

// Remove deletes the tag from the map, reporting whether it was present.
func (t Tags) Remove(key string) bool {
	_, ok := t[key]
	if ok {
		delete(t, key)
	}
	return ok
}

// Bytes renders the tag map (including the leading "@", excluding the
// trailing separator space) in map iteration order, which may differ
// between calls,
// truncated to stay within maxTagLength.
func (t Tags) Bytes() []byte {
	if len(t) == 0 {
		return nil
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(prefixTag)

	i, n := 0, len(t)
	for k, v := range t {
		piece := k
		if v != "" {
			piece = k + string(prefixTagValue) + v
		}
		if buf.Len()+len(piece)+1 > maxTagLength {
			break
		}
		buf.WriteString(piece)
		i++
		if i < n {
			buf.WriteByte(tagSeparator)
		}
	}
	return buf.Bytes()
}

func (t Tags) String() string { return string(t.Bytes()) }

func (t Tags) writeTo(w *bytes.Buffer) {
	b := t.Bytes()
	if len(b) == 0 {
		return
	}
	w.Write(b)
	w.WriteByte(eventSpace)
}

// Source identifies the origin of a message: either a server name, or a
// full nick!ident@host hostmask.
type Source struct {
	Name  string // Nickname, or server hostname if IsServer().
	Ident string
	Host  string
}

// ParseSource parses a raw IRC message prefix (everything between the
// leading ":" and the following space), e.g. "nick!ident@host" or
// "irc.example.com".
func ParseSource(raw string) *Source {
	s := &Source{}

	if i := strings.IndexByte(raw, '!'); i >= 0 {
		s.Name = raw[:i]
		raw = raw[i+1:]
		if j := strings.IndexByte(raw, '@'); j >= 0 {
			s.Ident = raw[:j]
			s.Host = raw[j+1:]
		} else {
			s.Ident = raw
		}
		return s
	}

	if j := strings.IndexByte(raw, '@'); j >= 0 {
		s.Name = raw[:j]
		s.Host = raw[j+1:]
		return s
	}

	s.Name = raw
	return s
}

// IsHostmask reports whether the source looks like a client
// (nick[!ident][@host]) rather than a bare server name.
func (s *Source) IsHostmask() bool {
	return s.Ident != "" || s.Host != ""
}

// IsServer reports whether the source looks like a bare server name.
func (s *Source) IsServer() bool {
	return !s.IsHostmask() && strings.IndexByte(s.Name, '.') >= 0
}

// ID returns a case-folded identifier suitable for use as a registry key;
// for hostmasks this is the folded nickname.
func (s *Source) ID() string {
	return ToRFC1459(s.Name)
}

func (s *Source) String() string {
	if s == nil {
		return ""
	}
	if s.Ident == "" && s.Host == "" {
		return s.Name
	}
	if s.Host == "" {
		return s.Name + "!" + s.Ident
	}
	return s.Name + "!" + s.Ident + "@" + s.Host
}

func (s *Source) writeTo(buf *bytes.Buffer) {
	buf.WriteString(s.String())
}

// Event represents a single IRC protocol message (§3's Message entity),
// see RFC 1459 §2.3.1:
//
//	<message>  :: ['@' <tags> <SPACE>] [':' <prefix> <SPACE>] <command> <params> <crlf>
//	<prefix>   :: <servername> | <nick> ['!' <user>] ['@' <host>]
//	<command>  :: <letter>{<letter>} | <number> <number> <number>
//	<params>   :: <SPACE> [':' <trailing> | <middle> <params>]
//
// Event is treated as immutable once parsed; nothing in this package
// mutates an Event's fields after ParseEvent/dispatch hands it to a
// handler, aside from the Copy() that callers are expected to take before
// mutating it themselves.
type Event struct {
	Tags     Tags    // IRCv3 message tags, nil if none were present.
	Source   *Source // Source of the event, nil for client-originated events.
	Command  string  // The IRC command, or three-digit numeric, always upper-cased.
	Params   []string
	Trailing string
	// EmptyTrailing forces a trailing ":" prefix to be serialized even
	// when Trailing is the empty string — required when the final
	// parameter must be distinguished from "no final parameter at all"
	// (§4.1's "automatic leading : on the last parameter iff it is empty,
	// starts with :, or contains a space").
	EmptyTrailing bool
	// Echo is set by the read loop when echo-message is enabled and this
	// PRIVMSG/NOTICE originated from the local user.
	Echo bool
	// Sensitive marks events that should not be logged verbatim (PASS,
	// AUTHENTICATE, WEBIRC).
	Sensitive bool
}

// ParseEvent parses raw (a single line, CR/LF already stripped by the
// framer) into an Event. Returns an error describing why parsing failed
// per §4.1; never a nil Event with a nil error.
func ParseEvent(raw string) (*Event, error) {
	raw = strings.TrimRight(raw, "\r\n")
	if raw == "" {
		return nil, &MalformedLineError{Line: raw, Reason: "empty line"}
	}

	e := &Event{}

	if raw[0] == prefixTag {
		sp := strings.IndexByte(raw, eventSpace)
		if sp < 0 {
			return nil, &MalformedLineError{Line: raw, Reason: "unterminated tag section"}
		}
		e.Tags = ParseTags(raw[1:sp])
		raw = strings.TrimLeft(raw[sp+1:], " ")
	}

	if len(raw) > 0 && raw[0] == messagePrefix {
		sp := strings.IndexByte(raw, eventSpace)
		if sp < 1 {
			return nil, &MalformedLineError{Line: raw, Reason: "unterminated source"}
		}
		e.Source = ParseSource(raw[1:sp])
		raw = strings.TrimLeft(raw[sp+1:], " ")
	}

	if raw == "" {
		return nil, &MalformedLineError{Line: raw, Reason: "no message type"}
	}

	sp := strings.IndexByte(raw, eventSpace)
	if sp < 0 {
		e.Command = strings.ToUpper(raw)
		return e, nil
	}
	e.Command = strings.ToUpper(raw[:sp])
	if e.Command == "" {
		return nil, &MalformedLineError{Line: raw, Reason: "no message type"}
	}
	raw = strings.TrimLeft(raw[sp+1:], " ")

	for raw != "" {
		if raw[0] == messagePrefix {
			e.Trailing = raw[1:]
			e.EmptyTrailing = e.Trailing == ""
			break
		}
		next := strings.IndexByte(raw, eventSpace)
		if next < 0 {
			e.Params = append(e.Params, raw)
			break
		}
		e.Params = append(e.Params, raw[:next])
		raw = strings.TrimLeft(raw[next+1:], " ")
	}

	return e, nil
}

// Copy returns a deep-enough copy of the event for handlers/callbacks that
// need to retain or mutate it outside of the dispatch call.
func (e *Event) Copy() *Event {
	if e == nil {
		return nil
	}
	n := *e
	if e.Tags != nil {
		n.Tags = make(Tags, len(e.Tags))
		for k, v := range e.Tags {
			n.Tags[k] = v
		}
	}
	if e.Source != nil {
		src := *e.Source
		n.Source = &src
	}
	if e.Params != nil {
		n.Params = append([]string(nil), e.Params...)
	}
	return &n
}

// Last returns the trailing parameter if present, otherwise the last
// positional parameter, otherwise "".
func (e *Event) Last() string {
	if e.Trailing != "" || e.EmptyTrailing {
		return e.Trailing
	}
	if len(e.Params) > 0 {
		return e.Params[len(e.Params)-1]
	}
	return ""
}

// Param returns the i'th positional parameter, or "" if out of range.
func (e *Event) Param(i int) string {
	if i < 0 || i >= len(e.Params) {
		return ""
	}
	return e.Params[i]
}

// needsTrailingEscape reports whether param must be serialized as the
// trailing (":"-prefixed) parameter: empty, contains a space, or starts
// with ":".
func needsTrailingEscape(param string) bool {
	return param == "" || strings.IndexByte(param, ' ') >= 0 || (len(param) > 0 && param[0] == ':')
}

// Bytes serializes the event as "[@tags ][:source ]command[ param]*[ :trailing]".
// When Trailing is unset, the last positional parameter is written with a
// leading ':' if needsTrailingEscape reports that it needs one. A non-last
// parameter that would need the escape is written as-is; Validate reports
// that case.
func (e *Event) Bytes() []byte {
	buf := new(bytes.Buffer)

	if e.Tags != nil {
		e.Tags.writeTo(buf)
	}
	if e.Source != nil {
		buf.WriteByte(messagePrefix)
		e.Source.writeTo(buf)
		buf.WriteByte(eventSpace)
	}

	buf.WriteString(e.Command)

	for i, p := range e.Params {
		buf.WriteByte(eventSpace)
		if i == len(e.Params)-1 && e.Trailing == "" && !e.EmptyTrailing && needsTrailingEscape(p) {
			buf.WriteByte(messagePrefix)
		}
		buf.WriteString(p)
	}

	if e.Trailing != "" || e.EmptyTrailing {
		buf.WriteByte(eventSpace)
		buf.WriteByte(messagePrefix)
		buf.WriteString(e.Trailing)
	}

	out := buf.Bytes()
	if len(out) > maxLength-2 {
		out = out[:maxLength-2]
	}
	return out
}

func (e *Event) String() string { return string(e.Bytes()) }

// Len returns the length of the wire representation of e, as Bytes would
// produce it, without actually allocating a buffer.
func (e *Event) Len() (length int) {
	if e.Tags != nil {
		length = len(e.Tags.Bytes()) + 1
	}
	if e.Source != nil {
		length += len(e.Source.String()) + 2
	}
	length += len(e.Command)
	for i, p := range e.Params {
		length += len(p) + 1
		if i == len(e.Params)-1 && e.Trailing == "" && !e.EmptyTrailing && needsTrailingEscape(p) {
			length++
		}
	}
	if e.Trailing != "" || e.EmptyTrailing {
		length += len(e.Trailing) + 2
	}
	return length
}

// Validate reports a MalformedLineError if e cannot be serialized
// unambiguously: more than one parameter (including Trailing) would
// require trailing-escaping, or a non-last positional parameter needs it.
func (e *Event) Validate() error {
	if e.Command == "" {
		return &MalformedLineError{Reason: "no message type"}
	}
	for i, p := range e.Params {
		if needsTrailingEscape(p) && i != len(e.Params)-1 {
			return &MalformedLineError{Line: p, Reason: "non-trailing parameter requires trailing escape"}
		}
	}
	if len(e.Params) > 0 && needsTrailingEscape(e.Params[len(e.Params)-1]) && (e.Trailing != "" || e.EmptyTrailing) {
		return &MalformedLineError{Reason: "both a trailing-shaped positional parameter and Trailing set"}
	}
	return nil
}

// IsAction reports whether the event is a PRIVMSG CTCP ACTION (/me).
func (e *Event) IsAction() bool {
	if e.Command != "PRIVMSG" || len(e.Trailing) < 9 {
		return false
	}
	return strings.HasPrefix(e.Trailing, "\x01ACTION ") && e.Trailing[len(e.Trailing)-1] == ctcpDelim
}

// StripAction strips the CTCP ACTION envelope, returning the inner text.
func (e *Event) StripAction() string {
	if !e.IsAction() {
		return e.Trailing
	}
	return e.Trailing[8 : len(e.Trailing)-1]
}

// fmtLine is a tiny helper kept for handlers that build debug strings
// without pulling in fmt at every call site.
func fmtLine(prefix string, e *Event) string {
	return fmt.Sprintf("%s%s", prefix, e.String())
}

var _ io.Writer = (*bytes.Buffer)(nil) // silence unused import if trimmed later

// StripRaw removes non-printable control characters from a line before it
// is written to a debug log, so a hostile or buggy peer can't corrupt the
// caller's terminal/log file.
func StripRaw(raw string) string {
	clean := true
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x20 && raw[i] != ' ' {
			clean = false
			break
		}
	}
	if clean {
		return raw
	}
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x20 && raw[i] != ' ' {
			continue
		}
		out = append(out, raw[i])
	}
	return string(out)
}

// validChannelPrefixes includes "*", even though this isn't RFC compliant,
// since it's commonly used (e.g. ZNC).
var validChannelPrefixes = [...]byte{'&', '#', '+', '!', '*'}

// IsValidChannel reports whether channel is a syntactically valid channel
// name per RFC 2812 §1.3:
//
//	channel    =  ( "#" / "+" / ( "!" channelid ) / "&" ) chanstring [ ":" chanstring ]
//	channelid  =  5( %x41-5A / digit )
func IsValidChannel(channel string) bool {
	if len(channel) <= 1 || len(channel) > 50 {
		return false
	}
	if bytes.IndexByte(validChannelPrefixes[:], channel[0]) == -1 {
		return false
	}
	if channel[0] == '!' {
		if len(channel) < 7 {
			return false
		}
		for i := 1; i < 6; i++ {
			if (channel[i] < '0' || channel[i] > '9') && (channel[i] < 'A' || channel[i] > 'Z') {
				return false
			}
		}
	}
	for i := 1; i < len(channel); i++ {
		switch channel[i] {
		case 0x00, 0x07, '\r', '\n', ' ', ',', ':':
			return false
		}
	}
	return true
}

// IsValidNick reports whether nick is a syntactically valid nickname per
// RFC 2812 §2.3.1. Does not enforce a length limit, since that is
// server-defined (ISupport's NICKLEN).
func IsValidNick(nick string) bool {
	if len(nick) == 0 {
		return false
	}
	if nick[0] < 0x41 || nick[0] > 0x7D {
		return false
	}
	for i := 1; i < len(nick); i++ {
		if (nick[i] < 0x41 || nick[i] > 0x7D) && (nick[i] < '0' || nick[i] > '9') && nick[i] != '-' {
			return false
		}
	}
	return true
}

// IsValidUser reports whether user is a syntactically valid ident/username:
// non-empty and free of space, NUL, CR, LF, and '@'.
func IsValidUser(user string) bool {
	if len(user) == 0 {
		return false
	}
	for i := 0; i < len(user); i++ {
		switch user[i] {
		case 0x00, '\r', '\n', ' ', '@':
			return false
		}
	}
	return true
}

// Pretty renders a human-readable rendition of common events, for use in
// simple line-oriented UIs/log output. ok is false for events with no
// canned rendition (most numerics, CAP, MODE internals, and so on).
func (e *Event) Pretty() (out string, ok bool) {
	switch e.Command {
	case INITIALIZED:
		return fmt.Sprintf("[*] connection to %s initialized", e.Last()), true
	case CONNECTED:
		return fmt.Sprintf("[*] successfully connected to %s", e.Last()), true
	case PRIVMSG, NOTICE:
		if len(e.Params) > 0 && e.Source != nil {
			return fmt.Sprintf("[%s] (%s) %s", strings.Join(e.Params, ","), e.Source.Name, e.Trailing), true
		}
	case RPL_MOTD, RPL_MOTDSTART, RPL_WELCOME, RPL_YOURHOST, RPL_CREATED, RPL_LUSERCLIENT:
		return "[*] " + e.Trailing, true
	case JOIN:
		if e.Source != nil {
			return fmt.Sprintf("[*] %s has joined %s", e.Source.Name, strings.Join(e.Params, ", ")), true
		}
	case PART:
		if e.Source != nil {
			return fmt.Sprintf("[*] %s has left %s (%s)", e.Source.Name, strings.Join(e.Params, ", "), e.Trailing), true
		}
	case ERROR:
		return "[*] an error occurred: " + e.Trailing, true
	case QUIT:
		if e.Source != nil {
			return fmt.Sprintf("[*] %s has quit (%s)", e.Source.Name, e.Trailing), true
		}
	case KICK:
		if e.Source != nil && len(e.Params) == 2 {
			return fmt.Sprintf("[%s] *** %s has kicked %s: %s", e.Params[0], e.Source.Name, e.Params[1], e.Trailing), true
		}
	case NICK:
		if e.Source != nil && len(e.Params) == 1 {
			return fmt.Sprintf("[*] %s is now known as %s", e.Source.Name, e.Params[0]), true
		}
	case TOPIC:
		if e.Source != nil && len(e.Params) > 0 {
			return fmt.Sprintf("[%s] *** %s has set the topic to: %s", e.Params[len(e.Params)-1], e.Source.Name, e.Trailing), true
		}
	case MODE:
		if e.Source != nil && len(e.Params) > 2 {
			return fmt.Sprintf("[%s] %s set modes: %s", e.Params[0], e.Source.Name, strings.Join(e.Params[1:], " ")), true
		}
	}
	return "", false
}

// IsFromChannel reports whether the event is a PRIVMSG/NOTICE addressed to
// a channel rather than a user.
func (e *Event) IsFromChannel() bool {
	return (e.Command == PRIVMSG || e.Command == NOTICE) && len(e.Params) == 1 && IsValidChannel(e.Params[0])
}

// IsFromUser reports whether the event is a PRIVMSG/NOTICE addressed
// directly to a user rather than a channel.
func (e *Event) IsFromUser() bool {
	return (e.Command == PRIVMSG || e.Command == NOTICE) && len(e.Params) == 1 && IsValidNick(e.Params[0])
}
