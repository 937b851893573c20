// Copyright 2016-2017 Liam Stanley <me@liamstanley.io>. All rights reserved.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

// Package ircx provides a client-side implementation of the Internet Relay
// Chat protocol: RFC 1459/2812 framing, the IRCv3.2 message-tag grammar,
// capability negotiation (CAP LS/REQ/ACK/NAK/NEW/DEL), SASL (EXTERNAL,
// PLAIN) over AUTHENTICATE, STARTTLS and Strict Transport Security,
// MONITOR/WATCH presence tracking, and WHO/WHOX/WHOIS aggregation.
//
// A Client owns exactly one connection. It maintains a live picture of the
// network (the local user, peer users, joined channels, channel members
// and their statuses, modes, and topics) as lines arrive, and exposes both
// event handlers (Client.Handlers) and request/response futures
// (Client.Cmd's async methods) to the application.
//
// ircx does not open sockets beyond plain TCP/TLS dialing, does not log
// anywhere but an io.Writer the caller supplies, and does not implement
// any bot-level policy (auto-kick, moderation, and similar are explicitly
// out of scope; see Config for the full configuration surface). Outbound
// sends are paced by a simple rate limit unless Config.AllowFlood is set.
package ircx
