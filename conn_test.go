// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func mockEvent() *Event {
	return &Event{
		Source:  &Source{Name: "nick", Ident: "user", Host: "host.com"},
		Command: "PRIVMSG",
		Params:  []string{"#channel", "1 2 3"},
	}
}

func genMockConn() (client *Client, clientConn net.Conn, serverConn net.Conn) {
	client = New(Config{
		Server: "dummy.int",
		Port:   6667,
		Nick:   "test",
		User:   "test",
		Name:   "Testing123",
	})

	conn1, conn2 := net.Pipe()
	return client, conn1, conn2
}

func TestIRCConnDecode(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := newTestIRCConn(client)

	e := mockEvent()
	go func() {
		server.Write(e.Bytes())
		server.Write(endline)
	}()

	de := <-c.decode()
	if de.err != nil {
		t.Fatalf("decode() error: %v", de.err)
	}
	if de.event.String() != e.String() {
		t.Fatalf("decode() = %#v, want %#v", de.event, e)
	}
}

func TestIRCConnDecodeMalformed(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := newTestIRCConn(client)

	go server.Write([]byte("::abcd\r\n"))

	if de := <-c.decode(); de.err == nil {
		t.Fatal("decode() of a malformed line returned nil error")
	}
}

func TestIRCConnEncode(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := newTestIRCConn(client)
	e := mockEvent()

	done := make(chan error, 1)
	go func() { done <- c.encode(e) }()

	r := bufio.NewReader(server)
	line, err := r.ReadString(delim)
	if err != nil {
		t.Fatalf("failed to read encoded line: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("encode() error: %v", err)
	}

	want := e.String() + "\r\n"
	if line != want {
		t.Fatalf("encoded line = %q, want %q", line, want)
	}
}

func TestConnectSendsRegistrationSequence(t *testing.T) {
	c, conn, server := genMockConn()
	b := bufio.NewReader(conn)

	defer conn.Close()
	defer server.Close()

	go c.MockConnect(server)
	defer c.Close()

	var events []*Event
	for i := 0; i < 3; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		line, err := b.ReadString(byte('\n'))
		if err != nil {
			t.Fatalf("failed reading registration line %d: %v", i, err)
		}
		e, err := ParseEvent(line)
		if err != nil {
			t.Fatalf("ParseEvent(%q) error: %v", line, err)
		}
		events = append(events, e)
	}

	if events[0].Command != CAP || events[0].Params[0] != "LS" {
		t.Fatalf("first registration line = %#v, want CAP LS", events[0])
	}
	if events[1].Command != NICK || events[1].Params[0] != c.Config.Nick {
		t.Fatalf("second registration line = %#v, want NICK %s", events[1], c.Config.Nick)
	}
	if events[2].Command != USER || events[2].Params[0] != c.Config.User || events[2].Trailing != c.Config.Name {
		t.Fatalf("third registration line = %#v, want USER %s ... :%s", events[2], c.Config.User, c.Config.Name)
	}
}
