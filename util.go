// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"math/rand"
	"time"
)

// jitterBeforeProbe sleeps a few milliseconds before the STARTTLS probe, so
// that a batch of clients reconnecting at once after a netsplit don't all
// hit the server's STARTTLS handling in the same instant.
func jitterBeforeProbe() {
	rand.Seed(time.Now().UnixNano())
	time.Sleep(time.Duration(rand.Intn(25)) * time.Millisecond)
}
