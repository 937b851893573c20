// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import "testing"

func TestEvaluateSTSPolicyStoresUpgrade(t *testing.T) {
	c := newTestClient()

	c.evaluateSTSPolicy([]string{"duration=86400", "port=6697"})

	if !c.state.sts.enabled() {
		t.Fatal("sts not enabled after a valid sts token")
	}
	if c.state.sts.upgradePort != 6697 {
		t.Errorf("upgradePort = %d, want 6697", c.state.sts.upgradePort)
	}
	if c.state.sts.persistenceDuration != 86400 {
		t.Errorf("persistenceDuration = %d, want 86400", c.state.sts.persistenceDuration)
	}
	if !c.state.sts.beginUpgrade {
		t.Errorf("beginUpgrade = false, want true for a plaintext connection")
	}
}

func TestEvaluateSTSPolicyPreload(t *testing.T) {
	c := newTestClient()
	c.evaluateSTSPolicy([]string{"duration=86400", "port=6697", "preload"})

	if !c.state.sts.preload {
		t.Errorf("preload = false, want true")
	}
}

func TestEvaluateSTSPolicyZeroDurationResets(t *testing.T) {
	c := newTestClient()
	c.state.sts.upgradePort = 6697
	c.state.sts.persistenceDuration = 86400

	c.evaluateSTSPolicy([]string{"duration=0"})

	if c.state.sts.enabled() {
		t.Errorf("sts still enabled after duration=0")
	}
}

func TestEvaluateSTSPolicyMissingPortIgnored(t *testing.T) {
	c := newTestClient()
	c.evaluateSTSPolicy([]string{"duration=86400"})

	if c.state.sts.enabled() {
		t.Errorf("sts enabled without a port token")
	}
}

func TestEvaluateSTSPolicyDisabled(t *testing.T) {
	c := newTestClient()
	c.Config.DisableSTS = true

	c.evaluateSTSPolicy([]string{"duration=86400", "port=6697"})

	if c.state.sts.enabled() {
		t.Errorf("sts enabled despite Config.DisableSTS")
	}
}

func TestStrictTransportExpired(t *testing.T) {
	s := &strictTransport{}
	s.reset()

	if s.enabled() {
		t.Errorf("reset() should leave sts disabled")
	}

	s.persistenceDuration = -1
	if !s.expired() {
		t.Errorf("expired() = false, want true for a negative duration")
	}
}
