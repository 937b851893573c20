// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import "strings"

// monitorMaxTargets is the conservative batch size used when splitting a
// large Monitor()/Unmonitor() call across multiple MONITOR + lines, well
// under any network's advertised MONITOR limit.
const monitorMaxTargets = 100

// supportsMonitor reports whether the server has advertised MONITOR support
// via RPL_ISUPPORT. Per §13's open-question decision, MONITOR always wins
// over WATCH when both are available.
func (cmd *Commands) supportsMonitor() bool {
	_, ok := cmd.c.GetServerOpt("MONITOR")
	return ok
}

// Monitor registers nicks for presence notifications (online/offline),
// delivered as RPL_MONONLINE/RPL_MONOFFLINE events and reflected in
// Client.Monitored(). Falls back to WATCH on servers that don't advertise
// MONITOR (§4.8, §13).
func (cmd *Commands) Monitor(nicks ...string) error {
	if len(nicks) == 0 {
		return nil
	}

	cmd.c.state.Lock()
	for _, n := range nicks {
		cmd.c.state.monitored[strings.ToLower(n)] = false
	}
	cmd.c.state.Unlock()

	useMonitor := cmd.supportsMonitor()

	for i := 0; i < len(nicks); i += monitorMaxTargets {
		end := i + monitorMaxTargets
		if end > len(nicks) {
			end = len(nicks)
		}
		batch := strings.Join(nicks[i:end], ",")

		if useMonitor {
			if err := cmd.c.Send(&Event{Command: MONITOR, Params: []string{"+", batch}}); err != nil {
				return err
			}
			continue
		}

		if err := cmd.c.Send(&Event{Command: WATCH, Params: watchAddParams(nicks[i:end])}); err != nil {
			return err
		}
	}

	return nil
}

// Unmonitor stops presence notifications for nicks.
func (cmd *Commands) Unmonitor(nicks ...string) error {
	if len(nicks) == 0 {
		return nil
	}

	cmd.c.state.Lock()
	for _, n := range nicks {
		delete(cmd.c.state.monitored, strings.ToLower(n))
	}
	cmd.c.state.Unlock()

	useMonitor := cmd.supportsMonitor()

	for i := 0; i < len(nicks); i += monitorMaxTargets {
		end := i + monitorMaxTargets
		if end > len(nicks) {
			end = len(nicks)
		}
		batch := strings.Join(nicks[i:end], ",")

		if useMonitor {
			if err := cmd.c.Send(&Event{Command: MONITOR, Params: []string{"-", batch}}); err != nil {
				return err
			}
			continue
		}

		if err := cmd.c.Send(&Event{Command: WATCH, Params: watchRemoveParams(nicks[i:end])}); err != nil {
			return err
		}
	}

	return nil
}

// MonitorClear removes every nick currently being monitored.
func (cmd *Commands) MonitorClear() error {
	if cmd.supportsMonitor() {
		cmd.c.state.Lock()
		cmd.c.state.monitored = make(map[string]bool)
		cmd.c.state.Unlock()
		return cmd.c.Send(&Event{Command: MONITOR, Params: []string{"C"}})
	}

	cmd.c.state.RLock()
	nicks := make([]string, 0, len(cmd.c.state.monitored))
	for n := range cmd.c.state.monitored {
		nicks = append(nicks, n)
	}
	cmd.c.state.RUnlock()

	return cmd.Unmonitor(nicks...)
}

// watchAddParams/watchRemoveParams build legacy WATCH "+nick"/"-nick"
// parameters for servers that don't support MONITOR.
func watchAddParams(nicks []string) []string {
	out := make([]string, len(nicks))
	for i, n := range nicks {
		out[i] = "+" + n
	}
	return out
}

func watchRemoveParams(nicks []string) []string {
	out := make([]string, len(nicks))
	for i, n := range nicks {
		out[i] = "-" + n
	}
	return out
}

// Monitored returns the nicks currently registered for presence tracking
// and whether each was last reported online.
func (c *Client) Monitored() map[string]bool {
	c.state.RLock()
	defer c.state.RUnlock()

	out := make(map[string]bool, len(c.state.monitored))
	for k, v := range c.state.monitored {
		out[k] = v
	}
	return out
}

func setMonitorState(c *Client, nicks string, online bool) {
	c.state.Lock()
	for _, n := range strings.Split(nicks, ",") {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, tracked := c.state.monitored[n]; tracked {
			c.state.monitored[n] = online
		}
	}
	c.state.Unlock()

	c.state.notify(c, UPDATE_STATE)
}

// handleMonitorOnline processes RPL_MONONLINE (730): "<nick> :target[,target2]*".
func handleMonitorOnline(c *Client, e Event) {
	setMonitorState(c, e.Last(), true)
}

// handleMonitorOffline processes RPL_MONOFFLINE (731).
func handleMonitorOffline(c *Client, e Event) {
	setMonitorState(c, e.Last(), false)
}

// handleMonitorList processes RPL_MONLIST (732), a single page of the
// server's view of our monitor list.
func handleMonitorList(c *Client, e Event) {
	c.state.Lock()
	for _, n := range strings.Split(e.Last(), ",") {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := c.state.monitored[n]; !ok {
			c.state.monitored[n] = false
		}
	}
	c.state.Unlock()
}

// handleMonitorListFull processes RPL_MONLISTFULL (734): the server refused
// a MONITOR + because our list is already at its limit.
func handleMonitorListFull(c *Client, e Event) {
	c.debug.Printf("monitor list full: %s", e.Last())
}
