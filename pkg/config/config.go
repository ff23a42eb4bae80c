// Package config holds the typed view of the KV tables linkmgrd reads:
// the shared "mux_linkmgr" tunables, the per-port "mux_cable" row and the
// ToR/VLAN MACs of "device_metadata" (spec.md §6). The
// "loopback_interface" and "bgp_device_global" tables have no type here.
// Field defaults mirror original_source/src/common/MuxConfig.h.
package config

import "time"

// MuxLinkmgrConfig is the tunable set under the "mux_linkmgr" table,
// shared by every port's link manager on this ToR.
type MuxLinkmgrConfig struct {
	NumberOfThreads                  uint8
	TimeoutIpv4                      time.Duration
	TimeoutIpv6                      time.Duration
	PositiveStateChangeRetryCount    uint32
	NegativeStateChangeRetryCount    uint32
	LinkProberStatUpdateIntervalCount uint32
	OscillationIntervalSec           uint32
	MuxStateChangeRetryCount         uint32
	LinkStateChangeRetryCount        uint32
	UseWellKnownMac                  bool
}

// SuspendTimeout is the interval the link prober suspends ICMP sends for
// each time a switchover begins, derived exactly as
// MuxConfig::getSuspendTimeout_msec does.
func (c MuxLinkmgrConfig) SuspendTimeout() time.Duration {
	return time.Duration(c.NegativeStateChangeRetryCount+1) * c.TimeoutIpv4
}

// SetOscillationInterval applies MuxConfig's clamp: an unforced interval
// of 300s or less is raised to 300s. Passing force=true (config override)
// bypasses the clamp.
func (c *MuxLinkmgrConfig) SetOscillationInterval(sec uint32, force bool) {
	if force || sec > 300 {
		c.OscillationIntervalSec = sec
		return
	}
	c.OscillationIntervalSec = 300
}

// DefaultMuxLinkmgrConfig returns MuxConfig.h's built-in defaults.
func DefaultMuxLinkmgrConfig() MuxLinkmgrConfig {
	return MuxLinkmgrConfig{
		NumberOfThreads:                   5,
		TimeoutIpv4:                       100 * time.Millisecond,
		TimeoutIpv6:                       1000 * time.Millisecond,
		PositiveStateChangeRetryCount:     1,
		NegativeStateChangeRetryCount:     3,
		LinkProberStatUpdateIntervalCount: 300,
		OscillationIntervalSec:            300,
		MuxStateChangeRetryCount:          1,
		LinkStateChangeRetryCount:         1,
		UseWellKnownMac:                   false,
	}
}

// CableType selects which composite link-manager variant a port runs.
type CableType int

const (
	CableTypeActiveStandby CableType = iota
	CableTypeActiveActive
)

// Mode is the administrative mux mode, set via "mux_cable"/state or a
// config_db override.
type Mode int

const (
	ModeAuto Mode = iota
	ModeManual
	ModeActive
	ModeStandby
	ModeDetached
)

// MuxPortConfig is the per-port configuration, built from the
// "mux_cable" table entry for a port plus the shared mux_linkmgr tunables.
type MuxPortConfig struct {
	PortName     string
	ServerID     uint32
	ServerIpv4   string
	ServerIpv6   string
	BladeMac     [6]byte
	SoCIpv4      string
	CableType    CableType
	Mode         Mode
	Shared       MuxLinkmgrConfig
}

// DeviceMetadata mirrors the "device_metadata"/localhost table: the
// ToR's own MAC and the VLAN MAC, which is used as the heartbeat source
// MAC of any port when TorMac is unset.
type DeviceMetadata struct {
	TorMac  [6]byte
	VlanMac [6]byte
}
