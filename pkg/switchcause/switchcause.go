// Package switchcause enumerates the reasons a link manager issues a
// mux switchover, used for both logging and the switchover-cause metric
// label (spec.md §6).
package switchcause

type Cause int

const (
	Unknown Cause = iota
	PeerHeartbeatMissing
	PeerLinkDown
	TlvSwitchActiveCommand
	LinkDown
	TransceiverDaemonTimeout
	MatchingHardwareState
	ConfigMuxMode
	HardwareStateUnknown
	TimedOscillation
	SelfHeartbeatRestored
)

var names = map[Cause]string{
	Unknown:                  "unknown",
	PeerHeartbeatMissing:     "Peer_Heartbeat_Missing",
	PeerLinkDown:             "Peer_Link_Down",
	TlvSwitchActiveCommand:   "Tlv_Switch_Active_Command",
	LinkDown:                 "Link_Down",
	TransceiverDaemonTimeout: "Transceiver_Daemon_Timeout",
	MatchingHardwareState:    "Matching_Hardware_State",
	ConfigMuxMode:            "Config_Mux_Mode",
	HardwareStateUnknown:     "Hardware_State_Unknown",
	TimedOscillation:         "Timed_Oscillation",
	SelfHeartbeatRestored:    "Self_Heartbeat_Restored",
}

func (c Cause) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "unknown"
}
