// Package linkprober implements the Link-Prober sub-state-machine and
// the heartbeat engines (software and hardware) that feed it events
// classified from ICMP replies (spec.md §4.2).
package linkprober

// Label is the Link-Prober state for self.
type Label int

const (
	Unknown Label = iota
	Active
	Standby
	Wait
)

func (l Label) String() string {
	switch l {
	case Active:
		return "Active"
	case Standby:
		return "Standby"
	case Wait:
		return "Wait"
	default:
		return "Unknown"
	}
}

// PeerLabel is the peer-direction sub-state that exists only for
// active-active ports.
type PeerLabel int

const (
	PeerUnknown PeerLabel = iota
	PeerActive
	PeerWait
)

func (l PeerLabel) String() string {
	switch l {
	case PeerActive:
		return "PeerActive"
	case PeerWait:
		return "PeerWait"
	default:
		return "PeerUnknown"
	}
}

// Event is a classified heartbeat outcome for one probe cycle, fed to
// the state machine by the heartbeat engine.
type Event int

const (
	// EventSelfReply: a reply matched our own GUID (rxSelfSeq == txSeq).
	EventSelfReply Event = iota
	// EventPeerReply: a reply carried a non-zero, non-self GUID.
	EventPeerReply
	// EventTimeout: no reply arrived this cycle.
	EventTimeout
	// EventSwitchActiveRequest: peer sent a COMMAND/SWITCH_ACTIVE TLV.
	EventSwitchActiveRequest
	// EventSwitchActiveCommandComplete: our own switch-command tx completed.
	EventSwitchActiveCommandComplete
	// EventSuspendTimerExpired: the post-switchover suspend window ended.
	EventSuspendTimerExpired
)

// Transition is what processing an Event produced: the (possibly
// unchanged) new label and whether the Link-Manager should be notified.
type Transition struct {
	Label   Label
	Peer    PeerLabel
	Changed bool
}

// StateMachine tracks hysteresis counters the way MuxConfig's
// positive/negative state-change retry counts describe: a state-
// improving signal must repeat PositiveCount times before the state
// actually advances out of Unknown, and a state-degrading signal
// (a timeout) must repeat NegativeCount times before falling into
// Unknown, so a single lost or spurious packet never flips state.
type StateMachine struct {
	label Label
	peer  PeerLabel

	positiveCount uint32
	negativeCount uint32

	misses   int
	hits     int
	peerHits int

	activeActive bool
}

// New builds a state machine seeded in Unknown, the label every port
// starts in until the first heartbeat classification arrives.
func New(positiveCount, negativeCount uint32, activeActive bool) *StateMachine {
	return &StateMachine{
		label:         Unknown,
		peer:          PeerUnknown,
		positiveCount: positiveCount,
		negativeCount: negativeCount,
		activeActive:  activeActive,
	}
}

func (sm *StateMachine) Label() Label         { return sm.label }
func (sm *StateMachine) PeerLabel() PeerLabel { return sm.peer }

// Process applies ev and returns the resulting transition: Active when
// our own replies are arriving, Standby when only the peer's are (in
// active-standby mode), Unknown once neither has for negativeCount
// consecutive cycles.
func (sm *StateMachine) Process(ev Event) Transition {
	prevLabel, prevPeer := sm.label, sm.peer

	switch ev {
	case EventSelfReply:
		sm.misses = 0
		sm.peerHits = 0
		sm.hits++
		if sm.label != Active && sm.hits >= int(sm.positiveCount) {
			sm.label = Active
		}
	case EventPeerReply:
		if sm.activeActive {
			sm.peer = PeerActive
			break
		}
		// Active-standby classification collapses peer-up to a single
		// status (spec.md §4.2): a reply carrying the peer's GUID means
		// the peer ToR is forwarding, so self settles to Standby.
		sm.misses = 0
		sm.hits = 0
		sm.peerHits++
		if sm.label != Standby && sm.peerHits >= int(sm.positiveCount) {
			sm.label = Standby
		}
	case EventTimeout:
		sm.hits = 0
		sm.peerHits = 0
		sm.misses++
		if sm.label != Unknown && sm.misses >= int(sm.negativeCount) {
			sm.label = Unknown
		}
	case EventSwitchActiveRequest, EventSwitchActiveCommandComplete:
		sm.label = Wait
	case EventSuspendTimerExpired:
		// Resume normal classification; the next reply/timeout decides
		// the label. Leaving Wait here matches the original's resumed
		// TX behavior after a completed switchover.
		sm.label = Unknown
		sm.hits = 0
		sm.misses = 0
		sm.peerHits = 0
	}

	return Transition{
		Label:   sm.label,
		Peer:    sm.peer,
		Changed: sm.label != prevLabel || sm.peer != prevPeer,
	}
}

// ForceLabel sets the label directly, used by enterState-style resets
// (e.g. when a port is (re)created already in a known label).
func (sm *StateMachine) ForceLabel(l Label) {
	sm.label = l
}
