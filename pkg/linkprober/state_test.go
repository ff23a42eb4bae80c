package linkprober

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartsUnknown(t *testing.T) {
	sm := New(1, 3, false)
	assert.Equal(t, Unknown, sm.Label())
}

func TestSelfReplyReachesActiveAfterPositiveCount(t *testing.T) {
	sm := New(2, 3, false)
	tr := sm.Process(EventSelfReply)
	assert.Equal(t, Unknown, tr.Label, "one reply is not enough when positiveCount=2")

	tr = sm.Process(EventSelfReply)
	assert.Equal(t, Active, tr.Label)
	assert.True(t, tr.Changed)
}

func TestTimeoutFallsToUnknownAfterNegativeCount(t *testing.T) {
	sm := New(1, 3, false)
	sm.Process(EventSelfReply) // -> Active

	sm.Process(EventTimeout)
	sm.Process(EventTimeout)
	tr := sm.Process(EventTimeout)

	assert.Equal(t, Unknown, tr.Label)
	assert.True(t, tr.Changed)
}

func TestTimeoutBelowThresholdDoesNotChangeState(t *testing.T) {
	sm := New(1, 3, false)
	sm.Process(EventSelfReply) // -> Active

	tr := sm.Process(EventTimeout)
	assert.Equal(t, Active, tr.Label)
	assert.False(t, tr.Changed)
}

func TestPeerReplySetsPeerSubStateOnlyInActiveActive(t *testing.T) {
	sm := New(1, 1, true)
	tr := sm.Process(EventPeerReply)
	assert.Equal(t, PeerActive, tr.Peer)

	smStandby := New(1, 1, false)
	tr2 := smStandby.Process(EventPeerReply)
	assert.Equal(t, PeerUnknown, tr2.Peer)
}

func TestPeerReplyReachesStandbyInActiveStandby(t *testing.T) {
	sm := New(2, 3, false)
	tr := sm.Process(EventPeerReply)
	assert.Equal(t, Unknown, tr.Label, "one peer reply is not enough when positiveCount=2")

	tr = sm.Process(EventPeerReply)
	assert.Equal(t, Standby, tr.Label)
	assert.True(t, tr.Changed)
}

func TestSwitchActiveRequestEntersWait(t *testing.T) {
	sm := New(1, 1, false)
	sm.Process(EventSelfReply)
	tr := sm.Process(EventSwitchActiveRequest)
	assert.Equal(t, Wait, tr.Label)
}
