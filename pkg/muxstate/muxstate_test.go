package muxstate

import (
	"testing"

	"github.com/sonic-net/linkmgrd-go/pkg/switchcause"
	"github.com/stretchr/testify/assert"
)

func TestStartsUnknown(t *testing.T) {
	sm := New()
	assert.Equal(t, Unknown, sm.Label())
}

func TestNotifyChangesLabel(t *testing.T) {
	sm := New()
	changed := sm.Notify(Active)
	assert.True(t, changed)
	assert.Equal(t, Active, sm.Label())
}

func TestRepeatedNotifyIsIdempotent(t *testing.T) {
	sm := New()
	sm.Notify(Active)
	changed := sm.Notify(Active)
	assert.False(t, changed, "repeated identical notification must not re-transition")
}

func TestEnterAndLeaveWait(t *testing.T) {
	sm := New()
	sm.Notify(Active)
	sm.EnterWait(WaitSwssUpdate, switchcause.PeerHeartbeatMissing)

	assert.Equal(t, Wait, sm.Label())
	assert.Equal(t, WaitSwssUpdate, sm.WaitReason())
	assert.Equal(t, switchcause.PeerHeartbeatMissing, sm.Cause())

	sm.LeaveWait(Standby)
	assert.Equal(t, Standby, sm.Label())
	assert.Equal(t, WaitNone, sm.WaitReason())
}
