//go:build linux

package linkprober

import (
	"testing"
	"time"

	"github.com/sonic-net/linkmgrd-go/pkg/icmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *Engine {
	return &Engine{cfg: SoftwareConfig{
		Interface: "eth0",
		ServerID:  42,
		DstMAC:    [6]byte{1, 2, 3, 4, 5, 6},
		SrcMAC:    [6]byte{6, 5, 4, 3, 2, 1},
		SrcIP:     [4]byte{10, 0, 0, 1},
		DstIP:     [4]byte{10, 0, 0, 2},
		SelfGUID:  [16]byte{1: 0xaa},
	}}
}

func TestBuildInitialFrameParsesBack(t *testing.T) {
	e := testEngine()
	frame := e.buildInitialFrame()

	eth, err := icmp.ParseEthernetHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, e.cfg.DstMAC, eth.Dst)

	ipHdr, err := icmp.ParseIPv4Header(frame[14:])
	require.NoError(t, err)
	assert.Equal(t, e.cfg.DstIP, ipHdr.Dst)

	icmpHdr, err := icmp.ParseICMPHeader(frame[34:])
	require.NoError(t, err)
	assert.Equal(t, e.cfg.ServerID, icmpHdr.ID)
	assert.Equal(t, uint16(0), icmpHdr.Seq)
}

func TestClassifySelfReply(t *testing.T) {
	e := testEngine()
	e.txBuf = e.buildInitialFrame()

	ev, ok := e.Classify(e.txBuf)
	require.True(t, ok)
	assert.Equal(t, EventSelfReply, ev)
}

func TestClassifyPeerReply(t *testing.T) {
	e := testEngine()
	frame := e.buildInitialFrame()
	// overwrite GUID with a non-zero, non-self value
	copy(frame[42+8:42+24], []byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9})

	ev, ok := e.Classify(frame)
	require.True(t, ok)
	assert.Equal(t, EventPeerReply, ev)
}

func TestClassifyWrongEchoIDDropped(t *testing.T) {
	e := testEngine()
	frame := e.buildInitialFrame()
	frame[34+4] = 0xFF // corrupt the echo id high byte

	_, ok := e.Classify(frame)
	assert.False(t, ok)
}

func TestSuspendForExpiresAndInvokesCallback(t *testing.T) {
	e := testEngine()
	fired := make(chan struct{})
	e.SuspendFor(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("SuspendFor never fired onExpired")
	}
}

func TestResumeCancelsSuspendWithoutCallback(t *testing.T) {
	e := testEngine()
	fired := false
	e.SuspendFor(50*time.Millisecond, func() { fired = true })
	e.Resume()

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired, "Resume must cancel the suspend timer before it fires")
}

func TestShutdownTxProbesBlocksSendHeartbeat(t *testing.T) {
	e := testEngine()
	e.txBuf = e.buildInitialFrame()
	e.fd = -1 // no real socket; SendHeartbeat must short-circuit before using it
	e.ShutdownTxProbes()

	assert.NoError(t, e.SendHeartbeat(), "shut-down engine must no-op rather than touch the socket")
}

func TestClassifySwitchActiveCommand(t *testing.T) {
	e := testEngine()
	buf := make([]byte, 14+20+8+24+16)
	frame := e.buildInitialFrame()
	copy(buf, frame[:66])
	n, _ := icmp.AppendCommand(buf[66:], icmp.CommandSwitchActive)
	icmp.AppendSentinel(buf[66+n:])

	ev, ok := e.Classify(buf)
	require.True(t, ok)
	assert.Equal(t, EventSwitchActiveRequest, ev)
}
