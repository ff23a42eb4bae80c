//go:build linux

package linkprober

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/sonic-net/linkmgrd-go/pkg/icmp"
)

// SoftwareConfig parameterizes a software heartbeat engine for one port.
type SoftwareConfig struct {
	Interface string
	ServerID  uint16 // used as the ICMP echo identifier

	DstMAC [6]byte
	SrcMAC [6]byte
	SrcIP  [4]byte
	DstIP  [4]byte

	SelfGUID [16]byte
}

// Engine sends periodic ICMP heartbeats on a raw L2 socket and
// classifies replies, posting Events to a StateMachine. It owns the
// TX buffer and mutates only the sequence number and checksum between
// cycles, the way LinkProberSw keeps one buffer across the port's
// lifetime.
type Engine struct {
	cfg SoftwareConfig
	fd  int

	mu        sync.Mutex
	txBuf     []byte
	seq       uint16
	suspended int32

	suspendMu    sync.Mutex
	suspendTimer *time.Timer
	shutdown     int32

	lastSelfSeq atomic.Uint32
	lastPeerSeq atomic.Uint32

	peerGUID [16]byte
}

// NewEngine opens an AF_PACKET raw socket on cfg.Interface, installs a
// classic-BPF filter admitting only ICMP frames from cfg.DstIP (the
// blade's address), and builds the steady-state TX buffer.
func NewEngine(cfg SoftwareConfig) (*Engine, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, htons(unix.ETH_P_IP))
	if err != nil {
		return nil, fmt.Errorf("open raw socket: %w", err)
	}

	iface, err := net.InterfaceByName(cfg.Interface)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("lookup interface %s: %w", cfg.Interface, err)
	}

	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_IP),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind raw socket: %w", err)
	}

	if err := attachICMPFilter(fd, cfg.DstIP); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("attach bpf filter: %w", err)
	}

	e := &Engine{cfg: cfg, fd: fd}
	e.txBuf = e.buildInitialFrame()
	return e, nil
}

func htons(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.LittleEndian.Uint16(b[:])
}

// attachICMPFilter installs a BPF program equivalent to
// "ip and src host <dstIP> and icmp", the filter LinkProberSw installs
// before its socket starts receiving (spec.md §4.1: "installed before
// receive to avoid a userspace classification storm").
func attachICMPFilter(fd int, srcIP [4]byte) error {
	ipAsUint32 := binary.BigEndian.Uint32(srcIP[:])
	prog, err := bpf.Assemble([]bpf.Instruction{
		// Load ethertype; reject anything that is not IPv4.
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(unix.ETH_P_IP), SkipFalse: 6},
		// Load IPv4 protocol field (offset 14+9); reject non-ICMP.
		bpf.LoadAbsolute{Off: 14 + 9, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: unix.IPPROTO_ICMP, SkipFalse: 4},
		// Load IPv4 source address (offset 14+12); reject if not blade IP.
		bpf.LoadAbsolute{Off: 14 + 12, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: ipAsUint32, SkipFalse: 2},
		bpf.RetConstant{Val: 0x40000},
		bpf.RetConstant{Val: 0},
		bpf.RetConstant{Val: 0},
	})
	if err != nil {
		return err
	}
	raw := make([]unix.SockFilter, len(prog))
	for i, ins := range prog {
		raw[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	sf := unix.SockFprog{Len: uint16(len(raw)), Filter: &raw[0]}
	return unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &sf)
}

func (e *Engine) buildInitialFrame() []byte {
	buf := make([]byte, 14+20+8+24+3)

	eth := icmp.EthernetHeader{Dst: e.cfg.DstMAC, Src: e.cfg.SrcMAC, EtherType: icmp.EtherTypeIPv4}
	eth.Marshal(buf)

	ipHdr := icmp.IPv4Header{
		TOS:      0xB8,
		TotalLen: uint16(20 + 8 + 24 + 3),
		TTL:      64,
		Protocol: icmp.ProtocolICMP,
		Src:      e.cfg.SrcIP,
		Dst:      e.cfg.DstIP,
	}
	ipHdr.Marshal(buf[14:])

	icmpHdr := icmp.ICMPHeader{Type: icmp.ICMPTypeEchoRequest, ID: e.cfg.ServerID, Seq: 0}
	icmpHdr.Marshal(buf[34:])

	payload := icmp.Payload{Cookie: icmp.CookieSoftware, Version: icmp.Version, GUID: e.cfg.SelfGUID}
	payload.Marshal(buf[42:])

	icmp.AppendSentinel(buf[66:])

	ipCS := icmp.ComputeChecksum(buf[14:34])
	buf[14+10] = byte(ipCS >> 8)
	buf[14+11] = byte(ipCS)

	icmpCS := icmp.ComputeChecksum(buf[34:])
	buf[34+2] = byte(icmpCS >> 8)
	buf[34+3] = byte(icmpCS)

	return buf
}

// SendHeartbeat transmits the next probe, incrementing the sequence
// number and recomputing only the ICMP checksum delta. It is a no-op
// while suspended (post-switchover quiet window).
func (e *Engine) SendHeartbeat() error {
	if atomic.LoadInt32(&e.suspended) != 0 || atomic.LoadInt32(&e.shutdown) != 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	newSeq := e.seq + 1
	// The buffer may hold an older sequence than e.seq, since
	// SendSwitchActiveCommand advances e.seq on a copy of the frame.
	oldSeq := binary.BigEndian.Uint16(e.txBuf[34+6 : 34+8])
	icmp.UpdateSeqChecksum(e.txBuf[34:], oldSeq, newSeq)
	e.seq = newSeq

	addr := unix.SockaddrLinklayer{}
	return unix.Sendto(e.fd, e.txBuf, 0, &addr)
}

// LastSeq returns the sequence number of the most recently transmitted
// heartbeat, used by the probe loop to check whether that cycle's reply
// arrived before the next one is sent.
func (e *Engine) LastSeq() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// SeqAcked reports whether seq has been acknowledged by either a self or
// a peer reply, the per-cycle "txSeq == rxSeq" comparison spec.md §4.1
// describes for the timeout branch of the probe cycle.
func (e *Engine) SeqAcked(seq uint16) bool {
	return uint16(e.lastSelfSeq.Load()) == seq || uint16(e.lastPeerSeq.Load()) == seq
}

// SuspendFor stops outgoing heartbeats for d (MuxConfig.getSuspendTimeout_
// msec), entered right after a switchover command is issued; inbound
// replies still classify normally. onExpired is invoked once d elapses,
// the caller's hook for posting SuspendTimerExpiredEvent to the Link-
// Prober state machine (spec.md §4.1). A call to Resume before d elapses
// cancels the timer without invoking onExpired, matching "early cancel"
// in spec.md §4.1.
func (e *Engine) SuspendFor(d time.Duration, onExpired func()) {
	atomic.StoreInt32(&e.suspended, 1)

	e.suspendMu.Lock()
	defer e.suspendMu.Unlock()
	if e.suspendTimer != nil {
		e.suspendTimer.Stop()
	}
	e.suspendTimer = time.AfterFunc(d, func() {
		atomic.StoreInt32(&e.suspended, 0)
		if onExpired != nil {
			onExpired()
		}
	})
}

// Resume cancels any pending suspend timer and resumes outbound
// heartbeats immediately, without invoking the suspend's onExpired hook.
func (e *Engine) Resume() {
	e.suspendMu.Lock()
	if e.suspendTimer != nil {
		e.suspendTimer.Stop()
		e.suspendTimer = nil
	}
	e.suspendMu.Unlock()
	atomic.StoreInt32(&e.suspended, 0)
}

// ShutdownTxProbes is a persistent stop used when the default route is
// absent (spec.md §4.1); unlike SuspendFor it has no timer and is only
// lifted by RestartTxProbes.
func (e *Engine) ShutdownTxProbes() { atomic.StoreInt32(&e.shutdown, 1) }

// RestartTxProbes lifts a persistent ShutdownTxProbes stop.
func (e *Engine) RestartTxProbes() { atomic.StoreInt32(&e.shutdown, 0) }

// Classify inspects a received frame (starting at the Ethernet header)
// and reports what kind of event it represents, or ok=false if the
// frame should be silently dropped (malformed, wrong cookie/version,
// or a non-matching echo id).
func (e *Engine) Classify(frame []byte) (ev Event, ok bool) {
	if len(frame) < 14+20+8+24 {
		return 0, false
	}
	ipHdr, err := icmp.ParseIPv4Header(frame[14:])
	if err != nil || ipHdr.Protocol != icmp.ProtocolICMP {
		return 0, false
	}
	icmpHdr, err := icmp.ParseICMPHeader(frame[34:])
	if err != nil || icmpHdr.ID != e.cfg.ServerID {
		return 0, false
	}
	payload, err := icmp.ParsePayload(frame[42:])
	if err != nil {
		return 0, false
	}
	if payload.Cookie != icmp.CookieSoftware || payload.Version > icmp.Version {
		return 0, false
	}

	tlvs := icmp.ParseTLVTail(frame[66:])
	for _, t := range tlvs {
		if t.Type == icmp.TLVCommand && len(t.Value) == 1 {
			switch icmp.CommandValue(t.Value[0]) {
			case icmp.CommandSwitchActive:
				return EventSwitchActiveRequest, true
			}
		}
	}

	if payload.GUID == e.cfg.SelfGUID {
		e.lastSelfSeq.Store(uint32(icmpHdr.Seq))
		return EventSelfReply, true
	}

	var zero [16]byte
	if payload.GUID != zero {
		e.peerGUID = payload.GUID
		e.lastPeerSeq.Store(uint32(icmpHdr.Seq))
		return EventPeerReply, true
	}

	return 0, false
}

func (e *Engine) Close() error {
	return unix.Close(e.fd)
}

// PeerGUID returns the most recently observed peer GUID, or the zero
// value if none has been seen.
func (e *Engine) PeerGUID() [16]byte { return e.peerGUID }

// Recv blocks for the next frame on the raw socket, the read half of
// the engine's suspension point (spec.md §5: "socket read (packet
// arrival or cancellation)"). The caller classifies it with Classify
// and posts the resulting Event onto the port's strand.
func (e *Engine) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(e.fd, buf, 0)
	return n, err
}

// SendSwitchActiveCommand transmits one heartbeat frame carrying a
// COMMAND/SWITCH_ACTIVE TLV ahead of the sentinel, the out-of-band
// switchover request a PeerCommander issues when a Wait escalates past
// the orchestrator and must ask the peer driver directly (spec.md
// §4.3 step 3, S3). It bypasses the suspended flag: the request itself
// must go out even during the post-switchover quiet window.
func (e *Engine) SendSwitchActiveCommand() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	frame := make([]byte, len(e.txBuf)+4)
	n := copy(frame, e.txBuf[:66])
	newSeq := e.seq + 1
	n2, err := icmp.AppendCommand(frame[n:], icmp.CommandSwitchActive)
	if err != nil {
		return fmt.Errorf("append switch-active command tlv: %w", err)
	}
	n += n2
	if _, err := icmp.AppendSentinel(frame[n:]); err != nil {
		return fmt.Errorf("append sentinel: %w", err)
	}
	e.seq = newSeq

	// The tail grew by the appended command TLV, so both the IPv4 total
	// length and the steady-state buffer's incremental checksums no
	// longer apply: recompute the IPv4 header's TotalLen/checksum and
	// the ICMP checksum over the whole, longer frame instead of
	// delta-updating.
	binary.BigEndian.PutUint16(frame[14+2:14+4], uint16(len(frame)-14))
	frame[14+10], frame[14+11] = 0, 0
	ipCS := icmp.ComputeChecksum(frame[14:34])
	binary.BigEndian.PutUint16(frame[14+10:14+12], ipCS)

	binary.BigEndian.PutUint16(frame[34+6:34+8], newSeq)
	frame[34+2], frame[34+3] = 0, 0
	icmpCS := icmp.ComputeChecksum(frame[34:])
	binary.BigEndian.PutUint16(frame[34+2:34+4], icmpCS)

	addr := unix.SockaddrLinklayer{}
	return unix.Sendto(e.fd, frame, 0, &addr)
}
