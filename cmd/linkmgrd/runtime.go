//go:build linux

package main

import (
	"net"
	"time"

	"github.com/sonic-net/linkmgrd-go/pkg/config"
	"github.com/sonic-net/linkmgrd-go/pkg/linkmanager"
	"github.com/sonic-net/linkmgrd-go/pkg/linkprober"
	"github.com/sonic-net/linkmgrd-go/pkg/log"
	"github.com/sonic-net/linkmgrd-go/pkg/metrics"
	"github.com/sonic-net/linkmgrd-go/pkg/muxmanager"
)

const sessionCookie = "linkmgrd"

// tlvCommander fans PeerCommander.SendSwitchActiveCommand out to
// whichever port's software heartbeat engine owns that port name.
type tlvCommander struct {
	engines map[string]*linkprober.Engine
}

func newTLVCommander() *tlvCommander {
	return &tlvCommander{engines: make(map[string]*linkprober.Engine)}
}

func (c *tlvCommander) SendSwitchActiveCommand(portName string) {
	eng, ok := c.engines[portName]
	if !ok {
		log.Logger.Warnf("%s: no heartbeat engine to carry switch-active command", portName)
		return
	}
	if err := eng.SendSwitchActiveCommand(); err != nil {
		log.Logger.Errorw("send switch-active command failed", "port", portName, "error", err)
	}
}

func parseIPv4(s string) [4]byte {
	var out [4]byte
	ip := net.ParseIP(s)
	if ip == nil {
		return out
	}
	v4 := ip.To4()
	if v4 == nil {
		return out
	}
	copy(out[:], v4)
	return out
}

// startPortRuntime wires one port's heartbeat engine to its
// linkmanager.Manager: software engines feed classified events through
// the owning muxmanager's strand; hardware/simulated-offload ports are
// logged but left driven by the (out-of-scope) driver collaborator.
func startPortRuntime(mgr *muxmanager.Manager, lm *linkmanager.Manager, pc config.MuxPortConfig, devMeta config.DeviceMetadata, selfGUID [16]byte, simulateOffload bool, tc *tlvCommander) {
	if simulateOffload {
		_ = linkprober.NewHardwareEngine(sessionCookie)
		log.Logger.Infof("%s: hardware link-failure-detection offload simulated, no local socket opened", pc.PortName)
		return
	}

	srcMac := devMeta.TorMac
	var zero [6]byte
	if srcMac == zero {
		srcMac = devMeta.VlanMac
	}

	cfg := linkprober.SoftwareConfig{
		Interface: pc.PortName,
		ServerID:  uint16(pc.ServerID),
		DstMAC:    pc.BladeMac,
		SrcMAC:    srcMac,
		SrcIP:     parseIPv4(pc.SoCIpv4),
		DstIP:     parseIPv4(pc.ServerIpv4),
		SelfGUID:  selfGUID,
	}

	eng, err := linkprober.NewEngine(cfg)
	if err != nil {
		log.Logger.Warnf("%s: heartbeat engine unavailable (%v), running without live probing", pc.PortName, err)
		return
	}

	tc.engines[pc.PortName] = eng
	lm.SetProbeController(eng)

	go runProbeLoop(mgr, lm, pc.PortName, eng, pc.Shared.TimeoutIpv4)
	go runRecvLoop(mgr, lm, pc.PortName, eng)
}

// runProbeLoop drives the per-probe cycle (spec.md §4.1): each tick it
// first checks whether the previous cycle's heartbeat was acknowledged
// (by a self or peer reply recorded via Classify), posting EventTimeout
// if not, then sends the next heartbeat and remembers its sequence
// number for the following tick's check.
func runProbeLoop(mgr *muxmanager.Manager, lm *linkmanager.Manager, portName string, eng *linkprober.Engine, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prevSeq uint16
	haveSent := false
	for range ticker.C {
		if haveSent && !eng.SeqAcked(prevSeq) {
			mgr.Post(func() { lm.HandleLinkProberEvent(linkprober.EventTimeout) })
		}
		if err := eng.SendHeartbeat(); err != nil {
			log.Logger.Errorw("send heartbeat failed", "port", portName, "error", err)
			continue
		}
		prevSeq = eng.LastSeq()
		haveSent = true
	}
}

func runRecvLoop(mgr *muxmanager.Manager, lm *linkmanager.Manager, portName string, eng *linkprober.Engine) {
	buf := make([]byte, 256)
	for {
		n, err := eng.Recv(buf)
		if err != nil {
			log.Logger.Errorw("recv heartbeat frame failed", "port", portName, "error", err)
			return
		}
		ev, ok := eng.Classify(buf[:n])
		if !ok {
			metrics.IncPacketLoss(portName, 0)
			continue
		}
		mgr.Post(func() { lm.HandleLinkProberEvent(ev) })
	}
}
