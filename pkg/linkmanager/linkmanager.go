// Package linkmanager implements the composite link-manager controller:
// the per-port orchestrator that reconciles Link-Prober, MUX-State and
// Link-State into one target forwarding decision and drives
// switchover, in both the active-standby and active-active cable
// variants (spec.md §4.5).
package linkmanager

import (
	"time"

	"github.com/sonic-net/linkmgrd-go/pkg/config"
	"github.com/sonic-net/linkmgrd-go/pkg/executor"
	"github.com/sonic-net/linkmgrd-go/pkg/linkprober"
	"github.com/sonic-net/linkmgrd-go/pkg/linkstate"
	"github.com/sonic-net/linkmgrd-go/pkg/log"
	"github.com/sonic-net/linkmgrd-go/pkg/metrics"
	"github.com/sonic-net/linkmgrd-go/pkg/muxstate"
	"github.com/sonic-net/linkmgrd-go/pkg/port"
	"github.com/sonic-net/linkmgrd-go/pkg/switchcause"
)

// defaultWaitTimerBase is the unscaled retry interval a switchover Wait
// multiplies by its back-off factor.
const defaultWaitTimerBase = time.Second

// MaxBackoff caps the exponential retry back-off a Wait state uses
// while polling for a matching notification, in multiples of the
// configured wait-timer (spec.md §6: "typically 8 or 128").
const MaxBackoff = 128

// Notifier is the narrow KV-publishing surface a Manager needs: write
// a target mux state, a switch cause, and a health label. It is
// satisfied by a thin adapter over dbadapter.Table so this package
// never imports dbadapter directly.
type Notifier interface {
	PublishTargetState(portName string, label muxstate.Label)
	PublishSwitchCause(portName string, cause switchcause.Cause)
	PublishHealth(portName string, health port.HealthLabel)

	// PublishPeerTargetState writes the peer-direction mux target for an
	// active-active port to its distinct forwarding-state table (spec.md
	// §4.6), independent of the self-direction PublishTargetState row.
	PublishPeerTargetState(portName string, label muxstate.Label)
}

// PeerCommander sends a COMMAND/SWITCH_ACTIVE TLV to the peer ToR, used
// when a switchover Wait times out waiting on the local driver.
type PeerCommander interface {
	SendSwitchActiveCommand(portName string)
}

// ProbeController is the narrow control surface a Manager needs over its
// port's heartbeat engine: a timed post-switchover quiet window (spec.md
// §4.1's suspendTxProbes/SuspendTimerExpiredEvent). It is optional; a
// Manager with none wired simply skips the suspend/resume calls.
type ProbeController interface {
	SuspendFor(d time.Duration, onExpired func())
	Resume()
}

// Manager is the composite controller for one port.
type Manager struct {
	Port *port.Port

	lp      *linkprober.StateMachine
	mux     *muxstate.StateMachine
	link    *linkstate.StateMachine
	peerMux *muxstate.StateMachine

	cableType config.CableType
	mode      config.Mode
	pendingMode *config.Mode

	backoff       int
	waitTimerBase time.Duration
	strand        *executor.Strand
	timer         *executor.Timer

	notifier  Notifier
	commander PeerCommander
	probe     ProbeController

	// defaultRouteGate mirrors the "-d" CLI flag (spec.md §6): when true,
	// a Standby→Active failover additionally requires the default route
	// to be healthy. Disabled (the zero value) by default, matching the
	// daemon's default of not depending on default-route state.
	defaultRouteGate    bool
	defaultRouteHealthy bool
}

// SetDefaultRouteDependency enables or disables the "-d" default-route
// gate on automatic Standby→Active failover.
func (m *Manager) SetDefaultRouteDependency(enabled bool) {
	m.defaultRouteGate = enabled
}

// SetDefaultRouteHealthy records the current default-route health, as
// reported by the (out-of-scope) netlink/route-table collaborator.
// Losing the default route, in any mux state, also shuts down outbound
// heartbeats persistently, matching spec.md §4.1's shutdownTxProbes.
func (m *Manager) SetDefaultRouteHealthy(healthy bool) {
	m.defaultRouteHealthy = healthy
	if m.probe == nil {
		return
	}
	type shutdownController interface {
		ShutdownTxProbes()
		RestartTxProbes()
	}
	sc, ok := m.probe.(shutdownController)
	if !ok {
		return
	}
	if healthy {
		sc.RestartTxProbes()
	} else {
		sc.ShutdownTxProbes()
	}
}

// SetProbeController wires the heartbeat engine's suspend/resume surface
// once it exists (runtime construction order: the engine is created
// after the Manager, per port).
func (m *Manager) SetProbeController(p ProbeController) {
	m.probe = p
}

// New builds a Manager for p, wiring its three sub-state-machines.
func New(p *port.Port, strand *executor.Strand, notifier Notifier, commander PeerCommander) *Manager {
	activeActive := p.Config.CableType == config.CableTypeActiveActive
	return &Manager{
		Port:          p,
		lp:            linkprober.New(p.Config.Shared.PositiveStateChangeRetryCount, p.Config.Shared.NegativeStateChangeRetryCount, activeActive),
		mux:           muxstate.New(),
		link:          linkstate.New(),
		peerMux:       muxstate.New(),
		cableType:     p.Config.CableType,
		mode:          p.Config.Mode,
		waitTimerBase: defaultWaitTimerBase,
		strand:        strand,
		notifier:      notifier,
		commander:     commander,
		defaultRouteHealthy: true,
	}
}

// LinkProberState/MuxState/LinkState expose the composite for tests and
// for the orchestration layer's read-only reporting.
func (m *Manager) LinkProberState() linkprober.Label { return m.lp.Label() }
func (m *Manager) MuxState() muxstate.Label          { return m.mux.Label() }
func (m *Manager) LinkState() linkstate.Label        { return m.link.Label() }

// HandleLinkProberEvent processes one classified heartbeat event and
// re-evaluates composite health. For active-active ports the peer
// sub-state is tracked and published independently of the self
// transition below (spec.md §4.6).
func (m *Manager) HandleLinkProberEvent(ev linkprober.Event) {
	prevPeer := m.lp.PeerLabel()
	tr := m.lp.Process(ev)

	if m.cableType == config.CableTypeActiveActive && tr.Peer != prevPeer {
		m.publishPeerMux(tr.Peer)
	}

	if !tr.Changed {
		m.publishHealth()
		return
	}

	switch ev {
	case linkprober.EventSelfReply:
		// Active-active has no Standby side for self: regaining self
		// replies after a loss must itself drive the mux back to Active,
		// which active-standby never needs (its mux is already Active
		// while self replies are arriving).
		if m.cableType == config.CableTypeActiveActive && tr.Label == linkprober.Active {
			m.beginSwitchoverTo(muxstate.Active, switchcause.SelfHeartbeatRestored)
		}
	case linkprober.EventTimeout:
		if tr.Label == linkprober.Unknown {
			m.beginSwitchover(switchcause.PeerHeartbeatMissing)
		}
	case linkprober.EventSwitchActiveRequest:
		m.beginSwitchover(switchcause.TlvSwitchActiveCommand)
	}
	m.publishHealth()
}

// publishPeerMux maps a peer Link-Prober sub-state onto a peer mux
// target and writes it to the distinct peer forwarding-state table,
// deduplicating repeats the same way the self mux table does.
func (m *Manager) publishPeerMux(peer linkprober.PeerLabel) {
	target := peerMuxTarget(peer)
	if !m.peerMux.Notify(target) {
		return
	}
	if m.notifier != nil {
		m.notifier.PublishPeerTargetState(m.Port.Config.PortName, target)
	}
}

func peerMuxTarget(p linkprober.PeerLabel) muxstate.Label {
	switch p {
	case linkprober.PeerActive:
		return muxstate.Active
	case linkprober.PeerWait:
		return muxstate.Wait
	default:
		return muxstate.Standby
	}
}

// HandleLinkNotification applies a carrier change.
func (m *Manager) HandleLinkNotification(up bool) {
	changed := m.link.Notify(up)
	if changed && !up {
		m.beginSwitchover(switchcause.LinkDown)
	}
	m.publishHealth()
}

// HandleMuxNotification applies an external MUX-state notification (the
// local driver/orchestrator reporting the forwarding state actually in
// effect). Idempotent by construction via muxstate.StateMachine.Notify.
func (m *Manager) HandleMuxNotification(label muxstate.Label) {
	wasWaiting := m.mux.Label() == muxstate.Wait
	changed := m.mux.Notify(label)
	if changed && wasWaiting {
		m.cancelBackoff()
		metrics.SetSwitchingEnd(m.Port.Config.PortName, float64(time.Now().UnixNano())/1e9)
		if m.notifier != nil {
			m.notifier.PublishSwitchCause(m.Port.Config.PortName, m.mux.Cause())
		}
		if m.probe != nil {
			m.probe.Resume()
		}
	}
	m.publishHealth()
}

// HandleModeChange applies a config_db mode update. A change arriving
// mid-Wait is queued and applied once the Wait resolves, matching
// spec.md §4.3's mode-handling rule.
func (m *Manager) HandleModeChange(mode config.Mode) {
	if m.mux.Label() == muxstate.Wait {
		pending := mode
		m.pendingMode = &pending
		return
	}
	m.applyMode(mode)
}

func (m *Manager) applyMode(mode config.Mode) {
	m.mode = mode
	m.Port.Config.Mode = mode
	switch mode {
	case config.ModeActive:
		m.mux.Notify(muxstate.Active)
	case config.ModeStandby:
		m.mux.Notify(muxstate.Standby)
	}
	if m.notifier != nil {
		m.notifier.PublishTargetState(m.Port.Config.PortName, m.mux.Label())
	}
}

// beginSwitchover enters MUX Wait and starts the back-off retry timer,
// unless Manual mode disables automatic switchovers (then it logs and
// returns without entering Wait). The target is the
// opposite of the current mux label, the active-standby rule; active-
// active's "self LP Active ⇒ Active" drive instead calls
// beginSwitchoverTo directly with an explicit target.
func (m *Manager) beginSwitchover(cause switchcause.Cause) {
	target := muxstate.Standby
	if m.mux.Label() == muxstate.Standby {
		target = muxstate.Active
	}
	m.beginSwitchoverTo(target, cause)
}

// beginSwitchoverTo enters MUX Wait targeting target and starts the
// back-off retry timer, unless Manual mode disables automatic
// switchovers or a switchover to Active is gated by an unhealthy
// default route (spec.md §4.3, §6 "-d").
func (m *Manager) beginSwitchoverTo(target muxstate.Label, cause switchcause.Cause) {
	if m.mode == config.ModeManual {
		log.Logger.Infof("%s: switchover suppressed by manual mode (cause=%s)", m.Port.Config.PortName, cause)
		return
	}
	if m.mux.Label() == muxstate.Wait || m.mux.Label() == target {
		return
	}
	if target == muxstate.Active && m.defaultRouteGate && !m.defaultRouteHealthy {
		log.Logger.Infof("%s: standby->active failover suppressed, default route unhealthy (cause=%s)", m.Port.Config.PortName, cause)
		return
	}

	m.mux.EnterWait(muxstate.WaitSwssUpdate, cause)
	metrics.SetSwitchingStart(m.Port.Config.PortName, float64(time.Now().UnixNano())/1e9)
	if m.notifier != nil {
		m.notifier.PublishTargetState(m.Port.Config.PortName, target)
	}

	if m.probe != nil {
		m.probe.SuspendFor(m.Port.Config.Shared.SuspendTimeout(), func() {
			if m.strand != nil {
				m.strand.Post(func() { m.HandleLinkProberEvent(linkprober.EventSuspendTimerExpired) })
			}
		})
	}

	m.backoff = 1
	m.scheduleRetry()
}

func (m *Manager) scheduleRetry() {
	if m.strand == nil {
		return
	}
	m.timer = m.strand.PostAfter(m.waitTimerBase*time.Duration(m.backoff), m.onWaitTimeout)
}

func (m *Manager) onWaitTimeout() {
	if m.mux.Label() != muxstate.Wait {
		return
	}

	// A handful of unanswered orchestrator retries escalate the wait to
	// the driver path: send the peer a SWITCH_ACTIVE TLV instead of
	// just re-logging (spec.md §4.3 step 3).
	if m.mux.WaitReason() == muxstate.WaitSwssUpdate && m.backoff >= 4 {
		m.mux.EnterWait(muxstate.WaitDriverUpdate, m.mux.Cause())
	}
	if m.mux.WaitReason() == muxstate.WaitDriverUpdate && m.commander != nil {
		m.commander.SendSwitchActiveCommand(m.Port.Config.PortName)
	}

	log.Logger.Infof("%s: switchover wait retry (backoff=%d)", m.Port.Config.PortName, m.backoff)
	if m.backoff < MaxBackoff {
		m.backoff *= 2
	}
	m.scheduleRetry()
}

func (m *Manager) cancelBackoff() {
	if m.timer != nil {
		m.timer.Cancel()
		m.timer = nil
	}
	m.backoff = 0
	if m.pendingMode != nil {
		mode := *m.pendingMode
		m.pendingMode = nil
		m.applyMode(mode)
	}
}

// publishHealth derives the composite health label per spec.md
// invariant 2 ("Healthy iff all three sub-states are in agreement on
// the same side and link is Up") and publishes it.
func (m *Manager) publishHealth() {
	health := m.computeHealth()
	m.Port.SetHealth(health)
	if m.notifier != nil {
		m.notifier.PublishHealth(m.Port.Config.PortName, health)
	}
	metrics.SetPortHealth(m.Port.Config.PortName, healthMetricValue(health))
}

func (m *Manager) computeHealth() port.HealthLabel {
	if m.link.Label() != linkstate.Up {
		if m.lp.Label() == linkprober.Unknown && m.mux.Label() == muxstate.Unknown {
			return port.HealthUninitialized
		}
		return port.HealthUnhealthy
	}
	if m.defaultRouteGate && !m.defaultRouteHealthy {
		return port.HealthUnhealthy
	}
	switch {
	case m.lp.Label() == linkprober.Active && m.mux.Label() == muxstate.Active:
		return port.HealthHealthy
	case m.lp.Label() == linkprober.Standby && m.mux.Label() == muxstate.Standby:
		return port.HealthHealthy
	case m.lp.Label() == linkprober.Unknown && m.mux.Label() == muxstate.Unknown:
		return port.HealthUninitialized
	default:
		return port.HealthUnhealthy
	}
}

func healthMetricValue(h port.HealthLabel) int {
	switch h {
	case port.HealthHealthy:
		return metrics.HealthHealthy
	case port.HealthUnhealthy:
		return metrics.HealthUnhealthy
	default:
		return metrics.HealthUninitialized
	}
}
