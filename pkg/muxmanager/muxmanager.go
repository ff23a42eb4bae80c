// Package muxmanager implements MuxManager: the orchestration layer
// that owns the port set, dispatches external events onto a single
// cooperative executor, generates deterministic well-known MACs, and
// runs warm-restart reconciliation (spec.md §4.7).
package muxmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sonic-net/linkmgrd-go/pkg/config"
	"github.com/sonic-net/linkmgrd-go/pkg/dbadapter"
	"github.com/sonic-net/linkmgrd-go/pkg/executor"
	"github.com/sonic-net/linkmgrd-go/pkg/linkmanager"
	"github.com/sonic-net/linkmgrd-go/pkg/log"
	"github.com/sonic-net/linkmgrd-go/pkg/muxstate"
	"github.com/sonic-net/linkmgrd-go/pkg/port"
	"github.com/sonic-net/linkmgrd-go/pkg/switchcause"
)

// kvNotifier adapts one mux_cable_info Table into linkmanager.Notifier,
// the only way a Manager ever touches the KV store. peerTable is the
// distinct HW_MUX_CABLE_TABLE_PEER row an active-active port's peer
// direction publishes to (spec.md §4.6); it is nil unless SetPeerTable
// was called before the port was created. Only active-active ports call
// PublishPeerTargetState.
type kvNotifier struct {
	table     dbadapter.Table
	peerTable dbadapter.Table
}

func (n *kvNotifier) PublishTargetState(portName string, label muxstate.Label) {
	if n.table == nil {
		return
	}
	if err := n.table.Set(context.Background(), portName, dbadapter.FieldValues{"state": label.String()}); err != nil {
		log.Logger.Errorw("publish target state failed", "port", portName, "error", err)
	}
}

func (n *kvNotifier) PublishSwitchCause(portName string, cause switchcause.Cause) {
	if n.table == nil {
		return
	}
	if err := n.table.Set(context.Background(), portName, dbadapter.FieldValues{"cause": cause.String()}); err != nil {
		log.Logger.Errorw("publish switch cause failed", "port", portName, "error", err)
	}
}

func (n *kvNotifier) PublishHealth(portName string, health port.HealthLabel) {
	if n.table == nil {
		return
	}
	if err := n.table.Set(context.Background(), portName, dbadapter.FieldValues{"health": health.String()}); err != nil {
		log.Logger.Errorw("publish health failed", "port", portName, "error", err)
	}
}

func (n *kvNotifier) PublishPeerTargetState(portName string, label muxstate.Label) {
	if n.peerTable == nil {
		return
	}
	if err := n.peerTable.Set(context.Background(), portName, dbadapter.FieldValues{"state": label.String()}); err != nil {
		log.Logger.Errorw("publish peer target state failed", "port", portName, "error", err)
	}
}

// tlvCommander adapts the ICMP command-tx path a PeerCommander needs.
// MuxManager wires it to each port's heartbeat engine once that engine
// exists; tests pass nil.
type tlvCommander interface {
	SendSwitchActiveCommand(portName string)
}

// Manager owns every port on this ToR plus the single strand every
// mutation is serialized through.
type Manager struct {
	mu sync.Mutex

	strand   *executor.Strand
	registry *port.Registry
	managers map[string]*linkmanager.Manager

	cableInfoTable dbadapter.Table
	peerTable      dbadapter.Table
	commander      tlvCommander

	warmRestartTimer     *executor.Timer
	warmRestartPending   int
	warmRestartReconcile func()
}

// New builds a Manager backed by a fresh strand. cableInfoTable may be
// nil (tests/offline use), in which case KV publishes are silently
// skipped.
func New(cableInfoTable dbadapter.Table, commander tlvCommander) *Manager {
	return &Manager{
		strand:         executor.NewStrand(),
		registry:       port.NewRegistry(),
		managers:       make(map[string]*linkmanager.Manager),
		cableInfoTable: cableInfoTable,
		commander:      commander,
	}
}

// SetPeerTable wires the HW_MUX_CABLE_TABLE_PEER table active-active
// ports publish their peer-direction mux target to (spec.md §4.6). Left
// unset, active-active peer publishes are silently skipped, the same
// degraded-without-a-store behavior cableInfoTable already has.
func (m *Manager) SetPeerTable(t dbadapter.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peerTable = t
}

// GetOrCreatePort implements "create-on-first-reference": ports are
// never destroyed once referenced (spec.md §3, §4.7).
func (m *Manager) GetOrCreatePort(cfg config.MuxPortConfig) *linkmanager.Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lm, ok := m.managers[cfg.PortName]; ok {
		return lm
	}

	p := port.NewPort(cfg)
	m.registry.Add(p)

	var notifier linkmanager.Notifier
	if m.cableInfoTable != nil {
		notifier = &kvNotifier{table: m.cableInfoTable, peerTable: m.peerTable}
	}
	var cmd linkmanager.PeerCommander
	if m.commander != nil {
		cmd = m.commander
	}

	lm := linkmanager.New(p, m.strand, notifier, cmd)
	m.managers[cfg.PortName] = lm
	return lm
}

// Port returns the registered linkmanager.Manager for name, if any.
func (m *Manager) Port(name string) (*linkmanager.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lm, ok := m.managers[name]
	if !ok {
		return nil, fmt.Errorf("muxmanager: port %q not registered", name)
	}
	return lm, nil
}

// All returns every registered port's manager, for reconciliation and
// shutdown sweeps.
func (m *Manager) All() []*linkmanager.Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*linkmanager.Manager, 0, len(m.managers))
	for _, lm := range m.managers {
		out = append(out, lm)
	}
	return out
}

// Post dispatches fn onto the shared strand, the entry point every
// external event (KV notification, netlink update) must go through
// (spec.md §4.7 "post(strand, …)").
func (m *Manager) Post(fn func()) {
	m.strand.Post(fn)
}

// StartWarmRestart begins reconciliation: after timeout a deadline
// timer forces every still-non-Auto port back to Auto and invokes
// onReconciled exactly once. expectedPorts is the number of ports
// expected to report their initial state; reconciliation also fires
// early once every expected port has called ReportInitialState,
// whichever happens first (spec.md §4.7, S4).
func (m *Manager) StartWarmRestart(timeout time.Duration, expectedPorts int, onReconciled func()) {
	m.mu.Lock()
	m.warmRestartPending = expectedPorts
	m.warmRestartReconcile = onReconciled
	m.mu.Unlock()

	m.warmRestartTimer = m.strand.PostAfter(timeout, func() {
		m.reconcile()
	})
}

// ReportInitialState records that portName has reported its first
// post-restart state; once every expected port has reported, warm
// restart reconciles immediately instead of waiting for the timer.
func (m *Manager) ReportInitialState(portName string) {
	m.strand.Post(func() {
		m.mu.Lock()
		if m.warmRestartPending <= 0 {
			m.mu.Unlock()
			return
		}
		m.warmRestartPending--
		done := m.warmRestartPending == 0
		m.mu.Unlock()
		if done {
			m.reconcile()
		}
	})
}

// reconcile runs on the strand: forces every non-Auto port to Auto
// mode, rewriting its config-DB mode exactly once, then marks warm
// restart reconciled.
func (m *Manager) reconcile() {
	if m.warmRestartTimer != nil {
		m.warmRestartTimer.Cancel()
		m.warmRestartTimer = nil
	}

	for _, lm := range m.All() {
		if lm.Port.Config.Mode != config.ModeAuto {
			lm.HandleModeChange(config.ModeAuto)
			if m.cableInfoTable != nil {
				_ = m.cableInfoTable.Set(context.Background(), lm.Port.Config.PortName, dbadapter.FieldValues{"mode": "auto"})
			}
			log.Logger.Infof("%s: warm-restart reconciliation forced mode to auto", lm.Port.Config.PortName)
		}
	}

	m.mu.Lock()
	reconciled := m.warmRestartReconcile
	m.warmRestartReconcile = nil
	m.mu.Unlock()
	if reconciled != nil {
		reconciled()
	}
}

// HandleTsaChange applies a "bgp_device_global"/tsa_enabled transition
// (spec.md §6): asserting TSA forces every port to Standby regardless
// of its administrative mode; clearing it restores Auto on every port.
func (m *Manager) HandleTsaChange(enabled bool) {
	m.strand.Post(func() {
		for _, lm := range m.All() {
			if enabled {
				lm.HandleModeChange(config.ModeStandby)
			} else {
				lm.HandleModeChange(config.ModeAuto)
			}
		}
	})
}

// Shutdown implements the two-phase barrier spec.md §4.7 describes for
// SIGINT/SIGTERM: post a marker, wait until everything posted before it
// has run, then stop the strand itself. Post is not blocked meanwhile;
// work posted after the marker may not run.
func (m *Manager) Shutdown(ctx context.Context) error {
	drained := make(chan struct{})
	m.strand.Post(func() { close(drained) })

	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.strand.Stop()
	return nil
}
