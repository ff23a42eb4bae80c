// Package muxstate implements the MUX-State sub-state-machine: the
// forwarding state as reported by the local driver/orchestrator,
// independent of what the Link-Prober believes (spec.md §4.3).
package muxstate

import "github.com/sonic-net/linkmgrd-go/pkg/switchcause"

type Label int

const (
	Unknown Label = iota
	Active
	Standby
	Error
	Wait
)

func (l Label) String() string {
	switch l {
	case Active:
		return "Active"
	case Standby:
		return "Standby"
	case Error:
		return "Error"
	case Wait:
		return "Wait"
	default:
		return "Unknown"
	}
}

// WaitReason distinguishes *who* a Wait state is waiting on, per
// spec.md's "Wait cause" glossary entry.
type WaitReason int

const (
	WaitNone WaitReason = iota
	WaitSwssUpdate  // waiting on the local orchestrator (APPL_DB ack)
	WaitDriverUpdate // waiting on the kernel/hardware driver
)

// StateMachine tracks the current label, the last notified label
// so a repeated identical notification produces a single transition
// (spec.md invariant 6), and the wait reason/cause while in Wait.
type StateMachine struct {
	label      Label
	wait       WaitReason
	cause      switchcause.Cause
	lastNotify Label
	notifySeen bool
}

func New() *StateMachine {
	return &StateMachine{label: Unknown}
}

func (sm *StateMachine) Label() Label           { return sm.label }
func (sm *StateMachine) WaitReason() WaitReason { return sm.wait }
func (sm *StateMachine) Cause() switchcause.Cause { return sm.cause }

// Notify applies an external MUX-state notification (from the KV-store
// driver/orchestrator table). Returns changed=false when notify repeats
// the last-applied label, satisfying the idempotence invariant.
func (sm *StateMachine) Notify(notified Label) (changed bool) {
	if sm.notifySeen && notified == sm.lastNotify && notified == sm.label {
		return false
	}
	sm.notifySeen = true
	sm.lastNotify = notified
	if sm.label == notified {
		return false
	}
	sm.label = notified
	if notified != Wait {
		sm.wait = WaitNone
	}
	return true
}

// EnterWait starts a switchover wait, recording why (orchestrator vs
// driver) and the cause that triggered it. The target is not stored here.
func (sm *StateMachine) EnterWait(reason WaitReason, cause switchcause.Cause) {
	sm.label = Wait
	sm.wait = reason
	sm.cause = cause
}

// LeaveWait exits Wait into resolved, called once the matching
// notification arrives within the retry budget.
func (sm *StateMachine) LeaveWait(resolved Label) {
	sm.label = resolved
	sm.wait = WaitNone
}
