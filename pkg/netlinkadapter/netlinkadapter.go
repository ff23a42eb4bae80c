// Package netlinkadapter describes the neighbor-discovery callback
// shape linkmgrd needs from the kernel: when the ARP/NDP cache resolves
// or drops a server's MAC, a Port's source MAC must be updated
// (spec.md §1 — "only the callback shape is described" for this
// collaborator).
package netlinkadapter

import (
	"context"
	"fmt"
	"net"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
)

// NeighborEvent is a resolved or dropped ARP/NDP cache entry.
type NeighborEvent struct {
	IfIndex uint32
	IP      net.IP
	MAC     net.HardwareAddr
	// Reachable is false for a RTM_DELNEIGH or a NUD_FAILED state.
	Reachable bool
}

// Callback is invoked once per NeighborEvent. A consumer would look the
// IP up with port.Registry.ByServerIP and apply it with Port.SetSrcMac;
// neither MuxManager nor cmd/linkmgrd starts a Watcher.
type Callback func(NeighborEvent)

// Watcher subscribes to RTNLGRP_NEIGH and delivers NeighborEvents to a
// Callback until the context is cancelled.
type Watcher struct {
	conn *rtnetlink.Conn
	cb   Callback
}

// NewWatcher dials the route netlink socket subscribed to neighbor
// cache updates.
func NewWatcher(cb Callback) (*Watcher, error) {
	conn, err := rtnetlink.Dial(&netlink.Config{
		Groups: uint32(1 << (unixRTNLGRPNeigh - 1)),
	})
	if err != nil {
		return nil, fmt.Errorf("dial rtnetlink: %w", err)
	}
	return &Watcher{conn: conn, cb: cb}, nil
}

// unixRTNLGRPNeigh is RTNLGRP_NEIGH from linux/rtnetlink.h (3).
const unixRTNLGRPNeigh = 3

// Run reads neighbor-table updates until ctx is cancelled or the
// connection errors.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.conn.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, _, err := w.conn.Receive()
		if err != nil {
			return fmt.Errorf("receive neighbor updates: %w", err)
		}
		for _, m := range msgs {
			nm, ok := m.(*rtnetlink.NeighMessage)
			if !ok {
				continue
			}
			w.cb(toEvent(nm))
		}
	}
}

func toEvent(nm *rtnetlink.NeighMessage) NeighborEvent {
	ev := NeighborEvent{
		IfIndex:   nm.Index,
		Reachable: nm.State&nudReachableMask != 0,
	}
	if nm.Attributes != nil {
		ev.IP = nm.Attributes.Address
		ev.MAC = nm.Attributes.LLAddress
	}
	return ev
}

// nudReachableMask covers NUD_REACHABLE|NUD_STALE|NUD_DELAY|NUD_PROBE|
// NUD_PERMANENT — any state where the kernel still considers the MAC
// usable, as opposed to NUD_FAILED/NUD_INCOMPLETE/NUD_NONE.
const nudReachableMask = 0x02 | 0x04 | 0x08 | 0x10 | 0x80

func (w *Watcher) Close() error {
	return w.conn.Close()
}
