// Package dbadapter defines the boundary between linkmgrd and the
// shared key-value store (spec.md §1's "KV-store client layer" — the
// interfaces this package specifies are the only contract linkmgrd has
// with that layer; the actual swss/redis client is out of scope).
//
// Table names mirror original_source/src/DbInterface.h's #defines.
package dbadapter

import (
	"context"
	"fmt"

	"github.com/sonic-net/linkmgrd-go/pkg/errdefs"
)

const (
	TableMuxCableInfo           = "MUX_CABLE_INFO"
	TableLinkProbeStats         = "LINK_PROBE_STATS"
	TableForwardingStateCommand = "FORWARDING_STATE_COMMAND"
	TableForwardingStateResp    = "FORWARDING_STATE_RESPONSE"
	TablePeerHwForwardingState  = "HW_FORWARDING_STATE_PEER"
	TableStatePeerHwForwarding  = "HW_MUX_CABLE_TABLE_PEER"
	TableIcmpEchoSession        = "ICMP_ECHO_SESSION_TABLE"
	TableMuxSwitchCause         = "MUX_SWITCH_CAUSE"
)

// FieldValues is one KV row: an ordered-irrelevant field/value set,
// matching swss::KeyOpFieldsValuesTuple's field-values payload.
type FieldValues map[string]string

// Notification is one subscriber-table update: a row key, the op
// ("SET" or "DEL"), and the row's current fields (empty for DEL).
type Notification struct {
	Key    string
	Op     string
	Fields FieldValues
}

const (
	OpSet = "SET"
	OpDel = "DEL"
)

// Table is a single producer/state table this process writes to or
// reads from.
type Table interface {
	Set(ctx context.Context, key string, fields FieldValues) error
	Get(ctx context.Context, key string) (FieldValues, error)
	Del(ctx context.Context, key string) error
}

// Subscriber delivers Notifications for one subscriber-state table. Run
// blocks, delivering notifications to the channel returned by
// Notifications, until ctx is cancelled.
type Subscriber interface {
	Notifications() <-chan Notification
	Run(ctx context.Context) error
}

// Store opens Tables and Subscribers by name; it is the full surface
// MuxManager needs from the KV-store client layer.
type Store interface {
	Table(name string) (Table, error)
	Subscriber(name string) (Subscriber, error)
	Close() error
}

func notFound(name string) error {
	return fmt.Errorf("dbadapter: table %q: %w", name, errdefs.ErrNotFound)
}
