// Package guid generates the 16-byte GUID linkmgrd embeds in every ICMP
// heartbeat payload (spec.md §4.1) and tracks recently-seen peer GUIDs so
// a port can tell its own reflected packets from a genuine peer.
package guid

import (
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Size is the GUID width carried in the heartbeat payload.
const Size = 16

// Generate returns a fresh random GUID for this process's heartbeat
// payload, generated once at startup (LinkMgrdMain calls
// IcmpPayload::generateGuid() exactly once).
func Generate() [Size]byte {
	var g [Size]byte
	copy(g[:], uuid.New()[:])
	return g
}

// SeenSet deduplicates peer GUIDs observed on the wire. Entries expire
// after ttl so a peer restart (which rotates its GUID) does not leak
// memory.
type SeenSet struct {
	cache *gocache.Cache
}

// NewSeenSet builds a SeenSet with the given per-entry TTL.
func NewSeenSet(ttl time.Duration) *SeenSet {
	return &SeenSet{cache: gocache.New(ttl, ttl/2)}
}

// Observe records guid as seen and reports whether it had already been
// observed.
func (s *SeenSet) Observe(guid [Size]byte) (alreadySeen bool) {
	key := string(guid[:])
	if _, found := s.cache.Get(key); found {
		return true
	}
	s.cache.SetDefault(key, struct{}{})
	return false
}
