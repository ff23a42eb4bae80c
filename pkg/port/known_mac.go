// Package port models a single MUX port: its configuration, its
// well-known MAC (when the ToR is configured to address the server by a
// deterministic MAC rather than its learned one), and the registry
// mapping server IPs to ports.
package port

import (
	"encoding/binary"
	"fmt"

	"github.com/sonic-net/linkmgrd-go/pkg/errdefs"
)

// knownMACBase is KNOWN_MAC_START from the original MuxManager: the
// base 48-bit address that well-known per-server MACs are generated
// from.
var knownMACBase = [6]byte{0x04, 0x27, 0x28, 0x7a, 0x00, 0x00}

// KnownMACCount is KNOWN_MAC_COUNT: the number of servers a ToR can
// address with a well-known MAC.
const KnownMACCount = 1024

// KnownMAC returns the deterministic MAC address for serverID, computed
// as true 48-bit big-endian addition over knownMACBase. serverID must be
// in [0, KnownMACCount); out-of-range requests are rejected rather than
// silently wrapping (spec.md §3, §8 invariant 7).
//
// The original C++ generateServerMac folds the carry with `% 0xff`
// instead of `% 0x100`, which corrupts addresses once a byte would
// overflow; this is the bit-exact, non-buggy formula.
func KnownMAC(serverID uint32) ([6]byte, error) {
	if serverID >= KnownMACCount {
		return [6]byte{}, fmt.Errorf("server id %d out of range [0,%d): %w", serverID, KnownMACCount, errdefs.ErrInvalidArgument)
	}

	base := uint64(binary.BigEndian.Uint32(knownMACBase[2:6])) | uint64(binary.BigEndian.Uint16(knownMACBase[0:2]))<<32
	v := base + uint64(serverID)

	var out [6]byte
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v<<16)
	copy(out[:], buf[:6])
	return out, nil
}
