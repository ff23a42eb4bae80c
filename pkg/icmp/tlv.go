package icmp

import (
	"encoding/binary"
	"errors"
)

// TLVType identifies a tail record. SENTINEL has length 0 and
// terminates parsing; unknown types with non-zero length are skipped.
type TLVType uint8

const (
	TLVSentinel TLVType = 0
	TLVCommand  TLVType = 1
	TLVDummy    TLVType = 2
)

// CommandValue is the single-byte value carried by a TLVCommand record.
type CommandValue uint8

const (
	CommandSwitchActive CommandValue = 1
	CommandMuxProbe     CommandValue = 2
)

// TLV is one parsed tail record.
type TLV struct {
	Type  TLVType
	Value []byte
}

var ErrTLVOverflow = errors.New("icmp: tlv tail exceeds buffer")

// AppendSentinel writes a zero-length SENTINEL TLV and returns the
// number of bytes written.
func AppendSentinel(buf []byte) (int, error) {
	return appendTLV(buf, TLVSentinel, nil)
}

// AppendCommand writes a COMMAND TLV carrying a single command byte.
func AppendCommand(buf []byte, cmd CommandValue) (int, error) {
	return appendTLV(buf, TLVCommand, []byte{byte(cmd)})
}

func appendTLV(buf []byte, t TLVType, value []byte) (int, error) {
	n := 3 + len(value)
	if len(buf) < n {
		return 0, ErrTLVOverflow
	}
	buf[0] = byte(t)
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(value)))
	copy(buf[3:], value)
	return n, nil
}

// ParseTLVTail walks buf from the start of the TLV tail, stopping at
// SENTINEL (inclusive) or at the end of buf, gracefully skipping any
// unknown type whose length is non-zero (spec.md invariant 4).
func ParseTLVTail(buf []byte) []TLV {
	var out []TLV
	for len(buf) >= 3 {
		t := TLVType(buf[0])
		length := binary.BigEndian.Uint16(buf[1:3])
		buf = buf[3:]
		if t == TLVSentinel && length == 0 {
			out = append(out, TLV{Type: t})
			return out
		}
		if int(length) > len(buf) {
			return out
		}
		out = append(out, TLV{Type: t, Value: buf[:length]})
		buf = buf[length:]
	}
	return out
}
