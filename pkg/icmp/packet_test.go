package icmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEthernetHeaderRoundTrip(t *testing.T) {
	h := EthernetHeader{
		Dst:       [6]byte{1, 2, 3, 4, 5, 6},
		Src:       [6]byte{6, 5, 4, 3, 2, 1},
		EtherType: EtherTypeIPv4,
	}
	buf := make([]byte, ethHeaderLen)
	h.Marshal(buf)

	got, err := ParseEthernetHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestIPv4HeaderRoundTrip(t *testing.T) {
	h := IPv4Header{
		TOS:      0xB8,
		TotalLen: 48,
		TTL:      64,
		Protocol: ProtocolICMP,
		Src:      [4]byte{10, 0, 0, 1},
		Dst:      [4]byte{10, 0, 0, 2},
	}
	buf := make([]byte, ipv4HeaderLen)
	h.Marshal(buf)

	got, err := ParseIPv4Header(buf)
	require.NoError(t, err)
	assert.Equal(t, h.TOS, got.TOS)
	assert.Equal(t, h.TotalLen, got.TotalLen)
	assert.Equal(t, h.TTL, got.TTL)
	assert.Equal(t, h.Protocol, got.Protocol)
	assert.Equal(t, h.Src, got.Src)
	assert.Equal(t, h.Dst, got.Dst)
}

func TestPayloadRoundTrip(t *testing.T) {
	p := Payload{Cookie: CookieSoftware, Version: Version, GUID: [16]byte{0: 1, 15: 0xff}}
	buf := make([]byte, payloadLen)
	p.Marshal(buf)

	got, err := ParsePayload(buf)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestComputeChecksumZeroForBalancedBuffer(t *testing.T) {
	buf := []byte{0x45, 0x00, 0x00, 0x30, 0x00, 0x00, 0x00, 0x00, 0x40, 0x01, 0x00, 0x00, 10, 0, 0, 1, 10, 0, 0, 2}
	cs := ComputeChecksum(buf)
	binaryPutChecksum(buf, cs)
	assert.Equal(t, uint16(0), ComputeChecksum(buf))
}

func binaryPutChecksum(buf []byte, cs uint16) {
	buf[10] = byte(cs >> 8)
	buf[11] = byte(cs)
}

func TestUpdateSeqChecksumMatchesFullRecompute(t *testing.T) {
	buf := make([]byte, icmpHeaderLen+payloadLen)
	h := ICMPHeader{Type: ICMPTypeEchoRequest, ID: 7, Seq: 1}
	h.Marshal(buf)
	p := Payload{Cookie: CookieSoftware, Version: Version}
	p.Marshal(buf[icmpHeaderLen:])

	binary16put(buf[2:4], 0)
	full := ComputeChecksum(buf)
	binary16put(buf[2:4], full)

	UpdateSeqChecksum(buf, 1, 2)

	want := make([]byte, len(buf))
	copy(want, buf)
	want[6] = 0
	want[7] = 2
	want[2], want[3] = 0, 0
	wantChecksum := ComputeChecksum(want)

	gotChecksum := uint16(buf[2])<<8 | uint16(buf[3])
	assert.Equal(t, wantChecksum, gotChecksum)
}

func binary16put(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}
