package port

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownMACBase(t *testing.T) {
	mac, err := KnownMAC(0)
	assert.NoError(t, err)
	assert.Equal(t, [6]byte{0x04, 0x27, 0x28, 0x7a, 0x00, 0x00}, mac)
}

func TestKnownMACIncrement(t *testing.T) {
	mac, err := KnownMAC(1)
	assert.NoError(t, err)
	assert.Equal(t, [6]byte{0x04, 0x27, 0x28, 0x7a, 0x00, 0x01}, mac)

	mac, err = KnownMAC(0xff)
	assert.NoError(t, err)
	assert.Equal(t, [6]byte{0x04, 0x27, 0x28, 0x7a, 0x00, 0xff}, mac)
}

func TestKnownMACByteCarry(t *testing.T) {
	// 0x100 must carry cleanly into the next byte (the original's bug
	// folded this with %0xff instead of %0x100).
	mac, err := KnownMAC(0x100)
	assert.NoError(t, err)
	assert.Equal(t, [6]byte{0x04, 0x27, 0x28, 0x7a, 0x01, 0x00}, mac)
}

func TestKnownMACMaxCount(t *testing.T) {
	mac, err := KnownMAC(KnownMACCount - 1)
	assert.NoError(t, err)
	assert.Equal(t, [6]byte{0x04, 0x27, 0x28, 0x7a, 0x03, 0xff}, mac)
}

func TestKnownMACOutOfRange(t *testing.T) {
	_, err := KnownMAC(KnownMACCount)
	assert.Error(t, err)
}
