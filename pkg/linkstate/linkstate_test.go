package linkstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartsDown(t *testing.T) {
	assert.Equal(t, Down, New().Label())
}

func TestNotifyUpChanges(t *testing.T) {
	sm := New()
	assert.True(t, sm.Notify(true))
	assert.Equal(t, Up, sm.Label())
}

func TestNotifyRepeatedIsNoop(t *testing.T) {
	sm := New()
	sm.Notify(true)
	assert.False(t, sm.Notify(true))
}
