package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListeners_EmitInRegistrationOrder(t *testing.T) {
	l := NewListeners[string]()

	var got []string
	l.Add(func(v string) { got = append(got, "first:"+v) })
	l.Add(func(v string) { got = append(got, "second:"+v) })

	l.Emit("x")
	assert.Equal(t, []string{"first:x", "second:x"}, got)
}

func TestListeners_UnsubscribeIsIdempotent(t *testing.T) {
	l := NewListeners[int]()

	calls := 0
	unsub := l.Add(func(int) { calls++ })
	l.Add(func(int) {})

	unsub()
	unsub() // second call must be a no-op, not an error
	assert.Equal(t, 1, l.Len())

	l.Emit(1)
	assert.Zero(t, calls)
}

func TestListeners_PanicIsolation(t *testing.T) {
	l := NewListeners[int]()

	var reached bool
	l.Add(func(int) { panic("listener bug") })
	l.Add(func(int) { reached = true })

	assert.NotPanics(t, func() { l.Emit(7) })
	assert.True(t, reached, "second listener still runs")
}

func TestListeners_Clear(t *testing.T) {
	l := NewListeners[int]()
	l.Add(func(int) {})
	l.Add(func(int) {})
	l.Clear()
	assert.Zero(t, l.Len())
}
