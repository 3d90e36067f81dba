package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStringToNullString(t *testing.T) {
	assert.False(t, StringToNullString("").Valid)
	ns := StringToNullString("10.0.0.1")
	assert.True(t, ns.Valid)
	assert.Equal(t, "10.0.0.1", ns.String)
}

func TestNullTimeRoundTrip(t *testing.T) {
	assert.False(t, TimePtrToNullTime(nil).Valid)
	assert.Nil(t, NullTimeToPtr(TimePtrToNullTime(nil)))

	now := time.Now()
	got := NullTimeToPtr(TimePtrToNullTime(&now))
	if assert.NotNil(t, got) {
		assert.True(t, now.Equal(*got))
	}
}

func TestNewULIDIsSortable(t *testing.T) {
	at := time.Now()
	a := NewULIDAt(at)
	b := NewULIDAt(at)
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}
