package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Manual_AdvanceMovesForward(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	c := NewManual(start)

	assert.Equal(t, start, c.Now())

	c.Advance(45 * time.Second)
	assert.Equal(t, start.UnixMilli()+45_000, c.Now().UnixMilli())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func Test_System_ReturnsWallClock(t *testing.T) {
	before := time.Now()
	got := System{}.Now()

	assert.False(t, got.Before(before))
}
