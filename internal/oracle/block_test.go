package oracle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualAdvances(t *testing.T) {
	m := NewManual(100)
	require.Equal(t, uint64(100), m.CurrentHeight())

	m.Advance(10)
	require.Equal(t, uint64(110), m.CurrentHeight())
}

func TestManualRefusesMovingBackwards(t *testing.T) {
	m := NewManual(100)
	m.SetHeight(150)
	require.Equal(t, uint64(150), m.CurrentHeight())

	m.SetHeight(120)
	require.Equal(t, uint64(150), m.CurrentHeight())
}

func TestTickerStartsAtGenesis(t *testing.T) {
	ticker := NewTicker(5000, time.Hour)
	require.Equal(t, uint64(5000), ticker.CurrentHeight())
}

func TestTickerAdvancesWithTime(t *testing.T) {
	ticker := NewTicker(1, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	require.Greater(t, ticker.CurrentHeight(), uint64(1))
}

func TestTickerIsMonotonic(t *testing.T) {
	ticker := NewTicker(1, time.Millisecond)

	prev := ticker.CurrentHeight()
	for i := 0; i < 1000; i++ {
		h := ticker.CurrentHeight()
		require.GreaterOrEqual(t, h, prev)
		prev = h
	}
}

func TestTickerDefaultsNonPositiveInterval(t *testing.T) {
	ticker := NewTicker(10, 0)
	require.Equal(t, uint64(10), ticker.CurrentHeight())
}
