package engine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDetector(now time.Time) *IdleDetector {
	return NewIdleDetector(DefaultIdleConfig(), now, zerolog.Nop())
}

func TestIdleRequiresMinimumDuration(t *testing.T) {
	start := time.Now()
	d := newTestDetector(start)

	// Perfectly quiet, but only 30s without interaction.
	require.False(t, d.Evaluate(start.Add(30*time.Second), 2, 100, 100))

	// Past the 60s floor.
	require.True(t, d.Evaluate(start.Add(61*time.Second), 2, 100, 100))
	require.True(t, d.Idle())
}

func TestIdleQuietIsCPUOrNetwork(t *testing.T) {
	start := time.Now()
	at := start.Add(2 * time.Minute)

	// High CPU but quiet network still counts as quiet.
	d := newTestDetector(start)
	require.True(t, d.Evaluate(at, 90, 1024, 1024))

	// Quiet CPU but heavy network also counts as quiet.
	d = newTestDetector(start)
	require.True(t, d.Evaluate(at, 2, 10e6, 10e6))

	// Both hot: not idle.
	d = newTestDetector(start)
	require.False(t, d.Evaluate(at, 90, 10e6, 10e6))
}

func TestTouchOverridesIdleImmediately(t *testing.T) {
	start := time.Now()
	d := newTestDetector(start)

	at := start.Add(2 * time.Minute)
	require.True(t, d.Evaluate(at, 2, 0, 0))

	// Interaction flips to active instantly, metrics unchanged.
	d.Touch(at.Add(time.Second))
	require.False(t, d.Idle())

	// And the 60s clock restarts from the interaction.
	require.False(t, d.Evaluate(at.Add(30*time.Second), 2, 0, 0))
}

func TestIdleDuration(t *testing.T) {
	start := time.Now()
	d := newTestDetector(start)

	require.Zero(t, d.IdleDuration(start))

	entered := start.Add(90 * time.Second)
	require.True(t, d.Evaluate(entered, 2, 0, 0))
	require.Equal(t, 30*time.Second, d.IdleDuration(entered.Add(30*time.Second)))
}

func TestQuietIdleRequiresBothQuietCPUAndNetwork(t *testing.T) {
	start := time.Now()
	d := newTestDetector(start)
	at := start.Add(2 * time.Minute)

	// Idle via quiet network despite hot CPU.
	require.True(t, d.Evaluate(at, 90, 1024, 1024))

	// But that sample must not feed the baseline.
	require.False(t, d.QuietIdle(90, 1024, 1024))
	require.True(t, d.QuietIdle(2, 1024, 1024))
}

func TestQuietIdleFalseWhileActive(t *testing.T) {
	start := time.Now()
	d := newTestDetector(start)
	require.False(t, d.QuietIdle(1, 0, 0))
}
