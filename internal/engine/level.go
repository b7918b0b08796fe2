package engine

import "time"

// Level is the discrete threat level shown to the user.
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelAlert
	LevelCritical
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelAlert:
		return "alert"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// LevelForScore maps a score to its level. Ranges are contiguous and
// exhaustive over [0,100]: Normal [0,20), Warning [20,45), Alert [45,70),
// Critical [70,100].
func LevelForScore(score int) Level {
	switch {
	case score >= 70:
		return LevelCritical
	case score >= 45:
		return LevelAlert
	case score >= 20:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// LevelStateMachine debounces the discrete level label. Raw scores can cross
// a boundary on every tick from noisy instantaneous rates; holding the label
// for a minimum dwell time prevents visible flicker and notification spam
// while the numeric score stays live.
type LevelStateMachine struct {
	level      Level
	lastChange time.Time
	cooldown   time.Duration
}

// NewLevelStateMachine starts at Normal with the cooldown clock anchored at
// now, so transitions within the first cooldown period of a session are held.
func NewLevelStateMachine(now time.Time, cooldown time.Duration) *LevelStateMachine {
	return &LevelStateMachine{level: LevelNormal, lastChange: now, cooldown: cooldown}
}

// Apply feeds one tick's score through the machine. It returns the externally
// observable level and whether a transition was accepted this tick. A
// transition is rejected (the previous label held) unless the cooldown has
// elapsed since the last accepted change.
func (m *LevelStateMachine) Apply(now time.Time, score int) (Level, bool) {
	target := LevelForScore(score)
	if target == m.level {
		return m.level, false
	}
	if now.Sub(m.lastChange) < m.cooldown {
		return m.level, false
	}
	m.level = target
	m.lastChange = now
	return m.level, true
}

// Level returns the current externally observable level.
func (m *LevelStateMachine) Level() Level {
	return m.level
}
