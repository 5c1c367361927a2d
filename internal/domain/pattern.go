package domain

import "time"

// PatternState is either effective or retired at an instant.
// The zero value is effective.
type PatternState struct {
	retired bool
	at      time.Time
}

func Retired(at time.Time) PatternState {
	return PatternState{retired: true, at: at}
}

func (s PatternState) Effective() bool {
	return !s.retired
}

// RetiredAt returns the retirement instant and false for effective patterns.
func (s PatternState) RetiredAt() (time.Time, bool) {
	return s.at, s.retired
}

// Pattern is a user authored regular expression matched against item titles.
// Retired patterns stay in the log so Item.PatternID keeps resolving.
type Pattern struct {
	ID         int64
	Expression string
	AddedAt    time.Time
	State      PatternState
}

func (p *Pattern) Effective() bool {
	return p.State.Effective()
}

func (p *Pattern) Retire(at time.Time) {
	p.State = Retired(at)
}

// EffectivePatterns filters out retired patterns, preserving order.
func EffectivePatterns(patterns []*Pattern) []*Pattern {
	var effective []*Pattern
	for _, p := range patterns {
		if p.Effective() {
			effective = append(effective, p)
		}
	}
	return effective
}
