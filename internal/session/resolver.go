package session

import "time"

// ResolveStatus reconciles the stored status with wall-clock time. The
// expiry boundary is inclusive: a session whose end time equals now is
// already ended.
func ResolveStatus(s *ChatSession, now time.Time) string {
	if s.Status == StatusEnded {
		return StatusEnded
	}
	if s.EndTime == nil {
		// no end time recorded; should not happen in practice
		return StatusActive
	}
	if !s.EndTime.UTC().After(now.UTC()) {
		return StatusEnded
	}
	return StatusActive
}

// RemainingSeconds is the whole seconds left on the timer, never negative.
func RemainingSeconds(s *ChatSession, now time.Time) int {
	if s.EndTime == nil {
		return 0
	}
	d := s.EndTime.UTC().Sub(now.UTC())
	if d <= 0 {
		return 0
	}
	return int(d.Seconds())
}

// Usable reports whether the session may accept a message right now.
func Usable(s *ChatSession, now time.Time) bool {
	return ResolveStatus(s, now) == StatusActive && RemainingSeconds(s, now) > 0
}

// SameUTCDay reports whether both instants fall on the same calendar date
// in UTC.
func SameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
