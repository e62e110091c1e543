package orderbook

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall clock time in minutes after midnight.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Session is the trading window [Open, Close) evaluated on the time of day
// in Location (UTC when nil). It holds no state.
type Session struct {
	Open     TimeOfDay
	Close    TimeOfDay
	Location *time.Location
}

// NewYorkSession trades 09:30 to 16:00.
var NewYorkSession = Session{
	Open:  9*60 + 30,
	Close: 16 * 60,
}

func NewSession(open, close string, loc *time.Location) (Session, error) {
	o, err := ParseTimeOfDay(open)
	if err != nil {
		return Session{}, err
	}
	c, err := ParseTimeOfDay(close)
	if err != nil {
		return Session{}, err
	}
	return Session{Open: o, Close: c, Location: loc}, nil
}

func (s Session) IsOpen(now time.Time) bool {
	tod := s.timeOfDay(now)
	return tod >= s.Open && tod < s.Close
}

func (s Session) IsClose(now time.Time) bool {
	tod := s.timeOfDay(now)
	return tod < s.Open || tod >= s.Close
}

func (s Session) timeOfDay(now time.Time) TimeOfDay {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	return TimeOfDay(t.Hour()*60 + t.Minute())
}
