package chrono

import (
	"time"
	_ "time/tzdata"
)

// API is the source of the current time, anything that depends on "today"
// should take it instead of calling time.Now directly.
type API interface {
	Now() time.Time
	Location() *time.Location
}

// StandardImpl is the wall clock in a fixed location.
type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl loads the named location (ex. "Asia/Tokyo"), an empty name means UTC.
func NewStandardImpl(name string) (StandardImpl, error) {
	if name == "" {
		return StandardImpl{location: time.UTC}, nil
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// FixedImpl always returns the same instant, used in tests.
type FixedImpl struct {
	Time time.Time
}

func (f FixedImpl) Now() time.Time {
	return f.Time
}

func (f FixedImpl) Location() *time.Location {
	return f.Time.Location()
}

// Today truncates the current time of `c` to midnight in its location.
func Today(c API) time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.Location())
}
