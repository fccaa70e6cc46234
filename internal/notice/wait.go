// internal/notice/wait.go
package notice

import (
	"math"
	"time"
)

// Unit is the wording of a wait value.
type Unit string

const (
	UnitMinutes Unit = "minutes"
	UnitSeconds Unit = "seconds"
)

// Key returns the message key that renders the unit.
func (u Unit) Key() string {
	if u == UnitSeconds {
		return KeySeconds
	}
	return KeyMinutes
}

// WaitTime returns how long the conflicting user is told to wait, in rounded minutes.
// Seconds wording is used only when the value rounds below one minute and less
// than sixty seconds have really elapsed.
func WaitTime(now, acquiredAt time.Time) (int64, Unit) {
	elapsed := math.Abs(math.Trunc(now.Sub(acquiredAt).Seconds()))
	minutes := int64(math.Round(elapsed / 60))

	if minutes < 1 && elapsed < 60 {
		return minutes, UnitSeconds
	}
	return minutes, UnitMinutes
}
