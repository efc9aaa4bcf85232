// Package refclock adapts external I2C real-time clocks into reference
// clocks used to seed the on-chip counter after its domain lost power.
package refclock

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ds3231"
)

var (
	// ErrTimeInvalid means the reference oscillator stopped at some point
	// and its time cannot be trusted.
	ErrTimeInvalid = errors.New("reference clock time invalid")

	ErrOutOfRange = errors.New("reference clock time outside epoch range")
)

// DS3231 is a core.ReferenceClock backed by a DS3231 on an I2C bus.
type DS3231 struct {
	dev ds3231.Device

	// Validate rejects reads while the oscillator stop flag is set.
	Validate bool
}

// NewDS3231 creates the adapter at the default address.
func NewDS3231(bus drivers.I2C) *DS3231 {
	return &DS3231{
		dev:      ds3231.New(bus),
		Validate: true,
	}
}

// ReadTime returns the reference time in UTC.
func (d *DS3231) ReadTime() (time.Time, error) {
	if d.Validate && !d.dev.IsTimeValid() {
		return time.Time{}, ErrTimeInvalid
	}
	t, err := d.dev.ReadTime()
	if err != nil {
		return time.Time{}, err
	}
	if t.Unix() < 0 || t.Unix() > int64(^uint32(0)) {
		return time.Time{}, ErrOutOfRange
	}
	return t, nil
}

// SetTime writes t to the reference and clears its stop flag.
func (d *DS3231) SetTime(t time.Time) error {
	return d.dev.SetTime(t.UTC())
}
