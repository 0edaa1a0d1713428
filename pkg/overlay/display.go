// Package overlay keeps the latest telemetry readings for the capture
// overlay and serves them to browser sources.
package overlay

import (
	"fmt"
	"sync"
	"time"

	"github.com/robotalks/rovlink/pkg/telemetry"
)

// Title of the overlay page.
const Title = "Kelpie Data Capture Overlay"

// NotReady is shown before the first reading.
const NotReady = "READY"

// Readings are the values shown on the overlay, as reported.
type Readings struct {
	Humidity    string    `json:"humidity"`
	Temperature string    `json:"temperature"`
	Leak        string    `json:"leak"`
	PowerIn     string    `json:"power_in"`
	PowerOut    string    `json:"power_out"`
	Updated     time.Time `json:"updated,omitempty"`
}

// Labels renders the overlay labels.
func (r Readings) Labels() []string {
	return []string{
		"Humidity: " + r.Humidity,
		"Temperature: " + r.Temperature,
		fmt.Sprintf("Input: %s\tOut: %s", r.PowerIn, r.PowerOut),
	}
}

// Display is a telemetry.Sink keeping the latest Readings and
// notifying watchers of every update.
type Display struct {
	lock     sync.Mutex
	latest   Readings
	watchers map[chan Readings]struct{}
}

// NewDisplay creates a Display showing NotReady.
func NewDisplay() *Display {
	return &Display{
		latest: Readings{
			Humidity:    NotReady,
			Temperature: NotReady,
			Leak:        NotReady,
			PowerIn:     NotReady,
			PowerOut:    NotReady,
		},
		watchers: make(map[chan Readings]struct{}),
	}
}

// Append implements telemetry.Sink. Columns missing from the row keep
// their previous value.
func (d *Display) Append(row []string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	r := &d.latest
	for col, field := range map[int]*string{
		telemetry.ColHumidity:      &r.Humidity,
		telemetry.ColEnclosureTemp: &r.Temperature,
		telemetry.ColLeak:          &r.Leak,
		telemetry.ColVin:           &r.PowerIn,
		telemetry.ColPowerOut:      &r.PowerOut,
	} {
		if col < len(row) {
			*field = row[col]
		}
	}
	r.Updated = time.Now()
	for ch := range d.watchers {
		// a slow watcher only misses intermediate readings.
		select {
		case <-ch:
		default:
		}
		ch <- d.latest
	}
	return nil
}

// Latest returns the current readings.
func (d *Display) Latest() Readings {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.latest
}

// Watch returns a channel receiving the current readings and every
// later update. cancel must be called to release it.
func (d *Display) Watch() (updates <-chan Readings, cancel func()) {
	ch := make(chan Readings, 1)
	d.lock.Lock()
	ch <- d.latest
	d.watchers[ch] = struct{}{}
	d.lock.Unlock()
	return ch, func() {
		d.lock.Lock()
		delete(d.watchers, ch)
		d.lock.Unlock()
	}
}
