// Package gamepad keeps the latest state of an Xbox style controller.
//
// Values are normalized for the motor command: stick axes in [-1, 1],
// analog triggers in [0, 1], buttons and bumpers as 0 or 1.
package gamepad

import (
	"math"
	"sync"

	"github.com/robotalks/rovlink/pkg/gamepad/device"
)

// Source provides the latest sampled controller state. Reads never block.
type Source interface {
	// ReadButtons returns A, B, X, Y, Back, Start.
	ReadButtons() []int
	// ReadTriggers returns LT, RT, LB, RB.
	ReadTriggers() []float64
	// ReadSticks returns left click, LX, LY, right click, RX, RY.
	ReadSticks() []float64
}

// Indices into ReadButtons.
const (
	ButtonA = iota
	ButtonB
	ButtonX
	ButtonY
	ButtonBack
	ButtonStart
	numButtons
)

// Mapping maps driver axis and button numbers to controls.
type Mapping struct {
	LeftX, LeftY, RightX, RightY int
	LeftTrigger, RightTrigger    int

	A, B, X, Y, Back, Start int
	LeftBumper, RightBumper int
	LeftThumb, RightThumb   int
}

// XpadMapping is the layout reported by the Linux xpad driver.
var XpadMapping = Mapping{
	LeftX: 0, LeftY: 1, LeftTrigger: 2, RightX: 3, RightY: 4, RightTrigger: 5,
	A: 0, B: 1, X: 2, Y: 3, LeftBumper: 4, RightBumper: 5,
	Back: 6, Start: 7, LeftThumb: 9, RightThumb: 10,
}

// Pad is a Source fed with device events.
type Pad struct {
	Mapping Mapping
	// Precision is the number of decimals kept for analog values.
	Precision int

	lock    sync.RWMutex
	axes    map[int]int
	buttons map[int]bool
}

// NewPad creates a neutral Pad.
func NewPad(mapping Mapping) *Pad {
	return &Pad{
		Mapping:   mapping,
		Precision: 3,
		axes:      make(map[int]int),
		buttons:   make(map[int]bool),
	}
}

// Apply updates the state with an event.
func (p *Pad) Apply(ev device.Event) {
	p.lock.Lock()
	defer p.lock.Unlock()
	switch ev.Kind {
	case device.KindAxis:
		p.axes[ev.Index] = ev.Value
	case device.KindButton:
		p.buttons[ev.Index] = ev.Value != 0
	}
}

// Reset returns every control to neutral.
func (p *Pad) Reset() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.axes = make(map[int]int)
	p.buttons = make(map[int]bool)
}

// ReadButtons implements Source.
func (p *Pad) ReadButtons() []int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	m := &p.Mapping
	return []int{
		p.button(m.A), p.button(m.B), p.button(m.X), p.button(m.Y),
		p.button(m.Back), p.button(m.Start),
	}
}

// ReadTriggers implements Source.
func (p *Pad) ReadTriggers() []float64 {
	p.lock.RLock()
	defer p.lock.RUnlock()
	m := &p.Mapping
	return []float64{
		p.trigger(m.LeftTrigger), p.trigger(m.RightTrigger),
		float64(p.button(m.LeftBumper)), float64(p.button(m.RightBumper)),
	}
}

// ReadSticks implements Source.
func (p *Pad) ReadSticks() []float64 {
	p.lock.RLock()
	defer p.lock.RUnlock()
	m := &p.Mapping
	return []float64{
		float64(p.button(m.LeftThumb)), p.axis(m.LeftX), p.axis(m.LeftY),
		float64(p.button(m.RightThumb)), p.axis(m.RightX), p.axis(m.RightY),
	}
}

func (p *Pad) button(index int) int {
	if p.buttons[index] {
		return 1
	}
	return 0
}

func (p *Pad) axis(index int) float64 {
	return p.round(float64(p.axes[index]) / device.AxisMax)
}

// Triggers rest at -AxisMax; an unseen trigger reads as released.
func (p *Pad) trigger(index int) float64 {
	val, ok := p.axes[index]
	if !ok {
		return 0
	}
	return p.round(float64(val+device.AxisMax) / (2 * device.AxisMax))
}

func (p *Pad) round(v float64) float64 {
	scale := math.Pow(10, float64(p.Precision))
	v = math.Round(v*scale) / scale
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	case v == 0:
		// drops negative zero.
		return 0
	}
	return v
}
