//go:build tinygo

package rf24

import (
	"machine"

	"tinygo.org/x/drivers"
)

// tinygoPin wraps a machine.Pin to satisfy the Pin interface.
type tinygoPin struct {
	pin    machine.Pin
	output bool
}

func (p *tinygoPin) Out(l Level) error {
	if !p.output {
		p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.output = true
	}
	p.pin.Set(bool(l))
	return nil
}

func (p *tinygoPin) In(pull Pull) error {
	var mode machine.PinMode
	switch pull {
	case PullUp:
		mode = machine.PinInputPullup
	case PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	p.pin.Configure(machine.PinConfig{Mode: mode})
	p.output = false
	return nil
}

func (p *tinygoPin) Read() Level {
	return Level(p.pin.Get())
}

func (p *tinygoPin) Watch(edge Edge, handler func()) error {
	var change machine.PinChange
	switch edge {
	case RisingEdge:
		change = machine.PinRising
	case FallingEdge:
		change = machine.PinFalling
	case BothEdges:
		change = machine.PinToggle
	default:
		return nil
	}

	return p.pin.SetInterrupt(change, func(machine.Pin) {
		handler()
	})
}

func (p *tinygoPin) Unwatch() error {
	// a nil callback disables the interrupt
	return p.pin.SetInterrupt(0, nil)
}

// tinygoSPI frames each Tx with the chip select pin, since drivers.SPI
// implementations leave CS to the caller.
type tinygoSPI struct {
	bus drivers.SPI
	cs  machine.Pin
}

func (s *tinygoSPI) Tx(w, r []byte) error {
	s.cs.Low()
	err := s.bus.Tx(w, r)
	s.cs.High()
	return err
}

// Config holds the configuration for the TinyGo driver.
type Config struct {
	RadioConfig
	// Logger overrides the package logger for this device.
	Logger Logger
}

// NewTinyGo creates a new NRF24L01 driver for TinyGo systems. bus is any
// configured drivers.SPI, such as machine.SPI0. Pass machine.NoPin as irq
// to poll.
func NewTinyGo(c Config, bus drivers.SPI, cs, ce, irq machine.Pin) (*Device, error) {
	// Make sure CS is high or the first transaction will fail.
	cs.Configure(machine.PinConfig{Mode: machine.PinOutput})
	cs.High()

	var irqPin Pin
	if irq != machine.NoPin {
		irqPin = &tinygoPin{pin: irq}
	}

	return NewWithHardware(HardwareConfig{
		RadioConfig: c.RadioConfig,
		CE:          &tinygoPin{pin: ce},
		IRQ:         irqPin,
		Logger:      c.Logger,
	}, &tinygoSPI{bus: bus, cs: cs})
}
