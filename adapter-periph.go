//go:build !tinygo

package rf24

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// edgePoll bounds each WaitForEdge so Unwatch is noticed.
const edgePoll = 100 * time.Millisecond

// periphPin wraps a gpio.PinIO to satisfy the Pin interface.
type periphPin struct {
	gpio.PinIO

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewPeriphPin adapts a periph.io pin, for boards where the pins are not
// reachable by BCM number.
func NewPeriphPin(p gpio.PinIO) Pin {
	return &periphPin{PinIO: p}
}

func (p *periphPin) Out(l Level) error {
	return p.PinIO.Out(gpio.Level(l))
}

func periphPull(pull Pull) gpio.Pull {
	switch pull {
	case PullFloat:
		return gpio.Float
	case PullDown:
		return gpio.PullDown
	case PullUp:
		return gpio.PullUp
	default:
		return gpio.PullNoChange
	}
}

func periphEdge(edge Edge) gpio.Edge {
	switch edge {
	case RisingEdge:
		return gpio.RisingEdge
	case FallingEdge:
		return gpio.FallingEdge
	case BothEdges:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}

func (p *periphPin) In(pull Pull) error {
	return p.PinIO.In(periphPull(pull), gpio.NoEdge)
}

func (p *periphPin) Read() Level {
	return Level(p.PinIO.Read())
}

// Watch runs handler from a goroutine on every matching edge until Unwatch.
func (p *periphPin) Watch(edge Edge, handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return fmt.Errorf("%w: pin %s already watched", ErrPkg, p.PinIO.Name())
	}

	// the IRQ line is open drain, active low
	if err := p.PinIO.In(gpio.PullUp, periphEdge(edge)); err != nil {
		return err
	}

	stop, done := make(chan struct{}), make(chan struct{})
	p.stop, p.done = stop, done
	go func() {
		defer close(done)
		for {
			edged := p.PinIO.WaitForEdge(edgePoll)
			select {
			case <-stop:
				return
			default:
			}
			if edged {
				handler()
			}
		}
	}()
	return nil
}

func (p *periphPin) Unwatch() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return nil
	}
	close(p.stop)
	<-p.done
	p.stop, p.done = nil, nil
	// Disable edge detection
	return p.PinIO.In(gpio.PullUp, gpio.NoEdge)
}

// Config holds the configuration for the Linux/periph.io driver.
type Config struct {
	RadioConfig `yaml:",inline"`
	// CEPin is the GPIO pin number (BCM numbering) for the Chip Enable (CE) pin.
	// Defaults to 25 if not provided.
	CEPin int `yaml:"ce_pin"`
	// IRQPin is the GPIO pin number (BCM numbering) for the Interrupt Request (IRQ) pin.
	// Optional. If not provided, polling is used.
	IRQPin int `yaml:"irq_pin"`
	// SpiBusPath is the path to the SPI bus (e.g., "/dev/spidev0.0").
	// Defaults to "/dev/spidev0.0" if not provided.
	SpiBusPath string `yaml:"spi_bus"`
	// SpiClockHz is the SPI clock frequency in Hz, 10MHz at most.
	// Defaults to 1000000 (1MHz) if not provided.
	SpiClockHz int `yaml:"spi_clock_hz"`
	// Logger overrides the package logger for this device.
	Logger Logger `yaml:"-"`
}

func (c Config) withDefaults() Config {
	if c.SpiBusPath == "" {
		c.SpiBusPath = "/dev/spidev0.0"
	}
	if c.SpiClockHz == 0 {
		c.SpiClockHz = 1000000
	}
	if c.CEPin == 0 {
		c.CEPin = 25
	}
	return c
}

func openPin(n int) (Pin, error) {
	name := "GPIO" + strconv.Itoa(n)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: no such pin %s", ErrPkg, name)
	}
	return NewPeriphPin(p), nil
}

// New creates and initializes a new NRF24L01 driver for Linux systems.
// It applies configuration defaults, initializes the GPIO and SPI interfaces using periph.io,
// and configures the radio module.
// It returns the initialized driver or an error if hardware initialization fails.
func New(c Config) (*Device, error) {
	c = c.withDefaults()

	// Required for both SPI and GPIO
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize periph.io host: %w", ErrPkg, err)
	}

	p, err := spireg.Open(c.SpiBusPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open SPI port: %w", ErrPkg, err)
	}

	// Mode 0, 8 bits, CSN driven by the SPI controller for each Tx
	conn, err := p.Connect(physic.Frequency(c.SpiClockHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: failed to create SPI connection: %w", ErrPkg, err)
	}

	ce, err := openPin(c.CEPin)
	if err != nil {
		p.Close()
		return nil, err
	}
	var irq Pin
	if c.IRQPin != 0 {
		if irq, err = openPin(c.IRQPin); err != nil {
			p.Close()
			return nil, err
		}
	}

	dev, err := NewWithHardware(HardwareConfig{
		RadioConfig: c.RadioConfig,
		CE:          ce,
		IRQ:         irq,
		Logger:      c.Logger,
	}, conn)
	if err != nil {
		p.Close()
		return nil, err
	}

	// Store the port closer so we can close it later
	dev.mu.Lock()
	dev.port = p
	dev.mu.Unlock()
	return dev, nil
}
