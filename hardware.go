package rf24

import (
	"errors"
	"fmt"
	"time"
)

// PowerUpDelay is how long the oscillator needs after PWR_UP is set before
// CE may be raised (Tpd2stby, worst case).
const PowerUpDelay = 5 * time.Millisecond

// Variant identifies the chip revision found by Begin.
type Variant byte

const (
	VariantNonPlus Variant = iota // nRF24L01
	VariantPlus                   // nRF24L01+ and most clones
)

func (v Variant) String() string {
	if v == VariantPlus {
		return "nRF24L01+"
	}
	return "nRF24L01"
}

func (v Variant) suffix() string {
	if v == VariantPlus {
		return "+"
	}
	return ""
}

// Capabilities is the result of the start-up probe.
type Capabilities struct {
	Variant Variant
	// StaleFeatures is set when FEATURE held non-reset bits, meaning the
	// chip kept its state across a controller restart.
	StaleFeatures bool
}

// Supports250kbps reports whether DataRate250kbps can be selected.
func (c Capabilities) Supports250kbps() bool { return c.Variant == VariantPlus }

// HardwareConfig binds a RadioConfig to the pins wired to the chip.
type HardwareConfig struct {
	RadioConfig
	// CE is the Chip Enable pin interface.
	CE Pin
	// IRQ is the Interrupt Request pin interface.
	// Optional. If not provided, polling is used.
	IRQ Pin
	// Logger overrides the package logger for this device.
	Logger Logger
}

// NewWithHardware creates and initializes a new NRF24L01 driver with the provided hardware interfaces.
// A zero RadioConfig selects DefaultRadioConfig. When RxAddr is set it is
// opened on pipe 1 and the radio is left listening.
func NewWithHardware(c HardwareConfig, conn SPI) (*Device, error) {
	if c.CE == nil {
		return nil, fmt.Errorf("%w: CE pin not configured", ErrPkg)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: SPI connection not configured", ErrPkg)
	}

	dev := &Device{
		conn: conn,
		ce:   c.CE,
		irq:  c.IRQ,
		log:  c.Logger,
	}
	if dev.log == nil {
		dev.log = packageLogger{}
	}

	dev.log.Info("Initializing NRF24L01 SPI communication...")
	dev.setCE(false)

	if c.IRQ != nil {
		if err := c.IRQ.In(PullUp); err != nil {
			return nil, fmt.Errorf("%w: IRQ pin input: %w", ErrPkg, err)
		}
		dev.irqChan = make(chan struct{}, 1)
		// Watch starts a goroutine that calls the handler on edge
		err := c.IRQ.Watch(FallingEdge, func() {
			select {
			case dev.irqChan <- struct{}{}:
			default:
				// Channel full
			}
		})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to watch IRQ pin: %w", ErrPkg, err)
		}
	}

	if _, err := dev.Begin(); err != nil {
		return nil, errors.Join(err, dev.Close())
	}

	rc := c.RadioConfig
	if rc == (RadioConfig{}) {
		rc = DefaultRadioConfig()
	}
	dev.Configure(rc)

	if !dev.IsChipConnected() {
		return nil, errors.Join(fmt.Errorf("%w: %w", ErrPkg, ErrNotConnected), dev.Close())
	}
	if err := dev.Err(); err != nil {
		return nil, errors.Join(err, dev.Close())
	}

	if rc.RxAddr != (Address{}) {
		dev.OpenReadingPipe(1, rc.RxAddr)
		time.Sleep(dev.PowerUp())
		dev.StartListening()
	}

	dev.log.Info("NRF24L01 initialized: " + dev.String())
	return dev, nil
}

// Begin resets the radio to the driver defaults and probes the chip
// variant. It may be called again to recover a radio that lost power.
//
// Defaults: retries 5/15, 1Mbps, PA max with LNA, auto-ack on all pipes,
// pipes 0 and 1 open, static 32 byte payloads, 5 byte addresses, channel
// 76, CRC16, TX mode, powered up.
//
// This method is concurrent safe.
func (d *Device) Begin() (Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setCE(false)
	// settle time after power-on reset, otherwise CRC bits may not stick
	time.Sleep(PowerUpDelay)

	d.setRetries(5, 15)
	d.setRadiation(PALevelMax, DataRate1mbps, true)

	d.caps = d.probe()
	d.log.Debug("Detected " + d.caps.Variant.String())

	d.regs.ackPayloads = false
	d.regs.dynamicPayloads = false
	d.regs.feature = 0
	d.regs.dynPD = 0
	d.writeRegister(_DYNPD, 0)
	d.regs.autoAck = AllPipes
	d.writeRegister(_EN_AA, byte(AllPipes))
	d.regs.rxPipes = P0 | P1
	d.writeRegister(_EN_RXADDR, byte(d.regs.rxPipes))
	d.setPayloadSize(MaxPayloadSize)
	d.setAddressWidth(5)
	d.setChannel(76)

	d.clearIRQ(StatusIRQ)
	d.flushRX()
	d.flushTX()

	// PTX, CRC16, all interrupts reflected on the IRQ pin
	d.writeRegister(_CONFIG, byte(CfgEnableCRC|CfgCRCO))
	d.regs.cfg = Cfg(d.readRegister(_CONFIG))
	if delay := d.powerUp(); delay > 0 {
		time.Sleep(delay)
	}

	d.pipe0RX = false
	d.pipe0Dirty = false

	if want := CfgEnableCRC | CfgCRCO | CfgPowerUp; d.regs.cfg != want {
		d.log.Error("CONFIG read back " + d.regs.cfg.String())
		return d.caps, fmt.Errorf("%w: %w", ErrPkg, ErrNotConnected)
	}
	if d.err != nil {
		return d.caps, d.err
	}
	return d.caps, nil
}

// probe tells the two revisions apart. The plus part ignores ACTIVATE and
// always exposes FEATURE, so the register reads the same around the toggle.
// The older part only exposes FEATURE while activated.
func (d *Device) probe() Capabilities {
	before := d.readRegister(_FEATURE)
	d.toggleFeatures()
	after := d.readRegister(_FEATURE)

	caps := Capabilities{Variant: VariantNonPlus}
	if before == after {
		caps.Variant = VariantPlus
	}
	if after != 0 {
		caps.StaleFeatures = true
		if caps.Variant == VariantPlus {
			// no power-on reset happened, undo our toggle
			d.toggleFeatures()
		}
		d.writeRegister(_FEATURE, 0)
	}
	return caps
}
