package rf24

import (
	"time"
)

// Mode is the chip state as far as the driver can tell.
type Mode byte

const (
	ModePowerDown Mode = iota
	ModeStandbyI       // powered, CE low
	ModeStandbyII      // PTX with CE high and nothing to send
	ModeRX
	ModeTX
)

func (m Mode) String() string {
	switch m {
	case ModePowerDown:
		return "power-down"
	case ModeStandbyI:
		return "standby-I"
	case ModeStandbyII:
		return "standby-II"
	case ModeRX:
		return "RX"
	case ModeTX:
		return "TX"
	default:
		return "unknown"
	}
}

// Mode reports the current state. It reads FIFO_STATUS to tell TX apart
// from Standby-II, everything else comes from the driver's own state.
// This method is concurrent safe.
func (d *Device) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()

	m := d.mode()
	if m == ModeTX && FIFOStatus(d.readRegister(_FIFO_STATUS)).TXEmpty() {
		return ModeStandbyII
	}
	return m
}

// mode derives the state without touching the bus. ModeTX includes
// Standby-II.
func (d *Device) mode() Mode {
	switch {
	case !d.regs.cfg.PoweredUp():
		return ModePowerDown
	case !d.ceHigh:
		return ModeStandbyI
	case d.regs.cfg.RX():
		return ModeRX
	default:
		return ModeTX
	}
}

// PowerUp leaves power-down mode. It does not wait: the caller must let
// the returned duration pass before raising CE (StartListening, writes).
// It returns 0 when the radio was already powered.
// This method is concurrent safe.
func (d *Device) PowerUp() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.powerUp()
}

func (d *Device) powerUp() time.Duration {
	if d.regs.cfg.PoweredUp() {
		return 0
	}
	d.regs.cfg |= CfgPowerUp
	d.writeRegister(_CONFIG, byte(d.regs.cfg))
	return PowerUpDelay
}

// PowerDown puts the NRF24L01 into Power Down mode.
// In this mode, the radio is disabled with minimal current consumption (approx. 900nA).
// Registers keep their values, so no reconfiguration is needed after PowerUp.
// This method is concurrent safe.
func (d *Device) PowerDown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.powerDown()
}

func (d *Device) powerDown() {
	d.setCE(false)
	d.regs.cfg &^= CfgPowerUp
	d.writeRegister(_CONFIG, byte(d.regs.cfg))
}

// StartListening switches to RX mode. Stale interrupt flags are cleared and
// pipe 0 gets its reading address back if OpenWritingPipe replaced it.
// If the radio was powered down this call waits PowerUpDelay.
// This method is concurrent safe.
func (d *Device) StartListening() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startListening()
}

func (d *Device) startListening() {
	if delay := d.powerUp(); delay > 0 {
		time.Sleep(delay)
	}
	d.regs.cfg |= CfgPrimRX
	d.writeRegister(_CONFIG, byte(d.regs.cfg))
	d.clearIRQ(StatusIRQ)
	d.setCE(true)
	d.restorePipe0()
}

// StopListening returns to Standby-I in TX mode. Queued ack payloads are
// discarded. Pipe 0 is reopened since it receives the acks of our writes.
// This method is concurrent safe.
func (d *Device) StopListening() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopListening()
}

func (d *Device) stopListening() {
	d.setCE(false)
	time.Sleep(d.regs.rfSetup.txDelay())
	if d.regs.ackPayloads {
		d.flushTX()
	}
	d.regs.cfg &^= CfgPrimRX
	d.writeRegister(_CONFIG, byte(d.regs.cfg))

	d.regs.rxPipes |= P0
	d.writeRegister(_EN_RXADDR, byte(d.regs.rxPipes))
}

// StartConstCarrier transmits an unmodulated carrier on channel, for
// compliance and antenna testing. On the plus part auto-ack, retries and
// CRC are turned off and TX_ADDR is overwritten; restore them with
// Configure or Begin after StopConstCarrier.
// This method is concurrent safe.
func (d *Device) StartConstCarrier(level PALevel, channel byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopListening()
	d.regs.rfSetup |= RFContWave | RFPLLLock
	d.writeRegister(_RF_SETUP, byte(d.regs.rfSetup))

	plus := d.caps.Variant == VariantPlus
	if plus {
		d.setAutoAck(0)
		d.setRetries(0, 0)

		var ones [MaxPayloadSize]byte
		for i := range ones {
			ones[i] = 0xFF
		}
		// full width regardless of the configured address and payload size
		d.writeRegisterN(_TX_ADDR, ones[:5])
		d.flushTX()
		d.scratch[0] = _W_TX_PAYLOAD
		copy(d.scratch[1:], ones[:])
		d.transfer(1 + MaxPayloadSize)

		d.setCRCLength(CRCLengthDisabled)
	}
	d.setPALevel(level, d.regs.rfSetup.LNA())
	d.setChannel(channel)

	d.setCE(true)
	if plus {
		time.Sleep(time.Millisecond)
		d.setCE(false)
		d.reUseTX()
	}
}

// StopConstCarrier ends StartConstCarrier and leaves the radio powered down.
// This method is concurrent safe.
func (d *Device) StopConstCarrier() {
	d.mu.Lock()
	defer d.mu.Unlock()

	// REUSE_TX_PL with CONT_WAVE ignores CE, only PWR_UP=0 stops it
	d.powerDown()
	d.regs.rfSetup &^= RFContWave | RFPLLLock
	d.writeRegister(_RF_SETUP, byte(d.regs.rfSetup))
	d.setCE(false)
}
