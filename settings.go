package rf24

import (
	"strconv"
	"time"
)

const maxChannel = 125

// withDefaults fills the fields whose zero value is not a legal setting.
func (c RadioConfig) withDefaults() RadioConfig {
	if c.PayloadSize == 0 {
		c.PayloadSize = MaxPayloadSize
	}
	if c.AddressWidth == 0 {
		c.AddressWidth = 5
	}
	return c
}

// Configure applies every field of rc. Out of range values are clamped and
// logged, the same way the individual setters treat them.
// This method is concurrent safe.
func (d *Device) Configure(rc RadioConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rc = rc.withDefaults()
	d.setChannel(rc.Channel)
	d.setAddressWidth(rc.AddressWidth)
	d.setPayloadSize(rc.PayloadSize)
	d.setRadiation(rc.PALevel, rc.DataRate, rc.LNA)
	d.setRetries(rc.RetryDelay, rc.RetryCount)
	d.setAutoAck(rc.AutoAck)
	d.setCRCLength(rc.CRCLength)

	if rc.DynamicPayloads {
		d.enableDynamicPayloads()
	} else {
		d.disableDynamicPayloads()
	}
	if rc.AckPayloads {
		if d.regs.autoAck.Has(0) {
			d.enableAckPayload()
		} else {
			d.log.Warn("Ack payloads need auto-ack on pipe 0, leaving them off")
		}
	}
	if rc.DynamicAck {
		d.enableDynamicAck()
	}
}

// Settings returns the current configuration as seen by the driver.
// This method is concurrent safe.
func (d *Device) Settings() RadioConfig {
	d.mu.Lock()
	defer d.mu.Unlock()

	return RadioConfig{
		Channel:         d.regs.channel,
		PayloadSize:     d.regs.payloadSize,
		AddressWidth:    d.regs.addrWidth,
		DataRate:        d.regs.rfSetup.DataRate(),
		PALevel:         d.regs.rfSetup.PALevel(),
		LNA:             d.regs.rfSetup.LNA(),
		CRCLength:       d.regs.cfg.CRCLength(),
		AutoAck:         d.regs.autoAck,
		RetryDelay:      d.regs.retr.Delay(),
		RetryCount:      d.regs.retr.Count(),
		DynamicPayloads: d.regs.dynamicPayloads,
		AckPayloads:     d.regs.ackPayloads,
		DynamicAck:      d.regs.feature&FeatureDynamicAck != 0,
		RxAddr:          d.pipeAddrs[1],
	}
}

// --- Channel ---

// SetChannel selects 2400+channel MHz. Values above 125 are clamped.
// This method is concurrent safe.
func (d *Device) SetChannel(channel byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setChannel(channel)
}

func (d *Device) setChannel(channel byte) {
	if channel > maxChannel {
		d.log.Warn("Channel " + strconv.Itoa(int(channel)) + " out of range, using 125")
		channel = maxChannel
	}
	d.writeRegister(_RF_CH, channel)
	d.regs.channel = channel
}

// Channel returns the current channel.
// This method is concurrent safe.
func (d *Device) Channel() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.channel
}

// --- Payload size ---

// SetPayloadSize sets the static payload width of all pipes, clamped to 1..32.
// It has no effect on pipes using dynamic payloads.
// This method is concurrent safe.
func (d *Device) SetPayloadSize(size byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setPayloadSize(size)
}

func (d *Device) setPayloadSize(size byte) {
	if size < 1 || size > MaxPayloadSize {
		clamped := max(1, min(size, MaxPayloadSize))
		d.log.Warn("Payload size " + strconv.Itoa(int(size)) + " out of range, using " + strconv.Itoa(int(clamped)))
		size = clamped
	}
	d.regs.payloadSize = size
	for p := byte(0); p <= 5; p++ {
		d.writeRegister(_RX_PW_P0+p, size)
	}
}

// PayloadSize returns the static payload width.
// This method is concurrent safe.
func (d *Device) PayloadSize() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.payloadSize
}

// --- Address width ---

// SetAddressWidth sets the address width of all pipes, clamped to 3..5.
// This method is concurrent safe.
func (d *Device) SetAddressWidth(width byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setAddressWidth(width)
}

func (d *Device) setAddressWidth(width byte) {
	if width < 3 || width > 5 {
		clamped := max(3, min(width, 5))
		d.log.Warn("Address width " + strconv.Itoa(int(width)) + " out of range, using " + strconv.Itoa(int(clamped)))
		width = clamped
	}
	d.writeRegister(_SETUP_AW, addressWidthReg(width))
	if width != d.regs.addrWidth {
		// the cached pipe 0 address is rewritten at the new width
		d.pipe0Dirty = true
	}
	d.regs.addrWidth = width
}

// AddressWidth returns the address width in bytes.
// This method is concurrent safe.
func (d *Device) AddressWidth() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.addrWidth
}

// --- RF setup ---

// SetDataRate changes the air data rate. It returns false when the chip
// rejected the rate, which is always the case for 250kbps on the non-plus
// part. The previous rate stays in effect then.
// This method is concurrent safe.
func (d *Device) SetDataRate(rate DataRate) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setDataRate(rate)
}

func (d *Device) setDataRate(rate DataRate) bool {
	if rate == DataRate250kbps && !d.caps.Supports250kbps() {
		d.log.Warn("250kbps is not supported by " + d.caps.Variant.String())
		return false
	}
	setup := d.regs.rfSetup.WithDataRate(rate)
	d.writeRegister(_RF_SETUP, byte(setup))

	got := RFSetup(d.readRegister(_RF_SETUP))
	if got.DataRate() != rate {
		d.log.Warn("Data rate " + rate.String() + " not accepted, chip reports " + got.DataRate().String())
		d.writeRegister(_RF_SETUP, byte(d.regs.rfSetup))
		return false
	}
	d.regs.rfSetup = setup
	return true
}

// DataRate returns the air data rate.
// This method is concurrent safe.
func (d *Device) DataRate() DataRate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.rfSetup.DataRate()
}

// SetPALevel changes the power amplifier level and the LNA gain bit.
// Levels above PALevelMax are treated as PALevelMax.
// This method is concurrent safe.
func (d *Device) SetPALevel(level PALevel, lna bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setPALevel(level, lna)
}

func (d *Device) setPALevel(level PALevel, lna bool) {
	level = d.clampPALevel(level)
	d.regs.rfSetup = d.regs.rfSetup.WithPALevel(level, lna)
	d.writeRegister(_RF_SETUP, byte(d.regs.rfSetup))
}

func (d *Device) clampPALevel(level PALevel) PALevel {
	if level > PALevelMax {
		d.log.Warn("PA level " + strconv.Itoa(int(level)) + " out of range, using max")
		return PALevelMax
	}
	return level
}

// PALevel returns the power amplifier level.
// This method is concurrent safe.
func (d *Device) PALevel() PALevel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.rfSetup.PALevel()
}

// SetRadiation sets level, rate and LNA in a single RF_SETUP write. It
// returns false if rate is not supported, in which case the current rate
// is kept.
// This method is concurrent safe.
func (d *Device) SetRadiation(level PALevel, rate DataRate, lna bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setRadiation(level, rate, lna)
}

func (d *Device) setRadiation(level PALevel, rate DataRate, lna bool) bool {
	ok := true
	if rate == DataRate250kbps && !d.caps.Supports250kbps() {
		d.log.Warn("250kbps is not supported by " + d.caps.Variant.String())
		rate = d.regs.rfSetup.DataRate()
		ok = false
	}
	d.regs.rfSetup = RFSetup(0).WithPALevel(d.clampPALevel(level), lna).WithDataRate(rate)
	d.writeRegister(_RF_SETUP, byte(d.regs.rfSetup))
	return ok
}

// txDelay is how long the chip needs after CE falls before a TX to RX
// turnaround completes, per data rate.
func (r RFSetup) txDelay() time.Duration {
	switch r.DataRate() {
	case DataRate250kbps:
		return 505 * time.Microsecond
	case DataRate2mbps:
		return 240 * time.Microsecond
	default:
		return 280 * time.Microsecond
	}
}

// --- CRC ---

// SetCRCLength selects the CRC scheme. The chip forces CRC on while any
// pipe has auto-ack, so disabling is ignored (and logged) in that case.
// This method is concurrent safe.
func (d *Device) SetCRCLength(length CRCLength) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setCRCLength(length)
}

func (d *Device) setCRCLength(length CRCLength) {
	if length == CRCLengthDisabled && d.regs.autoAck != 0 {
		d.log.Warn("CRC cannot be disabled while auto-ack is enabled on " + d.regs.autoAck.String())
		return
	}
	d.regs.cfg = d.regs.cfg.WithCRCLength(length)
	d.writeRegister(_CONFIG, byte(d.regs.cfg))
}

// DisableCRC turns CRC off. See SetCRCLength.
// This method is concurrent safe.
func (d *Device) DisableCRC() { d.SetCRCLength(CRCLengthDisabled) }

// CRCLength returns the CRC scheme in use.
// This method is concurrent safe.
func (d *Device) CRCLength() CRCLength {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.cfg.CRCLength()
}

// --- Retries ---

// SetRetries sets the hardware retransmit delay (in steps of 250us on top
// of the first 250us) and count. Both saturate at 15.
// This method is concurrent safe.
func (d *Device) SetRetries(delay, count byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setRetries(delay, count)
}

func (d *Device) setRetries(delay, count byte) {
	if delay > 15 || count > 15 {
		d.log.Warn("Retries " + strconv.Itoa(int(delay)) + "/" + strconv.Itoa(int(count)) + " out of range, clamping to 15")
	}
	d.regs.retr = NewSetupRetr(delay, count)
	d.writeRegister(_SETUP_RETR, byte(d.regs.retr))
}

// Retries returns the hardware retransmit delay and count.
// This method is concurrent safe.
func (d *Device) Retries() (delay, count byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.retr.Delay(), d.regs.retr.Count()
}

// --- Auto-ack ---

// SetAutoAck enables or disables auto-ack on all pipes. Disabling it also
// disables ack payloads.
// This method is concurrent safe.
func (d *Device) SetAutoAck(enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if enable {
		d.setAutoAck(AllPipes)
	} else {
		d.setAutoAck(0)
	}
}

// SetAutoAckPipe enables or disables auto-ack on a single pipe. Disabling it
// on pipe 0 also disables ack payloads. Pipes outside 0..5 are ignored.
// This method is concurrent safe.
func (d *Device) SetAutoAckPipe(pipe int, enable bool) {
	bit := PipeBit(pipe)
	if bit == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if enable {
		d.setAutoAck(d.regs.autoAck | bit)
	} else {
		d.setAutoAck(d.regs.autoAck &^ bit)
	}
}

func (d *Device) setAutoAck(mask Pipes) {
	mask &= AllPipes
	if !mask.Has(0) && d.regs.ackPayloads {
		d.disableAckPayload()
	}
	if mask != 0 && d.regs.cfg.CRCLength() == CRCLengthDisabled {
		// mirror what the chip does on its own
		d.log.Warn("Auto-ack requires CRC, enabling 8 bit CRC")
		d.regs.cfg = d.regs.cfg.WithCRCLength(CRCLength8)
		d.writeRegister(_CONFIG, byte(d.regs.cfg))
	}
	d.regs.autoAck = mask
	d.writeRegister(_EN_AA, byte(mask))
}

// AutoAck returns the pipes with auto-ack enabled.
// This method is concurrent safe.
func (d *Device) AutoAck() Pipes {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.autoAck
}

// --- Dynamic payloads and ack payloads ---

// EnableDynamicPayloads switches every pipe to dynamic payload length.
// This method is concurrent safe.
func (d *Device) EnableDynamicPayloads() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enableDynamicPayloads()
}

func (d *Device) enableDynamicPayloads() {
	d.regs.feature |= FeatureDynamicPayload
	d.writeRegister(_FEATURE, byte(d.regs.feature))
	d.regs.dynPD |= AllPipes
	d.writeRegister(_DYNPD, byte(d.regs.dynPD))
	d.regs.dynamicPayloads = true
}

// DisableDynamicPayloads returns every pipe to the static payload size. It
// clears all of FEATURE, which also turns off ack payloads and no-ack writes.
// This method is concurrent safe.
func (d *Device) DisableDynamicPayloads() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disableDynamicPayloads()
}

func (d *Device) disableDynamicPayloads() {
	d.regs.feature = 0
	d.writeRegister(_FEATURE, 0)
	d.regs.dynPD = 0
	d.writeRegister(_DYNPD, 0)
	d.regs.dynamicPayloads = false
	d.regs.ackPayloads = false
}

// DynamicPayloads reports whether payloads are framed with dynamic length.
// This method is concurrent safe.
func (d *Device) DynamicPayloads() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.dynamicPayloads
}

// EnableAckPayload allows WriteAckPayload. Ack payloads need dynamic
// payload length, so pipes 0 and 1 are switched to it; the other pipes
// keep their setting.
// This method is concurrent safe.
func (d *Device) EnableAckPayload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enableAckPayload()
}

func (d *Device) enableAckPayload() {
	if d.regs.ackPayloads {
		return
	}
	d.regs.feature |= FeatureAckPayload | FeatureDynamicPayload
	d.writeRegister(_FEATURE, byte(d.regs.feature))
	d.regs.dynPD |= P0 | P1
	d.writeRegister(_DYNPD, byte(d.regs.dynPD))
	d.regs.dynamicPayloads = true
	d.regs.ackPayloads = true
}

// DisableAckPayload turns ack payloads off and leaves dynamic payloads as they are.
// This method is concurrent safe.
func (d *Device) DisableAckPayload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disableAckPayload()
}

func (d *Device) disableAckPayload() {
	if !d.regs.ackPayloads {
		return
	}
	d.regs.feature &^= FeatureAckPayload
	d.writeRegister(_FEATURE, byte(d.regs.feature))
	d.regs.ackPayloads = false
}

// AckPayloads reports whether ack payloads are enabled.
// This method is concurrent safe.
func (d *Device) AckPayloads() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.ackPayloads
}

// EnableDynamicAck allows multicast writes, which ask the receiver not to
// acknowledge the packet.
// This method is concurrent safe.
func (d *Device) EnableDynamicAck() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enableDynamicAck()
}

func (d *Device) enableDynamicAck() {
	d.regs.feature |= FeatureDynamicAck
	d.writeRegister(_FEATURE, byte(d.regs.feature))
}

// --- Interrupts ---

// MaskIRQ selects which events do NOT pull the IRQ pin low.
// This method is concurrent safe.
func (d *Device) MaskIRQ(txOK, txFail, rxReady bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regs.cfg = d.regs.cfg.WithIRQMask(txOK, txFail, rxReady)
	d.writeRegister(_CONFIG, byte(d.regs.cfg))
}
