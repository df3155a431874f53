package rf24

import (
	"fmt"
)

// Level represents the logical level of a pin (Low or High).
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Pull represents the internal pull-up/down resistor state.
type Pull uint8

const (
	PullNoChange Pull = iota
	PullFloat
	PullDown
	PullUp
)

// Edge represents the signal edge to trigger an interrupt.
type Edge uint8

const (
	NoEdge Edge = iota
	RisingEdge
	FallingEdge
	BothEdges
)

// SPI is the serial bus the chip hangs off.
// One Tx call is one transaction: chip select is asserted for its whole
// duration, so the command byte and its data bytes are never split.
type SPI interface {
	// Tx sends w and reads into r.
	// len(r) must be >= len(w).
	Tx(w, r []byte) error
}

// Pin represents a generic GPIO pin.
type Pin interface {
	// Out sets the pin as output with the given level.
	Out(l Level) error
	// In sets the pin as input with the given pull mode.
	In(pull Pull) error
	// Read returns the current level of the pin.
	Read() Level
	// Watch configures an interrupt/callback on the specified edge.
	// The handler should be called when the edge is detected.
	Watch(edge Edge, handler func()) error
	// Unwatch removes the interrupt/callback.
	Unwatch() error
}

// --- Register transactions ---
//
// All helpers below expect d.mu to be held. Each of them is exactly one
// SPI transaction and records the status byte the chip clocked out first.

// transfer exchanges the first n bytes of the scratch buffer in place and
// returns the bytes that followed the status byte.
func (d *Device) transfer(n int) []byte {
	buf := d.scratch[:n]
	if err := d.conn.Tx(buf, buf); err != nil {
		d.busError(err)
		clear(buf)
		buf[0] = byte(statusIdle)
	}
	d.status = Status(buf[0])
	return buf[1:]
}

// busError records the first bus failure. Later operations keep running so
// the radio degrades instead of halting; callers check Err.
func (d *Device) busError(err error) {
	d.log.Error("SPI transfer failed: " + err.Error())
	if d.err == nil {
		d.err = fmt.Errorf("%w: spi: %w", ErrPkg, err)
	}
}

// command sends a single byte command such as FLUSH_TX or NOP.
func (d *Device) command(cmd byte) Status {
	d.scratch[0] = cmd
	d.transfer(1)
	return d.status
}

// readCommand sends cmd and clocks out one byte of response.
func (d *Device) readCommand(cmd byte) byte {
	d.scratch[0] = cmd
	d.scratch[1] = _NOP
	return d.transfer(2)[0]
}

func (d *Device) readRegister(reg byte) byte {
	return d.readCommand(_R_REGISTER | reg&_REGISTER_MASK)
}

func (d *Device) readRegisterN(reg byte, dst []byte) {
	d.scratch[0] = _R_REGISTER | reg&_REGISTER_MASK
	for i := range dst {
		d.scratch[1+i] = _NOP
	}
	copy(dst, d.transfer(1+len(dst)))
}

// writeRegister returns the status as it was before the write, which is
// what tells the caller which STATUS flags a clear actually cleared.
func (d *Device) writeRegister(reg, val byte) Status {
	d.scratch[0] = _W_REGISTER | reg&_REGISTER_MASK
	d.scratch[1] = val
	d.transfer(2)
	return d.status
}

func (d *Device) writeRegisterN(reg byte, data []byte) {
	d.scratch[0] = _W_REGISTER | reg&_REGISTER_MASK
	copy(d.scratch[1:], data)
	d.transfer(1 + len(data))
}

func (d *Device) flushTX() Status { return d.command(_FLUSH_TX) }
func (d *Device) flushRX() Status { return d.command(_FLUSH_RX) }
func (d *Device) getStatus() Status { return d.command(_NOP) }

// clearIRQ writes flags back to STATUS, clearing them.
func (d *Device) clearIRQ(flags Status) Status {
	return d.writeRegister(_STATUS, byte(flags&StatusIRQ))
}

// toggleFeatures sends ACTIVATE. On the non-plus chip it flips access to
// FEATURE, DYNPD and the no-ack/ack-payload commands; the plus chip ignores it.
func (d *Device) toggleFeatures() {
	d.scratch[0] = _ACTIVATE
	d.scratch[1] = _ACTIVATE_KEY
	d.transfer(2)
}

// writePayload loads p into the TX FIFO using cmd (W_TX_PAYLOAD,
// W_TX_PAYLOAD_NOACK or W_ACK_PAYLOAD|pipe). With static payloads the
// transaction is always the configured width, zero padded. With dynamic
// payloads an empty p is sent as a single zero byte.
func (d *Device) writePayload(p []byte, cmd byte) Status {
	var n, blank int
	if d.regs.dynamicPayloads {
		n = min(len(p), MaxPayloadSize)
		if n == 0 {
			blank = 1
		}
	} else {
		n = min(len(p), int(d.regs.payloadSize))
		blank = int(d.regs.payloadSize) - n
	}

	d.scratch[0] = cmd
	copy(d.scratch[1:], p[:n])
	clear(d.scratch[1+n : 1+n+blank])
	d.transfer(1 + n + blank)
	return d.status
}

// readPayload reads len(dst) bytes of the payload at the head of the RX
// FIFO. With static payloads the whole configured width is clocked out so
// the slot is released.
//
// With dynamic payloads exactly len(dst) bytes are clocked. Asking for more
// than the queued payload returns whatever the chip shifts out past the end
// (it repeats the last byte); this is left as is so that peers relying on
// the padded reads keep working.
func (d *Device) readPayload(dst []byte) {
	var n, blank int
	if d.regs.dynamicPayloads {
		n = min(len(dst), MaxPayloadSize)
	} else {
		n = min(len(dst), int(d.regs.payloadSize))
		blank = int(d.regs.payloadSize) - n
	}

	d.scratch[0] = _R_RX_PAYLOAD
	for i := 1; i <= n+blank; i++ {
		d.scratch[i] = _NOP
	}
	copy(dst, d.transfer(1 + n + blank)[:n])
}
