// Package rf24 drives nRF24L01 and nRF24L01+ 2.4GHz transceivers over SPI.
//
// A Device owns its bus and CE pin. It keeps an in-memory mirror of the
// radio settings that the engines consult instead of re-reading the chip,
// because several of them (pipe 0 reading address, payload mode) cannot be
// recovered from the registers alone.
//
// Transmission failures are expected on a radio link and are reported as a
// false return rather than an error. Errors are reserved for the setup path
// and for the convenience layer (Transmit, Receive, Ping).
package rf24

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var (
	ErrPkg             = errors.New("rf24")
	ErrMaxRetries      = errors.New("max retransmissions reached")
	ErrTimeout         = errors.New("timeout waiting for device")
	ErrNotConnected    = errors.New("radio not responding, check wiring and power")
	ErrNoIRQ           = errors.New("IRQ pin not configured")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// regState mirrors the chip registers the driver writes. It is the only
// source the engines use to decide payload framing and pipe 0 handling.
type regState struct {
	cfg         Cfg
	rfSetup     RFSetup
	retr        SetupRetr
	channel     byte
	addrWidth   byte
	payloadSize byte
	autoAck     Pipes
	rxPipes     Pipes
	dynPD       Pipes
	feature     Feature

	dynamicPayloads bool
	ackPayloads     bool
}

type Device struct {
	conn    SPI
	ce      Pin
	irq     Pin
	irqChan chan struct{}
	port    io.Closer
	log     Logger

	mu      sync.Mutex
	scratch [MaxPayloadSize + 1]byte
	status  Status // status byte of the last transaction
	err     error  // first bus failure, see Err
	caps    Capabilities
	regs    regState
	ceHigh  bool

	// Reading addresses as last opened. Pipes 2-5 only use byte 0.
	// Pipe 0 doubles as the ack receiver of the writing pipe, so its
	// reading address is put back on StartListening.
	pipeAddrs  [6]Address
	pipe0RX    bool
	pipe0Dirty bool
}

// Err returns the first SPI failure seen by the device, or nil.
// This method is concurrent safe.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Capabilities reports what Begin detected.
// This method is concurrent safe.
func (d *Device) Capabilities() Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

func (d *Device) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return fmt.Sprintf("NRF24L01%s(Channel=%d, DataRate=%s, PALevel=%s, CRC=%s, Payload=%s, AutoAck=%s, Mode=%s)",
		d.caps.Variant.suffix(),
		d.regs.channel,
		d.regs.rfSetup.DataRate(),
		d.regs.rfSetup.PALevel(),
		d.regs.cfg.CRCLength(),
		d.payloadMode(),
		d.regs.autoAck,
		d.mode(),
	)
}

func (d *Device) payloadMode() string {
	if d.regs.dynamicPayloads {
		return "dynamic"
	}
	return fmt.Sprintf("%d", d.regs.payloadSize)
}

// Details reads back every configuration register and renders it one per
// line, in the spirit of the datasheet register table.
// This method is concurrent safe.
func (d *Device) Details() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var b strings.Builder
	line := func(name string, v byte, decoded string) {
		fmt.Fprintf(&b, "%-12s= 0x%02X %s\n", name, v, decoded)
	}

	st := d.getStatus()
	line("STATUS", byte(st), st.String())

	width := int(d.regs.addrWidth)
	var addr Address
	d.readRegisterN(_RX_ADDR_P0, addr[:width])
	fmt.Fprintf(&b, "%-12s= %s\n", "RX_ADDR_P0", addr)
	d.readRegisterN(_RX_ADDR_P0+1, addr[:width])
	fmt.Fprintf(&b, "%-12s= %s\n", "RX_ADDR_P1", addr)
	for p := byte(2); p <= 5; p++ {
		line(fmt.Sprintf("RX_ADDR_P%d", p), d.readRegister(_RX_ADDR_P0+p), "")
	}
	d.readRegisterN(_TX_ADDR, addr[:width])
	fmt.Fprintf(&b, "%-12s= %s\n", "TX_ADDR", addr)
	for p := byte(0); p <= 5; p++ {
		line(fmt.Sprintf("RX_PW_P%d", p), d.readRegister(_RX_PW_P0+p), "")
	}

	aa := Pipes(d.readRegister(_EN_AA))
	line("EN_AA", byte(aa), aa.String())
	rx := Pipes(d.readRegister(_EN_RXADDR))
	line("EN_RXADDR", byte(rx), rx.String())
	aw := d.readRegister(_SETUP_AW)
	line("SETUP_AW", aw, fmt.Sprintf("%d bytes", addressWidthFromReg(aw)))
	retr := SetupRetr(d.readRegister(_SETUP_RETR))
	line("SETUP_RETR", byte(retr), retr.String())
	line("RF_CH", d.readRegister(_RF_CH), "")
	rf := RFSetup(d.readRegister(_RF_SETUP))
	line("RF_SETUP", byte(rf), rf.String())
	cfg := Cfg(d.readRegister(_CONFIG))
	line("CONFIG", byte(cfg), cfg.String())
	dyn := Pipes(d.readRegister(_DYNPD))
	line("DYNPD", byte(dyn), dyn.String())
	feat := Feature(d.readRegister(_FEATURE))
	line("FEATURE", byte(feat), feat.String())
	fifo := FIFOStatus(d.readRegister(_FIFO_STATUS))
	line("FIFO_STATUS", byte(fifo), fifo.String())

	fmt.Fprintf(&b, "%-12s= %s\n", "Model", "nRF24L01"+d.caps.Variant.suffix())
	fmt.Fprintf(&b, "%-12s= %s\n", "Mode", d.mode())
	return b.String()
}

// Close powers the radio down, stops the IRQ watch and releases the SPI
// port when the device opened it.
// This method is concurrent safe.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.powerDown()
	d.log.Info("NRF24L01 powered down.")

	var errs []error
	if d.irq != nil {
		if err := d.irq.Unwatch(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.port != nil {
		if err := d.port.Close(); err != nil {
			d.log.Warn("Failed to close SPI port: " + err.Error())
			errs = append(errs, err)
		}
		d.port = nil
		d.log.Info("SPI bus closed.")
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: close: %w", ErrPkg, err)
	}
	return nil
}

func (d *Device) setCE(high bool) {
	l := Low
	if high {
		l = High
	}
	if err := d.ce.Out(l); err != nil {
		d.log.Error("CE write failed: " + err.Error())
	}
	d.ceHigh = high
}
