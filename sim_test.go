package rf24

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// simChip models the nRF24L01 register file and FIFOs closely enough to
// run the driver against it. It is the SPI bus and, through cePin, the CE
// line. Transmissions resolve instantly when CE rises according to outcome.
type simChip struct {
	mu sync.Mutex

	plus      bool
	activated bool // non-plus only: ACTIVATE state
	regs      [0x20]byte
	addrs     [6][5]byte
	txAddr    [5]byte

	txFIFO [][]byte
	reuse  bool
	rxFIFO []simPayload
	ce     bool

	outcome   simOutcome
	failFirst int   // with simAck: fail this many attempts first
	plWidth   int   // when > 0, reported by R_RX_PL_WID instead of the real width
	failWith  error // returned by every Tx

	log  [][]byte // every transaction as sent
	sent [][]byte // payloads that went on air and were acked
}

type simPayload struct {
	pipe int
	data []byte
}

type simOutcome int

const (
	simAck  simOutcome = iota // acknowledged on first attempt
	simFail                   // MAX_RT after all retries
	simHang                   // no outcome is ever reported
)

func newSimChip(plus bool) *simChip {
	s := &simChip{plus: plus}
	// datasheet reset values
	s.regs[_CONFIG] = 0x08
	s.regs[_EN_AA] = 0x3F
	s.regs[_EN_RXADDR] = 0x03
	s.regs[_SETUP_AW] = 0x03
	s.regs[_SETUP_RETR] = 0x03
	s.regs[_RF_CH] = 0x02
	s.regs[_RF_SETUP] = 0x0F
	s.addrs[0] = [5]byte{0xE7, 0xE7, 0xE7, 0xE7, 0xE7}
	s.addrs[1] = [5]byte{0xC2, 0xC2, 0xC2, 0xC2, 0xC2}
	for p := 2; p <= 5; p++ {
		s.addrs[p][0] = 0xC1 + byte(p)
	}
	s.txAddr = s.addrs[0]
	return s
}

// newSimDevice runs the full constructor against sim.
func newSimDevice(t *testing.T, sim *simChip, rc RadioConfig) *Device {
	t.Helper()
	dev, err := NewWithHardware(HardwareConfig{
		RadioConfig: rc,
		CE:          sim.cePin(),
		Logger:      NopLogger(),
	}, sim)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	sim.clearLog()
	return dev
}

func (s *simChip) featuresVisible() bool { return s.plus || s.activated }

func (s *simChip) addrWidth() int { return int(s.regs[_SETUP_AW]&0x03) + 2 }

func (s *simChip) status() byte {
	st := s.regs[_STATUS] & byte(StatusIRQ)
	if len(s.txFIFO) >= 3 {
		st |= byte(StatusTXFull)
	}
	pipe := byte(7)
	if len(s.rxFIFO) > 0 {
		pipe = byte(s.rxFIFO[0].pipe)
	}
	return st | pipe<<1
}

func (s *simChip) fifoStatus() byte {
	var f FIFOStatus
	if len(s.rxFIFO) == 0 {
		f |= FIFORXEmpty
	}
	if len(s.rxFIFO) >= 3 {
		f |= FIFORXFull
	}
	if len(s.txFIFO) == 0 {
		f |= FIFOTXEmpty
	}
	if len(s.txFIFO) >= 3 {
		f |= FIFOTXFull
	}
	if s.reuse {
		f |= FIFOTXReuse
	}
	return byte(f)
}

func (s *simChip) Tx(w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = append(s.log, bytes.Clone(w))
	if s.failWith != nil {
		return s.failWith
	}

	// w and r may be the same buffer
	cmd := w[0]
	in := bytes.Clone(w[1:])
	out := r[1:len(w)]
	st := s.status()

	switch {
	case cmd < _W_REGISTER:
		clear(out)
		s.readReg(cmd&_REGISTER_MASK, out)
	case cmd < _W_REGISTER+0x20:
		s.writeReg(cmd&_REGISTER_MASK, in)
	case cmd == _ACTIVATE:
		if !s.plus && len(in) > 0 && in[0] == _ACTIVATE_KEY {
			s.activated = !s.activated
		}
	case cmd == _R_RX_PL_WID:
		out[0] = 0
		if s.featuresVisible() {
			if s.plWidth > 0 {
				out[0] = byte(s.plWidth)
			} else if len(s.rxFIFO) > 0 {
				out[0] = byte(len(s.rxFIFO[0].data))
			}
		}
	case cmd == _R_RX_PAYLOAD:
		s.readPayload(out)
	case cmd == _W_TX_PAYLOAD:
		s.push(in)
	case cmd == _W_TX_PAYLOAD_NOACK:
		if s.featuresVisible() && s.regs[_FEATURE]&byte(FeatureDynamicAck) != 0 {
			s.push(in)
		}
	case cmd&^0x07 == _W_ACK_PAYLOAD:
		if s.featuresVisible() && len(s.txFIFO) < 3 {
			s.txFIFO = append(s.txFIFO, in)
		}
	case cmd == _FLUSH_TX:
		s.txFIFO = nil
		s.reuse = false
	case cmd == _FLUSH_RX:
		s.rxFIFO = nil
	case cmd == _REUSE_TX_PL:
		s.reuse = true
	}

	r[0] = st
	return nil
}

func (s *simChip) readReg(reg byte, out []byte) {
	if len(out) == 0 {
		return
	}
	switch {
	case reg == _RX_ADDR_P0 || reg == _RX_ADDR_P0+1:
		copy(out, s.addrs[reg-_RX_ADDR_P0][:s.addrWidth()])
	case reg > _RX_ADDR_P0+1 && reg < _TX_ADDR:
		out[0] = s.addrs[reg-_RX_ADDR_P0][0]
	case reg == _TX_ADDR:
		copy(out, s.txAddr[:s.addrWidth()])
	case reg == _STATUS:
		out[0] = s.status()
	case reg == _FIFO_STATUS:
		out[0] = s.fifoStatus()
	case reg == _FEATURE || reg == _DYNPD:
		// this model reads the hidden registers as 0xFF
		out[0] = 0xFF
		if s.featuresVisible() {
			out[0] = s.regs[reg]
		}
	case reg == _CONFIG:
		out[0] = s.regs[_CONFIG]
		if s.regs[_EN_AA] != 0 {
			out[0] |= byte(CfgEnableCRC)
		}
	default:
		out[0] = s.regs[reg]
	}
}

func (s *simChip) writeReg(reg byte, in []byte) {
	if len(in) == 0 {
		return
	}
	switch {
	case reg == _STATUS:
		s.regs[_STATUS] &^= in[0] & byte(StatusIRQ)
	case reg == _RX_ADDR_P0 || reg == _RX_ADDR_P0+1:
		copy(s.addrs[reg-_RX_ADDR_P0][:], in)
	case reg > _RX_ADDR_P0+1 && reg < _TX_ADDR:
		s.addrs[reg-_RX_ADDR_P0][0] = in[0]
	case reg == _TX_ADDR:
		copy(s.txAddr[:], in)
	case reg == _FEATURE || reg == _DYNPD:
		if s.featuresVisible() {
			s.regs[reg] = in[0]
		}
	case reg == _RF_SETUP:
		v := in[0]
		if !s.plus {
			v &^= byte(RFDataRateLow)
		}
		s.regs[reg] = v
	case reg == _OBSERVE_TX || reg == _RPD || reg == _FIFO_STATUS:
		// read only
	default:
		s.regs[reg] = in[0]
	}
}

func (s *simChip) dynamic(pipe int) bool {
	return s.regs[_FEATURE]&byte(FeatureDynamicPayload) != 0 && s.regs[_DYNPD]&(1<<pipe) != 0
}

// readPayload clocks out the head of the RX FIFO. Past the end the last
// byte repeats. A short read of a dynamic payload leaves the rest queued.
func (s *simChip) readPayload(out []byte) {
	if len(s.rxFIFO) == 0 {
		clear(out)
		return
	}
	head := &s.rxFIFO[0]
	for i := range out {
		switch {
		case i < len(head.data):
			out[i] = head.data[i]
		case len(head.data) > 0:
			out[i] = head.data[len(head.data)-1]
		default:
			out[i] = 0
		}
	}
	if s.dynamic(head.pipe) && len(out) < len(head.data) {
		head.data = head.data[len(out):]
		return
	}
	s.rxFIFO = s.rxFIFO[1:]
}

func (s *simChip) push(p []byte) {
	if len(s.txFIFO) >= 3 {
		return
	}
	s.txFIFO = append(s.txFIFO, p)
	s.reuse = false
	s.pump()
}

// pump transmits while the chip is a powered PTX with CE high.
func (s *simChip) pump() {
	cfg := Cfg(s.regs[_CONFIG])
	if !s.ce || !cfg.PoweredUp() || cfg.RX() {
		return
	}
	for len(s.txFIFO) > 0 && s.regs[_STATUS]&byte(StatusMaxRetries) == 0 {
		switch {
		case s.outcome == simHang:
			return
		case s.outcome == simFail || s.failFirst > 0:
			if s.failFirst > 0 {
				s.failFirst--
			}
			s.regs[_STATUS] |= byte(StatusMaxRetries)
			lost := min(s.regs[_OBSERVE_TX]>>4+1, 15)
			s.regs[_OBSERVE_TX] = lost<<4 | s.regs[_SETUP_RETR]&0x0F
			return
		default:
			s.sent = append(s.sent, s.txFIFO[0])
			s.regs[_STATUS] |= byte(StatusDataSent)
			s.regs[_OBSERVE_TX] &^= 0x0F
			s.txFIFO = s.txFIFO[1:]
			s.reuse = false
		}
	}
}

// deliver puts a received payload in the RX FIFO as if it came in on pipe.
func (s *simChip) deliver(pipe int, p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rxFIFO) >= 3 {
		return
	}
	data := bytes.Clone(p)
	if !s.dynamic(pipe) {
		width := int(s.regs[_RX_PW_P0+pipe])
		data = append(data, make([]byte, max(0, width-len(data)))...)[:width]
	}
	s.rxFIFO = append(s.rxFIFO, simPayload{pipe: pipe, data: data})
	s.regs[_STATUS] |= byte(StatusDataReady)
}

// --- assertion helpers ---

func (s *simChip) reg(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

func (s *simChip) setReg(reg, v byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[reg] = v
}

func (s *simChip) rxAddr(pipe int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pipe < 2 {
		return bytes.Clone(s.addrs[pipe][:s.addrWidth()])
	}
	return []byte{s.addrs[pipe][0]}
}

func (s *simChip) txAddress() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.txAddr[:s.addrWidth()])
}

func (s *simChip) txLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txFIFO)
}

func (s *simChip) rxLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rxFIFO)
}

func (s *simChip) sentPayloads() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

func (s *simChip) clearLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}

// count returns how many transactions started with cmd.
func (s *simChip) count(cmd byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.log {
		if w[0] == cmd {
			n++
		}
	}
	return n
}

// trace flattens the transaction log, for bytes.Contains checks.
func (s *simChip) trace() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Join(s.log, nil)
}

func (s *simChip) ceHigh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ce
}

func (s *simChip) cePin() Pin { return simCE{s} }

func (s *simChip) irqPin() Pin { return simIRQ{s} }

// simCE is the CE line. A rising edge starts pending transmissions.
type simCE struct{ s *simChip }

func (p simCE) Out(l Level) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	rising := l == High && !p.s.ce
	p.s.ce = bool(l)
	if rising {
		p.s.pump()
	}
	return nil
}

func (p simCE) In(Pull) error            { return nil }
func (p simCE) Read() Level              { return Level(p.s.ceHigh()) }
func (p simCE) Watch(Edge, func()) error { return nil }
func (p simCE) Unwatch() error           { return nil }

// simIRQ is the active-low IRQ line. It is low while any interrupt flag
// in STATUS is set.
type simIRQ struct{ s *simChip }

func (p simIRQ) Read() Level {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return Level(p.s.regs[_STATUS]&byte(StatusIRQ) == 0)
}

func (p simIRQ) Out(Level) error          { return nil }
func (p simIRQ) In(Pull) error            { return nil }
func (p simIRQ) Watch(Edge, func()) error { return nil }
func (p simIRQ) Unwatch() error           { return nil }
