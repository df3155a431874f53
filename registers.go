package rf24

import (
	"strconv"
	"time"
)

// --- Register map ---

const (
	_CONFIG      = 0x00
	_EN_AA       = 0x01 // Auto Ack
	_EN_RXADDR   = 0x02
	_SETUP_AW    = 0x03
	_SETUP_RETR  = 0x04
	_RF_CH       = 0x05
	_RF_SETUP    = 0x06
	_STATUS      = 0x07
	_OBSERVE_TX  = 0x08
	_RPD         = 0x09 // CD on non-plus parts
	_RX_ADDR_P0  = 0x0A // P1..P5 follow
	_TX_ADDR     = 0x10
	_RX_PW_P0    = 0x11 // P1..P5 follow
	_FIFO_STATUS = 0x17
	_DYNPD       = 0x1C
	_FEATURE     = 0x1D
)

// --- Commands ---

const (
	_R_REGISTER         = 0x00
	_W_REGISTER         = 0x20
	_REGISTER_MASK      = 0x1F
	_ACTIVATE           = 0x50
	_R_RX_PL_WID        = 0x60
	_R_RX_PAYLOAD       = 0x61
	_W_TX_PAYLOAD       = 0xA0
	_W_ACK_PAYLOAD      = 0xA8 // + pipe (0-5)
	_W_TX_PAYLOAD_NOACK = 0xB0
	_FLUSH_TX           = 0xE1
	_FLUSH_RX           = 0xE2
	_REUSE_TX_PL        = 0xE3
	_NOP                = 0xFF

	// second byte of ACTIVATE
	_ACTIVATE_KEY = 0x73
)

// MaxPayloadSize is the size of one FIFO slot.
const MaxPayloadSize = 32

// bitString renders v as a list of named bits, most significant first.
// Bits with an empty name are skipped.
func bitString(v byte, names [8]string) string {
	var buf []byte
	for i := 7; i >= 0; i-- {
		if names[i] == "" {
			continue
		}
		if len(buf) > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, names[i]...)
		if v&(1<<uint(i)) != 0 {
			buf = append(buf, '+')
		} else {
			buf = append(buf, '-')
		}
	}
	return string(buf)
}

// Status is the value of the STATUS register. The chip clocks it out as the
// first byte of every transaction.
type Status byte

const (
	StatusTXFull     Status = 1 << 0 // TX_FULL
	StatusMaxRetries Status = 1 << 4 // MAX_RT
	StatusDataSent   Status = 1 << 5 // TX_DS
	StatusDataReady  Status = 1 << 6 // RX_DR

	// StatusIRQ covers the three interrupt flags. Writing them back clears them.
	StatusIRQ = StatusDataReady | StatusDataSent | StatusMaxRetries

	// statusIdle has no flags set and an empty RX FIFO. It stands in for
	// the status byte when a transfer fails.
	statusIdle Status = 7 << 1
)

func (s Status) DataReady() bool  { return s&StatusDataReady != 0 }
func (s Status) DataSent() bool   { return s&StatusDataSent != 0 }
func (s Status) MaxRetries() bool { return s&StatusMaxRetries != 0 }
func (s Status) TXFull() bool     { return s&StatusTXFull != 0 }

// RxPipe returns the pipe that owns the payload at the head of the RX FIFO.
// ok is false when the field holds the empty marker (6 or 7).
func (s Status) RxPipe() (pipe int, ok bool) {
	pipe = int(s>>1) & 0x07
	return pipe, pipe <= 5
}

func (s Status) String() string {
	str := bitString(byte(s), [8]string{0: "TX_FULL", 4: "MAX_RT", 5: "TX_DS", 6: "RX_DR"})
	if p, ok := s.RxPipe(); ok {
		return str + " RX_P_NO:" + strconv.Itoa(p)
	}
	return str + " RX_P_NO:empty"
}

// Cfg is the value of the CONFIG register.
type Cfg byte

const (
	CfgPrimRX    Cfg = 1 << iota // 1: PRX, 0: PTX
	CfgPowerUp                   // PWR_UP
	CfgCRCO                      // 0: 1 byte CRC, 1: 2 bytes
	CfgEnableCRC                 // forced high by the chip while any EN_AA bit is set
	CfgMaskMaxRT
	CfgMaskTXDS
	CfgMaskRXDR
)

func (c Cfg) PoweredUp() bool { return c&CfgPowerUp != 0 }
func (c Cfg) RX() bool        { return c&CfgPrimRX != 0 }

func (c Cfg) CRCLength() CRCLength {
	switch {
	case c&CfgEnableCRC == 0:
		return CRCLengthDisabled
	case c&CfgCRCO != 0:
		return CRCLength16
	default:
		return CRCLength8
	}
}

// WithCRCLength returns c with the CRC bits replaced.
func (c Cfg) WithCRCLength(l CRCLength) Cfg {
	c &^= CfgEnableCRC | CfgCRCO
	switch l {
	case CRCLengthDisabled:
	case CRCLength8:
		c |= CfgEnableCRC
	default:
		c |= CfgEnableCRC | CfgCRCO
	}
	return c
}

// WithIRQMask returns c with the interrupt mask bits replaced. A masked
// source does not pull the IRQ line low.
func (c Cfg) WithIRQMask(txOK, txFail, rxReady bool) Cfg {
	c &^= CfgMaskMaxRT | CfgMaskTXDS | CfgMaskRXDR
	if txOK {
		c |= CfgMaskTXDS
	}
	if txFail {
		c |= CfgMaskMaxRT
	}
	if rxReady {
		c |= CfgMaskRXDR
	}
	return c
}

func (c Cfg) String() string {
	return bitString(byte(c), [8]string{"PRIM_RX", "PWR_UP", "CRCO", "EN_CRC", "MASK_MAX_RT", "MASK_TX_DS", "MASK_RX_DR"})
}

// Pipes is a bit set over the six data pipes, used by EN_AA, EN_RXADDR
// and DYNPD.
type Pipes byte

const (
	P0 Pipes = 1 << iota
	P1
	P2
	P3
	P4
	P5

	AllPipes = P0 | P1 | P2 | P3 | P4 | P5
)

// PipeBit returns the bit for pipe, or 0 when pipe is out of range.
func PipeBit(pipe int) Pipes {
	if pipe < 0 || pipe > 5 {
		return 0
	}
	return 1 << uint(pipe)
}

func (p Pipes) Has(pipe int) bool { return p&PipeBit(pipe) != 0 }

func (p Pipes) String() string {
	return bitString(byte(p), [8]string{"P0", "P1", "P2", "P3", "P4", "P5"})
}

// RFSetup is the value of the RF_SETUP register.
type RFSetup byte

const (
	RFLNAGain      RFSetup = 1 << 0 // LNA_HCURR, SI24R1 uses it as an extra PA bit
	rfPowerMask    RFSetup = 3 << 1
	RFDataRateHigh RFSetup = 1 << 3
	RFPLLLock      RFSetup = 1 << 4
	RFDataRateLow  RFSetup = 1 << 5
	RFContWave     RFSetup = 1 << 7
)

func (r RFSetup) PALevel() PALevel { return PALevel((r & rfPowerMask) >> 1) }
func (r RFSetup) LNA() bool        { return r&RFLNAGain != 0 }

// WithPALevel replaces the power and LNA bits. Levels above PALevelMax
// saturate to PALevelMax.
func (r RFSetup) WithPALevel(l PALevel, lna bool) RFSetup {
	if l > PALevelMax {
		l = PALevelMax
	}
	r &^= rfPowerMask | RFLNAGain
	r |= RFSetup(l<<1) & rfPowerMask
	if lna {
		r |= RFLNAGain
	}
	return r
}

func (r RFSetup) DataRate() DataRate {
	switch r & (RFDataRateLow | RFDataRateHigh) {
	case RFDataRateLow:
		return DataRate250kbps
	case RFDataRateHigh:
		return DataRate2mbps
	default:
		return DataRate1mbps
	}
}

func (r RFSetup) WithDataRate(d DataRate) RFSetup {
	r &^= RFDataRateLow | RFDataRateHigh
	switch d {
	case DataRate250kbps:
		r |= RFDataRateLow
	case DataRate2mbps:
		r |= RFDataRateHigh
	}
	return r
}

func (r RFSetup) String() string {
	return bitString(byte(r), [8]string{0: "LNA", 3: "RF_DR_HIGH", 4: "PLL_LOCK", 5: "RF_DR_LOW", 7: "CONT_WAVE"}) +
		" PA:" + r.PALevel().String() + " DR:" + r.DataRate().String()
}

// FIFOStatus is the value of the FIFO_STATUS register.
type FIFOStatus byte

const (
	FIFORXEmpty FIFOStatus = 1 << 0
	FIFORXFull  FIFOStatus = 1 << 1
	FIFOTXEmpty FIFOStatus = 1 << 4
	FIFOTXFull  FIFOStatus = 1 << 5
	FIFOTXReuse FIFOStatus = 1 << 6
)

func (f FIFOStatus) RXEmpty() bool { return f&FIFORXEmpty != 0 }
func (f FIFOStatus) RXFull() bool  { return f&FIFORXFull != 0 }
func (f FIFOStatus) TXEmpty() bool { return f&FIFOTXEmpty != 0 }
func (f FIFOStatus) TXFull() bool  { return f&FIFOTXFull != 0 }
func (f FIFOStatus) TXReuse() bool { return f&FIFOTXReuse != 0 }

func (f FIFOStatus) String() string {
	return bitString(byte(f), [8]string{0: "RX_EMPTY", 1: "RX_FULL", 4: "TX_EMPTY", 5: "TX_FULL", 6: "TX_REUSE"})
}

// Feature is the value of the FEATURE register.
type Feature byte

const (
	FeatureDynamicAck     Feature = 1 << iota // EN_DYN_ACK, enables W_TX_PAYLOAD_NOACK
	FeatureAckPayload                         // EN_ACK_PAY
	FeatureDynamicPayload                     // EN_DPL
)

func (f Feature) String() string {
	return bitString(byte(f), [8]string{"EN_DYN_ACK", "EN_ACK_PAY", "EN_DPL"})
}

// SetupRetr is the value of the SETUP_RETR register: the auto retransmit
// delay in steps of 250us (high nibble) and the retransmit count (low nibble).
type SetupRetr byte

// NewSetupRetr packs delay and count, saturating both at 15.
func NewSetupRetr(delay, count byte) SetupRetr {
	return SetupRetr(min(delay, 15)<<4 | min(count, 15))
}

func (s SetupRetr) Delay() byte { return byte(s) >> 4 }
func (s SetupRetr) Count() byte { return byte(s) & 0x0F }

// DelayDuration is the wait between two hardware retransmits.
func (s SetupRetr) DelayDuration() time.Duration {
	return time.Duration(s.Delay()+1) * 250 * time.Microsecond
}

func (s SetupRetr) String() string {
	return "ARD:" + strconv.Itoa(int(s.DelayDuration()/time.Microsecond)) + "us ARC:" + strconv.Itoa(int(s.Count()))
}

// ObserveTX is the value of the OBSERVE_TX register.
type ObserveTX byte

// Lost counts packets lost since the last channel write (saturates at 15).
func (o ObserveTX) Lost() byte { return byte(o) >> 4 }

// Retries counts retransmits of the current or last packet.
func (o ObserveTX) Retries() byte { return byte(o) & 0x0F }

// addressWidthReg encodes an address width for SETUP_AW.
func addressWidthReg(width byte) byte { return width - 2 }

// addressWidthFromReg decodes SETUP_AW. The reserved value 0 reads as 2.
func addressWidthFromReg(v byte) byte { return v&0x03 + 2 }
