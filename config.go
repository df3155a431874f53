package rf24

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	DataRate  byte
	PALevel   byte
	CRCLength byte
)

const (
	// DataRate1mbps is the reset default and works on every chip revision.
	DataRate1mbps DataRate = iota
	// DataRate2mbps represents a data rate of 2mbps
	DataRate2mbps
	// DataRate250kbps is only available on the plus variant.
	DataRate250kbps
)

func (d DataRate) String() string {
	switch d {
	case DataRate250kbps:
		return "250kbps"
	case DataRate1mbps:
		return "1mbps"
	case DataRate2mbps:
		return "2mbps"
	default:
		return "unknown"
	}
}

const (
	// PALevelMin represents a power amplifier level of -18dBm
	PALevelMin PALevel = iota
	// PALevelLow represents a power amplifier level of -12dBm
	PALevelLow
	// PALevelHigh represents a power amplifier level of -6dBm
	PALevelHigh
	// PALevelMax represents a power amplifier level of 0dBm
	PALevelMax
)

func (p PALevel) String() string {
	switch p {
	case PALevelMin:
		return "-18dBm"
	case PALevelLow:
		return "-12dBm"
	case PALevelHigh:
		return "-6dBm"
	case PALevelMax:
		return "0dBm"
	default:
		return "unknown"
	}
}

const (
	// CRCLengthDisabled disables CRC
	CRCLengthDisabled CRCLength = iota
	// CRCLength8 enables 8-bit CRC
	CRCLength8
	// CRCLength16 enables 16-bit CRC
	CRCLength16
)

func (c CRCLength) String() string {
	switch c {
	case CRCLengthDisabled:
		return "disabled"
	case CRCLength8:
		return "8bit"
	case CRCLength16:
		return "16bit"
	default:
		return "unknown"
	}
}

// Address is a pipe address, least significant byte first. Only the first
// AddressWidth bytes go on air; pipes 2-5 only use Address[0].
type Address [5]byte

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4])
}

// RadioConfig describes the radio settings applied at start-up.
// Start from DefaultRadioConfig; the zero value is treated as the defaults.
type RadioConfig struct {
	// Channel selects 2400+Channel MHz. Range 0 to 125, higher values are clamped.
	Channel byte `yaml:"channel"`
	// PayloadSize is the static payload width in bytes (1 to 32).
	// It is ignored on pipes with dynamic payloads.
	PayloadSize byte `yaml:"payload_size"`
	// AddressWidth is 3, 4 or 5 bytes.
	AddressWidth byte      `yaml:"address_width"`
	DataRate     DataRate  `yaml:"data_rate"`
	PALevel      PALevel   `yaml:"pa_level"`
	// LNA enables the low noise amplifier gain bit.
	LNA       bool      `yaml:"lna"`
	CRCLength CRCLength `yaml:"crc_length"`
	// AutoAck selects the pipes that acknowledge received payloads.
	AutoAck Pipes `yaml:"auto_ack"`
	// RetryDelay is the wait between hardware retransmits in steps of 250us (0 to 15).
	RetryDelay byte `yaml:"retry_delay"`
	// RetryCount is the number of hardware retransmits (0 to 15).
	RetryCount byte `yaml:"retry_count"`
	// DynamicPayloads enables dynamic payload length on all pipes.
	DynamicPayloads bool `yaml:"dynamic_payloads"`
	// AckPayloads enables payloads on acknowledgements. It implies dynamic
	// payloads on pipes 0 and 1.
	AckPayloads bool `yaml:"ack_payloads"`
	// DynamicAck enables the no-ack payload command used for multicast writes.
	DynamicAck bool `yaml:"dynamic_ack"`
	// RxAddr, when set, is opened on pipe 1 and the radio starts listening.
	RxAddr Address `yaml:"rx_addr"`
}

// DefaultRadioConfig returns the settings the driver programs during Begin.
func DefaultRadioConfig() RadioConfig {
	return RadioConfig{
		Channel:      76,
		PayloadSize:  MaxPayloadSize,
		AddressWidth: 5,
		DataRate:     DataRate1mbps,
		PALevel:      PALevelMax,
		LNA:          true,
		CRCLength:    CRCLength16,
		AutoAck:      AllPipes,
		RetryDelay:   5,
		RetryCount:   15,
	}
}

// ParseConfig decodes a YAML document on top of DefaultRadioConfig, so
// missing keys keep their defaults.
func ParseConfig(data []byte) (RadioConfig, error) {
	c := DefaultRadioConfig()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("%w: parse config: %w", ErrPkg, err)
	}
	return c, nil
}

// LoadConfig reads and decodes a YAML configuration file.
func LoadConfig(path string) (RadioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultRadioConfig(), fmt.Errorf("%w: read config: %w", ErrPkg, err)
	}
	return ParseConfig(data)
}

func (d DataRate) MarshalYAML() (interface{}, error) { return d.String(), nil }

func (d *DataRate) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "1mbps", "1m":
		*d = DataRate1mbps
	case "2mbps", "2m":
		*d = DataRate2mbps
	case "250kbps", "250k":
		*d = DataRate250kbps
	default:
		return fmt.Errorf("line %d: unknown data rate %q", value.Line, value.Value)
	}
	return nil
}

func (p PALevel) MarshalYAML() (interface{}, error) {
	return [...]string{"min", "low", "high", "max"}[min(p, PALevelMax)], nil
}

func (p *PALevel) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "min", "-18dbm":
		*p = PALevelMin
	case "low", "-12dbm":
		*p = PALevelLow
	case "high", "-6dbm":
		*p = PALevelHigh
	case "max", "0dbm":
		*p = PALevelMax
	default:
		return fmt.Errorf("line %d: unknown pa level %q", value.Line, value.Value)
	}
	return nil
}

func (c CRCLength) MarshalYAML() (interface{}, error) { return c.String(), nil }

func (c *CRCLength) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "disabled", "off", "0":
		*c = CRCLengthDisabled
	case "8bit", "8":
		*c = CRCLength8
	case "16bit", "16":
		*c = CRCLength16
	default:
		return fmt.Errorf("line %d: unknown crc length %q", value.Line, value.Value)
	}
	return nil
}

// UnmarshalYAML accepts either a bit mask or a list of pipe numbers.
func (p *Pipes) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var list []int
		if err := value.Decode(&list); err != nil {
			return err
		}
		*p = 0
		for _, n := range list {
			if PipeBit(n) == 0 {
				return fmt.Errorf("line %d: pipe %d out of range", value.Line, n)
			}
			*p |= PipeBit(n)
		}
		return nil
	}
	var mask uint8
	if err := value.Decode(&mask); err != nil {
		return err
	}
	*p = Pipes(mask) & AllPipes
	return nil
}

func (a Address) MarshalYAML() (interface{}, error) { return a.String(), nil }

// UnmarshalYAML accepts "E7:E7:E7:E7:E7" or a list of byte values.
func (a *Address) UnmarshalYAML(value *yaml.Node) error {
	*a = Address{}
	if value.Kind == yaml.SequenceNode {
		var list []int
		if err := value.Decode(&list); err != nil {
			return err
		}
		if len(list) > len(a) {
			return fmt.Errorf("line %d: address longer than %d bytes", value.Line, len(a))
		}
		for i, n := range list {
			if n < 0 || n > 0xFF {
				return fmt.Errorf("line %d: bad address byte %d", value.Line, n)
			}
			a[i] = byte(n)
		}
		return nil
	}
	parts := strings.Split(value.Value, ":")
	if len(parts) > len(a) {
		return fmt.Errorf("line %d: address longer than %d bytes", value.Line, len(a))
	}
	for i, s := range parts {
		b, err := strconv.ParseUint(s, 16, 8)
		if err != nil {
			return fmt.Errorf("line %d: bad address byte %q", value.Line, s)
		}
		a[i] = byte(b)
	}
	return nil
}
