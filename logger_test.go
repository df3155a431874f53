//go:build !tinygo

package rf24

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core))

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "w", entries[2].Message)

	assert.Equal(t, NopLogger(), NewZapLogger(nil))
}

func TestDeviceLogsClamping(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sim := newSimChip(true)
	dev, err := NewWithHardware(HardwareConfig{
		CE:     sim.cePin(),
		Logger: NewZapLogger(zap.New(core)),
	}, sim)
	require.NoError(t, err)
	defer dev.Close()

	dev.SetChannel(130)
	require.Equal(t, 1, logs.FilterMessage("Channel 130 out of range, using 125").Len())

	dev.SetPALevel(PALevel(9), false)
	dev.SetRadiation(PALevel(5), DataRate2mbps, false)
	assert.Equal(t, 1, logs.FilterMessage("PA level 9 out of range, using max").Len())
	assert.Equal(t, 1, logs.FilterMessage("PA level 5 out of range, using max").Len())
	assert.Equal(t, PALevelMax, dev.PALevel())

	n := logs.Len()
	dev.SetPALevel(PALevelLow, false)
	assert.Equal(t, n, logs.Len())
}

func TestSetLogger(t *testing.T) {
	saved := globalLogger
	defer func() { globalLogger = saved }()

	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(NewZapLogger(zap.New(core)))

	sim := newSimChip(true)
	dev, err := NewWithHardware(HardwareConfig{CE: sim.cePin()}, sim)
	require.NoError(t, err)
	dev.Close()
	assert.Positive(t, logs.FilterMessage("NRF24L01 powered down.").Len())

	SetLogger(nil)
	assert.Equal(t, NopLogger(), globalLogger)
}

func TestLineLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLineLogger(&buf, false)

	l.Debug("hidden")
	l.Warn("Channel 130 out of range, using 125")
	l.Info("ok")
	assert.Equal(t, "[WARN]  rf24: Channel 130 out of range, using 125\r\n[INFO]  rf24: ok\r\n", buf.String())

	buf.Reset()
	NewLineLogger(&buf, true).Debug("shown")
	assert.Equal(t, "[DEBUG] rf24: shown\r\n", buf.String())
}
