package rf24

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeTransitions(t *testing.T) {
	sim := newSimChip(true)
	dev := newSimDevice(t, sim, RadioConfig{})

	assert.Equal(t, ModeStandbyI, dev.Mode())

	dev.StartListening()
	assert.Equal(t, ModeRX, dev.Mode())
	assert.True(t, sim.ceHigh())
	assert.True(t, Cfg(sim.reg(_CONFIG)).RX())

	dev.StopListening()
	assert.Equal(t, ModeStandbyI, dev.Mode())
	assert.False(t, sim.ceHigh())
	assert.False(t, Cfg(sim.reg(_CONFIG)).RX())

	dev.PowerDown()
	assert.Equal(t, ModePowerDown, dev.Mode())
	assert.False(t, Cfg(sim.reg(_CONFIG)).PoweredUp())
}

func TestModeStandbyIIAndTX(t *testing.T) {
	sim := newSimChip(true)
	dev := newSimDevice(t, sim, RadioConfig{})
	dev.OpenWritingPipe(addrB)

	require.True(t, dev.WriteFast([]byte("a"), false))
	assert.Equal(t, ModeStandbyII, dev.Mode())

	sim.outcome = simHang
	require.True(t, dev.WriteFast([]byte("b"), false))
	assert.Equal(t, ModeTX, dev.Mode())

	dev.FlushTX()
	assert.Equal(t, ModeStandbyII, dev.Mode())
}

func TestPowerUpDelay(t *testing.T) {
	sim := newSimChip(true)
	dev := newSimDevice(t, sim, RadioConfig{})

	assert.Zero(t, dev.PowerUp())

	dev.PowerDown()
	assert.Equal(t, PowerUpDelay, dev.PowerUp())
	assert.True(t, Cfg(sim.reg(_CONFIG)).PoweredUp())
	assert.Zero(t, dev.PowerUp())
}

func TestStartListeningPowersUp(t *testing.T) {
	sim := newSimChip(true)
	dev := newSimDevice(t, sim, RadioConfig{})

	dev.PowerDown()
	sim.setReg(_STATUS, byte(StatusIRQ))
	dev.StartListening()

	cfg := Cfg(sim.reg(_CONFIG))
	assert.True(t, cfg.PoweredUp())
	assert.True(t, cfg.RX())
	assert.Zero(t, sim.reg(_STATUS), "stale flags cleared")
}

func TestStopListeningFlushesAckPayloads(t *testing.T) {
	sim := newSimChip(true)
	dev := newSimDevice(t, sim, RadioConfig{})

	dev.EnableAckPayload()
	dev.OpenReadingPipe(1, addrA)
	dev.StartListening()
	require.True(t, dev.WriteAckPayload(1, []byte("ack")))
	require.Equal(t, 1, sim.txLen())

	dev.StopListening()
	assert.Zero(t, sim.txLen())
}

func TestStopListeningKeepsTXWithoutAckPayloads(t *testing.T) {
	sim := newSimChip(true)
	dev := newSimDevice(t, sim, RadioConfig{})

	dev.StartListening()
	sim.clearLog()
	dev.StopListening()
	assert.Zero(t, sim.count(_FLUSH_TX))
}

func TestConstCarrier(t *testing.T) {
	t.Run("plus", func(t *testing.T) {
		sim := newSimChip(true)
		dev := newSimDevice(t, sim, RadioConfig{})

		dev.StartConstCarrier(PALevelLow, 40)
		rf := RFSetup(sim.reg(_RF_SETUP))
		assert.NotZero(t, rf&RFContWave)
		assert.NotZero(t, rf&RFPLLLock)
		assert.Equal(t, PALevelLow, rf.PALevel())
		assert.Equal(t, byte(40), sim.reg(_RF_CH))
		assert.Zero(t, sim.reg(_EN_AA))
		assert.Zero(t, sim.reg(_SETUP_RETR))
		assert.Equal(t, CRCLengthDisabled, dev.CRCLength())
		assert.Equal(t, 1, sim.count(_REUSE_TX_PL))
		assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, sim.txAddress())

		dev.StopConstCarrier()
		rf = RFSetup(sim.reg(_RF_SETUP))
		assert.Zero(t, rf&(RFContWave|RFPLLLock))
		assert.Equal(t, ModePowerDown, dev.Mode())
	})

	t.Run("non-plus", func(t *testing.T) {
		sim := newSimChip(false)
		dev := newSimDevice(t, sim, RadioConfig{})

		dev.StartConstCarrier(PALevelMax, 10)
		assert.NotZero(t, sim.reg(_RF_SETUP)&byte(RFContWave))
		assert.Equal(t, byte(AllPipes), sim.reg(_EN_AA))
		assert.Zero(t, sim.count(_REUSE_TX_PL))
		assert.True(t, sim.ceHigh())

		dev.StopConstCarrier()
		assert.False(t, sim.ceHigh())
	})
}

func TestTransmitWhileListening(t *testing.T) {
	sim := newSimChip(true)
	rc := DefaultRadioConfig()
	rc.RxAddr = addrA
	dev := newSimDevice(t, sim, rc)
	require.Equal(t, ModeRX, dev.Mode())

	require.NoError(t, dev.Transmit(addrB, []byte("hi")))
	assert.Equal(t, ModeRX, dev.Mode())
	assert.True(t, sim.ceHigh())
	// pipe 0 has no reading address, so it is closed again
	assert.False(t, Pipes(sim.reg(_EN_RXADDR)).Has(0))
	require.Len(t, sim.sentPayloads(), 1)

	ok, err := dev.Ping(context.Background(), addrB)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ModeRX, dev.Mode())
}
