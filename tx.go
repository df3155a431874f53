package rf24

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

const (
	// airTime is a 32 byte packet plus its ack at 250kbps, rounded up.
	airTime = 1500 * time.Microsecond
	// pollMargin covers SPI round trips and OS scheduling while polling.
	pollMargin = 50 * time.Millisecond
)

// retryBudget bounds how long one payload can stay in flight: every
// hardware attempt plus the retransmit delay between them.
func (d *Device) retryBudget() time.Duration {
	attempts := time.Duration(d.regs.retr.Count()) + 1
	return attempts*(d.regs.retr.DelayDuration()+airTime) + pollMargin
}

func txCommand(multicast bool) byte {
	if multicast {
		return _W_TX_PAYLOAD_NOACK
	}
	return _W_TX_PAYLOAD
}

// Write sends p and waits until it was acknowledged or the hardware gave
// up. With multicast the receiver is asked not to acknowledge, which needs
// EnableDynamicAck.
//
// Polling stops when the retry budget is spent or ctx is done even if the
// chip never reports an outcome. On failure the TX FIFO is flushed.
// This method is concurrent safe.
func (d *Device) Write(ctx context.Context, p []byte, multicast bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transmit(ctx, p, multicast) == nil
}

func (d *Device) transmit(ctx context.Context, p []byte, multicast bool) error {
	d.startFastWrite(p, multicast, true)

	deadline := time.Now().Add(d.retryBudget())
	var err error
	for {
		if d.getStatus()&(StatusDataSent|StatusMaxRetries) != 0 {
			break
		}
		if err = ctx.Err(); err != nil {
			break
		}
		if time.Now().After(deadline) {
			err = ErrTimeout
			break
		}
		runtime.Gosched()
	}

	d.setCE(false)
	st := d.clearIRQ(StatusIRQ)
	if err == nil && st.MaxRetries() {
		err = ErrMaxRetries
	}
	if err != nil {
		// only this payload can be queued here
		d.flushTX()
		d.log.Debug("Write failed: " + err.Error())
	}
	return err
}

// WriteFast queues p and raises CE without waiting for the outcome.
//
// It returns false without queueing when the TX FIFO is full and the
// payload at its head ran out of retries; the caller should call ReUseTX
// or TxStandBy, then retry with the same payload. While the FIFO is full
// but still moving, WriteFast waits for a free slot.
//
// CE stays high afterwards. It must not stay high with a full FIFO for
// more than 4ms, so a burst of WriteFast calls has to end with TxStandBy.
// This method is concurrent safe.
func (d *Device) WriteFast(p []byte, multicast bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	deadline := time.Now().Add(d.retryBudget())
	for d.getStatus().TXFull() {
		if d.status.MaxRetries() {
			return false
		}
		if time.Now().After(deadline) {
			d.log.Warn("TX FIFO stuck full")
			return false
		}
		runtime.Gosched()
	}
	d.startFastWrite(p, multicast, true)
	return true
}

// WriteBlocking queues p, waiting for a free FIFO slot for at most
// timeout. Payloads that run out of hardware retries meanwhile are
// retransmitted with ReUseTX, so the FIFO keeps draining.
// Like WriteFast it leaves CE high.
// This method is concurrent safe.
func (d *Device) WriteBlocking(ctx context.Context, p []byte, timeout time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	for d.getStatus().TXFull() {
		if d.status.MaxRetries() {
			d.reUseTX()
		}
		if time.Since(start) > timeout || ctx.Err() != nil {
			return false
		}
		runtime.Gosched()
	}
	d.startFastWrite(p, false, true)
	return true
}

// TxStandBy waits for the TX FIFO to empty and drops CE. It gives up at
// the first payload that runs out of retries: the flag is cleared and the
// FIFO flushed.
// This method is concurrent safe.
func (d *Device) TxStandBy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	// three slots, each bounded by its own retry budget
	deadline := time.Now().Add(3 * d.retryBudget())
	for !FIFOStatus(d.readRegister(_FIFO_STATUS)).TXEmpty() {
		if d.status.MaxRetries() {
			d.clearIRQ(StatusMaxRetries)
			d.setCE(false)
			d.flushTX()
			return false
		}
		if time.Now().After(deadline) {
			d.log.Warn("TX FIFO did not drain")
			d.setCE(false)
			d.flushTX()
			return false
		}
		runtime.Gosched()
	}
	d.setCE(false)
	return true
}

// TxStandByTimeout is TxStandBy with software retries: a payload that ran
// out of hardware retries is sent again until timeout, measured from the
// call, runs out. With start set the radio is first switched to TX and CE
// raised, which sends whatever StartFastWrite queued.
// This method is concurrent safe.
func (d *Device) TxStandByTimeout(ctx context.Context, timeout time.Duration, start bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if start {
		d.stopListening()
		d.setCE(true)
	}

	begin := time.Now()
	for !FIFOStatus(d.readRegister(_FIFO_STATUS)).TXEmpty() {
		if d.status.MaxRetries() {
			d.clearIRQ(StatusMaxRetries)
			d.setCE(false)
			d.setCE(true)
		}
		if time.Since(begin) >= timeout || ctx.Err() != nil {
			d.setCE(false)
			d.flushTX()
			return false
		}
		runtime.Gosched()
	}
	d.setCE(false)
	return true
}

// ReUseTX sends the payload at the head of the TX FIFO again after it ran
// out of hardware retries.
// This method is concurrent safe.
func (d *Device) ReUseTX() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reUseTX()
}

func (d *Device) reUseTX() {
	d.clearIRQ(StatusMaxRetries)
	d.command(_REUSE_TX_PL)
	d.setCE(false)
	d.setCE(true)
}

// StartFastWrite queues p without checking for space. CE is raised when
// startTx is set, otherwise the payload waits for TxStandByTimeout with
// start set.
// This method is concurrent safe.
func (d *Device) StartFastWrite(p []byte, multicast, startTx bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startFastWrite(p, multicast, startTx)
}

func (d *Device) startFastWrite(p []byte, multicast, startTx bool) {
	d.writePayload(p, txCommand(multicast))
	if startTx {
		d.setCE(true)
	}
}

// StartWrite queues p and pulses CE, sending one packet. The outcome is
// reported through the IRQ pin or DrainStatus. It returns false when the
// TX FIFO was already full.
// This method is concurrent safe.
func (d *Device) StartWrite(p []byte, multicast bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.writePayload(p, txCommand(multicast))
	d.setCE(true)
	time.Sleep(15 * time.Microsecond) // CE pulse must exceed 10us
	d.setCE(false)
	return !st.TXFull()
}

// --- Convenience layer ---

func (d *Device) payloadLimit() int {
	if d.regs.dynamicPayloads {
		return MaxPayloadSize
	}
	return int(d.regs.payloadSize)
}

// Transmit sends a message to destAddr and waits for its acknowledgement.
// A listening radio is put back into RX mode afterwards.
// It returns an error if you are trying to send a message bigger than the payload size.
// This method is concurrent safe.
func (d *Device) Transmit(destAddr Address, p []byte) error {
	return d.send(context.Background(), destAddr, p, false)
}

// TransmitNoAck sends a message with a "No Acknowledgement" flag in the packet header.
// Unlike a regular Transmit with auto-ack turned off, this method explicitly tells
// the receiver NOT to send an ACK packet. This is the preferred method for broadcasting
// to multiple receivers as it prevents receivers from wasting power and airtime
// sending ACKs that the transmitter isn't listening for.
// The no-ack feature is enabled on first use.
// This method is concurrent safe.
func (d *Device) TransmitNoAck(destAddr Address, p []byte) error {
	return d.send(context.Background(), destAddr, p, true)
}

func (d *Device) send(ctx context.Context, dest Address, p []byte, noAck bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if limit := d.payloadLimit(); len(p) > limit {
		return fmt.Errorf("%w: %w (%d bytes), limit is %d", ErrPkg, ErrPayloadTooLarge, len(p), limit)
	}
	if noAck && d.regs.feature&FeatureDynamicAck == 0 {
		d.enableDynamicAck()
	}

	listening := d.regs.cfg.RX()
	if listening {
		d.stopListening()
	}
	if delay := d.powerUp(); delay > 0 {
		time.Sleep(delay)
	}
	d.openWritingPipe(dest)

	err := d.transmit(ctx, p, noAck)
	if listening {
		d.startListening()
	}
	if err != nil {
		return fmt.Errorf("%w: failed to send data: %w", ErrPkg, err)
	}
	return nil
}

// Ping sends a single zero byte to addr and reports whether it was
// acknowledged. The error is only set when ctx ended the attempt.
// This method is concurrent safe.
func (d *Device) Ping(ctx context.Context, addr Address) (bool, error) {
	err := d.send(ctx, addr, []byte{0x00}, false)
	if err == nil {
		d.log.Info("Ping Success " + addr.String())
		return true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	d.log.Info("Ping Failed " + addr.String())
	return false, nil
}
