package rf24

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Events is a snapshot of the interrupt flags taken by DrainStatus.
type Events struct {
	TxOK    bool // TX_DS: payload sent (and acknowledged when auto-ack is on)
	TxFail  bool // MAX_RT: hardware retries exhausted
	RxReady bool // RX_DR: payload received
}

// IRQEvent is what ServiceIRQ found.
type IRQEvent struct {
	Events
	// Pipe owns the payload at the head of the RX FIFO, valid when
	// Available is set.
	Pipe      int
	Available bool
}

// Available reports whether the RX FIFO holds a payload.
//
// The pipe number in STATUS is not reliable on the transaction right after
// an interrupt fires. Interrupt driven code should use ServiceIRQ, which
// reads the flags first.
// This method is concurrent safe.
func (d *Device) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.getStatus().RxPipe()
	return ok
}

// AvailablePipe is Available that also returns the pipe of the payload at
// the head of the RX FIFO.
// This method is concurrent safe.
func (d *Device) AvailablePipe() (pipe int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getStatus().RxPipe()
}

// Read copies the payload at the head of the RX FIFO into buf and clears
// RX_DR.
//
// With static payloads the slot is always released. With dynamic payloads
// exactly len(buf) bytes are read: a shorter buf leaves the rest of the
// payload queued, a longer one is filled with whatever the chip shifts out
// past the end, which is a repeat of the last byte. Use DynamicPayloadSize
// to size buf.
// This method is concurrent safe.
func (d *Device) Read(buf []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readPayload(buf)
	d.clearIRQ(StatusDataReady)
}

// DynamicPayloadSize returns the length of the payload at the head of the
// RX FIFO. A length above 32 means the payload is corrupt: the RX FIFO is
// flushed and 0 returned.
// This method is concurrent safe.
func (d *Device) DynamicPayloadSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dynamicPayloadSize()
}

func (d *Device) dynamicPayloadSize() int {
	n := d.readCommand(_R_RX_PL_WID)
	if n > MaxPayloadSize {
		d.log.Warn("Corrupt payload width " + strconv.Itoa(int(n)) + ", flushing RX FIFO")
		d.flushRX()
		return 0
	}
	return int(n)
}

// WriteAckPayload queues p to be sent with the next acknowledgement on
// pipe. It needs EnableAckPayload and returns false otherwise, or when the
// TX FIFO, which ack payloads share, is full.
// This method is concurrent safe.
func (d *Device) WriteAckPayload(pipe int, p []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.regs.ackPayloads || PipeBit(pipe) == 0 {
		return false
	}
	st := d.writePayload(p, _W_ACK_PAYLOAD|byte(pipe))
	return !st.TXFull()
}

// IsAckPayloadAvailable reports whether an ack payload arrived with the
// last acknowledgement. Ack payloads land in the RX FIFO, so this is the
// same as Available.
// This method is concurrent safe.
func (d *Device) IsAckPayloadAvailable() bool { return d.Available() }

// RxFIFOFull reports whether all three RX slots are taken.
// This method is concurrent safe.
func (d *Device) RxFIFOFull() bool {
	return d.FIFO().RXFull()
}

// FIFO reads FIFO_STATUS.
// This method is concurrent safe.
func (d *Device) FIFO() FIFOStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return FIFOStatus(d.readRegister(_FIFO_STATUS))
}

// DrainStatus clears the interrupt flags and returns the ones that were
// set, in one transaction.
// This method is concurrent safe.
func (d *Device) DrainStatus() Events {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drainStatus()
}

func (d *Device) drainStatus() Events {
	st := d.clearIRQ(StatusIRQ)
	return Events{
		TxOK:    st.DataSent(),
		TxFail:  st.MaxRetries(),
		RxReady: st.DataReady(),
	}
}

// ServiceIRQ drains the interrupt flags and then checks the RX FIFO,
// holding the lock across both so no other caller sees the flags half
// handled.
// This method is concurrent safe.
func (d *Device) ServiceIRQ() IRQEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	ev := IRQEvent{Events: d.drainStatus()}
	ev.Pipe, ev.Available = d.getStatus().RxPipe()
	return ev
}

// --- Convenience layer ---

// Receive tries to receive a packet from the NRF24L01 module.
// This method is non-blocking and assumes the radio is listening (see StartListening).
// It returns the payload and true if a message is available, otherwise nil and false.
// This method is concurrent safe.
func (d *Device) Receive() ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, _, ok := d.receive()
	return p, ok
}

// ReceiveFrom is Receive that also returns the pipe the payload came in on.
// This method is concurrent safe.
func (d *Device) ReceiveFrom() (p []byte, pipe int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.receive()
}

func (d *Device) receive() ([]byte, int, bool) {
	pipe, ok := d.getStatus().RxPipe()
	if !ok {
		return nil, 0, false
	}

	size := int(d.regs.payloadSize)
	if d.regs.dynPD.Has(pipe) && d.regs.feature&FeatureDynamicPayload != 0 {
		size = d.dynamicPayloadSize()
		if size == 0 {
			// An empty or corrupt payload cannot be read out of the FIFO,
			// drop everything or it blocks the queue forever.
			d.flushRX()
			d.clearIRQ(StatusDataReady)
			return nil, pipe, false
		}
	}

	p := make([]byte, size)
	d.readPayload(p)
	d.clearIRQ(StatusDataReady)
	return p, pipe, true
}

// WaitForInterrupt blocks until the IRQ pin goes low (active) or the context is cancelled.
// It returns the content of the STATUS register.
// If the IRQ pin is not configured, it returns ErrNoIRQ.
// This method is concurrent safe.
func (d *Device) WaitForInterrupt(ctx context.Context) (Status, error) {
	if d.irq == nil {
		return 0, fmt.Errorf("%w: %w", ErrPkg, ErrNoIRQ)
	}

	// Check if interrupt is already active (low = false)
	if d.irq.Read() == Low {
		return d.Status(), nil
	}

	// Wait for signal from the Watch callback or context
	select {
	case <-d.irqChan:
		return d.Status(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ReceiveBlocking waits for a packet to arrive or for the context to be cancelled.
// It blocks efficiently using the IRQ pin if configured, or falls back to polling.
// This method is concurrent safe.
func (d *Device) ReceiveBlocking(ctx context.Context) ([]byte, error) {
	for {
		// Check for cancellation
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// 1. Check if data is already available
		if data, ok := d.Receive(); ok {
			return data, nil
		}

		// 2. Wait for data
		if d.irq != nil {
			status, err := d.WaitForInterrupt(ctx)
			if err != nil {
				return nil, err
			}
			// Nothing was queued, so any flag still set (MAX_RT, or RX_DR
			// after a flush) would keep the line low forever. A payload
			// that arrived meanwhile is picked up by the next Receive.
			if flags := status & StatusIRQ; flags != 0 {
				d.clearInterrupts(flags)
			}
			continue
		}

		// Polling fallback
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// clearInterrupts clears the specified interrupt flags in the STATUS register.
// This is concurrent safe.
func (d *Device) clearInterrupts(flags Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearIRQ(flags)
}
