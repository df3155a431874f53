package rf24

// IsChipConnected reads SETUP_AW back and compares it with the configured
// address width. A missing or unpowered chip reads as 0x00 or 0xFF.
// This method is concurrent safe.
func (d *Device) IsChipConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readRegister(_SETUP_AW) == addressWidthReg(d.regs.addrWidth)
}

// TestCarrier reports the carrier detect bit (CD on the non-plus part).
// It is only meaningful after listening for at least 170us.
// This method is concurrent safe.
func (d *Device) TestCarrier() bool {
	return d.TestRPD()
}

// TestRPD reports whether a signal stronger than -64dBm was seen on the
// channel, which is useful for checking if a channel is clear before
// transmitting. Only the plus part implements it.
// This method is concurrent safe.
func (d *Device) TestRPD() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readRegister(_RPD)&1 != 0
}

// ARC returns the number of retransmits of the last payload.
// This method is concurrent safe.
func (d *Device) ARC() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ObserveTX(d.readRegister(_OBSERVE_TX)).Retries()
}

// RetransmissionCounters returns the number of lost packets and the number of retransmissions
// for the last sent packet.
// lostPackets: Number of packets lost (count resets when changing channel).
// currentRetries: Number of retransmissions for the latest transmission.
// This method is concurrent safe.
func (d *Device) RetransmissionCounters() (lostPackets byte, currentRetries byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	o := ObserveTX(d.readRegister(_OBSERVE_TX))
	return o.Lost(), o.Retries()
}

// Status sends a NOP and returns the STATUS register.
// This is useful for debugging or polling the radio state.
// This method is concurrent safe.
func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getStatus()
}

// FlushTX clears the transmit FIFO buffer.
// This method is concurrent safe.
func (d *Device) FlushTX() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushTX()
}

// FlushRX clears the receive FIFO buffer.
// This method is concurrent safe.
func (d *Device) FlushRX() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushRX()
}
