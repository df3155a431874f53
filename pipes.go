package rf24

// OpenWritingPipe sets the address written payloads are sent to.
//
// With auto-ack the acknowledgement comes back on the same address, so
// RX_ADDR_P0 is overwritten too. A reading address on pipe 0 is restored
// by the next StartListening.
// This method is concurrent safe.
func (d *Device) OpenWritingPipe(addr Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openWritingPipe(addr)
}

func (d *Device) openWritingPipe(addr Address) {
	width := d.regs.addrWidth
	d.writeRegisterN(_RX_ADDR_P0, addr[:width])
	d.writeRegisterN(_TX_ADDR, addr[:width])
	d.pipe0Dirty = true
}

// OpenReadingPipe enables a data pipe (0-5) with the specified address.
// Pipes 0 and 1 use the full address width. Pipes 2-5 only set addr[0] and
// share the upper bytes with pipe 1, keeping those consistent is up to the
// caller. A pipe outside 0-5 is ignored.
// This method is concurrent safe.
func (d *Device) OpenReadingPipe(pipe int, addr Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openReadingPipe(pipe, addr)
}

func (d *Device) openReadingPipe(pipe int, addr Address) {
	bit := PipeBit(pipe)
	if bit == 0 {
		d.log.Debug("Ignoring reading pipe out of range")
		return
	}

	reg := byte(_RX_ADDR_P0 + pipe)
	if pipe < 2 {
		d.writeRegisterN(reg, addr[:d.regs.addrWidth])
	} else {
		d.writeRegister(reg, addr[0])
	}
	d.pipeAddrs[pipe] = addr
	if pipe == 0 {
		d.pipe0RX = true
		d.pipe0Dirty = false
	}

	d.regs.rxPipes |= bit
	d.writeRegister(_EN_RXADDR, byte(d.regs.rxPipes))
}

// CloseReadingPipe disables a data pipe. Closing pipe 0 also forgets it as
// a reading pipe, so StartListening will keep it closed.
// This method is concurrent safe.
func (d *Device) CloseReadingPipe(pipe int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeReadingPipe(pipe)
}

func (d *Device) closeReadingPipe(pipe int) {
	bit := PipeBit(pipe)
	if bit == 0 {
		return
	}
	d.regs.rxPipes &^= bit
	d.writeRegister(_EN_RXADDR, byte(d.regs.rxPipes))
	if pipe == 0 {
		d.pipe0RX = false
	}
}

// restorePipe0 runs on entry to RX mode: pipe 0 gets its reading address
// back if it has one, and is closed otherwise so acks to our own writing
// address are not picked up as data.
func (d *Device) restorePipe0() {
	if !d.pipe0RX {
		d.closeReadingPipe(0)
		return
	}
	if d.pipe0Dirty {
		d.writeRegisterN(_RX_ADDR_P0, d.pipeAddrs[0][:d.regs.addrWidth])
		d.pipe0Dirty = false
	}
	if !d.regs.rxPipes.Has(0) {
		d.regs.rxPipes |= P0
		d.writeRegister(_EN_RXADDR, byte(d.regs.rxPipes))
	}
}

// ToggleAllPipes opens or closes all six reading pipes at once, keeping
// their addresses.
// This method is concurrent safe.
func (d *Device) ToggleAllPipes(enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if enable {
		d.regs.rxPipes = AllPipes
	} else {
		d.regs.rxPipes = 0
	}
	d.writeRegister(_EN_RXADDR, byte(d.regs.rxPipes))
}

// ReadingPipes returns the enabled reading pipes.
// This method is concurrent safe.
func (d *Device) ReadingPipes() Pipes {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.rxPipes
}

// ReadingAddress returns the address last opened on pipe. For pipes 2-5
// the upper bytes are those of pipe 1. ok is false for a closed or
// invalid pipe.
// This method is concurrent safe.
func (d *Device) ReadingAddress(pipe int) (addr Address, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.regs.rxPipes.Has(pipe) {
		return Address{}, false
	}
	if pipe < 2 {
		return d.pipeAddrs[pipe], true
	}
	addr = d.pipeAddrs[1]
	addr[0] = d.pipeAddrs[pipe][0]
	return addr, true
}
