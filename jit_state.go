package m68k

import "unsafe"

// guestRegs is the guest state vector shared between the run loop and
// generated code. It lives in the pinned data arena (never on the Go heap)
// because generated code bakes its address and field offsets into immediates.
// Any change to the field order is a rebuild requirement for the emitted
// offsets below.
type guestRegs struct {
	regs     [16]uint32 // D0-D7, A0-A7
	pcp      uint32     // PC as an offset into guest RAM (host pointer = RAM base + pcp)
	pc       uint32     // PC in guest address space (mirror, kept for diagnostics)
	cznv     uint32     // C/Z/N/V in host-flag layout (AL=V, AH=LAHF byte)
	x        uint32     // X flag in bit 0, its own word
	spcflags uint32     // control word: non-zero means "leave the cache"
	scratch  [4]uint32  // backing store for scratch virtual registers
	_        uint32     // pad fp to 8-byte alignment
	fp       [8]float64 // FP0-FP7
	fpResult float64
}

// Baked state offsets for generated code. Derived once so the emitters can
// take them as plain displacements off the state base register.
var (
	offRegs     = int32(unsafe.Offsetof(guestRegs{}.regs))
	offPCP      = int32(unsafe.Offsetof(guestRegs{}.pcp))
	offPC       = int32(unsafe.Offsetof(guestRegs{}.pc))
	offCZNV     = int32(unsafe.Offsetof(guestRegs{}.cznv))
	offX        = int32(unsafe.Offsetof(guestRegs{}.x))
	offSpcflags = int32(unsafe.Offsetof(guestRegs{}.spcflags))
	offScratch  = int32(unsafe.Offsetof(guestRegs{}.scratch))
	offFP       = int32(unsafe.Offsetof(guestRegs{}.fp))
	offFPResult = int32(unsafe.Offsetof(guestRegs{}.fpResult))
)

// Control word bits. Generated code only tests the word against zero; the
// individual bits matter to the run loop.
const (
	spcInterrupt uint32 = 1 << 0 // pending interrupt wants service
	spcStop      uint32 = 1 << 1 // CPU executed STOP
	spcHalt      uint32 = 1 << 2 // double bus fault
	spcExit      uint32 = 1 << 3 // external request to leave the cache
)

// Virtual (mid-layer) register indices. 0-15 map straight onto the guest
// D0-A7 file; the rest are translator-internal.
const (
	vPCP         = 16 // guest PC, offset form (pcp field)
	vFlagX       = 17 // the 68k X flag as an independent word
	vFlagTmp     = 18 // spilled host flags (cznv field)
	vNextHandler = 19 // register-shaped slot, never written to memory
	vS1          = 20 // scratch, discarded after every compile handler
	vS2          = 21
	vS3          = 22
	vS4          = 23
	vRegCount    = 24
)

// FP virtual registers: 0-7 map to guest FP0-FP7.
const (
	fvResult   = 8
	fvS1       = 9
	fvRegCount = 10
)

// vregMemOffset returns the canonical in-memory location of a virtual
// register as a displacement into guestRegs, or -1 for slots that must
// never be flushed.
func vregMemOffset(r int) int32 {
	switch {
	case r < 16:
		return offRegs + int32(r)*4
	case r == vPCP:
		return offPCP
	case r == vFlagX:
		return offX
	case r == vFlagTmp:
		return offCZNV
	case r == vNextHandler:
		return -1
	default: // scratch
		return offScratch + int32(r-vS1)*4
	}
}

// cznv layout, from the LAHF/SETO spill sequence: AL carries the overflow
// byte, AH the LAHF image (CF bit 0, ZF bit 6, SF bit 7).
const (
	cznvV = 1 << 0
	cznvC = 1 << 8
	cznvZ = 1 << 14
	cznvN = 1 << 15
)

// packCCR folds the cznv word and the x word into a 68k CCR byte
// (X bit 4, N bit 3, Z bit 2, V bit 1, C bit 0).
func packCCR(cznv, x uint32) uint8 {
	var ccr uint8
	if cznv&cznvC != 0 {
		ccr |= 0x01
	}
	if cznv&0xFF != 0 { // any non-zero overflow byte means V
		ccr |= 0x02
	}
	if cznv&cznvZ != 0 {
		ccr |= 0x04
	}
	if cznv&cznvN != 0 {
		ccr |= 0x08
	}
	if x&1 != 0 {
		ccr |= 0x10
	}
	return ccr
}

// unpackCCR is the inverse of packCCR.
func unpackCCR(ccr uint8) (cznv, x uint32) {
	if ccr&0x01 != 0 {
		cznv |= cznvC
	}
	if ccr&0x02 != 0 {
		cznv |= cznvV
	}
	if ccr&0x04 != 0 {
		cznv |= cznvZ
	}
	if ccr&0x08 != 0 {
		cznv |= cznvN
	}
	if ccr&0x10 != 0 {
		x = 1
	}
	return
}

// syncToGuest copies the interpreter's architectural state into the guest
// state vector before entering the cache.
func (c *CPU) syncToGuest() {
	g := c.jit.regs
	copy(g.regs[0:8], c.reg.D[:])
	copy(g.regs[8:16], c.reg.A[:])
	g.pcp = c.reg.PC & 0xFFFFFF
	g.pc = c.reg.PC
	g.cznv, g.x = unpackCCR(uint8(c.reg.SR & 0x1F))
	g.spcflags = c.specialFlags()
}

// syncFromGuest copies the guest state vector back into the interpreter
// after leaving the cache.
func (c *CPU) syncFromGuest() {
	g := c.jit.regs
	copy(c.reg.D[:], g.regs[0:8])
	copy(c.reg.A[:], g.regs[8:16])
	c.reg.PC = (c.reg.PC &^ 0xFFFFFF) | (g.pcp & 0xFFFFFF)
	ccr := packCCR(g.cznv, g.x)
	c.reg.SR = (c.reg.SR & 0xFF00) | uint16(ccr)
}

// specialFlags derives the control word from interpreter state. Compiled
// code polls it at chained jumps and exits the cache when non-zero.
func (c *CPU) specialFlags() uint32 {
	var f uint32
	if c.pendingIPL != 0 {
		f |= spcInterrupt
	}
	if c.stopped {
		f |= spcStop
	}
	if c.halted {
		f |= spcHalt
	}
	return f
}
