package m68k

import "fmt"

// Host register numbers (x86-64). The low three bits go into ModR/M; bit 3
// selects the REX extension.
const (
	hRAX = 0
	hRCX = 1
	hRDX = 2
	hRBX = 3
	hRSP = 4
	hRBP = 5
	hRSI = 6
	hRDI = 7
	hR8  = 8
	hR9  = 9
	hR10 = 10
	hR11 = 11
	hR12 = 12
	hR13 = 13
	hR14 = 14
	hR15 = 15

	hNone = -1
)

// Reserved registers. Generated code keeps the cache-tag table, the guest
// state vector and the guest RAM base pinned so state and memory operands
// are plain base+displacement forms.
const (
	hTags  = hR13 // cache-tag table base
	hState = hR14 // guest state vector base
	hRAM   = hR15 // guest RAM base (direct-memory fast path)
)

// Native condition codes (x86 tttn encoding).
const (
	ccO  = 0
	ccNO = 1
	ccB  = 2 // below / carry set
	ccAE = 3 // above-or-equal / carry clear
	ccE  = 4
	ccNE = 5
	ccBE = 6
	ccA  = 7
	ccS  = 8
	ccNS = 9
	ccL  = 12
	ccGE = 13
	ccLE = 14
	ccG  = 15
)

// Shift-group subopcodes (the /r field of C0/C1/D0-D3).
const (
	shROL = 0
	shROR = 1
	shRCL = 2
	shRCR = 3
	shSHL = 4
	shSHR = 5
	shSAR = 7
)

// ALU-group major opcodes (op<<3 family).
const (
	aluADD = 0
	aluOR  = 1
	aluADC = 2
	aluSBB = 3
	aluAND = 4
	aluSUB = 5
	aluXOR = 6
	aluCMP = 7
)

// memOp is an addressing-mode tuple. base/index of hNone mean absent; an
// absent base with an absent index is a 32-bit absolute address (only used
// for arena data reached through a register in practice).
type memOp struct {
	disp  int32
	base  int
	index int
	scale int // 1, 2, 4, 8; ignored when index is absent
}

// stateMem addresses a guest state vector field.
func stateMem(off int32) memOp {
	return memOp{disp: off, base: hState, index: hNone, scale: 1}
}

// ramMem addresses guest memory through the pinned RAM base, with the
// 24-bit guest address in a host register.
func ramMem(addrReg int) memOp {
	return memOp{base: hRAM, index: addrReg, scale: 1}
}

// baseMem addresses through an arbitrary host register.
func baseMem(base int, disp int32) memOp {
	return memOp{disp: disp, base: base, index: hNone, scale: 1}
}

// asm encodes x86-64 instructions at a write cursor inside the translation
// cache. All errors are sticky: the first failure poisons the assembler and
// the driver discards the block (spec: a bad immediate is fatal to the
// block, never to the process).
type asm struct {
	buf []byte
	pos int
	err error
}

func (a *asm) fail(format string, args ...interface{}) {
	if a.err == nil {
		a.err = fmt.Errorf("codegen: "+format, args...)
	}
}

// here returns the current cursor position.
func (a *asm) here() int { return a.pos }

// setPos rewinds the cursor (used to discard an aborted block).
func (a *asm) setPos(p int) { a.pos = p }

func (a *asm) room(n int) bool {
	if a.pos+n > len(a.buf) {
		a.fail("out of cache space")
		return false
	}
	return true
}

func (a *asm) emit8(b byte) {
	if a.err != nil || !a.room(1) {
		return
	}
	a.buf[a.pos] = b
	a.pos++
}

func (a *asm) emit16(v uint16) {
	a.emit8(byte(v))
	a.emit8(byte(v >> 8))
}

func (a *asm) emit32(v uint32) {
	a.emit8(byte(v))
	a.emit8(byte(v >> 8))
	a.emit8(byte(v >> 16))
	a.emit8(byte(v >> 24))
}

func (a *asm) emit64(v uint64) {
	a.emit32(uint32(v))
	a.emit32(uint32(v >> 32))
}

func fitsS8(v int32) bool  { return v >= -128 && v <= 127 }
func fitsU5(v int32) bool  { return v >= 0 && v <= 31 }
func fitsS32(v int64) bool { return v >= -1<<31 && v < 1<<31 }

// checkImm8 verifies a value fits a signed or unsigned 8-bit field.
func (a *asm) checkImm8(v int32) {
	if v < -128 || v > 255 {
		a.fail("immediate %#x does not fit 8 bits", v)
	}
}

func (a *asm) checkImm16(v int32) {
	if v < -32768 || v > 65535 {
		a.fail("immediate %#x does not fit 16 bits", v)
	}
}

// rex synthesizes a REX prefix from the extension bits and emits it only if
// required. force is used for byte operations touching SPL/BPL/SIL/DIL,
// which are unreachable without a (possibly empty) REX prefix.
func (a *asm) rex(w, r, x, b int, force bool) {
	v := byte(0x40 | w<<3 | (r>>3)<<2 | (x>>3)<<1 | b>>3)
	if v != 0x40 || force {
		a.emit8(v)
	}
}

// byteRegForce reports whether encoding reg as a byte register needs an
// empty REX prefix (to select SPL-DIL rather than AH-BH).
func byteRegForce(regs ...int) bool {
	for _, r := range regs {
		if r >= hRSP && r <= hRDI {
			return true
		}
	}
	return false
}

// modrm emits a register-direct ModR/M byte.
func (a *asm) modrm(reg, rm int) {
	a.emit8(byte(0xC0 | (reg&7)<<3 | rm&7))
}

// mem emits the ModR/M, optional SIB and displacement for a memory operand.
// The minimal encoding is chosen: no displacement when possible, 8-bit when
// it fits, else 32-bit. A base of RSP/R12 forces a SIB byte; RBP/R13 cannot
// use the zero-displacement form.
func (a *asm) mem(reg int, m memOp) {
	reg &= 7
	if m.index != hNone && m.index&7 == hRSP {
		a.fail("RSP cannot be an index register")
		return
	}
	var scaleBits byte
	switch m.scale {
	case 0, 1:
		scaleBits = 0
	case 2:
		scaleBits = 1
	case 4:
		scaleBits = 2
	case 8:
		scaleBits = 3
	default:
		a.fail("illegal scale %d", m.scale)
		return
	}

	if m.base == hNone && m.index == hNone {
		// Absolute 32-bit: ModR/M 00 reg 100, SIB none/none/101, disp32.
		a.emit8(byte(0x00 | reg<<3 | 0x04))
		a.emit8(0x25)
		a.emit32(uint32(m.disp))
		return
	}

	needSIB := m.index != hNone || (m.base != hNone && m.base&7 == hRSP)

	// Index without base: must use SIB with base=101 and disp32.
	if m.base == hNone {
		a.emit8(byte(0x00 | reg<<3 | 0x04))
		a.emit8(scaleBits<<6 | byte(m.index&7)<<3 | 0x05)
		a.emit32(uint32(m.disp))
		return
	}

	var mod byte
	switch {
	case m.disp == 0 && m.base&7 != hRBP:
		mod = 0x00
	case fitsS8(m.disp):
		mod = 0x40
	default:
		mod = 0x80
	}

	if needSIB {
		a.emit8(mod | byte(reg)<<3 | 0x04)
		idx := byte(0x04) // no index
		if m.index != hNone {
			idx = byte(m.index & 7)
		}
		a.emit8(scaleBits<<6 | idx<<3 | byte(m.base&7))
	} else {
		a.emit8(mod | byte(reg)<<3 | byte(m.base&7))
	}

	switch mod {
	case 0x40:
		a.emit8(byte(m.disp))
	case 0x80:
		a.emit32(uint32(m.disp))
	}
}

func memIndex(m memOp) int {
	if m.index == hNone {
		return 0
	}
	return m.index
}

func memBase(m memOp) int {
	if m.base == hNone {
		return 0
	}
	return m.base
}

/* --- moves --------------------------------------------------------------- */

// movlRI loads a 32-bit immediate (implicitly zeroing the upper half).
func (a *asm) movlRI(r int, imm uint32) {
	a.rex(0, 0, 0, r, false)
	a.emit8(0xB8 | byte(r&7))
	a.emit32(imm)
}

// movqRI is the movabs form: a full 64-bit immediate load.
func (a *asm) movqRI(r int, imm uint64) {
	a.rex(1, 0, 0, r, false)
	a.emit8(0xB8 | byte(r&7))
	a.emit64(imm)
}

// movwRI loads a 16-bit immediate into the low word of a register.
func (a *asm) movwRI(r int, imm uint16) {
	a.emit8(0x66)
	a.rex(0, 0, 0, r, false)
	a.emit8(0xB8 | byte(r&7))
	a.emit16(imm)
}

// movbRI loads an 8-bit immediate into the low byte of a register.
func (a *asm) movbRI(r int, imm uint8) {
	a.rex(0, 0, 0, r, byteRegForce(r))
	a.emit8(0xB0 | byte(r&7))
	a.emit8(imm)
}

func (a *asm) movlRR(d, s int) {
	a.rex(0, s, 0, d, false)
	a.emit8(0x89)
	a.modrm(s, d)
}

func (a *asm) movwRR(d, s int) {
	a.emit8(0x66)
	a.rex(0, s, 0, d, false)
	a.emit8(0x89)
	a.modrm(s, d)
}

func (a *asm) movbRR(d, s int) {
	a.rex(0, s, 0, d, byteRegForce(d, s))
	a.emit8(0x88)
	a.modrm(s, d)
}

func (a *asm) movlRM(d int, m memOp) {
	a.rex(0, d, memIndex(m), memBase(m), false)
	a.emit8(0x8B)
	a.mem(d, m)
}

func (a *asm) movlMR(m memOp, s int) {
	a.rex(0, s, memIndex(m), memBase(m), false)
	a.emit8(0x89)
	a.mem(s, m)
}

func (a *asm) movwRM(d int, m memOp) {
	a.emit8(0x66)
	a.rex(0, d, memIndex(m), memBase(m), false)
	a.emit8(0x8B)
	a.mem(d, m)
}

func (a *asm) movwMR(m memOp, s int) {
	a.emit8(0x66)
	a.rex(0, s, memIndex(m), memBase(m), false)
	a.emit8(0x89)
	a.mem(s, m)
}

func (a *asm) movbRM(d int, m memOp) {
	a.rex(0, d, memIndex(m), memBase(m), byteRegForce(d))
	a.emit8(0x8A)
	a.mem(d, m)
}

func (a *asm) movbMR(m memOp, s int) {
	a.rex(0, s, memIndex(m), memBase(m), byteRegForce(s))
	a.emit8(0x88)
	a.mem(s, m)
}

func (a *asm) movlMI(m memOp, imm uint32) {
	a.rex(0, 0, memIndex(m), memBase(m), false)
	a.emit8(0xC7)
	a.mem(0, m)
	a.emit32(imm)
}

func (a *asm) movwMI(m memOp, imm uint16) {
	a.emit8(0x66)
	a.rex(0, 0, memIndex(m), memBase(m), false)
	a.emit8(0xC7)
	a.mem(0, m)
	a.emit16(imm)
}

func (a *asm) movbMI(m memOp, imm uint8) {
	a.rex(0, 0, memIndex(m), memBase(m), false)
	a.emit8(0xC6)
	a.mem(0, m)
	a.emit8(imm)
}

/* --- widening moves ------------------------------------------------------ */

func (a *asm) movzx8lRR(d, s int) {
	a.rex(0, d, 0, s, byteRegForce(s))
	a.emit8(0x0F)
	a.emit8(0xB6)
	a.modrm(d, s)
}

func (a *asm) movzx16lRR(d, s int) {
	a.rex(0, d, 0, s, false)
	a.emit8(0x0F)
	a.emit8(0xB7)
	a.modrm(d, s)
}

func (a *asm) movsx8lRR(d, s int) {
	a.rex(0, d, 0, s, byteRegForce(s))
	a.emit8(0x0F)
	a.emit8(0xBE)
	a.modrm(d, s)
}

// movsx8wRR sign-extends a byte into a 16-bit register (EXT.W).
func (a *asm) movsx8wRR(d, s int) {
	a.emit8(0x66)
	a.rex(0, d, 0, s, byteRegForce(s))
	a.emit8(0x0F)
	a.emit8(0xBE)
	a.modrm(d, s)
}

func (a *asm) movsx16lRR(d, s int) {
	a.rex(0, d, 0, s, false)
	a.emit8(0x0F)
	a.emit8(0xBF)
	a.modrm(d, s)
}

func (a *asm) movzx16lRM(d int, m memOp) {
	a.rex(0, d, memIndex(m), memBase(m), false)
	a.emit8(0x0F)
	a.emit8(0xB7)
	a.mem(d, m)
}

func (a *asm) movzx8lRM(d int, m memOp) {
	a.rex(0, d, memIndex(m), memBase(m), false)
	a.emit8(0x0F)
	a.emit8(0xB6)
	a.mem(d, m)
}

/* --- ALU ----------------------------------------------------------------- */

func (a *asm) alulRR(op, d, s int) {
	a.rex(0, s, 0, d, false)
	a.emit8(byte(op<<3 | 0x01))
	a.modrm(s, d)
}

func (a *asm) aluwRR(op, d, s int) {
	a.emit8(0x66)
	a.alulRR(op, d, s)
}

func (a *asm) alubRR(op, d, s int) {
	a.rex(0, s, 0, d, byteRegForce(d, s))
	a.emit8(byte(op << 3))
	a.modrm(s, d)
}

func (a *asm) alulRI(op, r int, imm int32) {
	a.rex(0, 0, 0, r, false)
	if fitsS8(imm) {
		a.emit8(0x83)
		a.modrm(op, r)
		a.emit8(byte(imm))
	} else {
		a.emit8(0x81)
		a.modrm(op, r)
		a.emit32(uint32(imm))
	}
}

func (a *asm) aluwRI(op, r int, imm int32) {
	a.checkImm16(imm)
	a.emit8(0x66)
	a.rex(0, 0, 0, r, false)
	if fitsS8(imm) {
		a.emit8(0x83)
		a.modrm(op, r)
		a.emit8(byte(imm))
	} else {
		a.emit8(0x81)
		a.modrm(op, r)
		a.emit16(uint16(imm))
	}
}

func (a *asm) alubRI(op, r int, imm int32) {
	a.checkImm8(imm)
	a.rex(0, 0, 0, r, byteRegForce(r))
	a.emit8(0x80)
	a.modrm(op, r)
	a.emit8(byte(imm))
}

func (a *asm) alulRM(op, d int, m memOp) {
	a.rex(0, d, memIndex(m), memBase(m), false)
	a.emit8(byte(op<<3 | 0x03))
	a.mem(d, m)
}

func (a *asm) alulMR(op int, m memOp, s int) {
	a.rex(0, s, memIndex(m), memBase(m), false)
	a.emit8(byte(op<<3 | 0x01))
	a.mem(s, m)
}

func (a *asm) alulMI(op int, m memOp, imm int32) {
	a.rex(0, 0, memIndex(m), memBase(m), false)
	if fitsS8(imm) {
		a.emit8(0x83)
		a.mem(op, m)
		a.emit8(byte(imm))
	} else {
		a.emit8(0x81)
		a.mem(op, m)
		a.emit32(uint32(imm))
	}
}

// cmpqRM compares a full 64-bit register against memory (pointer guard in
// the non-direct block handler).
func (a *asm) cmpqRM(r int, m memOp) {
	a.rex(1, r, memIndex(m), memBase(m), false)
	a.emit8(0x3B)
	a.mem(r, m)
}

func (a *asm) testlRR(d, s int) {
	a.rex(0, s, 0, d, false)
	a.emit8(0x85)
	a.modrm(s, d)
}

func (a *asm) testlRI(r int, imm uint32) {
	a.rex(0, 0, 0, r, false)
	a.emit8(0xF7)
	a.modrm(0, r)
	a.emit32(imm)
}

/* --- shifts & rotates ---------------------------------------------------- */

func (a *asm) shiftlRI(sub, r int, count int32) {
	if !fitsU5(count) {
		a.fail("shift count %d out of range", count)
		return
	}
	a.rex(0, 0, 0, r, false)
	if count == 1 {
		a.emit8(0xD1)
		a.modrm(sub, r)
		return
	}
	a.emit8(0xC1)
	a.modrm(sub, r)
	a.emit8(byte(count))
}

func (a *asm) shiftwRI(sub, r int, count int32) {
	if count < 0 || count > 15 {
		a.fail("word shift count %d out of range", count)
		return
	}
	a.emit8(0x66)
	a.rex(0, 0, 0, r, false)
	if count == 1 {
		a.emit8(0xD1)
		a.modrm(sub, r)
		return
	}
	a.emit8(0xC1)
	a.modrm(sub, r)
	a.emit8(byte(count))
}

func (a *asm) shiftbRI(sub, r int, count int32) {
	if count < 0 || count > 7 {
		a.fail("byte shift count %d out of range", count)
		return
	}
	a.rex(0, 0, 0, r, byteRegForce(r))
	if count == 1 {
		a.emit8(0xD0)
		a.modrm(sub, r)
		return
	}
	a.emit8(0xC0)
	a.modrm(sub, r)
	a.emit8(byte(count))
}

// shiftlRCL shifts by the count in CL.
func (a *asm) shiftlRCL(sub, r int) {
	a.rex(0, 0, 0, r, false)
	a.emit8(0xD3)
	a.modrm(sub, r)
}

func (a *asm) shiftwRCL(sub, r int) {
	a.emit8(0x66)
	a.shiftlRCL(sub, r)
}

func (a *asm) shiftbRCL(sub, r int) {
	a.rex(0, 0, 0, r, byteRegForce(r))
	a.emit8(0xD2)
	a.modrm(sub, r)
}

/* --- unary --------------------------------------------------------------- */

func (a *asm) neglR(r int) {
	a.rex(0, 0, 0, r, false)
	a.emit8(0xF7)
	a.modrm(3, r)
}

func (a *asm) negwR(r int) {
	a.emit8(0x66)
	a.neglR(r)
}

func (a *asm) negbR(r int) {
	a.rex(0, 0, 0, r, byteRegForce(r))
	a.emit8(0xF6)
	a.modrm(3, r)
}

func (a *asm) notlR(r int) {
	a.rex(0, 0, 0, r, false)
	a.emit8(0xF7)
	a.modrm(2, r)
}

func (a *asm) notwR(r int) {
	a.emit8(0x66)
	a.notlR(r)
}

func (a *asm) notbR(r int) {
	a.rex(0, 0, 0, r, byteRegForce(r))
	a.emit8(0xF6)
	a.modrm(2, r)
}

func (a *asm) imullRR(d, s int) {
	a.rex(0, d, 0, s, false)
	a.emit8(0x0F)
	a.emit8(0xAF)
	a.modrm(d, s)
}

func (a *asm) bswaplR(r int) {
	a.rex(0, 0, 0, r, false)
	a.emit8(0x0F)
	a.emit8(0xC8 | byte(r&7))
}

/* --- lea ----------------------------------------------------------------- */

func (a *asm) leal(d int, m memOp) {
	a.rex(0, d, memIndex(m), memBase(m), false)
	a.emit8(0x8D)
	a.mem(d, m)
}

/* --- bit test ------------------------------------------------------------ */

func (a *asm) btlRI(r int, bit int32) {
	if bit < 0 || bit > 31 {
		a.fail("bit index %d out of range", bit)
		return
	}
	a.rex(0, 0, 0, r, false)
	a.emit8(0x0F)
	a.emit8(0xBA)
	a.modrm(4, r)
	a.emit8(byte(bit))
}

func (a *asm) btlRR(r, bit int) {
	a.rex(0, bit, 0, r, false)
	a.emit8(0x0F)
	a.emit8(0xA3)
	a.modrm(bit, r)
}

/* --- conditionals -------------------------------------------------------- */

func (a *asm) setccR(cc, r int) {
	a.rex(0, 0, 0, r, byteRegForce(r))
	a.emit8(0x0F)
	a.emit8(0x90 | byte(cc))
	a.modrm(0, r)
}

func (a *asm) cmovlRR(cc, d, s int) {
	a.rex(0, d, 0, s, false)
	a.emit8(0x0F)
	a.emit8(0x40 | byte(cc))
	a.modrm(d, s)
}

func (a *asm) cmovlRM(cc, d int, m memOp) {
	a.rex(0, d, memIndex(m), memBase(m), false)
	a.emit8(0x0F)
	a.emit8(0x40 | byte(cc))
	a.mem(d, m)
}

// cmovqRM is the 64-bit conditional load (dispatch-tail pointer select).
func (a *asm) cmovqRM(cc, d int, m memOp) {
	a.rex(1, d, memIndex(m), memBase(m), false)
	a.emit8(0x0F)
	a.emit8(0x40 | byte(cc))
	a.mem(d, m)
}

/* --- control flow -------------------------------------------------------- */

// jccB emits a short conditional branch with a placeholder displacement and
// returns the position of the displacement byte for later patching.
func (a *asm) jccB(cc int) int {
	a.emit8(0x70 | byte(cc))
	p := a.pos
	a.emit8(0)
	return p
}

// jccL emits a near conditional branch with a placeholder rel32 and returns
// the position of the displacement field.
func (a *asm) jccL(cc int) int {
	a.emit8(0x0F)
	a.emit8(0x80 | byte(cc))
	p := a.pos
	a.emit32(0)
	return p
}

// jccLTo emits a near conditional branch to a known cache position.
func (a *asm) jccLTo(cc, target int) {
	p := a.jccL(cc)
	a.writeRel32(p, target)
}

func (a *asm) jmpB() int {
	a.emit8(0xEB)
	p := a.pos
	a.emit8(0)
	return p
}

func (a *asm) jmpL() int {
	a.emit8(0xE9)
	p := a.pos
	a.emit32(0)
	return p
}

func (a *asm) jmpLTo(target int) {
	p := a.jmpL()
	a.writeRel32(p, target)
}

func (a *asm) jmpR(r int) {
	a.rex(0, 0, 0, r, false)
	a.emit8(0xFF)
	a.modrm(4, r)
}

// jmpM is the indirect dispatch jump through a memory operand.
func (a *asm) jmpM(m memOp) {
	a.rex(0, 0, memIndex(m), memBase(m), false)
	a.emit8(0xFF)
	a.mem(4, m)
}

// patchRel8 resolves a short-branch displacement to the current cursor.
func (a *asm) patchRel8(p int) {
	if a.err != nil {
		return
	}
	d := a.pos - (p + 1)
	if !fitsS8(int32(d)) {
		a.fail("short branch target out of range (%d)", d)
		return
	}
	a.buf[p] = byte(d)
}

// patchRel32 resolves a near-branch displacement to the current cursor.
func (a *asm) patchRel32(p int) {
	a.writeRel32(p, a.pos)
}

// writeRel32 stores target-relative displacement into the rel32 field at p.
func (a *asm) writeRel32(p, target int) {
	if a.err != nil {
		return
	}
	d := uint32(target - (p + 4))
	a.buf[p] = byte(d)
	a.buf[p+1] = byte(d >> 8)
	a.buf[p+2] = byte(d >> 16)
	a.buf[p+3] = byte(d >> 24)
}

/* --- stack, flags, misc -------------------------------------------------- */

func (a *asm) pushR(r int) {
	a.rex(0, 0, 0, r, false)
	a.emit8(0x50 | byte(r&7))
}

func (a *asm) popR(r int) {
	a.rex(0, 0, 0, r, false)
	a.emit8(0x58 | byte(r&7))
}

func (a *asm) lahf() { a.emit8(0x9F) }
func (a *asm) sahf() { a.emit8(0x9E) }
func (a *asm) ret()  { a.emit8(0xC3) }

// nopTable holds recommended multi-byte NOP sequences, 1 through 9 bytes.
var nopTable = [][]byte{
	{0x90},
	{0x66, 0x90},
	{0x0F, 0x1F, 0x00},
	{0x0F, 0x1F, 0x40, 0x00},
	{0x0F, 0x1F, 0x44, 0x00, 0x00},
	{0x66, 0x0F, 0x1F, 0x44, 0x00, 0x00},
	{0x0F, 0x1F, 0x80, 0x00, 0x00, 0x00, 0x00},
	{0x0F, 0x1F, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
	{0x66, 0x0F, 0x1F, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
}

// align pads with NOPs to the next multiple of n (a power of two).
func (a *asm) align(n int) {
	if a.err != nil {
		return
	}
	pad := (n - a.pos&(n-1)) & (n - 1)
	for pad > 0 {
		chunk := pad
		if chunk > len(nopTable) {
			chunk = len(nopTable)
		}
		seq := nopTable[chunk-1]
		for _, b := range seq {
			a.emit8(b)
		}
		pad -= chunk
	}
}

/* --- SSE2 scalar doubles (FPU subset) ------------------------------------ */

// movsdXM loads a scalar double into an XMM register.
func (a *asm) movsdXM(x int, m memOp) {
	a.emit8(0xF2)
	a.rex(0, x, memIndex(m), memBase(m), false)
	a.emit8(0x0F)
	a.emit8(0x10)
	a.mem(x, m)
}

// movsdMX stores a scalar double from an XMM register.
func (a *asm) movsdMX(m memOp, x int) {
	a.emit8(0xF2)
	a.rex(0, x, memIndex(m), memBase(m), false)
	a.emit8(0x0F)
	a.emit8(0x11)
	a.mem(x, m)
}

func (a *asm) movsdXX(d, s int) {
	a.emit8(0xF2)
	a.rex(0, d, 0, s, false)
	a.emit8(0x0F)
	a.emit8(0x10)
	a.modrm(d, s)
}
