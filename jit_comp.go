package m68k

// Compile handlers: one function per instruction family, registered over
// the same encoding enumerations the interpreter uses. Handlers speak in
// virtual registers and mid-layer operations only — nothing here knows
// the host ISA. A handler validates the addressing modes it supports
// before emitting anything and returns false to hand the instruction to
// the interpreter.

func init() {
	registerCompMOVE()
	registerCompMOVEQ()
	registerCompMOVEA()
	registerCompADDSUB()
	registerCompADDQSUBQ()
	registerCompADDSUBI()
	registerCompADDSUBA()
	registerCompADDSUBX()
	registerCompCMP()
	registerCompCMPA()
	registerCompCMPI()
	registerCompLogic()
	registerCompLogicI()
	registerCompCLR()
	registerCompNOTNEG()
	registerCompTST()
	registerCompEXT()
	registerCompSWAP()
	registerCompEXG()
	registerCompShifts()
	registerCompBTST()
	registerCompLEA()
	registerCompBcc()
	registerCompScc()
	registerCompJMP()
	registerCompRTS()
	registerCompNOP()
}

/* --- compile-time effective addresses ------------------------------------ */

const (
	ceaData = iota // Dn
	ceaAddr        // An
	ceaMem         // guest address held in vreg
	ceaImm         // immediate
)

// cea is a compile-time resolved effective address: the translator either
// knows the operand's virtual register, its constant value, or a virtual
// register holding the guest address.
type cea struct {
	kind int
	vreg int
	imm  uint32
}

// compEAOK reports whether the translator handles this addressing mode.
// Anything else makes the handler give up before emitting.
func compEAOK(mode, reg uint8, sz Size, write bool) bool {
	switch mode {
	case 0:
		return true
	case 1:
		return sz != Byte && !write
	case 2, 3, 4, 5, 6:
		return true
	case 7:
		switch reg {
		case 0, 1:
			return true
		case 2, 3, 4:
			return !write
		}
	}
	return false
}

// resolveCompEA decodes an EA field, consuming extension words and
// emitting any address arithmetic and side effects (post-increment,
// pre-decrement). aScr/iScr are the scratch virtual registers for the
// address and a sign-extended index.
func (p *compiler) resolveCompEA(mode, reg uint8, sz Size, aScr, iScr int) cea {
	an := 8 + int(reg)
	switch mode {
	case 0:
		return cea{kind: ceaData, vreg: int(reg)}

	case 1:
		return cea{kind: ceaAddr, vreg: an}

	case 2:
		return cea{kind: ceaMem, vreg: an}

	case 3:
		inc := uint32(sz)
		if reg == 7 && sz == Byte {
			inc = 2 // SP always stays word-aligned
		}
		p.movlRR(aScr, an)
		p.leaDisp(an, an, int32(inc))
		return cea{kind: ceaMem, vreg: aScr}

	case 4:
		dec := uint32(sz)
		if reg == 7 && sz == Byte {
			dec = 2
		}
		p.leaDisp(an, an, -int32(dec))
		return cea{kind: ceaMem, vreg: an}

	case 5:
		disp := int16(p.getWord())
		p.leaDisp(aScr, an, int32(disp))
		return cea{kind: ceaMem, vreg: aScr}

	case 6:
		return p.resolveIndex(an, p.getWord(), aScr, iScr)

	case 7:
		switch reg {
		case 0:
			addr := uint32(int32(int16(p.getWord())))
			p.setConst(aScr, addr)
			return cea{kind: ceaMem, vreg: aScr}
		case 1:
			p.setConst(aScr, p.getLong())
			return cea{kind: ceaMem, vreg: aScr}
		case 2:
			pc := p.pcOff // PC points at the extension word
			disp := int16(p.getWord())
			p.setConst(aScr, uint32(int32(pc)+int32(disp)))
			return cea{kind: ceaMem, vreg: aScr}
		case 3:
			pc := p.pcOff
			ext := p.getWord()
			p.setConst(aScr, pc)
			return p.resolveIndex(aScr, ext, aScr, iScr)
		case 4:
			switch sz {
			case Byte:
				return cea{kind: ceaImm, imm: uint32(p.getWord() & 0xFF)}
			case Word:
				return cea{kind: ceaImm, imm: uint32(p.getWord())}
			default:
				return cea{kind: ceaImm, imm: p.getLong()}
			}
		}
	}
	p.abort("unsupported EA %d/%d reached resolve", mode, reg)
	return cea{}
}

// resolveIndex computes a base + d8(Xn) brief-format indexed address.
func (p *compiler) resolveIndex(baseVreg int, ext uint16, aScr, iScr int) cea {
	disp := int32(int8(ext & 0xFF))
	xn := int((ext >> 12) & 7)
	if ext&0x8000 != 0 {
		xn += 8
	}
	idx := xn
	if ext&0x0800 == 0 {
		p.signExtend16(iScr, xn)
		idx = iScr
	}
	p.leaIndexed(aScr, baseVreg, idx, 1, disp)
	return cea{kind: ceaMem, vreg: aScr}
}

// ceaVreg makes the operand readable as a virtual register, loading
// memory operands into tmp.
func (p *compiler) ceaVreg(e cea, sz Size, tmp int) int {
	switch e.kind {
	case ceaData, ceaAddr:
		return e.vreg
	case ceaImm:
		p.setConst(tmp, e.imm&sz.Mask())
		return tmp
	default:
		switch sz {
		case Long:
			p.readmemL(tmp, e.vreg)
		case Word:
			p.readmemW(tmp, e.vreg)
		default:
			p.readmemB(tmp, e.vreg)
		}
		return tmp
	}
}

// ceaWrite stores a virtual register to the operand location.
func (p *compiler) ceaWrite(e cea, sz Size, s int) {
	switch e.kind {
	case ceaData:
		switch sz {
		case Long:
			p.movlRR(e.vreg, s)
		case Word:
			p.movwRR(e.vreg, s)
		default:
			p.movbRR(e.vreg, s)
		}
	case ceaAddr:
		p.movlRR(e.vreg, s)
	case ceaMem:
		switch sz {
		case Long:
			p.writememL(e.vreg, s)
		case Word:
			p.writememW(e.vreg, s)
		default:
			p.writememB(e.vreg, s)
		}
	}
}

// liveNZ00 materializes N and Z from a just-written virtual register with
// V and C cleared — the standard 68k move/logic flag pattern.
func (p *compiler) liveNZ00(r int, sz Size) {
	switch sz {
	case Long:
		p.cmplRI(r, 0)
	case Word:
		p.cmpwRI(r, 0)
	default:
		p.cmpbRI(r, 0)
	}
	p.liveFlags()
}

// sizeField decodes the standard bits 7-6 size field.
func sizeField(bits uint16) Size {
	switch bits {
	case 0:
		return Byte
	case 1:
		return Word
	}
	return Long
}

/* --- MOVE ---------------------------------------------------------------- */

// moveSize decodes MOVE's bits 13-12 size field.
func moveSize(bits uint16) Size {
	switch bits {
	case 1:
		return Byte
	case 3:
		return Word
	}
	return Long
}

func registerCompMOVE() {
	// Encoding: 00 SS RRR MMM mmm rrr (SS: 1=B, 3=W, 2=L)
	for ss := uint16(1); ss < 4; ss++ {
		for dreg := uint16(0); dreg < 8; dreg++ {
			for dmode := uint16(0); dmode < 8; dmode++ {
				if dmode == 1 { // MOVEA, separate handler
					continue
				}
				if dmode == 7 && dreg > 1 {
					continue
				}
				for smode := uint16(0); smode < 8; smode++ {
					for sreg := uint16(0); sreg < 8; sreg++ {
						if smode == 7 && sreg > 4 {
							continue
						}
						op := ss<<12 | dreg<<9 | dmode<<6 | smode<<3 | sreg
						registerComp(op, compMOVE)
					}
				}
			}
		}
	}
}

func compMOVE(p *compiler, op uint16) bool {
	sz := moveSize(op >> 12)
	smode := uint8((op >> 3) & 7)
	sreg := uint8(op & 7)
	dmode := uint8((op >> 6) & 7)
	dreg := uint8((op >> 9) & 7)

	if !compEAOK(smode, sreg, sz, false) || !compEAOK(dmode, dreg, sz, true) {
		return false
	}
	// Memory-to-memory copies stay with the interpreter.
	if smode >= 2 && dmode >= 2 {
		return false
	}

	// The source value may live in vS1, so the destination EA gets its
	// own scratch pair.
	src := p.resolveCompEA(smode, sreg, sz, vS1, vS2)
	s := p.ceaVreg(src, sz, vS1)
	dst := p.resolveCompEA(dmode, dreg, sz, vS2, vS3)
	p.ceaWrite(dst, sz, s)

	if p.needflags {
		p.liveNZ00(s, sz)
	}
	return true
}

/* --- MOVEQ --------------------------------------------------------------- */

func registerCompMOVEQ() {
	// Encoding: 0111 DDD 0 IIIIIIII
	for dn := uint16(0); dn < 8; dn++ {
		for imm := uint16(0); imm < 256; imm++ {
			registerComp(0x7000|dn<<9|imm, compMOVEQ)
		}
	}
}

func compMOVEQ(p *compiler, op uint16) bool {
	dn := int((op >> 9) & 7)
	val := uint32(int32(int8(op & 0xFF)))
	p.movlRI(dn, val)
	if p.needflags {
		p.liveNZ00(dn, Long)
	}
	return true
}

/* --- MOVEA --------------------------------------------------------------- */

func registerCompMOVEA() {
	// MOVE with destination mode 1: 00 SS RRR 001 mmm rrr (W/L only)
	for _, ss := range []uint16{3, 2} {
		for an := uint16(0); an < 8; an++ {
			for smode := uint16(0); smode < 8; smode++ {
				for sreg := uint16(0); sreg < 8; sreg++ {
					if smode == 7 && sreg > 4 {
						continue
					}
					registerComp(ss<<12|an<<9|1<<6|smode<<3|sreg, compMOVEA)
				}
			}
		}
	}
}

func compMOVEA(p *compiler, op uint16) bool {
	sz := moveSize(op >> 12)
	smode := uint8((op >> 3) & 7)
	sreg := uint8(op & 7)
	an := 8 + int((op>>9)&7)

	if !compEAOK(smode, sreg, sz, false) {
		return false
	}
	src := p.resolveCompEA(smode, sreg, sz, vS1, vS2)
	s := p.ceaVreg(src, sz, vS1)
	if sz == Word {
		// Word sources sign-extend to the full address register.
		p.signExtend16(vS2, s)
		s = vS2
	}
	p.movlRR(an, s)
	return true
}

/* --- ADD / SUB ----------------------------------------------------------- */

func registerCompADDSUB() {
	// ADD: 1101 DDD O SS eee eee   SUB: 1001 DDD O SS eee eee
	for _, base := range []uint16{0xD000, 0x9000} {
		for dn := uint16(0); dn < 8; dn++ {
			for szBits := uint16(0); szBits < 3; szBits++ {
				for mode := uint16(0); mode < 8; mode++ {
					for reg := uint16(0); reg < 8; reg++ {
						if mode == 7 && reg > 4 {
							continue
						}
						if mode == 1 && szBits == 0 {
							continue
						}
						registerComp(base|dn<<9|szBits<<6|mode<<3|reg, compADDSUBtoReg)
					}
				}
				for mode := uint16(2); mode < 8; mode++ {
					for reg := uint16(0); reg < 8; reg++ {
						if mode == 7 && reg > 1 {
							continue
						}
						registerComp(base|dn<<9|(szBits+4)<<6|mode<<3|reg, compADDSUBtoEA)
					}
				}
			}
		}
	}
}

// aluBySize dispatches a register-register ALU op at the guest size.
func (p *compiler) aluBySize(aop int, sz Size, d, s int) {
	switch sz {
	case Long:
		p.alul(aop, d, s)
	case Word:
		p.aluw(aop, d, s)
	default:
		p.alub(aop, d, s)
	}
}

func compADDSUBtoReg(p *compiler, op uint16) bool {
	aop := aluADD
	if op&0x4000 == 0 {
		aop = aluSUB
	}
	dn := int((op >> 9) & 7)
	sz := sizeField((op >> 6) & 3)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if !compEAOK(mode, reg, sz, false) {
		return false
	}
	src := p.resolveCompEA(mode, reg, sz, vS1, vS2)
	s := p.ceaVreg(src, sz, vS1)
	p.aluBySize(aop, sz, dn, s)
	if p.needflags {
		p.liveFlags()
		p.duplicateCarry()
	}
	return true
}

func compADDSUBtoEA(p *compiler, op uint16) bool {
	aop := aluADD
	if op&0x4000 == 0 {
		aop = aluSUB
	}
	dn := int((op >> 9) & 7)
	sz := sizeField(((op >> 6) & 7) - 4)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if !compEAOK(mode, reg, sz, true) {
		return false
	}
	dst := p.resolveCompEA(mode, reg, sz, vS1, vS2)
	d := p.ceaVreg(dst, sz, vS2)
	p.aluBySize(aop, sz, d, dn)
	if p.needflags {
		p.liveFlags()
		p.duplicateCarry()
	}
	p.ceaWrite(dst, sz, d)
	return true
}

/* --- ADDQ / SUBQ --------------------------------------------------------- */

func registerCompADDQSUBQ() {
	// 0101 QQQ D SS eee eee (SS != 11)
	for q := uint16(0); q < 8; q++ {
		for d := uint16(0); d < 2; d++ {
			for szBits := uint16(0); szBits < 3; szBits++ {
				for mode := uint16(0); mode < 8; mode++ {
					for reg := uint16(0); reg < 8; reg++ {
						if mode == 7 && reg > 1 {
							continue
						}
						if mode == 1 && szBits == 0 {
							continue
						}
						registerComp(0x5000|q<<9|d<<8|szBits<<6|mode<<3|reg, compADDQSUBQ)
					}
				}
			}
		}
	}
}

func compADDQSUBQ(p *compiler, op uint16) bool {
	data := int32((op >> 9) & 7)
	if data == 0 {
		data = 8
	}
	sub := op&0x0100 != 0
	sz := sizeField((op >> 6) & 3)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if mode == 1 {
		// Address register target: whole register, no flags.
		if sub {
			data = -data
		}
		p.leaDisp(8+int(reg), 8+int(reg), data)
		return true
	}
	if mode != 0 {
		return false
	}
	aop := aluADD
	if sub {
		aop = aluSUB
	}
	dn := int(reg)
	switch sz {
	case Long:
		p.alulRI(aop, dn, data)
	case Word:
		p.aluwRI(aop, dn, data)
	default:
		p.alubRI(aop, dn, data)
	}
	if p.needflags {
		p.liveFlags()
		p.duplicateCarry()
	}
	return true
}

/* --- ADDI / SUBI --------------------------------------------------------- */

func registerCompADDSUBI() {
	// ADDI: 0000 0110 SS eee eee   SUBI: 0000 0100 SS eee eee
	for _, base := range []uint16{0x0600, 0x0400} {
		for szBits := uint16(0); szBits < 3; szBits++ {
			for mode := uint16(0); mode < 8; mode++ {
				for reg := uint16(0); reg < 8; reg++ {
					if mode == 1 || (mode == 7 && reg > 1) {
						continue
					}
					registerComp(base|szBits<<6|mode<<3|reg, compADDSUBI)
				}
			}
		}
	}
}

func compADDSUBI(p *compiler, op uint16) bool {
	aop := aluADD
	if op&0x0200 == 0 {
		aop = aluSUB
	}
	sz := sizeField((op >> 6) & 3)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if mode != 0 {
		return false
	}
	imm := p.resolveCompEA(7, 4, sz, vS1, vS2).imm
	dn := int(reg)
	switch sz {
	case Long:
		p.alulRI(aop, dn, int32(imm))
	case Word:
		p.aluwRI(aop, dn, int32(imm))
	default:
		p.alubRI(aop, dn, int32(imm))
	}
	if p.needflags {
		p.liveFlags()
		p.duplicateCarry()
	}
	return true
}

/* --- ADDA / SUBA --------------------------------------------------------- */

func registerCompADDSUBA() {
	// 1101/1001 AAA S11 eee eee (S: 0=W, 1=L)
	for _, base := range []uint16{0xD000, 0x9000} {
		for an := uint16(0); an < 8; an++ {
			for s := uint16(0); s < 2; s++ {
				for mode := uint16(0); mode < 8; mode++ {
					for reg := uint16(0); reg < 8; reg++ {
						if mode == 7 && reg > 4 {
							continue
						}
						registerComp(base|an<<9|(3+s<<2)<<6|mode<<3|reg, compADDSUBA)
					}
				}
			}
		}
	}
}

func compADDSUBA(p *compiler, op uint16) bool {
	sub := op&0x4000 == 0
	an := 8 + int((op>>9)&7)
	sz := Word
	if op&0x0100 != 0 {
		sz = Long
	}
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if !compEAOK(mode, reg, sz, false) {
		return false
	}
	src := p.resolveCompEA(mode, reg, sz, vS1, vS2)
	s := p.ceaVreg(src, sz, vS1)
	if sz == Word {
		p.signExtend16(vS2, s)
		s = vS2
	}
	if sub {
		p.subl(an, s)
	} else {
		p.addl(an, s)
	}
	return true
}

/* --- ADDX / SUBX (register form) ----------------------------------------- */

func registerCompADDSUBX() {
	// 1101/1001 XXX 1 SS 00 M YYY, M=0 register form
	for _, base := range []uint16{0xD100, 0x9100} {
		for rx := uint16(0); rx < 8; rx++ {
			for szBits := uint16(0); szBits < 3; szBits++ {
				for ry := uint16(0); ry < 8; ry++ {
					registerComp(base|rx<<9|szBits<<6|ry, compADDSUBX)
				}
			}
		}
	}
}

func compADDSUBX(p *compiler, op uint16) bool {
	// The x86 ZF after adc/sbb cannot reproduce the 68k's sticky Z; give
	// up only when someone actually consumes Z.
	if p.neededMask&ccrZ != 0 {
		return false
	}
	add := op&0x4000 != 0
	rx := int((op >> 9) & 7)
	sz := sizeField((op >> 6) & 3)
	ry := int(op & 7)

	p.clobberFlags() // the carry load below trashes the host C
	p.restoreCarry()
	switch {
	case add && sz == Long:
		p.adcl(rx, ry)
	case add && sz == Word:
		p.adcw(rx, ry)
	case add:
		p.adcb(rx, ry)
	case sz == Long:
		p.sbbl(rx, ry)
	case sz == Word:
		p.sbbw(rx, ry)
	default:
		p.sbbb(rx, ry)
	}
	if p.needflags {
		p.liveFlags()
		p.duplicateCarry()
	} else {
		p.duplicateCarry() // X is architectural state even when CZNV die
	}
	return true
}

/* --- CMP / CMPA / CMPI --------------------------------------------------- */

func registerCompCMP() {
	// 1011 DDD 0SS eee eee
	for dn := uint16(0); dn < 8; dn++ {
		for szBits := uint16(0); szBits < 3; szBits++ {
			for mode := uint16(0); mode < 8; mode++ {
				for reg := uint16(0); reg < 8; reg++ {
					if mode == 7 && reg > 4 {
						continue
					}
					if mode == 1 && szBits == 0 {
						continue
					}
					registerComp(0xB000|dn<<9|szBits<<6|mode<<3|reg, compCMP)
				}
			}
		}
	}
}

func compCMP(p *compiler, op uint16) bool {
	dn := int((op >> 9) & 7)
	sz := sizeField((op >> 6) & 3)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if !compEAOK(mode, reg, sz, false) {
		return false
	}
	src := p.resolveCompEA(mode, reg, sz, vS1, vS2)
	s := p.ceaVreg(src, sz, vS1)
	p.aluBySize(aluCMP, sz, dn, s)
	p.liveFlags()
	return true
}

func registerCompCMPA() {
	// 1011 AAA S11 eee eee
	for an := uint16(0); an < 8; an++ {
		for s := uint16(0); s < 2; s++ {
			for mode := uint16(0); mode < 8; mode++ {
				for reg := uint16(0); reg < 8; reg++ {
					if mode == 7 && reg > 4 {
						continue
					}
					registerComp(0xB000|an<<9|(3+s<<2)<<6|mode<<3|reg, compCMPA)
				}
			}
		}
	}
}

func compCMPA(p *compiler, op uint16) bool {
	an := 8 + int((op>>9)&7)
	sz := Word
	if op&0x0100 != 0 {
		sz = Long
	}
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if !compEAOK(mode, reg, sz, false) {
		return false
	}
	src := p.resolveCompEA(mode, reg, sz, vS1, vS2)
	s := p.ceaVreg(src, sz, vS1)
	if sz == Word {
		p.signExtend16(vS2, s)
		s = vS2
	}
	p.cmpl(an, s)
	p.liveFlags()
	return true
}

func registerCompCMPI() {
	// 0000 1100 SS eee eee
	for szBits := uint16(0); szBits < 3; szBits++ {
		for mode := uint16(0); mode < 8; mode++ {
			for reg := uint16(0); reg < 8; reg++ {
				if mode == 1 || (mode == 7 && reg > 1) {
					continue
				}
				registerComp(0x0C00|szBits<<6|mode<<3|reg, compCMPI)
			}
		}
	}
}

func compCMPI(p *compiler, op uint16) bool {
	sz := sizeField((op >> 6) & 3)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if !compEAOK(mode, reg, sz, false) {
		return false
	}
	imm := p.resolveCompEA(7, 4, sz, vS1, vS2).imm
	dst := p.resolveCompEA(mode, reg, sz, vS1, vS2)
	d := p.ceaVreg(dst, sz, vS1)
	switch sz {
	case Long:
		p.cmplRI(d, int32(imm))
	case Word:
		p.cmpwRI(d, int32(imm))
	default:
		p.cmpbRI(d, int32(imm))
	}
	p.liveFlags()
	return true
}

/* --- AND / OR / EOR ------------------------------------------------------ */

func registerCompLogic() {
	// AND: 1100, OR: 1000, direction bit 8; EOR: 1011 DDD 1SS (to EA only)
	for _, base := range []uint16{0xC000, 0x8000} {
		for dn := uint16(0); dn < 8; dn++ {
			for szBits := uint16(0); szBits < 3; szBits++ {
				for mode := uint16(0); mode < 8; mode++ {
					for reg := uint16(0); reg < 8; reg++ {
						if mode == 1 || (mode == 7 && reg > 4) {
							continue
						}
						registerComp(base|dn<<9|szBits<<6|mode<<3|reg, compLogicToReg)
					}
				}
				for mode := uint16(2); mode < 8; mode++ {
					for reg := uint16(0); reg < 8; reg++ {
						if mode == 7 && reg > 1 {
							continue
						}
						registerComp(base|dn<<9|(szBits+4)<<6|mode<<3|reg, compLogicToEA)
					}
				}
			}
		}
	}
	for dn := uint16(0); dn < 8; dn++ {
		for szBits := uint16(0); szBits < 3; szBits++ {
			for mode := uint16(0); mode < 8; mode++ {
				for reg := uint16(0); reg < 8; reg++ {
					if mode == 1 || (mode == 7 && reg > 1) {
						continue
					}
					registerComp(0xB000|dn<<9|(szBits+4)<<6|mode<<3|reg, compLogicToEA)
				}
			}
		}
	}
}

func logicOpOf(op uint16) int {
	switch op >> 12 {
	case 0xC:
		return aluAND
	case 0x8:
		return aluOR
	default:
		return aluXOR
	}
}

func compLogicToReg(p *compiler, op uint16) bool {
	aop := logicOpOf(op)
	dn := int((op >> 9) & 7)
	sz := sizeField((op >> 6) & 3)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if !compEAOK(mode, reg, sz, false) {
		return false
	}
	src := p.resolveCompEA(mode, reg, sz, vS1, vS2)
	s := p.ceaVreg(src, sz, vS1)
	p.aluBySize(aop, sz, dn, s)
	if p.needflags {
		p.liveFlags()
	}
	return true
}

func compLogicToEA(p *compiler, op uint16) bool {
	aop := logicOpOf(op)
	dn := int((op >> 9) & 7)
	sz := sizeField(((op >> 6) & 7) - 4)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if mode == 0 { // EOR Dn,Dn takes this shape
		p.aluBySize(aop, sz, int(reg), dn)
		if p.needflags {
			p.liveFlags()
		}
		return true
	}
	if !compEAOK(mode, reg, sz, true) {
		return false
	}
	dst := p.resolveCompEA(mode, reg, sz, vS1, vS2)
	d := p.ceaVreg(dst, sz, vS2)
	p.aluBySize(aop, sz, d, dn)
	if p.needflags {
		p.liveFlags()
	}
	p.ceaWrite(dst, sz, d)
	return true
}

/* --- ANDI / ORI / EORI --------------------------------------------------- */

func registerCompLogicI() {
	// ANDI: 0000 0010, ORI: 0000 0000, EORI: 0000 1010
	for _, base := range []uint16{0x0200, 0x0000, 0x0A00} {
		for szBits := uint16(0); szBits < 3; szBits++ {
			for mode := uint16(0); mode < 8; mode++ {
				for reg := uint16(0); reg < 8; reg++ {
					if mode == 1 || (mode == 7 && reg > 1) {
						continue
					}
					op := base | szBits<<6 | mode<<3 | reg
					if op == base|szBits<<6|0x3C {
						continue // to-CCR/SR forms
					}
					registerComp(op, compLogicI)
				}
			}
		}
	}
}

func compLogicI(p *compiler, op uint16) bool {
	var aop int
	switch op >> 9 {
	case 1:
		aop = aluAND
	case 0:
		aop = aluOR
	default:
		aop = aluXOR
	}
	sz := sizeField((op >> 6) & 3)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if mode != 0 {
		return false
	}
	imm := p.resolveCompEA(7, 4, sz, vS1, vS2).imm
	dn := int(reg)
	switch sz {
	case Long:
		p.alulRI(aop, dn, int32(imm))
	case Word:
		p.aluwRI(aop, dn, int32(imm))
	default:
		p.alubRI(aop, dn, int32(imm))
	}
	if p.needflags {
		p.liveFlags()
	}
	return true
}

/* --- CLR ----------------------------------------------------------------- */

func registerCompCLR() {
	// 0100 0010 SS eee eee
	for szBits := uint16(0); szBits < 3; szBits++ {
		for mode := uint16(0); mode < 8; mode++ {
			for reg := uint16(0); reg < 8; reg++ {
				if mode == 1 || (mode == 7 && reg > 1) {
					continue
				}
				registerComp(0x4200|szBits<<6|mode<<3|reg, compCLR)
			}
		}
	}
}

func compCLR(p *compiler, op uint16) bool {
	sz := sizeField((op >> 6) & 3)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if mode == 0 {
		dn := int(reg)
		if p.needflags {
			// xor with itself produces exactly the 68k CLR flags.
			p.aluBySize(aluXOR, sz, dn, dn)
			p.liveFlags()
		} else if sz == Long {
			p.movlRI(dn, 0)
		} else if sz == Word {
			p.movwRI(dn, 0)
		} else {
			p.movbRI(dn, 0)
		}
		return true
	}
	if p.needflags || !compEAOK(mode, reg, sz, true) {
		return false
	}
	dst := p.resolveCompEA(mode, reg, sz, vS1, vS2)
	p.setConst(vS2, 0)
	p.ceaWrite(dst, sz, vS2)
	return true
}

/* --- NOT / NEG ----------------------------------------------------------- */

func registerCompNOTNEG() {
	// NEG: 0100 0100, NOT: 0100 0110
	for _, base := range []uint16{0x4400, 0x4600} {
		for szBits := uint16(0); szBits < 3; szBits++ {
			for reg := uint16(0); reg < 8; reg++ {
				registerComp(base|szBits<<6|reg, compNOTNEG)
			}
		}
	}
}

func compNOTNEG(p *compiler, op uint16) bool {
	neg := op&0x0200 == 0
	sz := sizeField((op >> 6) & 3)
	dn := int(op & 7)

	switch {
	case neg && sz == Long:
		p.negl(dn)
	case neg && sz == Word:
		p.negw(dn)
	case neg:
		p.negb(dn)
	case sz == Long:
		p.notl(dn)
	case sz == Word:
		p.notw(dn)
	default:
		p.notb(dn)
	}
	if p.needflags {
		if neg {
			// x86 neg: C is set for any non-zero operand, matching the
			// 68k borrow; V on 0x80... matches too.
			p.liveFlags()
			p.duplicateCarry()
		} else {
			// x86 not sets nothing; derive NZ00 from the result.
			p.liveNZ00(dn, sz)
		}
	}
	return true
}

/* --- TST ----------------------------------------------------------------- */

func registerCompTST() {
	// 0100 1010 SS eee eee
	for szBits := uint16(0); szBits < 3; szBits++ {
		for mode := uint16(0); mode < 8; mode++ {
			for reg := uint16(0); reg < 8; reg++ {
				if mode == 1 || (mode == 7 && reg > 1) {
					continue
				}
				registerComp(0x4A00|szBits<<6|mode<<3|reg, compTST)
			}
		}
	}
}

func compTST(p *compiler, op uint16) bool {
	sz := sizeField((op >> 6) & 3)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if !compEAOK(mode, reg, sz, false) {
		return false
	}
	src := p.resolveCompEA(mode, reg, sz, vS1, vS2)
	s := p.ceaVreg(src, sz, vS1)
	p.liveNZ00(s, sz)
	return true
}

/* --- EXT ----------------------------------------------------------------- */

func registerCompEXT() {
	// EXT.W: 0100 100 010 000 DDD   EXT.L: 0100 100 011 000 DDD
	for dn := uint16(0); dn < 8; dn++ {
		registerComp(0x4880|dn, compEXT)
		registerComp(0x48C0|dn, compEXT)
	}
}

func compEXT(p *compiler, op uint16) bool {
	dn := int(op & 7)
	long := op&0x0040 != 0

	p.clobberFlags()
	if long {
		r := p.rmw(dn, 4, 2)
		p.a.movsx16lRR(r, r)
		p.unlock(r)
		if p.needflags {
			p.liveNZ00(dn, Long)
		}
	} else {
		r := p.rmw(dn, 2, 1)
		p.a.movsx8wRR(r, r)
		p.unlock(r)
		if p.needflags {
			p.liveNZ00(dn, Word)
		}
	}
	return true
}

/* --- SWAP ---------------------------------------------------------------- */

func registerCompSWAP() {
	for dn := uint16(0); dn < 8; dn++ {
		registerComp(0x4840|dn, compSWAP)
	}
}

func compSWAP(p *compiler, op uint16) bool {
	dn := int(op & 7)
	p.shiftlRI(shROL, dn, 16)
	if p.needflags {
		p.liveNZ00(dn, Long)
	}
	return true
}

/* --- EXG ----------------------------------------------------------------- */

func registerCompEXG() {
	// 1100 XXX 1 OOOOO YYY, modes 01000 (Dn,Dn), 01001 (An,An), 10001 (Dn,An)
	for rx := uint16(0); rx < 8; rx++ {
		for ry := uint16(0); ry < 8; ry++ {
			registerComp(0xC140|rx<<9|ry, compEXG)
			registerComp(0xC148|rx<<9|ry, compEXG)
			registerComp(0xC188|rx<<9|ry, compEXG)
		}
	}
}

func compEXG(p *compiler, op uint16) bool {
	rx := int((op >> 9) & 7)
	ry := int(op & 7)
	switch (op >> 3) & 0x1F {
	case 0x08:
	case 0x09:
		rx += 8
		ry += 8
	case 0x11:
		ry += 8
	default:
		return false
	}
	p.movlRR(vS1, rx)
	p.movlRR(rx, ry)
	p.movlRR(ry, vS1)
	return true
}

/* --- shifts & rotates (register targets, immediate counts) --------------- */

func registerCompShifts() {
	// 1110 CCC D SS I TT RRR; I=0 immediate count, I=1 register count.
	for cnt := uint16(0); cnt < 8; cnt++ {
		for dir := uint16(0); dir < 2; dir++ {
			for szBits := uint16(0); szBits < 3; szBits++ {
				for kind := uint16(0); kind < 4; kind++ {
					for rn := uint16(0); rn < 8; rn++ {
						registerComp(0xE000|cnt<<9|dir<<8|szBits<<6|kind<<3|rn, compShift)
					}
				}
			}
		}
	}
}

func compShift(p *compiler, op uint16) bool {
	if op&0x0020 != 0 {
		// Register counts run modulo 64 on the guest but modulo the
		// operand width on the host; not worth emulating inline.
		return false
	}
	count := int32((op >> 9) & 7)
	if count == 0 {
		count = 8
	}
	left := op&0x0100 != 0
	sz := sizeField((op >> 6) & 3)
	kind := (op >> 3) & 3
	dn := int(op & 7)

	var sub int
	needDance := false // host op leaves N/Z untouched
	switch kind {
	case 0, 1: // ASd, LSd
		// The host's OF after a multi-bit shift is undefined (and the
		// 68k ASL accumulates it across every step); only a dead V is
		// safe to compile.
		if p.neededMask&ccrV != 0 {
			return false
		}
		switch {
		case !left:
			sub = shSHR
			if kind == 0 {
				sub = shSAR
			}
		default:
			sub = shSHL
		}
	case 2: // ROXd
		if left {
			sub = shRCL
		} else {
			sub = shRCR
		}
		needDance = true
	default: // ROd
		if left {
			sub = shROL
		} else {
			sub = shROR
		}
		needDance = true
	}

	rox := kind == 2
	if rox {
		p.clobberFlags()
		p.restoreCarry()
		// The carry now holds X; acquisition below must stay flag-safe.
		rr := p.rmw(dn, int(sz), int(sz))
		switch sz {
		case Long:
			p.a.shiftlRI(sub, rr, count)
		case Word:
			p.a.shiftwRI(sub, rr, count)
		default:
			p.a.shiftbRI(sub, rr, count)
		}
		p.unlock(rr)
	} else {
		switch sz {
		case Long:
			p.shiftlRI(sub, dn, count)
		case Word:
			p.shiftwRI(sub, dn, count)
		default:
			p.shiftbRI(sub, dn, count)
		}
	}

	if !p.needflags {
		if rox {
			p.duplicateCarry() // X updates even with dead CZNV
		}
		return true
	}

	if !needDance {
		// Host shifts already produce matching C/N/Z (and V=0 for the
		// compiled subset).
		p.liveFlags()
		p.duplicateCarry()
		return true
	}

	// Rotates: the host sets only C. Capture it, derive N/Z (with V=0)
	// from the result, then put C back with a flag-preserving bit test.
	p.setccVreg(vS1, ccB)
	if rox {
		p.movbRR(vFlagX, vS1) // the rotated bit is also the new X
	}
	p.liveNZ00(dn, sz)
	r := p.readreg(vS1, 4)
	p.a.btlRI(r, 0)
	p.unlock(r)
	return true
}

/* --- BTST (data register target) ------------------------------------------ */

func registerCompBTST() {
	// BTST Dn,Dm: 0000 BBB 100 000 DDD; BTST #,Dn: 0000 1000 00 000 DDD
	for b := uint16(0); b < 8; b++ {
		for dn := uint16(0); dn < 8; dn++ {
			registerComp(0x0100|b<<9|dn, compBTSTreg)
		}
	}
	for dn := uint16(0); dn < 8; dn++ {
		registerComp(0x0800|dn, compBTSTimm)
	}
}

// btstFinish turns the host carry (the tested bit) into the guest Z.
func (p *compiler) btstFinish() bool {
	if p.neededMask&^ccrZ != 0 {
		// BTST leaves N/V/C untouched; if any of those are also live we
		// cannot fake the partial update.
		return false
	}
	if p.needflags {
		// Guest Z is the inverse of the tested bit: compare the captured
		// bit against zero.
		p.setccVreg(vS1, ccB)
		p.clobberFlags()
		r := p.readreg(vS1, 1)
		p.a.alubRI(aluCMP, r, 0)
		p.unlock(r)
		p.liveFlags()
	}
	return true
}

func compBTSTreg(p *compiler, op uint16) bool {
	if p.neededMask&^ccrZ != 0 {
		return false
	}
	bn := int((op >> 9) & 7)
	dn := int(op & 7)
	p.clobberFlags()
	br := p.readreg(bn, 4)
	dr := p.readreg(dn, 4)
	p.a.btlRR(dr, br)
	p.unlock(dr)
	p.unlock(br)
	return p.btstFinish()
}

func compBTSTimm(p *compiler, op uint16) bool {
	if p.neededMask&^ccrZ != 0 {
		return false
	}
	bit := int32(p.getWord() & 31)
	dn := int(op & 7)
	p.btlVregI(dn, bit)
	return p.btstFinish()
}

/* --- LEA ----------------------------------------------------------------- */

func registerCompLEA() {
	// 0100 AAA 111 eee eee (control modes only)
	for an := uint16(0); an < 8; an++ {
		for mode := uint16(2); mode < 8; mode++ {
			for reg := uint16(0); reg < 8; reg++ {
				if mode == 3 || mode == 4 {
					continue
				}
				if mode == 7 && reg > 3 {
					continue
				}
				registerComp(0x41C0|an<<9|mode<<3|reg, compLEA)
			}
		}
	}
}

func compLEA(p *compiler, op uint16) bool {
	an := 8 + int((op>>9)&7)
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	if mode == 7 && reg == 4 {
		return false
	}
	ea := p.resolveCompEA(mode, reg, Long, vS1, vS2)
	if ea.kind != ceaMem {
		return false
	}
	p.movlRR(an, ea.vreg)
	return true
}

/* --- Bcc / BRA ----------------------------------------------------------- */

func registerCompBcc() {
	for cc := uint16(2); cc < 16; cc++ {
		for disp := uint16(0); disp < 256; disp++ {
			registerComp(0x6000|cc<<8|disp, compBcc)
		}
	}
	for disp := uint16(0); disp < 256; disp++ {
		registerComp(0x6000|disp, compBRA)
	}
}

func compBcc(p *compiler, op uint16) bool {
	cc := (op >> 8) & 0xF
	disp := int32(int8(op & 0xFF))
	base := p.instrPC + 2
	if disp == 0 {
		disp = int32(int16(p.getWord()))
	}
	taken := uint32(int32(base) + disp)
	next := p.pcOff

	p.makeFlagsLive()
	p.registerBranch(taken, next, condToNative(cc))
	return true
}

func compBRA(p *compiler, op uint16) bool {
	disp := int32(int8(op & 0xFF))
	base := p.instrPC + 2
	if disp == 0 {
		disp = int32(int16(p.getWord()))
	}
	p.setConst(vPCP, uint32(int32(base)+disp)&0xFFFFFF)
	return true
}

/* --- Scc (data register target) ------------------------------------------ */

func registerCompScc() {
	// 0101 CCCC 11 000 DDD
	for cc := uint16(0); cc < 16; cc++ {
		for dn := uint16(0); dn < 8; dn++ {
			registerComp(0x50C0|cc<<8|dn, compScc)
		}
	}
}

func compScc(p *compiler, op uint16) bool {
	cc := (op >> 8) & 0xF
	dn := int(op & 7)

	switch cc {
	case 0:
		p.movbRI(dn, 0xFF)
	case 1:
		p.movbRI(dn, 0x00)
	default:
		p.makeFlagsLive()
		p.setccVreg(vS1, condToNative(cc))
		// 68k wants 0xFF, the host delivers 0x01.
		p.negb(vS1)
		p.movbRR(dn, vS1)
	}
	return true
}

/* --- JMP ----------------------------------------------------------------- */

func registerCompJMP() {
	// 0100 1110 11 eee eee (control modes)
	for mode := uint16(2); mode < 8; mode++ {
		for reg := uint16(0); reg < 8; reg++ {
			if mode == 3 || mode == 4 {
				continue
			}
			if mode == 7 && reg > 3 {
				continue
			}
			registerComp(0x4EC0|mode<<3|reg, compJMP)
		}
	}
}

func compJMP(p *compiler, op uint16) bool {
	mode := uint8((op >> 3) & 7)
	reg := uint8(op & 7)

	switch mode {
	case 2: // (An): computed target
		p.movlRR(vPCP, 8+int(reg))
		p.andlRI(vPCP, 0xFFFFFF)
		return true
	case 7:
		switch reg {
		case 0:
			p.setConst(vPCP, uint32(int32(int16(p.getWord())))&0xFFFFFF)
			return true
		case 1:
			p.setConst(vPCP, p.getLong()&0xFFFFFF)
			return true
		case 2:
			pc := p.pcOff
			disp := int16(p.getWord())
			p.setConst(vPCP, uint32(int32(pc)+int32(disp))&0xFFFFFF)
			return true
		}
	}
	return false
}

/* --- RTS ----------------------------------------------------------------- */

func registerCompRTS() {
	registerComp(0x4E75, compRTS)
}

func compRTS(p *compiler, op uint16) bool {
	p.readmemL(vPCP, 8+7)
	p.andlRI(vPCP, 0xFFFFFF)
	p.leaDisp(8+7, 8+7, 4)
	return true
}

/* --- NOP ----------------------------------------------------------------- */

func registerCompNOP() {
	registerComp(0x4E71, compNOP)
}

func compNOP(p *compiler, op uint16) bool {
	return true
}
