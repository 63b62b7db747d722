package m68k

// Register-aware wrappers around the encoder. These are the only routines
// the compile handlers call to emit code: each one declares its effect on
// the host flags, acquires operand registers from the allocator, encodes,
// and releases the pins. Constant-folding policy lives here too — an
// operation on a known-constant virtual register may produce no code at
// all when the flag side effects are disposable.
//
// Naming follows <op><size> with operand shapes spelled out: RR register-
// register, RI register-immediate. Sizes are l/w/b for 4/2/1 bytes.

/* --- moves --------------------------------------------------------------- */

// movlRI records d as a known constant; no code is emitted until a
// consumer forces materialization.
func (p *compiler) movlRI(d int, imm uint32) {
	p.setConst(d, imm)
}

// movlRR aliases d onto s's host register instead of copying: the host
// register ends up holding both virtual registers, split on the first
// diverging write.
func (p *compiler) movlRR(d, s int) {
	if d == s {
		return
	}
	if p.isconst(s) {
		p.setConst(d, p.live.state[s].val)
		return
	}
	ss := p.readregOffset(s, 4)
	val := p.getOffset(s)
	p.disassociate(d)
	st := &p.live.state[d]
	st.realReg = ss
	st.val = val
	st.validSize = 4
	st.dirtySize = 4
	st.status = stDirty
	nat := &p.live.nat[ss]
	st.realInd = nat.nholds
	nat.holds[nat.nholds] = d
	nat.nholds++
	p.unlock(ss)
}

func (p *compiler) movwRR(d, s int) {
	if d == s {
		return
	}
	sr := p.readreg(s, 2)
	dr := p.writereg(d, 2)
	p.a.movwRR(dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) movbRR(d, s int) {
	if d == s {
		return
	}
	sr := p.readreg(s, 1)
	dr := p.writereg(d, 1)
	p.a.movbRR(dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) movwRI(d int, imm uint16) {
	dr := p.writereg(d, 2)
	p.a.movwRI(dr, imm)
	p.unlock(dr)
}

func (p *compiler) movbRI(d int, imm uint8) {
	dr := p.writereg(d, 1)
	p.a.movbRI(dr, imm)
	p.unlock(dr)
}

/* --- ALU, register-register ---------------------------------------------- */

// alul is the shared long-size ALU path. CMP leaves the destination
// untouched, so it reads rather than read-modify-writes.
func (p *compiler) alul(op, d, s int) {
	if p.isconst(s) {
		p.alulRI(op, d, int32(p.live.state[s].val))
		return
	}
	p.clobberFlags()
	sr := p.readreg(s, 4)
	var dr int
	if op == aluCMP {
		dr = p.readreg(d, 4)
	} else {
		dr = p.rmw(d, 4, 4)
	}
	p.a.alulRR(op, dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) aluw(op, d, s int) {
	p.clobberFlags()
	sr := p.readreg(s, 2)
	var dr int
	if op == aluCMP {
		dr = p.readreg(d, 2)
	} else {
		dr = p.rmw(d, 2, 2)
	}
	p.a.aluwRR(op, dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) alub(op, d, s int) {
	p.clobberFlags()
	sr := p.readreg(s, 1)
	var dr int
	if op == aluCMP {
		dr = p.readreg(d, 1)
	} else {
		dr = p.rmw(d, 1, 1)
	}
	p.a.alubRR(op, dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) addl(d, s int) { p.alul(aluADD, d, s) }
func (p *compiler) subl(d, s int) { p.alul(aluSUB, d, s) }
func (p *compiler) andl(d, s int) { p.alul(aluAND, d, s) }
func (p *compiler) orl(d, s int)  { p.alul(aluOR, d, s) }
func (p *compiler) xorl(d, s int) { p.alul(aluXOR, d, s) }
func (p *compiler) cmpl(d, s int) { p.alul(aluCMP, d, s) }
func (p *compiler) adcl(d, s int) { p.alulNoClobber(aluADC, d, s) }
func (p *compiler) sbbl(d, s int) { p.alulNoClobber(aluSBB, d, s) }

func (p *compiler) addw(d, s int) { p.aluw(aluADD, d, s) }
func (p *compiler) subw(d, s int) { p.aluw(aluSUB, d, s) }
func (p *compiler) cmpw(d, s int) { p.aluw(aluCMP, d, s) }
func (p *compiler) addb(d, s int) { p.alub(aluADD, d, s) }
func (p *compiler) subb(d, s int) { p.alub(aluSUB, d, s) }
func (p *compiler) cmpb(d, s int) { p.alub(aluCMP, d, s) }
func (p *compiler) andw(d, s int) { p.aluw(aluAND, d, s) }
func (p *compiler) andb(d, s int) { p.alub(aluAND, d, s) }
func (p *compiler) orw(d, s int)  { p.aluw(aluOR, d, s) }
func (p *compiler) orb(d, s int)  { p.alub(aluOR, d, s) }
func (p *compiler) xorw(d, s int) { p.aluw(aluXOR, d, s) }
func (p *compiler) xorb(d, s int) { p.alub(aluXOR, d, s) }
func (p *compiler) adcw(d, s int) { p.aluwNoClobber(aluADC, d, s) }
func (p *compiler) adcb(d, s int) { p.alubNoClobber(aluADC, d, s) }
func (p *compiler) sbbw(d, s int) { p.aluwNoClobber(aluSBB, d, s) }
func (p *compiler) sbbb(d, s int) { p.alubNoClobber(aluSBB, d, s) }

// alulNoClobber is for carry-consuming instructions (ADC/SBB): the host
// carry was just set up by restoreCarry and must not be spilled away.
func (p *compiler) alulNoClobber(op, d, s int) {
	sr := p.readreg(s, 4)
	dr := p.rmw(d, 4, 4)
	p.a.alulRR(op, dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) aluwNoClobber(op, d, s int) {
	sr := p.readreg(s, 2)
	dr := p.rmw(d, 2, 2)
	p.a.aluwRR(op, dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) alubNoClobber(op, d, s int) {
	sr := p.readreg(s, 1)
	dr := p.rmw(d, 1, 1)
	p.a.alubRR(op, dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

/* --- ALU, register-immediate --------------------------------------------- */

func (p *compiler) alulRI(op, d int, imm int32) {
	// Disposable flags open the cheap paths: constant folding, and for
	// add/sub the lazy offset that may never be materialized at all.
	if !p.needflags {
		if p.isconst(d) {
			st := &p.live.state[d]
			switch op {
			case aluADD:
				st.val += uint32(imm)
				return
			case aluSUB:
				st.val -= uint32(imm)
				return
			case aluAND:
				st.val &= uint32(imm)
				return
			case aluOR:
				st.val |= uint32(imm)
				return
			case aluXOR:
				st.val ^= uint32(imm)
				return
			}
		}
		switch op {
		case aluADD:
			if imm == 0 {
				return
			}
			if p.isinreg(d) && p.live.state[d].validSize == 4 {
				p.addOffset(d, uint32(imm))
				return
			}
		case aluSUB:
			if imm == 0 {
				return
			}
			if p.isinreg(d) && p.live.state[d].validSize == 4 {
				p.addOffset(d, uint32(-imm))
				return
			}
		}
	}
	p.clobberFlags()
	var dr int
	if op == aluCMP {
		dr = p.readreg(d, 4)
	} else {
		dr = p.rmw(d, 4, 4)
	}
	p.a.alulRI(op, dr, imm)
	p.unlock(dr)
}

func (p *compiler) aluwRI(op, d int, imm int32) {
	p.clobberFlags()
	var dr int
	if op == aluCMP {
		dr = p.readreg(d, 2)
	} else {
		dr = p.rmw(d, 2, 2)
	}
	p.a.aluwRI(op, dr, imm)
	p.unlock(dr)
}

func (p *compiler) alubRI(op, d int, imm int32) {
	p.clobberFlags()
	var dr int
	if op == aluCMP {
		dr = p.readreg(d, 1)
	} else {
		dr = p.rmw(d, 1, 1)
	}
	p.a.alubRI(op, dr, imm)
	p.unlock(dr)
}

func (p *compiler) addlRI(d int, imm int32) { p.alulRI(aluADD, d, imm) }
func (p *compiler) sublRI(d int, imm int32) { p.alulRI(aluSUB, d, imm) }
func (p *compiler) andlRI(d int, imm int32) { p.alulRI(aluAND, d, imm) }
func (p *compiler) orlRI(d int, imm int32)  { p.alulRI(aluOR, d, imm) }
func (p *compiler) xorlRI(d int, imm int32) { p.alulRI(aluXOR, d, imm) }
func (p *compiler) cmplRI(d int, imm int32) { p.alulRI(aluCMP, d, imm) }
func (p *compiler) cmpwRI(d int, imm int32) { p.aluwRI(aluCMP, d, imm) }
func (p *compiler) cmpbRI(d int, imm int32) { p.alubRI(aluCMP, d, imm) }

func (p *compiler) testlRR(d, s int) {
	p.clobberFlags()
	sr := p.readreg(s, 4)
	dr := p.readreg(d, 4)
	p.a.testlRR(dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) testlRI(d int, imm uint32) {
	p.clobberFlags()
	dr := p.readreg(d, 4)
	p.a.testlRI(dr, imm)
	p.unlock(dr)
}

/* --- shifts & rotates ---------------------------------------------------- */

func (p *compiler) shiftlRI(sub, r int, count int32) {
	if count == 0 && !p.needflags {
		return
	}
	p.clobberFlags()
	rr := p.rmw(r, 4, 4)
	p.a.shiftlRI(sub, rr, count)
	p.unlock(rr)
}

func (p *compiler) shiftwRI(sub, r int, count int32) {
	if count == 0 && !p.needflags {
		return
	}
	p.clobberFlags()
	rr := p.rmw(r, 2, 2)
	p.a.shiftwRI(sub, rr, count)
	p.unlock(rr)
}

func (p *compiler) shiftbRI(sub, r int, count int32) {
	if count == 0 && !p.needflags {
		return
	}
	p.clobberFlags()
	rr := p.rmw(r, 1, 1)
	p.a.shiftbRI(sub, rr, count)
	p.unlock(rr)
}

// shiftlRR shifts r by the count register, which the host pins to CL.
func (p *compiler) shiftlRR(sub, r, count int) {
	if p.isconst(count) {
		p.shiftlRI(sub, r, int32(p.live.state[count].val&63))
		return
	}
	p.clobberFlags()
	cr := p.readregSpecific(count, 1, hRCX)
	rr := p.rmw(r, 4, 4)
	p.a.shiftlRCL(sub, rr)
	p.unlock(rr)
	p.unlock(cr)
}

func (p *compiler) shiftwRR(sub, r, count int) {
	if p.isconst(count) {
		p.shiftwRI(sub, r, int32(p.live.state[count].val&15))
		return
	}
	p.clobberFlags()
	cr := p.readregSpecific(count, 1, hRCX)
	rr := p.rmw(r, 2, 2)
	p.a.shiftwRCL(sub, rr)
	p.unlock(rr)
	p.unlock(cr)
}

func (p *compiler) shiftbRR(sub, r, count int) {
	if p.isconst(count) {
		p.shiftbRI(sub, r, int32(p.live.state[count].val&7))
		return
	}
	p.clobberFlags()
	cr := p.readregSpecific(count, 1, hRCX)
	rr := p.rmw(r, 1, 1)
	p.a.shiftbRCL(sub, rr)
	p.unlock(rr)
	p.unlock(cr)
}

/* --- unary --------------------------------------------------------------- */

func (p *compiler) negl(r int) {
	p.clobberFlags()
	rr := p.rmw(r, 4, 4)
	p.a.neglR(rr)
	p.unlock(rr)
}

func (p *compiler) negw(r int) {
	p.clobberFlags()
	rr := p.rmw(r, 2, 2)
	p.a.negwR(rr)
	p.unlock(rr)
}

func (p *compiler) negb(r int) {
	p.clobberFlags()
	rr := p.rmw(r, 1, 1)
	p.a.negbR(rr)
	p.unlock(rr)
}

func (p *compiler) notl(r int) {
	p.clobberFlags()
	rr := p.rmw(r, 4, 4)
	p.a.notlR(rr)
	p.unlock(rr)
}

func (p *compiler) notw(r int) {
	p.clobberFlags()
	rr := p.rmw(r, 2, 2)
	p.a.notwR(rr)
	p.unlock(rr)
}

func (p *compiler) notb(r int) {
	p.clobberFlags()
	rr := p.rmw(r, 1, 1)
	p.a.notbR(rr)
	p.unlock(rr)
}

func (p *compiler) bswapl(r int) {
	p.clobberFlags()
	rr := p.rmw(r, 4, 4)
	p.a.bswaplR(rr)
	p.unlock(rr)
}

func (p *compiler) imull(d, s int) {
	p.clobberFlags()
	sr := p.readreg(s, 4)
	dr := p.rmw(d, 4, 4)
	p.a.imullRR(dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

/* --- widening ------------------------------------------------------------ */

func (p *compiler) signExtend16(d, s int) {
	sr := p.readreg(s, 2)
	dr := p.writereg(d, 4)
	p.a.movsx16lRR(dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) signExtend8(d, s int) {
	sr := p.readreg(s, 1)
	dr := p.writereg(d, 4)
	p.a.movsx8lRR(dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) zeroExtend16(d, s int) {
	sr := p.readreg(s, 2)
	dr := p.writereg(d, 4)
	p.a.movzx16lRR(dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) zeroExtend8(d, s int) {
	sr := p.readreg(s, 1)
	dr := p.writereg(d, 4)
	p.a.movzx8lRR(dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

/* --- conditionals -------------------------------------------------------- */

func (p *compiler) setccVreg(d, cc int) {
	dr := p.writereg(d, 1)
	p.a.setccR(cc, dr)
	p.unlock(dr)
}

func (p *compiler) cmovlRR(cc, d, s int) {
	sr := p.readreg(s, 4)
	dr := p.rmw(d, 4, 4)
	p.a.cmovlRR(cc, dr, sr)
	p.unlock(dr)
	p.unlock(sr)
}

func (p *compiler) btlVregI(r int, bit int32) {
	p.clobberFlags()
	rr := p.readreg(r, 4)
	p.a.btlRI(rr, bit)
	p.unlock(rr)
}

/* --- lea ----------------------------------------------------------------- */

// leaDisp computes d = base + disp without touching the flags, or defers
// the addition entirely when d aliases base (offset propagation).
func (p *compiler) leaDisp(d, base int, disp int32) {
	if disp == 0 {
		p.movlRR(d, base)
		return
	}
	if p.isconst(base) {
		p.setConst(d, p.live.state[base].val+uint32(disp))
		return
	}
	if d == base {
		if p.isinreg(d) && p.live.state[d].validSize == 4 {
			p.addOffset(d, uint32(disp))
			return
		}
	}
	br := p.readregOffset(base, 4)
	off := int32(p.getOffset(base)) + disp
	dr := p.writereg(d, 4)
	p.a.leal(dr, baseMem(br, off))
	p.unlock(dr)
	p.unlock(br)
}

// leaIndexed computes d = base + index*scale + disp, flag-free.
func (p *compiler) leaIndexed(d, base, index int, scale int, disp int32) {
	br := p.readreg(base, 4)
	ir := p.readreg(index, 4)
	dr := p.writereg(d, 4)
	p.a.leal(dr, memOp{base: br, index: ir, scale: scale, disp: disp})
	p.unlock(dr)
	p.unlock(ir)
	p.unlock(br)
}

/* --- guest memory, direct fast path --------------------------------------
 *
 * Guest memory is reached through the pinned RAM base register, with the
 * guest address masked to the 24-bit bus. The mask and the byte-order swap
 * happen inline; this is the canbang path — buses without direct memory
 * never reach compiled code at all. vS4 is reserved as the address scratch
 * for these helpers, so compile handlers must not use it for their own
 * temporaries across a memory access.
 */

// memAddr resolves an address virtual register to a host-addressable
// memory operand, masking into vS4 unless the address is constant.
// The returned unlock function releases any pin taken.
func (p *compiler) memAddr(addr int) (memOp, func()) {
	if p.isconst(addr) {
		return memOp{base: hRAM, index: hNone, disp: int32(p.live.state[addr].val & 0xFFFFFF)}, func() {}
	}
	p.clobberFlags() // the mask below trashes the host flags
	p.movlRR(vS4, addr)
	p.andlRI(vS4, 0xFFFFFF)
	ar := p.readreg(vS4, 4)
	return ramMem(ar), func() { p.unlock(ar) }
}

func (p *compiler) readmemL(d, addr int) {
	m, done := p.memAddr(addr)
	p.clobberFlags() // bswap below is flag-safe, but the load may follow a mask
	dr := p.writereg(d, 4)
	p.a.movlRM(dr, m)
	p.a.bswaplR(dr)
	p.unlock(dr)
	done()
}

func (p *compiler) readmemW(d, addr int) {
	m, done := p.memAddr(addr)
	p.clobberFlags()
	dr := p.writereg(d, 2)
	p.a.movwRM(dr, m)
	p.a.shiftwRI(shROL, dr, 8)
	p.unlock(dr)
	done()
}

func (p *compiler) readmemB(d, addr int) {
	m, done := p.memAddr(addr)
	dr := p.writereg(d, 1)
	p.a.movbRM(dr, m)
	p.unlock(dr)
	done()
}

func (p *compiler) writememL(addr, s int) {
	m, done := p.memAddr(addr)
	p.clobberFlags()
	p.movlRR(vS3, s)
	p.bswapl(vS3)
	sr := p.readreg(vS3, 4)
	p.a.movlMR(m, sr)
	p.unlock(sr)
	done()
}

func (p *compiler) writememW(addr, s int) {
	m, done := p.memAddr(addr)
	p.clobberFlags()
	p.movwRR(vS3, s)
	p.shiftwRI(shROL, vS3, 8)
	sr := p.readreg(vS3, 2)
	p.a.movwMR(m, sr)
	p.unlock(sr)
	done()
}

func (p *compiler) writememB(addr, s int) {
	m, done := p.memAddr(addr)
	sr := p.readreg(s, 1)
	p.a.movbMR(m, sr)
	p.unlock(sr)
	done()
}
