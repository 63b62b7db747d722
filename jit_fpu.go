package m68k

// FP shadow-register tier. Guest FP0-FP7 live as scalar doubles in the
// state vector and are cached in XMM registers with the same lazy
// spill discipline as the integer tier, minus offsets and constants
// (neither applies to FP values here). Only register-to-register FMOVE
// is translated; every other FPU instruction falls back.

type fvregState struct {
	status  int // stUndef, stInMem, stClean, stDirty
	realReg int // XMM index, or -1
	memOff  int32
}

type fnatState struct {
	holds   int // virtual FP register cached here, or -1
	touched int
	locked  int
}

type fliveState struct {
	fat  [fvRegCount]fvregState
	fnat [8]fnatState // XMM0-XMM7
}

func (p *compiler) fInitComp() {
	for r := range p.flive.fat {
		st := &p.flive.fat[r]
		st.realReg = -1
		switch {
		case r < 8:
			st.status = stInMem
			st.memOff = offFP + int32(r)*8
		case r == fvResult:
			st.status = stInMem
			st.memOff = offFPResult
		default:
			st.status = stUndef
			st.memOff = -1
		}
	}
	for n := range p.flive.fnat {
		p.flive.fnat[n] = fnatState{holds: -1}
	}
}

func (p *compiler) fIsinreg(r int) bool {
	s := p.flive.fat[r].status
	return s == stClean || s == stDirty
}

func (p *compiler) fTomem(r int) {
	st := &p.flive.fat[r]
	if st.status != stDirty {
		return
	}
	if st.memOff < 0 {
		panic("m68k: jit: flushing a memory-less FP register")
	}
	p.a.movsdMX(stateMem(st.memOff), st.realReg)
	st.status = stClean
}

func (p *compiler) fEvict(r int) {
	if !p.fIsinreg(r) {
		return
	}
	p.fTomem(r)
	st := &p.flive.fat[r]
	p.flive.fnat[st.realReg].holds = -1
	st.realReg = -1
	st.status = stInMem
}

// fAllocReg picks the touched-oldest unlocked XMM register.
func (p *compiler) fAllocReg(r int, willclobber bool) int {
	best := -1
	when := int(^uint(0) >> 1)
	for i := range p.flive.fnat {
		nat := &p.flive.fnat[i]
		if nat.locked != 0 {
			continue
		}
		badness := nat.touched
		if nat.holds == -1 {
			badness = 0
		}
		if badness < when {
			best = i
			when = badness
		}
	}
	if best == -1 {
		p.abort("no free FP host register")
		return 0
	}
	if h := p.flive.fnat[best].holds; h != -1 {
		p.fEvict(h)
	}

	st := &p.flive.fat[r]
	if !willclobber {
		if st.status == stInMem {
			p.a.movsdXM(best, stateMem(st.memOff))
		}
		st.status = stClean
	} else {
		st.status = stDirty
	}
	st.realReg = best
	nat := &p.flive.fnat[best]
	nat.holds = r
	nat.touched = p.touch()
	return best
}

func (p *compiler) fReadreg(r int) int {
	var n int
	if p.fIsinreg(r) {
		n = p.flive.fat[r].realReg
	} else {
		n = p.fAllocReg(r, false)
	}
	p.flive.fnat[n].locked++
	p.flive.fnat[n].touched = p.touch()
	return n
}

func (p *compiler) fWritereg(r int) int {
	var n int
	if p.fIsinreg(r) {
		n = p.flive.fat[r].realReg
	} else {
		n = p.fAllocReg(r, true)
	}
	p.flive.fat[r].status = stDirty
	p.flive.fnat[n].locked++
	p.flive.fnat[n].touched = p.touch()
	return n
}

func (p *compiler) fUnlock(n int) {
	if p.flive.fnat[n].locked == 0 {
		panic("m68k: jit: unlocking an unlocked FP register")
	}
	p.flive.fnat[n].locked--
}

func (p *compiler) fFlushAll() {
	for r := range p.flive.fat {
		if p.flive.fat[r].status == stDirty {
			p.fTomem(r)
		}
	}
}

// fmovRR copies one guest FP register to another.
func (p *compiler) fmovRR(d, s int) {
	if d == s {
		return
	}
	sr := p.fReadreg(s)
	dr := p.fWritereg(d)
	p.a.movsdXX(dr, sr)
	p.fUnlock(dr)
	p.fUnlock(sr)
}

/* --- compile handler ------------------------------------------------------ */

func init() {
	registerComp(0xF200, compFPGen)
}

// compFPGen handles the coprocessor-general F-line form. Only FMOVE
// FPm,FPn is translated, and only when the FPU knob is on.
func compFPGen(p *compiler, op uint16) bool {
	if !p.j.cfg.FPU {
		return false
	}
	ext := p.getWord()
	if ext&0xE000 != 0 { // not register-to-register cpGEN
		return false
	}
	opmode := ext & 0x7F
	if opmode != 0 { // only FMOVE
		return false
	}
	src := int((ext >> 10) & 7)
	dst := int((ext >> 7) & 7)
	p.fmovRR(dst, src)
	return true
}
