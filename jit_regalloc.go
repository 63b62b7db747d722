package m68k

// Virtual register status.
const (
	stUndef = iota // no defined value anywhere
	stInMem        // canonical memory copy is current
	stClean        // host register copy matches memory
	stDirty        // host register copy is newer than memory
	stConst        // known constant, no host register
)

// Flush classes.
const (
	nfScratch = iota // never written back; discarded at handler end
	nfToMem          // written back to the state vector on flush
	nfHandler        // register-shaped slot that must never reach memory
)

// vregState is the translator-side state of one virtual register.
type vregState struct {
	status    int
	realReg   int    // host register caching it, or -1
	realInd   int    // position in that host register's holds list
	val       uint32 // constant (stConst) or offset (clean/dirty, validSize 4)
	validSize int    // low bytes of the host register that reflect the value
	dirtySize int    // low bytes not yet flushed
	memOff    int32  // canonical location in the state vector, -1 for none
	needflush int
}

// natState is the translator-side state of one host register.
type natState struct {
	holds   [vRegCount]int
	nholds  int
	touched int  // LRU key
	locked  int  // reentrant pin count; reserved registers stay at 1 forever
	canByte bool // every allocatable register qualifies on x86-64
	canWord bool
}

// Flag engine states.
const (
	flagValid = iota
	flagTrash
)

// liveState is the complete register-allocation and flag state during the
// compilation of one block.
type liveState struct {
	state [vRegCount]vregState
	nat   [16]natState

	flagsInFlags  int // do the host flags hold the guest flags?
	flagsOnStack  int // does the cznv memory word hold them?
	flagsImportant bool
}

// allocatable lists the host registers the allocator may hand out, in
// preference order. RSP is the host stack; RBP stays untouched; R13-R15 are
// the pinned tag-table, state and RAM bases.
var allocatable = []int{hRAX, hRCX, hRDX, hRBX, hRSI, hRDI, hR8, hR9, hR10, hR11, hR12}

// initComp resets the live state for a fresh block: every guest register is
// in memory, nothing is cached, flags are spilled and valid in memory.
func (p *compiler) initComp() {
	lv := &p.live
	for r := range lv.state {
		st := &lv.state[r]
		st.realReg = -1
		st.realInd = 0
		st.val = 0
		st.validSize = 0
		st.dirtySize = 0
		st.memOff = vregMemOffset(r)
		switch {
		case r == vNextHandler:
			st.status = stUndef
			st.needflush = nfHandler
		case r >= vS1:
			st.status = stUndef
			st.needflush = nfScratch
		default:
			st.status = stInMem
			st.needflush = nfToMem
		}
	}
	for n := range lv.nat {
		lv.nat[n] = natState{locked: 1} // reserved unless listed below
	}
	for _, n := range allocatable {
		lv.nat[n] = natState{canByte: true, canWord: true}
	}
	lv.flagsInFlags = flagTrash
	lv.flagsOnStack = flagValid
	lv.flagsImportant = true
	p.touchcnt = 1
	p.fInitComp()
}

func (p *compiler) isinreg(r int) bool {
	s := p.live.state[r].status
	return s == stClean || s == stDirty
}

func (p *compiler) isconst(r int) bool {
	return p.live.state[r].status == stConst
}

// adjustNreg folds an accumulated offset into the host register with a
// flag-preserving lea.
func (p *compiler) adjustNreg(rr int, val uint32) {
	if val == 0 {
		return
	}
	p.a.leal(rr, baseMem(rr, int32(val)))
}

// tomem writes a dirty virtual register back to its canonical location.
// A pending offset is folded in first when the host register is exclusively
// and freely held.
func (p *compiler) tomem(r int) {
	st := &p.live.state[r]
	rr := st.realReg

	if p.isinreg(r) && st.val != 0 && p.live.nat[rr].nholds == 1 && p.live.nat[rr].locked == 0 {
		p.adjustNreg(rr, st.val)
		st.val = 0
		st.dirtySize = 4
		st.status = stDirty
	}

	if st.status != stDirty {
		return
	}
	if st.memOff < 0 {
		panic("m68k: jit: flushing a memory-less virtual register")
	}
	switch st.dirtySize {
	case 1:
		p.a.movbMR(stateMem(st.memOff), rr)
	case 2:
		p.a.movwMR(stateMem(st.memOff), rr)
	case 4:
		p.a.movlMR(stateMem(st.memOff), rr)
	default:
		panic("m68k: jit: bad dirty size")
	}
	st.status = stClean
	st.dirtySize = 0
}

// writebackConst materializes a constant virtual register straight to
// memory without touching any host register.
func (p *compiler) writebackConst(r int) {
	st := &p.live.state[r]
	if st.status != stConst {
		return
	}
	if st.needflush == nfHandler {
		panic("m68k: jit: writing back a handler-only constant")
	}
	p.a.movlMI(stateMem(st.memOff), st.val)
	st.val = 0
	st.status = stInMem
}

func (p *compiler) tomemC(r int) {
	if p.isconst(r) {
		p.writebackConst(r)
	} else {
		p.tomem(r)
	}
}

// evict removes a virtual register from its host register, flushing first
// if dirty.
func (p *compiler) evict(r int) {
	if !p.isinreg(r) {
		return
	}
	p.tomem(r)
	st := &p.live.state[r]
	rr := st.realReg
	nat := &p.live.nat[rr]

	if nat.locked > 0 && nat.nholds == 1 {
		panic("m68k: jit: evicting from a locked host register")
	}

	nat.nholds--
	if nat.nholds != st.realInd { // was not last in the holds list
		top := nat.holds[nat.nholds]
		nat.holds[st.realInd] = top
		p.live.state[top].realInd = st.realInd
	}
	st.realReg = -1
	st.status = stInMem
}

// freeNreg evicts everything a host register holds.
func (p *compiler) freeNreg(rr int) {
	nat := &p.live.nat[rr]
	for nat.nholds > 0 {
		p.evict(nat.holds[nat.nholds-1])
	}
}

// isclean drops the dirty and offset state without emitting anything.
// Use with care.
func (p *compiler) isclean(r int) {
	if !p.isinreg(r) {
		return
	}
	st := &p.live.state[r]
	st.validSize = 4
	st.dirtySize = 0
	st.val = 0
	st.status = stClean
}

func (p *compiler) disassociate(r int) {
	p.isclean(r)
	p.evict(r)
}

// setConst forgets any cached copy and records r as a known constant.
func (p *compiler) setConst(r int, val uint32) {
	p.disassociate(r)
	st := &p.live.state[r]
	st.val = val
	st.status = stConst
}

func (p *compiler) getOffset(r int) uint32 {
	return p.live.state[r].val
}

// allocRegHinted finds a host register for r, evicting the touched-oldest
// unlocked candidate when none is free. A non-negative hint biases the
// choice. When willclobber is false the current value is brought in (from
// memory or by materializing a constant).
func (p *compiler) allocRegHinted(r, size int, willclobber bool, hint int) int {
	best := -1
	when := int(^uint(0) >> 1)

	for _, i := range allocatable {
		nat := &p.live.nat[i]
		badness := nat.touched
		if nat.nholds == 0 {
			badness = 0
		}
		if i == hint {
			badness -= 1 << 28
		}
		if nat.locked != 0 || badness >= when {
			continue
		}
		switch size {
		case 1:
			if !nat.canByte {
				continue
			}
		case 2:
			if !nat.canWord {
				continue
			}
		}
		best = i
		when = badness
		if nat.nholds == 0 && hint < 0 {
			break
		}
		if i == hint {
			break
		}
	}
	if best == -1 {
		p.abort("no allocatable host register for size %d", size)
		return hRAX
	}

	if p.live.nat[best].nholds > 0 {
		p.freeNreg(best)
	}

	st := &p.live.state[r]
	if p.isinreg(r) {
		rr := st.realReg
		// Reading a partially valid register at a bigger size.
		if willclobber || st.validSize >= size {
			panic("m68k: jit: allocation for an already-cached register")
		}
		if size == 4 && st.validSize == 2 {
			// Merge: fetch the full memory value, keep its high half and
			// graft on the dirty low 16 bits. The bswap/movzx dance keeps
			// the host flags intact.
			p.a.movlRM(best, stateMem(st.memOff))
			p.a.bswaplR(best)
			p.a.movzx16lRR(rr, rr)
			p.a.movzx16lRR(best, best)
			p.a.bswaplR(best)
			p.a.leal(rr, memOp{base: rr, index: best, scale: 1})
			st.validSize = 4
			p.live.nat[rr].touched = p.touch()
			return rr
		}
		p.evict(r)
	}

	if !willclobber {
		switch st.status {
		case stConst:
			p.a.movlRI(best, st.val)
			st.val = 0
			st.dirtySize = 4
			st.status = stDirty
		case stUndef:
			st.val = 0
			st.dirtySize = 0
			st.status = stClean
		default:
			p.a.movlRM(best, stateMem(st.memOff))
			st.dirtySize = 0
			st.status = stClean
		}
		st.validSize = 4
	} else {
		if !p.isconst(r) || size == 4 {
			st.validSize = size
			st.dirtySize = size
			st.val = 0
			st.status = stDirty
		} else {
			// A sub-width write over a constant: materialize the constant
			// first so the untouched bytes stay correct.
			if st.status != stUndef {
				p.a.movlRI(best, st.val)
			}
			st.val = 0
			st.validSize = 4
			st.dirtySize = 4
			st.status = stDirty
		}
	}
	st.realReg = best
	nat := &p.live.nat[best]
	st.realInd = nat.nholds
	nat.touched = p.touch()
	nat.holds[nat.nholds] = r
	nat.nholds++
	return best
}

func (p *compiler) touch() int {
	p.touchcnt++
	return p.touchcnt
}

// unlock releases one pin on a host register.
func (p *compiler) unlock(rr int) {
	nat := &p.live.nat[rr]
	if nat.locked == 0 {
		panic("m68k: jit: unlocking an unlocked host register")
	}
	nat.locked--
}

func (p *compiler) setlock(rr int) {
	p.live.nat[rr].locked++
}

// movNregs moves every virtual register held by s into d, evicting d's
// current holdings first.
func (p *compiler) movNregs(d, s int) {
	if d == s {
		return
	}
	if p.live.nat[d].nholds > 0 {
		p.freeNreg(d)
	}
	p.a.movlRR(d, s)
	src := &p.live.nat[s]
	dst := &p.live.nat[d]
	for i := 0; i < src.nholds; i++ {
		vs := src.holds[i]
		p.live.state[vs].realReg = d
		p.live.state[vs].realInd = i
		dst.holds[i] = vs
	}
	dst.nholds = src.nholds
	src.nholds = 0
}

// makeExclusive guarantees r is the only virtual register its host register
// holds, splitting off a copy when other holdings are dirty or carry
// offsets.
func (p *compiler) makeExclusive(r, size, spec int) {
	if !p.isinreg(r) {
		return
	}
	st := &p.live.state[r]
	rr := st.realReg
	nat := &p.live.nat[rr]
	if nat.nholds == 1 {
		return
	}

	ndirt := 0
	for i := 0; i < nat.nholds; i++ {
		vr := nat.holds[i]
		if vr != r && (p.live.state[vr].status == stDirty || p.live.state[vr].val != 0) {
			ndirt++
		}
	}
	if ndirt == 0 && size < st.validSize && nat.locked == 0 {
		// Everything else is clean; cheaper to keep this register and
		// evict the rest.
		for i := 0; i < nat.nholds; {
			vr := nat.holds[i]
			if vr != r {
				p.evict(vr)
				continue // same index again: holds was compacted
			}
			i++
		}
		return
	}

	// Split: r moves to a fresh register, the shared one keeps the rest.
	oldstate := *st
	p.setlock(rr)
	p.disassociate(r)
	var nr int
	if oldstate.status == stDirty {
		// A sub-width dirty value needs a register that can store that
		// width on eviction.
		nr = p.allocRegHinted(r, oldstate.dirtySize, true, spec)
	} else {
		nr = p.allocRegHinted(r, 4, true, spec)
	}
	nind := p.live.state[r].realInd
	*st = oldstate
	st.realReg = nr
	st.realInd = nind

	if size < st.validSize {
		if st.val != 0 {
			// Compensate for the pending offset while copying.
			p.a.leal(nr, baseMem(rr, int32(oldstate.val)))
			st.val = 0
			st.dirtySize = 4
			st.status = stDirty
		} else {
			p.a.movlRR(nr, rr)
		}
	}
	p.unlock(rr)
}

// addOffset defers an addition into the virtual register's offset field
// (lazy offset propagation).
func (p *compiler) addOffset(r int, off uint32) {
	p.live.state[r].val += off
}

// removeOffset materializes a pending offset. Required before any
// width-narrowing or flag-relevant use.
func (p *compiler) removeOffset(r, spec int) {
	st := &p.live.state[r]
	if p.isconst(r) {
		return
	}
	if st.val == 0 {
		return
	}
	if p.isinreg(r) && st.validSize < 4 {
		p.evict(r)
	}
	if !p.isinreg(r) {
		p.allocRegHinted(r, 4, false, spec)
	}
	if st.validSize != 4 {
		panic("m68k: jit: partial-width register carries an offset")
	}
	p.makeExclusive(r, 0, -1)
	if st.val == 0 { // makeExclusive may have folded it already
		return
	}
	rr := st.realReg
	if p.live.nat[rr].nholds == 1 {
		p.adjustNreg(rr, st.val)
		st.dirtySize = 4
		st.val = 0
		st.status = stDirty
		return
	}
	panic("m68k: jit: failed to remove offset")
}

func (p *compiler) removeAllOffsets() {
	for r := 0; r < vRegCount; r++ {
		p.removeOffset(r, -1)
	}
}

// readregGeneral is the common read path: guarantee the low size bytes are
// in a host register and pin it.
func (p *compiler) readregGeneral(r, size, spec int, canOffset bool) int {
	if p.live.state[r].status == stUndef {
		jitLogf("reading undefined virtual register %d", r)
	}
	if !canOffset {
		p.removeOffset(r, spec)
	}

	answer := -1
	if p.isinreg(r) && p.live.state[r].validSize >= size {
		n := p.live.state[r].realReg
		switch size {
		case 1:
			if p.live.nat[n].canByte || spec >= 0 {
				answer = n
			}
		case 2:
			if p.live.nat[n].canWord || spec >= 0 {
				answer = n
			}
		default:
			answer = n
		}
		if answer < 0 {
			p.evict(r)
		}
	}
	if answer < 0 {
		sz := size
		if spec >= 0 {
			sz = 4
		}
		answer = p.allocRegHinted(r, sz, false, spec)
	}
	if spec >= 0 && spec != answer {
		p.movNregs(spec, answer)
		answer = spec
	}
	p.live.nat[answer].locked++
	p.live.nat[answer].touched = p.touch()
	return answer
}

func (p *compiler) readreg(r, size int) int {
	return p.readregGeneral(r, size, -1, false)
}

func (p *compiler) readregSpecific(r, size, spec int) int {
	return p.readregGeneral(r, size, spec, false)
}

// readregOffset reads without materializing a pending offset; the caller
// folds getOffset into its own addressing.
func (p *compiler) readregOffset(r, size int) int {
	return p.readregGeneral(r, size, -1, true)
}

// writeregGeneral is the common write path: reserve a destination register
// for a size-byte write and pin it.
func (p *compiler) writeregGeneral(r, size, spec int) int {
	if size < 4 {
		p.removeOffset(r, spec)
	}
	p.makeExclusive(r, size, spec)

	st := &p.live.state[r]
	answer := -1
	if p.isinreg(r) {
		n := st.realReg
		if p.live.nat[n].nholds != 1 {
			panic("m68k: jit: write target is shared after makeExclusive")
		}
		switch size {
		case 1:
			if p.live.nat[n].canByte || spec >= 0 {
				answer = n
			}
		case 2:
			if p.live.nat[n].canWord || spec >= 0 {
				answer = n
			}
		default:
			answer = n
		}
		if answer < 0 {
			p.evict(r)
		}
	}
	if answer < 0 {
		answer = p.allocRegHinted(r, size, true, spec)
	}
	if spec >= 0 && spec != answer {
		p.movNregs(spec, answer)
		answer = spec
	}
	if st.status == stUndef {
		st.validSize = 4
	}
	if size > st.dirtySize {
		st.dirtySize = size
	}
	if size > st.validSize {
		st.validSize = size
	}
	p.live.nat[answer].locked++
	p.live.nat[answer].touched = p.touch()
	if size == 4 {
		st.val = 0
	} else if st.val != 0 {
		panic("m68k: jit: sub-width write over a pending offset")
	}
	st.status = stDirty
	return answer
}

func (p *compiler) writereg(r, size int) int {
	return p.writeregGeneral(r, size, -1)
}

func (p *compiler) writeregSpecific(r, size, spec int) int {
	return p.writeregGeneral(r, size, spec)
}

// rmwGeneral combines a read of rsize bytes with a declared write of wsize
// bytes to the same virtual register.
func (p *compiler) rmwGeneral(r, wsize, rsize, spec int) int {
	if p.live.state[r].status == stUndef {
		jitLogf("read-modify-write of undefined virtual register %d", r)
	}
	p.removeOffset(r, spec)
	p.makeExclusive(r, 0, spec)

	st := &p.live.state[r]
	answer := -1
	if p.isinreg(r) && st.validSize >= rsize {
		n := st.realReg
		if p.live.nat[n].nholds != 1 {
			panic("m68k: jit: rmw target is shared after makeExclusive")
		}
		size := rsize
		if wsize > size {
			size = wsize
		}
		switch size {
		case 1:
			if p.live.nat[n].canByte || spec >= 0 {
				answer = n
			}
		case 2:
			if p.live.nat[n].canWord || spec >= 0 {
				answer = n
			}
		default:
			answer = n
		}
		if answer < 0 {
			p.evict(r)
		}
	}
	if answer < 0 {
		answer = p.allocRegHinted(r, rsize, false, spec)
	}
	if spec >= 0 && spec != answer {
		p.movNregs(spec, answer)
		answer = spec
	}
	if wsize > st.dirtySize {
		st.dirtySize = wsize
	}
	if wsize > st.validSize {
		st.validSize = wsize
	}
	st.status = stDirty
	p.live.nat[answer].locked++
	p.live.nat[answer].touched = p.touch()
	if st.val != 0 {
		panic("m68k: jit: rmw over a pending offset")
	}
	return answer
}

func (p *compiler) rmw(r, wsize, rsize int) int {
	return p.rmwGeneral(r, wsize, rsize, -1)
}

func (p *compiler) rmwSpecific(r, wsize, rsize, spec int) int {
	return p.rmwGeneral(r, wsize, rsize, spec)
}

// forgetAbout discards any cached or constant copy of r; the next read
// comes from memory.
func (p *compiler) forgetAbout(r int) {
	if p.isinreg(r) {
		p.disassociate(r)
	}
	st := &p.live.state[r]
	st.val = 0
	st.status = stUndef
}

// freeScratch returns all scratch registers to the pool after a compile
// handler finishes.
func (p *compiler) freeScratch() {
	for r := vS1; r <= vS4; r++ {
		p.forgetAbout(r)
	}
}

// flushAll writes every dirty or constant virtual register back to memory
// and spills the flags. This is the state the interpreter expects at every
// block boundary.
func (p *compiler) flushAll() {
	p.flagsToStack()
	p.removeAllOffsets()
	for r := 0; r < vRegCount; r++ {
		st := &p.live.state[r]
		switch st.needflush {
		case nfScratch, nfHandler:
			continue
		}
		if st.status == stConst {
			p.writebackConst(r)
		} else if st.status == stDirty {
			p.tomem(r)
		}
	}
	p.fFlushAll()
}

// leakCheck panics if any host register is still pinned; called at block
// finalization (an unbalanced pin is a translator bug, spec: abort).
func (p *compiler) leakCheck() {
	for _, n := range allocatable {
		if p.live.nat[n].locked != 0 {
			panic("m68k: jit: host register still locked at block end")
		}
	}
}
