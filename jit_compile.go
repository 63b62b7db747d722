package m68k

import "unsafe"

// compFunc translates one guest instruction. It returns false — before
// emitting anything — when the opcode or addressing mode is outside what
// it can translate; the driver then ends the block with an interpreter
// exit.
type compFunc func(p *compiler, op uint16) bool

// compFuncTable holds the flag-producing compile handlers; nfCompFuncTable
// the no-flag variants, used when liveness shows the flags are dead. Both
// are populated by the registration code in jit_comp.go and jit_fpu.go.
var (
	compFuncTable   [65536]compFunc
	nfCompFuncTable [65536]compFunc
)

// registerComp wires a handler for one opcode into both tables; a later
// registerCompNF overrides the no-flag slot.
func registerComp(op uint16, f compFunc) {
	compFuncTable[op] = f
	nfCompFuncTable[op] = f
}

func registerCompNF(op uint16, f compFunc) {
	nfCompFuncTable[op] = f
}

// traceEntry is one step of the interpreter-recorded trace handed to the
// compile driver.
type traceEntry struct {
	pcp uint32 // guest offset of the instruction
	op  uint16
}

// compiler is the per-block translation context. A single instance lives
// in the engine and is re-initialized for every block (the core is
// single-threaded by design).
type compiler struct {
	j *JIT
	a *asm

	live     liveState
	flive    fliveState
	touchcnt int

	needflags  bool   // current instruction's flag results are consumed
	neededMask uint8  // exactly which CCR flags are consumed
	instrPC    uint32 // guest offset of the instruction being translated
	pcOff      uint32 // fetch cursor for extension words

	// Conditional-branch tail, registered by the Bcc handler.
	condExit bool
	takenPC  uint32
	nextPC   uint32
	branchCC int

	// Continuation PC for a trace that hit the length cap (the
	// interpreter's PC after the last recorded instruction).
	endPC uint32
}

func (p *compiler) abort(format string, args ...interface{}) {
	p.a.fail(format, args...)
}

// beginInst points the extension-word cursor past the opcode word.
func (p *compiler) beginInst(pcp uint32, needed uint8) {
	p.instrPC = pcp
	p.pcOff = pcp + 2
	p.needflags = needed != 0
	p.neededMask = needed
}

// getWord fetches the next extension word of the current instruction.
func (p *compiler) getWord() uint16 {
	v := uint16(p.j.ram[p.pcOff&0xFFFFFF])<<8 | uint16(p.j.ram[(p.pcOff+1)&0xFFFFFF])
	p.pcOff += 2
	return v
}

func (p *compiler) getLong() uint32 {
	hi := p.getWord()
	lo := p.getWord()
	return uint32(hi)<<16 | uint32(lo)
}

// registerBranch records a conditional tail: cc is the native condition
// for the taken path, with the guest flags live in the host flags.
func (p *compiler) registerBranch(taken, next uint32, cc int) {
	p.condExit = true
	p.takenPC = taken & 0xFFFFFF
	p.nextPC = next & 0xFFFFFF
	p.branchCC = cc
}

// opcodeAt reads the instruction word a trace entry points at.
func (j *JIT) opcodeAt(pcp uint32) uint16 {
	return uint16(j.ram[pcp&0xFFFFFF])<<8 | uint16(j.ram[(pcp+1)&0xFFFFFF])
}

// compileBlock consumes a recorded trace and (re)translates the block at
// its head. endPC is the interpreter's PC after the last trace entry,
// used as the continuation when the trace hit the length cap. The
// countdown ladder decides whether this produces a cheap stub or a real
// translation.
func (j *JIT) compileBlock(hist []traceEntry, endPC uint32) {
	if len(hist) == 0 {
		return
	}
	if j.a.here() >= len(j.cache)-compileSafety*4 {
		j.flushHard()
	}
	j.allocBlockinfos()

	bi := j.getBlockinfoAddrNew(hist[0].pcp)
	optlev := bi.optlevel
	if bi.status != biInvalid && bi.count != -1 && bi.status != biNeedRecomp {
		panic("m68k: jit: compile entered for a live block")
	}
	if bi.count == -1 {
		optlev++
		for optlev < len(j.cfg.OptCount)-1 && j.cfg.OptCount[optlev] == 0 {
			optlev++
		}
		if optlev >= len(j.cfg.OptCount) {
			optlev = len(j.cfg.OptCount) - 1
		}
		bi.count = int32(j.cfg.OptCount[optlev] - 1)
	}
	bi.optlevel = optlev
	bi.pcp = hist[0].pcp
	removeDeps(bi) // new code, no outgoing edges yet
	j.freeChecksumChain(bi.csi)
	bi.csi = nil

	// Backward liveness: which flags does each instruction need to
	// produce? Also collect the covered guest ranges (one range per
	// inlined constant jump) and whether the whole trace sits in ROM.
	blocklen := len(hist)
	liveflags := make([]uint8, blocklen+1)
	liveflags[blocklen] = ccrAll
	inROM := j.inROM != nil
	maxPC := hist[blocklen-1].pcp
	minPC := maxPC
	for i := blocklen - 1; i >= 0; i-- {
		pcp := hist[i].pcp
		op := hist[i].op
		prop := opProps[op]

		inROM = inROM && j.inROM(pcp)
		if j.cfg.Inline && prop.cflow == cfConstJump && pcp != minPC {
			csi := j.allocChecksumInfo()
			csi.start = minPC
			csi.length = int32(maxPC-minPC) + longestInst
			csi.next = bi.csi
			bi.csi = csi
			maxPC = pcp
		}
		minPC = pcp

		liveflags[i] = (liveflags[i+1] &^ prop.set) | prop.use
		if prop.isAddx && liveflags[i+1]&ccrZ == 0 {
			liveflags[i] &^= ccrZ
		}
	}
	csi := j.allocChecksumInfo()
	csi.start = minPC
	csi.length = int32(maxPC-minPC) + longestInst
	csi.next = bi.csi
	bi.csi = csi
	bi.neededFlags = liveflags[0]
	bi.inROM = inROM

	a := j.a
	blockStart := a.here()
	a.align(16)
	bi.directHandler = j.addr(a.here())
	j.setDhtu(bi, bi.directHandler)
	bi.status = biCompiling

	if bi.count >= 0 {
		// Countdown code: another run of this block burns one count;
		// expiry traps to the recompile path for a hotter translation.
		a.movlMI(stateMem(offPCP), hist[0].pcp)
		a.movqRI(hRAX, uint64(uintptr(unsafe.Pointer(&bi.count))))
		a.alulMI(aluSUB, baseMem(hRAX, 0), 1)
		a.jccLTo(ccL, j.relTo(j.popallRecompileBlock))
	}

	if optlev == 0 {
		// Template stub: no translation yet, just hand the block to the
		// interpreter without recording another trace.
		a.movlMI(stateMem(offPCP), hist[0].pcp)
		a.jmpLTo(j.relTo(j.popallExecNostats))

		// The stub's non-direct handler, same shape as translate's.
		a.align(16)
		bi.handler = j.addr(a.here())
		bi.handlerToUse = bi.handler
		a.alulMI(aluCMP, stateMem(offPCP), int32(bi.pcp))
		a.jccLTo(ccNE, j.relTo(j.popallCacheMiss))
		a.jmpLTo(j.relTo(bi.directHandler))
	} else {
		j.comp.endPC = endPC & 0xFFFFFF
		j.translate(bi, hist, liveflags)
	}

	if a.err != nil {
		// Encoder range failure or allocator infeasibility: throw the
		// partial code away and leave the block to the interpreter.
		jitLogf("compile aborted at %06x: %v", hist[0].pcp, a.err)
		a.err = nil
		a.setPos(blockStart)
		j.invalidateBlock(bi)
		j.raiseInClList(bi)
		j.stats.CompileAborts++
		return
	}

	removeFromList(bi)
	if bi.inROM {
		// ROMs do not change in flight; no checksum needed.
		j.freeChecksumChain(bi.csi)
		bi.csi = nil
		bi.c1, bi.c2 = 0, 0
		j.addToDormant(bi)
	} else {
		bi.c1, bi.c2 = j.calcChecksum(bi)
		j.addToActive(bi)
	}

	j.raiseInClList(bi)
	bi.status = biActive
	j.stats.Compiles++

	if j.cfg.Debug {
		j.disasmBlock(bi, blockStart, a.here())
	}

	if a.here() >= len(j.cache)-compileSafety {
		j.flushHard()
	}
}

// translate is the real code-generation pass over the trace.
func (j *JIT) translate(bi *blockInfo, hist []traceEntry, liveflags []uint8) {
	a := j.a
	p := &j.comp
	p.initComp()
	p.condExit = false
	wasComp := true
	ended := false

	for i := 0; i < len(hist); i++ {
		op := hist[i].op
		if opProps[op].cflow == cfConstJump && i < len(hist)-1 {
			// An inlined constant jump: its successors follow in the
			// trace, so the jump itself compiles to nothing.
			continue
		}
		needed := liveflags[i+1] & opProps[op].set
		tbl := &compFuncTable
		if needed == 0 {
			tbl = &nfCompFuncTable
		}
		handler := tbl[op]
		if j.compBlocked[op] {
			handler = nil
		}

		ok := false
		if handler != nil {
			p.beginInst(hist[i].pcp, needed)
			ok = handler(p, op)
			p.freeScratch()
			if ok && liveflags[i+1]&ccrCZNV == 0 {
				p.dontCareFlags()
			}
		}
		if a.err != nil {
			return
		}
		if !ok {
			// Not translatable here: put the guest state back together
			// and let the interpreter carry this block run forward from
			// the untranslated instruction.
			p.flushAll()
			a.movlMI(stateMem(offPCP), hist[i].pcp)
			a.jmpLTo(j.relTo(j.popallExecNostats))
			wasComp = false
			ended = true
			break
		}
	}

	if !ended {
		j.emitTail(bi, hist, wasComp)
	}
	if a.err == nil {
		p.leakCheck()
	}

	// The non-direct handler: dispatched entries must really be for this
	// block, otherwise the hash line needs fixing.
	a.align(16)
	bi.handler = j.addr(a.here())
	bi.handlerToUse = bi.handler
	a.alulMI(aluCMP, stateMem(offPCP), int32(bi.pcp))
	a.jccLTo(ccNE, j.relTo(j.popallCacheMiss))
	a.jmpLTo(j.relTo(bi.directHandler))
}

// emitTail closes a fully translated trace with chained or computed
// dispatch.
func (j *JIT) emitTail(bi *blockInfo, hist []traceEntry, wasComp bool) {
	a := j.a
	p := &j.comp

	if p.condExit {
		// Two-way chained exit: the jcc leads to the second arm, the
		// first arm is the fallthrough. A backward branch swaps the arms
		// so the taken (loop) case falls through.
		t1, t2, cc := p.nextPC, p.takenPC, p.branchCC
		if p.takenPC < p.nextPC {
			t1, t2 = p.takenPC, p.nextPC
			cc = nativeInverse(cc)
		}

		saved := p.live
		fsaved := p.flive
		branch := a.jccL(cc)

		j.emitChainedExit(bi, 0, t1)

		a.align(8)
		a.patchRel32(branch)
		p.live = saved
		p.flive = fsaved
		j.emitChainedExit(bi, 1, t2)
		return
	}

	if wasComp && p.isconst(vPCP) {
		j.emitChainedExit(bi, 0, p.live.state[vPCP].val&0xFFFFFF)
		return
	}

	// The continuation PC is a compile-time constant when the trace just
	// ran out of length mid-straight-line.
	last := hist[len(hist)-1]
	if wasComp && p.live.state[vPCP].status == stInMem && opProps[last.op].cflow == cfNormal {
		p.setConst(vPCP, p.endPC)
		j.emitChainedExit(bi, 0, p.endPC)
		return
	}

	// Computed jump: generic dispatch through the tag table, leaving the
	// cache instead when the control word is set.
	p.flushAll()
	a.movlRM(hRAX, stateMem(offPCP))
	a.shiftlRI(shSHR, hRAX, 1)
	a.alulRI(aluAND, hRAX, tagMask)
	a.movqRI(hRCX, uint64(j.popallDoNothing))
	a.alulMI(aluCMP, stateMem(offSpcflags), 0)
	a.cmovqRM(ccE, hRCX, memOp{base: hTags, index: hRAX, scale: 8})
	a.jmpR(hRCX)
}

// emitChainedExit emits one chained departure: poll the control word,
// jump straight into the successor's direct handler when clear, else
// store the PC and leave the cache. The jump site is recorded as a
// dependency edge so invalidation can re-aim it.
func (j *JIT) emitChainedExit(bi *blockInfo, slot int, target uint32) {
	a := j.a
	p := &j.comp
	tbi := j.getBlockinfoAddrNew(target)
	if tbi.status == biNeedCheck {
		j.blockCheckChecksum(tbi)
	}
	p.flushAll()

	a.alulMI(aluCMP, stateMem(offSpcflags), 0)
	site := a.jccL(ccE)
	j.writeJmpTarget(site, tbi.directToUse)
	a.movlMI(stateMem(offPCP), target)
	a.jmpLTo(j.relTo(j.popallDoNothing))
	j.createJmpdep(bi, slot, site, target)
}

