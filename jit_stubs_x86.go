package m68k

import "unsafe"

// Exit codes generated code leaves in EAX for the run loop. Every exit
// point in the cache funnels through one of the popall stubs rather than
// returning directly, which keeps the cache's stack use fixed and puts the
// callee-saved restore in a single place.
const (
	exitDoNothing = iota // guest state is current; handle pending events
	exitExecNostats      // run one block under the interpreter, no trace
	exitExecuteNormal    // interpret, record a trace, maybe compile
	exitCacheMiss        // block exists but is not at its line head
	exitRecompile        // countdown expired; re-translate hotter
	exitCheckChecksum    // block needs checksum revalidation
)

// stubRegion is the reserved head of the cache mapping holding the entry
// and exit stubs; it is write-protected once they are emitted.
const stubRegion = 4096

// calleeSaved lists the System V callee-saved registers the entry stub
// preserves, in push order.
var calleeSaved = []int{hRBX, hRBP, hR12, hR13, hR14, hR15}

// createPopalls emits the entry stub and the exit stubs into the head of
// the cache mapping, then write-protects that page.
func (j *JIT) createPopalls() error {
	a := j.a

	// Entry: save callee-saved state, pin the tag table, guest state and
	// RAM bases, then dispatch on the guest PC through the tag table.
	a.align(16)
	j.pushallCallHandler = j.addr(a.here())
	for _, r := range calleeSaved {
		a.pushR(r)
	}
	a.movqRI(hTags, uint64(uintptr(unsafe.Pointer(&j.tags[0]))))
	a.movqRI(hState, uint64(uintptr(unsafe.Pointer(j.regs))))
	a.movqRI(hRAM, uint64(uintptr(unsafe.Pointer(&j.ram[0]))))
	a.movlRM(hRAX, stateMem(offPCP))
	a.shiftlRI(shSHR, hRAX, 1)
	a.alulRI(aluAND, hRAX, tagMask)
	a.jmpM(memOp{base: hTags, index: hRAX, scale: 8})

	emitExit := func(code uint32) uintptr {
		a.align(16)
		entry := j.addr(a.here())
		a.movlRI(hRAX, code)
		for i := len(calleeSaved) - 1; i >= 0; i-- {
			a.popR(calleeSaved[i])
		}
		a.ret()
		return entry
	}

	j.popallDoNothing = emitExit(exitDoNothing)
	j.popallExecNostats = emitExit(exitExecNostats)
	j.popallExecuteNormal = emitExit(exitExecuteNormal)
	j.popallCacheMiss = emitExit(exitCacheMiss)
	j.popallRecompileBlock = emitExit(exitRecompile)
	j.popallCheckChecksum = emitExit(exitCheckChecksum)

	if a.err != nil {
		return a.err
	}
	if a.here() > stubRegion {
		panic("m68k: jit: stub region overflow")
	}
	a.setPos(stubRegion)
	j.cacheStart = stubRegion

	return vmProtect(j.cache[:stubRegion], false)
}

// relTo converts an absolute entry address back into a cache offset for
// rel32 emission.
func (j *JIT) relTo(entry uintptr) int {
	return int(entry - j.addr(0))
}

// prepareBlock emits the two per-block trampolines. Both load the block's
// current guest PC out of the blockinfo itself — not a baked constant — so
// a recycled block finds the right PC, then leave through the matching
// slow path. Chained predecessors land here whenever the block is not in a
// directly executable state.
func (j *JIT) prepareBlock(bi *blockInfo) {
	a := j.a

	a.align(8)
	bi.directPen = j.addr(a.here())
	a.movqRI(hRAX, uint64(uintptr(unsafe.Pointer(&bi.pcp))))
	a.movlRM(hRAX, baseMem(hRAX, 0))
	a.movlMR(stateMem(offPCP), hRAX)
	a.jmpLTo(j.relTo(j.popallExecuteNormal))

	a.align(8)
	bi.directPcc = j.addr(a.here())
	a.movqRI(hRAX, uint64(uintptr(unsafe.Pointer(&bi.pcp))))
	a.movlRM(hRAX, baseMem(hRAX, 0))
	a.movlMR(stateMem(offPCP), hRAX)
	a.jmpLTo(j.relTo(j.popallCheckChecksum))

	bi.deplist = nil
	for i := range bi.dep {
		bi.dep[i].prevP = nil
		bi.dep[i].next = nil
	}
	bi.status = biInvalid
}
