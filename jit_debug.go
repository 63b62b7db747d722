package m68k

import (
	"log"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

// disasmBlock logs the native code of a freshly compiled block. Enabled
// by the Debug knob.
func (j *JIT) disasmBlock(bi *blockInfo, start, end int) {
	jitLogf("block %06x: optlevel %d, %d bytes, needed flags %02x",
		bi.pcp, bi.optlevel, end-start, bi.neededFlags)
	code := j.cache[start:end]
	pos := 0
	for pos < len(code) {
		inst, err := x86asm.Decode(code[pos:], 64)
		if err != nil {
			jitLogf("  %06x  .byte %#02x", start+pos, code[pos])
			pos++
			continue
		}
		jitLogf("  %06x  %s", start+pos, x86asm.GNUSyntax(inst, uint64(j.addr(start+pos)), nil))
		pos += inst.Len
	}
}

// DumpState logs the host-side addresses and counters the way a
// debugging session wants them.
func (j *JIT) DumpState() {
	log.Printf("[jit] state vector : %p", unsafe.Pointer(j.regs))
	log.Printf("[jit] cache        : %p (%d of %d bytes used)",
		unsafe.Pointer(&j.cache[0]), j.a.here()-j.cacheStart, len(j.cache)-j.cacheStart)
	log.Printf("[jit] tag table    : %p (%d entries)", unsafe.Pointer(&j.tags[0]), tagSize)
	log.Printf("[jit] pc_p=%06x spcflags=%08x", j.regs.pcp, j.regs.spcflags)
	nActive, nDormant := 0, 0
	for bi := j.active; bi != nil; bi = bi.next {
		nActive++
	}
	for bi := j.dormant; bi != nil; bi = bi.next {
		nDormant++
	}
	s := j.Stats()
	log.Printf("[jit] blocks: %d active, %d dormant; %d compiles, %d aborts, %d hard / %d lazy flushes",
		nActive, nDormant, s.Compiles, s.CompileAborts, s.HardFlushes, s.LazyFlushes)
}
