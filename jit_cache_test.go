//go:build amd64 && unix

package m68k

import (
	"encoding/binary"
	"testing"
)

// These tests drive the compile driver and cache bookkeeping directly.
// They translate real traces into the executable mapping but never jump
// into the generated code.

// compileAt interprets-and-compiles the block at pc, resetting the CPU
// state first.
func compileAt(t *testing.T, cpu *CPU, pc uint32) *blockInfo {
	t.Helper()
	regs := cpu.Registers()
	regs.PC = pc
	cpu.SetState(regs)
	cpu.syncToGuest()
	cpu.executeNormal()
	bi := cpu.jit.getBlockinfoAddr(pc & 0xFFFFFF)
	if bi == nil {
		t.Fatalf("no block created at %06x", pc)
	}
	return bi
}

// translateAt forces a block through the countdown ladder to a real
// translation.
func translateAt(t *testing.T, cpu *CPU, pc uint32) *blockInfo {
	t.Helper()
	bi := compileAt(t, cpu, pc)
	if bi.optlevel == 0 {
		bi.count = -1
		bi.status = biNeedRecomp
		bi = compileAt(t, cpu, pc)
	}
	if bi.optlevel == 0 {
		t.Fatal("block did not escalate past the stub level")
	}
	return bi
}

func TestBlockLifecycle(t *testing.T) {
	cpu, bus := newJITCPU(t, jitTestConfig())
	writeProgram(bus, 0x1000, []uint16{
		0x7005,         // MOVEQ #5,D0
		0xD081,         // ADD.L D1,D0
		0x4E72, 0x2700, // STOP #$2700
	})

	bi := compileAt(t, cpu, 0x1000)
	if bi.status != biActive {
		t.Fatalf("fresh block status %d, want active", bi.status)
	}
	if bi.optlevel != 0 {
		t.Fatalf("fresh block optlevel %d, want 0 (stub)", bi.optlevel)
	}
	if bi.directHandler == 0 || bi.handler == 0 {
		t.Fatal("block has no entry points")
	}
	if cpu.jit.tags[cacheline(0x1000)] != bi.handlerToUse {
		t.Fatal("dispatch tag does not point at the block")
	}

	bi = translateAt(t, cpu, 0x1000)
	if bi.status != biActive {
		t.Fatalf("translated block status %d, want active", bi.status)
	}

	// The stored checksums must match a recomputation over the covered
	// ranges (scenario: block checksums cover the guest words).
	c1, c2 := cpu.jit.calcChecksum(bi)
	if bi.c1 != c1 || bi.c2 != c2 {
		t.Fatalf("stored checksums %08x/%08x, recomputed %08x/%08x", bi.c1, bi.c2, c1, c2)
	}
	if bi.c1 == 0 && bi.c2 == 0 {
		t.Fatal("checksums empty for a RAM block")
	}
	if bi.csi == nil || bi.csi.start > 0x1000 || bi.csi.start+uint32(bi.csi.length) < 0x1006 {
		t.Fatal("covered range does not span the block")
	}
}

func TestLazyFlushAndChecksumRevalidation(t *testing.T) {
	cpu, bus := newJITCPU(t, jitTestConfig())
	writeProgram(bus, 0x1000, []uint16{
		0x7001,         // MOVEQ #1,D0
		0x4E72, 0x2700, // STOP
	})
	bi := translateAt(t, cpu, 0x1000)

	cpu.jit.flushLazy()
	if bi.status != biNeedCheck {
		t.Fatalf("status %d after lazy flush, want NEED_CHECK", bi.status)
	}
	if cpu.jit.tags[cacheline(0x1000)] != cpu.jit.popallCheckChecksum {
		t.Fatal("dispatch tag not routed through the checksum trampoline")
	}

	// Unmodified memory: revalidation reactivates.
	if !cpu.jit.blockCheckChecksum(bi) {
		t.Fatal("pristine block failed its checksum")
	}
	if bi.status != biActive {
		t.Fatalf("status %d after revalidation, want active", bi.status)
	}

	// Self-modification: flip the MOVEQ immediate, revalidation must
	// invalidate.
	cpu.jit.flushLazy()
	bus.Write(Byte, 0x1001, 0x02)
	if cpu.jit.blockCheckChecksum(bi) {
		t.Fatal("modified block passed its checksum")
	}
	if bi.status != biInvalid {
		t.Fatalf("status %d after mismatch, want invalid", bi.status)
	}
	if bi.handlerToUse != cpu.jit.popallExecuteNormal {
		t.Fatal("invalidated block not routed to execute-normal")
	}
}

func TestFlushRangePartialInvalidation(t *testing.T) {
	cpu, bus := newJITCPU(t, jitTestConfig())
	writeProgram(bus, 0x1000, []uint16{0x7001, 0x4E72, 0x2700})
	writeProgram(bus, 0x3000, []uint16{0x7002, 0x4E72, 0x2700})

	a := translateAt(t, cpu, 0x1000)
	b := translateAt(t, cpu, 0x3000)

	cpu.jit.FlushRange(0x1002, 2)
	if a.status != biNeedRecomp {
		t.Fatalf("overlapping block status %d, want NEED_RECOMP", a.status)
	}
	if b.status != biActive {
		t.Fatalf("distant block status %d, want active", b.status)
	}
}

func TestHardFlush(t *testing.T) {
	cpu, bus := newJITCPU(t, jitTestConfig())
	writeProgram(bus, 0x1000, []uint16{0x7001, 0x4E72, 0x2700})
	translateAt(t, cpu, 0x1000)

	j := cpu.jit
	if j.a.here() == j.cacheStart {
		t.Fatal("nothing was compiled")
	}
	j.flushHard()
	if j.a.here() != j.cacheStart {
		t.Fatal("hard flush did not rewind the cache cursor")
	}
	if j.active != nil || j.dormant != nil {
		t.Fatal("hard flush left blocks on the lists")
	}
	if j.getBlockinfoAddr(0x1000) != nil {
		t.Fatal("hard flush left a block findable")
	}
	if j.tags[cacheline(0x1000)] != j.popallExecuteNormal {
		t.Fatal("hard flush left a stale dispatch tag")
	}

	// The engine keeps working after the flush.
	bi := translateAt(t, cpu, 0x1000)
	if bi.status != biActive {
		t.Fatal("recompile after hard flush failed")
	}
}

// jmpSiteTarget decodes where a recorded chaining patch site currently
// lands.
func jmpSiteTarget(j *JIT, site int) uintptr {
	rel := int32(binary.LittleEndian.Uint32(j.cache[site:]))
	return j.addr(site+4) + uintptr(rel)
}

func TestChainingAndRepatching(t *testing.T) {
	cfg := jitTestConfig()
	cfg.Inline = false // keep the BRA as a block boundary
	cpu, bus := newJITCPU(t, cfg)
	writeProgram(bus, 0x1000, []uint16{
		0x7001, // MOVEQ #1,D0
		0x6000, 0x0FFC, // BRA $2000
	})
	writeProgram(bus, 0x2000, []uint16{
		0x7002,         // MOVEQ #2,D0
		0x4E72, 0x2700, // STOP
	})

	a := translateAt(t, cpu, 0x1000)
	dep := &a.dep[0]
	if dep.jmpOff == 0 || dep.target == nil {
		t.Fatal("constant-jump tail recorded no chaining edge")
	}
	b := dep.target
	if b.pcp != 0x2000 {
		t.Fatalf("edge targets %06x, want 002000", b.pcp)
	}
	// The successor is not compiled yet: the site must aim at its
	// execute-normal trampoline.
	if got := jmpSiteTarget(cpu.jit, dep.jmpOff); got != b.directPen {
		t.Fatalf("chain site aims at %#x, want direct_pen %#x", got, b.directPen)
	}

	// Once the successor is translated the site is re-patched to its
	// direct handler.
	b2 := translateAt(t, cpu, 0x2000)
	if b2 != b {
		t.Fatal("successor blockinfo changed identity")
	}
	if got := jmpSiteTarget(cpu.jit, dep.jmpOff); got != b.directHandler {
		t.Fatalf("chain site aims at %#x, want direct handler %#x", got, b.directHandler)
	}

	// Invalidating the successor walks the incoming edge list and aims
	// the site back at the trampoline.
	cpu.jit.invalidateBlock(b)
	if got := jmpSiteTarget(cpu.jit, dep.jmpOff); got != b.directPen {
		t.Fatalf("chain site aims at %#x after invalidation, want direct_pen %#x", got, b.directPen)
	}
}

func TestConditionalTailHasTwoEdges(t *testing.T) {
	cpu, bus := newJITCPU(t, jitTestConfig())
	writeProgram(bus, 0x1000, []uint16{
		0x5280,         // ADDQ.L #1,D0
		0x66FC,         // BNE $1000
		0x4E72, 0x2700, // STOP
	})
	bi := translateAt(t, cpu, 0x1000)
	if bi.dep[0].jmpOff == 0 || bi.dep[1].jmpOff == 0 {
		t.Fatal("conditional tail did not record both edges")
	}
	targets := map[uint32]bool{
		bi.dep[0].target.pcp: true,
		bi.dep[1].target.pcp: true,
	}
	if !targets[0x1000] || !targets[0x1004] {
		t.Fatalf("edges target %v, want 001000 and 001004", targets)
	}
}

func TestBlacklistBlocksCompilation(t *testing.T) {
	cfg := jitTestConfig()
	cfg.Blacklist = "7000-70ff"
	cpu, bus := newJITCPU(t, cfg)
	if !cpu.jit.compBlocked[0x7005] || cpu.jit.compBlocked[0x7105] {
		t.Fatal("blacklist ranges parsed wrong")
	}
	writeProgram(bus, 0x1000, []uint16{0x7005, 0x4E72, 0x2700})
	bi := translateAt(t, cpu, 0x1000)
	if bi.status != biActive {
		t.Fatal("blacklisted block failed to build a fallback body")
	}
}

func TestBadBlacklistRejected(t *testing.T) {
	bus := &testBus{}
	cpu := &CPU{bus: bus}
	cpu.SetState(Registers{PC: 0x1000, SR: 0x2700, SSP: 0x10000})
	cfg := jitTestConfig()
	cfg.Blacklist = "xyzzy"
	if err := cpu.AttachJIT(cfg); err == nil {
		cpu.DetachJIT()
		t.Fatal("malformed blacklist accepted")
	}
}

func TestCacheSizeMinimum(t *testing.T) {
	bus := &testBus{}
	cpu := &CPU{bus: bus}
	cpu.SetState(Registers{PC: 0x1000, SR: 0x2700, SSP: 0x10000})
	cfg := jitTestConfig()
	cfg.CacheSize = 512
	if err := cpu.AttachJIT(cfg); err == nil {
		cpu.DetachJIT()
		t.Fatal("a 512 KB cache must not engage the translator")
	}
}

func TestNoRegisterLeakAcrossCompiles(t *testing.T) {
	cpu, bus := newJITCPU(t, jitTestConfig())
	writeProgram(bus, 0x1000, []uint16{
		0x7005, // MOVEQ #5,D0
		0x2200, // MOVE.L D0,D1
		0xD081, // ADD.L D1,D0
		0xE249, // LSR.W #1,D1
		0x4E72, 0x2700,
	})
	translateAt(t, cpu, 0x1000)
	// leakCheck inside translate would have panicked on an unbalanced
	// pin; additionally the persistent compile context must be fully
	// unlocked now.
	for _, n := range allocatable {
		if cpu.jit.comp.live.nat[n].locked != 0 {
			t.Fatalf("host register %d still locked after compile", n)
		}
	}
}
