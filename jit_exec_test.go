//go:build amd64 && (linux || darwin)

package m68k

import "testing"

// End-to-end scenarios: guest programs run repeatedly so the hot path
// goes template stub -> translated block, and every run is compared
// against a pure interpreter executing the same program from the same
// initial state. This checks semantic equivalence and flag fidelity over
// the real generated code.

const jitIterations = 6 // enough runs to cross the countdown ladder

// ccProbe captures the condition codes into registers before STOP wipes
// the CCR: D3=C, D4=Z, D5=V, D6=N (0xFF/0x00 bytes) and D7=X (0/1,
// via ADDX into a zeroed register). The probe itself exercises the lazy
// flag materialization paths.
var ccProbe = []uint16{
	0x55C3, // SCS D3
	0x57C4, // SEQ D4
	0x59C5, // SVS D5
	0x5BC6, // SMI D6
	0xDF87, // ADDX.L D7,D7
}

// stopWord ends every program: STOP #$2700.
var stopWord = []uint16{0x4E72, 0x2700}

func program(words ...[]uint16) []uint16 {
	var out []uint16
	for _, w := range words {
		out = append(out, w...)
	}
	return out
}

// runBoth executes the program on a translator-backed CPU and an
// interpreter-only CPU for several rounds and compares the architectural
// state after every round.
func runBoth(t *testing.T, words []uint16, init Registers) Registers {
	t.Helper()
	jcpu, jbus := newJITCPU(t, jitTestConfig())
	writeProgram(jbus, 0x1000, words)

	ibus := &testBus{}
	writeProgram(ibus, 0x1000, words)
	icpu := &CPU{bus: ibus}

	var final Registers
	for iter := 0; iter < jitIterations; iter++ {
		jcpu.SetState(init)
		icpu.SetState(init)

		runUntilStop(t, jcpu)
		for i := 0; i < 10000 && !icpu.Stopped() && !icpu.Halted(); i++ {
			icpu.Step()
		}

		jr := jcpu.Registers()
		ir := icpu.Registers()
		if jr.D != ir.D || jr.A != ir.A || jr.PC != ir.PC || jr.SR != ir.SR {
			t.Fatalf("iteration %d diverged:\n  jit   =%+v\n  interp=%+v", iter, jr, ir)
		}
		final = jr
	}

	j := jcpu.JITEngine()
	if s := j.Stats(); s.Compiles == 0 {
		t.Fatal("nothing was ever compiled")
	}
	return final
}

var execInit = Registers{PC: 0x1000, SR: 0x2700, SSP: 0x10000}

// wantCC checks the probed flag bytes: C, Z, V, N as booleans plus X.
func wantCC(t *testing.T, r Registers, c, z, v, n, x bool) {
	t.Helper()
	check := func(reg int, name string, want bool) {
		t.Helper()
		got := r.D[reg]&0xFF != 0
		if got != want {
			t.Fatalf("%s = %v, want %v (D%d=%08X)", name, got, want, reg, r.D[reg])
		}
	}
	check(3, "C", c)
	check(4, "Z", z)
	check(5, "V", v)
	check(6, "N", n)
	if gotX := r.D[7] != 0; gotX != x {
		t.Fatalf("X = %v, want %v (D7=%08X)", gotX, x, r.D[7])
	}
}

func TestExecAddLong(t *testing.T) {
	init := execInit
	init.D[0] = 0x11223344
	init.D[1] = 0x55667788
	r := runBoth(t, program([]uint16{0xD081}, ccProbe, stopWord), init) // ADD.L D1,D0
	if r.D[0] != 0x6688AACC {
		t.Fatalf("D0 = %08X, want 6688AACC", r.D[0])
	}
	wantCC(t, r, false, false, false, false, false)
}

func TestExecAddLongCarry(t *testing.T) {
	init := execInit
	init.D[0] = 0xFFFFFFFF
	init.D[1] = 1
	r := runBoth(t, program([]uint16{0xD081}, ccProbe, stopWord), init)
	if r.D[0] != 0 {
		t.Fatalf("D0 = %08X, want 0", r.D[0])
	}
	wantCC(t, r, true, true, false, false, true)
}

func TestExecNegOverflow(t *testing.T) {
	init := execInit
	init.D[0] = 0x80000000
	r := runBoth(t, program([]uint16{0x4480}, ccProbe, stopWord), init) // NEG.L D0
	if r.D[0] != 0x80000000 {
		t.Fatalf("D0 = %08X, want 80000000", r.D[0])
	}
	wantCC(t, r, true, false, true, true, true)
}

func TestExecRotateSwap(t *testing.T) {
	init := execInit
	init.D[0] = 0x12345678
	r := runBoth(t, program([]uint16{
		0xE058, // ROR.W #8,D0
		0xE058, // ROR.W #8,D0
		0x4840, // SWAP D0
	}, stopWord), init)
	if r.D[0] != 0x56781234 {
		t.Fatalf("D0 = %08X, want 56781234", r.D[0])
	}
}

func TestExecConditionalLoop(t *testing.T) {
	r := runBoth(t, program([]uint16{
		0x7000, // MOVEQ #0,D0
		0x7205, // MOVEQ #5,D1
		0x5280, // ADDQ.L #1,D0
		0x5381, // SUBQ.L #1,D1
		0x66FA, // BNE loop
	}, stopWord), execInit)
	if r.D[0] != 5 || r.D[1] != 0 {
		t.Fatalf("D0=%08X D1=%08X, want 5 and 0", r.D[0], r.D[1])
	}
}

func TestExecMemoryAndLogic(t *testing.T) {
	init := execInit
	init.A[0] = 0x2000
	init.D[2] = 0xFF00FF00
	runBoth(t, program([]uint16{
		0x7005, // MOVEQ #5,D0
		0x2200, // MOVE.L D0,D1
		0xD081, // ADD.L D1,D0
		0x20C0, // MOVE.L D0,(A0)+
		0x2228, 0xFFFC, // MOVE.L -4(A0),D1
		0xB280, // CMP.L D0,D1
		0x57C2, // SEQ D2
		0xE249, // LSR.W #1,D1
		0x0242, 0x00FF, // ANDI.W #$FF,D2
	}, stopWord), init)
}

func TestExecFlagMatrix(t *testing.T) {
	ops := [][]uint16{
		{0xE048}, // LSR.W #8,D0
		{0xE188}, // LSL.L #8,D0
		{0xE080}, // ASR.L #8,D0
		{0xE098}, // ROR.L #8,D0
		{0xE198}, // ROL.L #8,D0
		{0xE090}, // ROXR.L #8,D0
		{0x4640}, // NOT.W D0
		{0x4440}, // NEG.W D0
		{0x4880}, // EXT.W D0
		{0x48C0}, // EXT.L D0
		{0x4A40}, // TST.W D0
		{0x0640, 0x7FFF}, // ADDI.W #$7FFF,D0
		{0x0C40, 0x1234}, // CMPI.W #$1234,D0
	}
	for _, op := range ops {
		for _, d0 := range []uint32{0, 1, 0x8000, 0x80000001, 0xFFFFFFFF, 0x00FF1234} {
			init := execInit
			init.D[0] = d0
			init.SR |= 0x10 // X set, so ROXR has something to rotate in
			runBoth(t, program(op, ccProbe, stopWord), init)
		}
	}
}

func TestExecSelfModifyingCode(t *testing.T) {
	cfg := jitTestConfig()
	cfg.LazyFlush = true
	cpu, bus := newJITCPU(t, cfg)
	writeProgram(bus, 0x1000, program([]uint16{0x7001}, stopWord)) // MOVEQ #1,D0

	for i := 0; i < jitIterations; i++ {
		cpu.SetState(execInit)
		runUntilStop(t, cpu)
		if d0 := cpu.Registers().D[0]; d0 != 1 {
			t.Fatalf("D0 = %08X before modification, want 1", d0)
		}
	}

	// The guest rewrites its own immediate; the emulator signals it with
	// a lazy flush. The stale block must detect the change and the new
	// code must take effect.
	bus.Write(Byte, 0x1001, 0x02)
	cpu.JITEngine().Flush()

	for i := 0; i < jitIterations; i++ {
		cpu.SetState(execInit)
		runUntilStop(t, cpu)
		if d0 := cpu.Registers().D[0]; d0 != 2 {
			t.Fatalf("D0 = %08X after modification, want 2", d0)
		}
	}
}

func TestExecDispatchClosure(t *testing.T) {
	cpu, bus := newJITCPU(t, jitTestConfig())
	writeProgram(bus, 0x1000, program([]uint16{0xD081}, stopWord))

	for i := 0; i < jitIterations; i++ {
		cpu.SetState(execInit)
		runUntilStop(t, cpu)
	}

	bi := cpu.JITEngine().getBlockinfoAddr(0x1000)
	if bi == nil {
		t.Fatal("no block exists for the hot PC")
	}
	if bi.status != biActive {
		t.Fatalf("hot block status %d, want active", bi.status)
	}
	if bi.optlevel == 0 {
		t.Fatal("hot block never escalated past the stub")
	}
}

func TestExecFallbackKeepsSemantics(t *testing.T) {
	// MULU has no compile handler; the block must degrade to the
	// interpreter without changing results.
	init := execInit
	init.D[0] = 1234
	init.D[1] = 567
	r := runBoth(t, program([]uint16{
		0xC2C0, // MULU.W D0,D1
		0x5281, // ADDQ.L #1,D1
	}, stopWord), init)
	if r.D[1] != 1234*567+1 {
		t.Fatalf("D1 = %d, want %d", r.D[1], 1234*567+1)
	}
}
