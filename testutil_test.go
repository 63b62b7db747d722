package m68k

import "testing"

// RAM exposes the flat backing store so the translator's direct-memory
// fast path can engage in tests.
func (b *testBus) RAM() []byte { return b.mem[:] }

// writeProgram stores big-endian instruction words starting at addr.
func writeProgram(bus *testBus, addr uint32, words []uint16) {
	for i, w := range words {
		writeWord(bus, addr+uint32(i*2), w)
	}
}

// jitTestConfig is the translator setup used by the package tests: a hot
// threshold of 1 so blocks translate on their second dispatch, and a
// high recompile ceiling so tests see stable code.
func jitTestConfig() JITConfig {
	cfg := DefaultJITConfig()
	cfg.CacheSize = 2048
	cfg.OptCount = [3]int{1, 0, 1 << 20}
	return cfg
}

// newJITCPU builds a CPU over a fresh flat bus with the translator
// attached, skipping the test when the host has no backend.
func newJITCPU(t *testing.T, cfg JITConfig) (*CPU, *testBus) {
	t.Helper()
	bus := &testBus{}
	cpu := &CPU{bus: bus}
	cpu.SetState(Registers{PC: 0x1000, SR: 0x2700, SSP: 0x10000})
	if err := cpu.AttachJIT(cfg); err != nil {
		t.Skipf("translator unavailable: %v", err)
	}
	t.Cleanup(cpu.DetachJIT)
	return cpu, bus
}

// runUntilStop drives the CPU until it reaches a STOP state (or halts),
// bounding the effort so a broken block cannot hang the test.
func runUntilStop(t *testing.T, cpu *CPU) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		if cpu.Stopped() || cpu.Halted() {
			return
		}
		cpu.Run(1)
	}
	t.Fatal("program did not reach STOP")
}
