package m68k

import "testing"

// newCompiler builds a bare compile context over a scratch buffer — no
// engine, no guest — which is all the allocator needs.
func newCompiler() *compiler {
	p := &compiler{a: &asm{buf: make([]byte, 4096)}}
	p.initComp()
	return p
}

// checkAllocInvariants verifies the documented virtual/host register
// invariants after any sequence of operations.
func checkAllocInvariants(t *testing.T, p *compiler) {
	t.Helper()
	for r := 0; r < vRegCount; r++ {
		st := &p.live.state[r]
		switch st.status {
		case stClean, stDirty:
			if st.realReg < 0 {
				t.Fatalf("vreg %d is %d but has no host register", r, st.status)
			}
			nat := &p.live.nat[st.realReg]
			found := 0
			for i := 0; i < nat.nholds; i++ {
				if nat.holds[i] == r {
					found++
					if i != st.realInd {
						t.Fatalf("vreg %d realInd %d but found at %d", r, st.realInd, i)
					}
				}
			}
			if found != 1 {
				t.Fatalf("vreg %d appears %d times in holds of host %d", r, found, st.realReg)
			}
			if st.val != 0 && st.validSize != 4 {
				t.Fatalf("vreg %d carries offset %#x at partial width %d", r, st.val, st.validSize)
			}
		case stInMem, stConst, stUndef:
			if st.realReg != -1 {
				t.Fatalf("vreg %d status %d still claims host register %d", r, st.status, st.realReg)
			}
		}
	}
	for _, n := range allocatable {
		nat := &p.live.nat[n]
		for i := 0; i < nat.nholds; i++ {
			vr := nat.holds[i]
			if p.live.state[vr].realReg != n {
				t.Fatalf("host %d holds vreg %d which points at host %d", n, vr, p.live.state[vr].realReg)
			}
		}
	}
}

func TestAllocReadWriteRoundTrip(t *testing.T) {
	p := newCompiler()

	r := p.readreg(0, 4)
	if p.live.state[0].status != stClean {
		t.Fatalf("read did not leave D0 clean: %d", p.live.state[0].status)
	}
	p.unlock(r)

	w := p.writereg(1, 4)
	if p.live.state[1].status != stDirty {
		t.Fatal("write did not mark D1 dirty")
	}
	if w == r && p.live.nat[w].nholds != 1 {
		t.Fatal("write target shared")
	}
	p.unlock(w)
	checkAllocInvariants(t, p)

	p.flushAll()
	for r := 0; r < 16; r++ {
		if p.live.state[r].status == stDirty {
			t.Fatalf("vreg %d still dirty after flush", r)
		}
	}
	checkAllocInvariants(t, p)
}

func TestAllocLRUEviction(t *testing.T) {
	p := newCompiler()

	// Touch more virtual registers than there are allocatable host
	// registers; every request must still be satisfied.
	for r := 0; r < 16; r++ {
		h := p.writereg(r, 4)
		p.unlock(h)
	}
	checkAllocInvariants(t, p)

	// The early victims were evicted and written back.
	evicted := 0
	for r := 0; r < 16; r++ {
		if p.live.state[r].status == stInMem {
			evicted++
		}
	}
	if evicted == 0 {
		t.Fatal("no evictions with 16 vregs over 11 host registers")
	}
	if p.a.pos == 0 {
		t.Fatal("eviction emitted no spill code")
	}
}

func TestAllocLockPreventsEviction(t *testing.T) {
	p := newCompiler()
	h := p.readreg(3, 4)

	for r := 0; r < 16; r++ {
		if r == 3 {
			continue
		}
		h2 := p.writereg(r, 4)
		p.unlock(h2)
	}
	if p.live.state[3].realReg != h {
		t.Fatal("locked register was evicted")
	}
	p.unlock(h)
	checkAllocInvariants(t, p)
}

func TestAllocConstantPropagation(t *testing.T) {
	p := newCompiler()
	p.movlRI(2, 0x1234)
	if !p.isconst(2) {
		t.Fatal("mov imm did not set ISCONST")
	}
	if p.a.pos != 0 {
		t.Fatal("constant set emitted code")
	}

	// A read materializes it.
	h := p.readreg(2, 4)
	if p.isconst(2) || p.live.state[2].realReg != h {
		t.Fatal("read did not materialize the constant")
	}
	p.unlock(h)
	checkAllocInvariants(t, p)
}

func TestAllocConstantFolding(t *testing.T) {
	p := newCompiler()
	p.needflags = false
	p.movlRI(4, 100)
	p.addlRI(4, 28)
	if !p.isconst(4) || p.live.state[4].val != 128 {
		t.Fatalf("const add folded to %#x, want 128", p.live.state[4].val)
	}
	if p.a.pos != 0 {
		t.Fatal("folded add emitted code")
	}

	// With live flags the fold is not allowed.
	p.needflags = true
	p.addlRI(4, 1)
	if p.isconst(4) {
		t.Fatal("flag-producing add folded a constant")
	}
}

func TestAllocOffsetPropagation(t *testing.T) {
	p := newCompiler()
	h := p.readreg(8, 4) // A0
	p.unlock(h)
	mark := p.a.pos

	p.needflags = false
	p.leaDisp(8, 8, 32)
	if p.a.pos != mark {
		t.Fatal("lea with register destination emitted code immediately")
	}
	if p.getOffset(8) != 32 {
		t.Fatalf("offset = %d, want 32", p.getOffset(8))
	}

	// A narrowing read forces materialization.
	h = p.readreg(8, 2)
	p.unlock(h)
	if p.getOffset(8) != 0 {
		t.Fatal("offset survived a width-narrowing read")
	}
	if p.a.pos == mark {
		t.Fatal("offset materialization emitted no code")
	}
	checkAllocInvariants(t, p)
}

func TestAllocAliasingAndSplit(t *testing.T) {
	p := newCompiler()

	h := p.readreg(0, 4)
	p.unlock(h)
	p.movlRR(1, 0) // D1 aliases D0's host register
	if p.live.state[1].realReg != p.live.state[0].realReg {
		t.Fatal("mov rr did not alias")
	}
	if p.live.nat[p.live.state[0].realReg].nholds != 2 {
		t.Fatal("host register does not hold both")
	}

	// Writing D1 must split the pair.
	w := p.writereg(1, 4)
	p.unlock(w)
	if p.live.state[1].realReg == p.live.state[0].realReg {
		t.Fatal("write target still shares a host register")
	}
	checkAllocInvariants(t, p)
}

func TestAllocSpecificRegister(t *testing.T) {
	p := newCompiler()
	h := p.readregSpecific(5, 4, hRCX)
	if h != hRCX {
		t.Fatalf("specific read landed in %d, want RCX", h)
	}
	p.unlock(h)

	h = p.writeregSpecific(vFlagTmp, 4, hRAX)
	if h != hRAX {
		t.Fatalf("FLAGTMP landed in %d, want RAX", h)
	}
	p.unlock(h)
	checkAllocInvariants(t, p)
}

func TestAllocPartialWidthMerge(t *testing.T) {
	p := newCompiler()

	// Dirty low word only.
	h := p.writereg(6, 2)
	p.unlock(h)
	if p.live.state[6].validSize != 2 || p.live.state[6].dirtySize != 2 {
		t.Fatalf("partial write sizes: valid %d dirty %d",
			p.live.state[6].validSize, p.live.state[6].dirtySize)
	}

	// A full-width read must produce a merged 32-bit view.
	h = p.readreg(6, 4)
	p.unlock(h)
	if p.live.state[6].validSize != 4 {
		t.Fatal("merge did not widen the view")
	}
	checkAllocInvariants(t, p)
}

func TestAllocForgetAbout(t *testing.T) {
	p := newCompiler()
	h := p.writereg(7, 4)
	p.unlock(h)
	p.forgetAbout(7)
	if p.live.state[7].status == stDirty || p.live.state[7].realReg != -1 {
		t.Fatal("forgotten register still cached")
	}
	checkAllocInvariants(t, p)
}

func TestAllocLeakCheck(t *testing.T) {
	p := newCompiler()
	h := p.readreg(0, 4)
	defer func() {
		if recover() == nil {
			t.Fatal("leaked pin not caught")
		}
		_ = h
	}()
	p.leakCheck()
}
