package m68k

import "testing"

func TestFlagStateAfterInit(t *testing.T) {
	p := newCompiler()
	if p.live.flagsInFlags != flagTrash {
		t.Fatal("host flags should start as trash")
	}
	if p.live.flagsOnStack != flagValid {
		t.Fatal("spilled flags should start valid")
	}
}

func TestFlagLiveThenClobberSpills(t *testing.T) {
	p := newCompiler()
	p.liveFlags()
	if p.live.flagsInFlags != flagValid || p.live.flagsOnStack != flagTrash {
		t.Fatal("liveFlags state wrong")
	}

	mark := p.a.pos
	p.clobberFlags()
	if p.live.flagsOnStack != flagValid {
		t.Fatal("clobber did not make the spilled copy valid")
	}
	if p.live.flagsInFlags != flagTrash {
		t.Fatal("clobber left host flags valid")
	}
	if p.a.pos == mark {
		t.Fatal("spill emitted no code")
	}
	// FLAGTMP must have landed in RAX (LAHF/SETO addressing).
	if p.live.state[vFlagTmp].realReg != hRAX {
		t.Fatalf("FLAGTMP in host %d, want RAX", p.live.state[vFlagTmp].realReg)
	}
}

func TestFlagMaterializeFromMemory(t *testing.T) {
	p := newCompiler()
	mark := p.a.pos
	p.makeFlagsLive()
	if p.live.flagsInFlags != flagValid {
		t.Fatal("makeFlagsLive did not validate host flags")
	}
	if p.a.pos == mark {
		t.Fatal("materialization emitted no code")
	}

	// Already live: no further code.
	mark = p.a.pos
	p.makeFlagsLive()
	if p.a.pos != mark {
		t.Fatal("redundant materialization emitted code")
	}
}

func TestFlagDontCareSuppressesSpill(t *testing.T) {
	p := newCompiler()
	p.liveFlags()
	p.dontCareFlags()
	mark := p.a.pos
	p.clobberFlags()
	if p.a.pos != mark {
		t.Fatal("clobber spilled disposable flags")
	}
}

func TestFlagCarryDuplication(t *testing.T) {
	p := newCompiler()
	mark := p.a.pos
	p.duplicateCarry()
	if p.live.state[vFlagX].status != stDirty {
		t.Fatal("duplicateCarry did not write FLAGX")
	}
	if p.a.pos == mark {
		t.Fatal("duplicateCarry emitted no code")
	}

	p.restoreCarry()
	checkAllocInvariants(t, p)
}

func TestFlagCCRPacking(t *testing.T) {
	cases := []struct {
		ccr uint8
	}{
		{0x00}, {0x1F}, {0x01}, {0x02}, {0x04}, {0x08}, {0x10}, {0x15}, {0x0A},
	}
	for _, c := range cases {
		cznv, x := unpackCCR(c.ccr)
		if got := packCCR(cznv, x); got != c.ccr {
			t.Fatalf("CCR %02x round-tripped to %02x", c.ccr, got)
		}
	}
}

func TestCondToNativeCoversAllConditions(t *testing.T) {
	// Spot checks against the 68k condition semantics: EQ tests Z, which
	// maps to the host equal condition, etc.
	if condToNative(7) != ccE || condToNative(6) != ccNE {
		t.Fatal("EQ/NE mapping wrong")
	}
	if condToNative(5) != ccB || condToNative(4) != ccAE {
		t.Fatal("CS/CC mapping wrong")
	}
	if condToNative(11) != ccS || condToNative(10) != ccNS {
		t.Fatal("MI/PL mapping wrong")
	}
	for cc := uint16(2); cc < 16; cc++ {
		n := condToNative(cc)
		if nativeInverse(nativeInverse(n)) != n {
			t.Fatal("inverse is not an involution")
		}
	}
}
