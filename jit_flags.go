package m68k

// Lazy condition-flag engine.
//
// Host instructions produce host flags, which quite often are exactly the
// guest flags we want. The guest flags therefore live in one of two places:
// the host flag register itself, or the cznv word of the state vector
// (reached through the FLAGTMP virtual register). Either place can hold
// valid flags or trash; the pair (flagsInFlags, flagsOnStack) tracks which.
//
// The X flag is not part of this dance: the 68k preserves X across most
// flag-trashing instructions, so it lives in its own virtual register
// (FLAGX) and is copied in and out of the carry bit explicitly.

// spillFlags moves the host flags into the cznv word via FLAGTMP using the
// LAHF/SETO sequence. FLAGTMP is pinned to RAX because LAHF and SETO
// address AH and AL.
func (p *compiler) spillFlags() {
	r := p.writeregSpecific(vFlagTmp, 4, hRAX)
	p.a.lahf()
	p.a.setccR(ccO, hRAX) // seto al
	p.unlock(r)
}

// reloadFlags loads the cznv word back into the host flag register:
// add al,0x7F re-derives OF from the saved overflow byte, sahf restores
// the rest.
func (p *compiler) reloadFlags() {
	r := p.readregSpecific(vFlagTmp, 4, hRAX)
	p.a.alubRI(aluADD, hRAX, 0x7F)
	p.a.sahf()
	p.unlock(r)
}

// makeFlagsLive guarantees the guest flags are in the host flag register.
func (p *compiler) makeFlagsLive() {
	lv := &p.live
	if lv.flagsInFlags == flagValid {
		return
	}
	if lv.flagsOnStack == flagTrash {
		panic("m68k: jit: flags wanted but both homes hold trash")
	}
	p.reloadFlags()
	lv.flagsInFlags = flagValid
}

// flagsToStack makes the in-memory copy current so the host flags may be
// clobbered.
func (p *compiler) flagsToStack() {
	lv := &p.live
	if lv.flagsOnStack == flagValid {
		return
	}
	if !lv.flagsImportant {
		lv.flagsOnStack = flagValid
		return
	}
	if lv.flagsInFlags != flagValid {
		panic("m68k: jit: spilling flags that are not live")
	}
	p.spillFlags()
	lv.flagsOnStack = flagValid
}

// clobberFlags declares that the next emitted instruction trashes the host
// flags without producing guest-meaningful ones.
func (p *compiler) clobberFlags() {
	lv := &p.live
	if lv.flagsInFlags == flagValid && lv.flagsOnStack != flagValid {
		p.flagsToStack()
	}
	lv.flagsInFlags = flagTrash
}

// liveFlags declares that the instruction just emitted left the correct
// guest flags in the host flag register.
func (p *compiler) liveFlags() {
	lv := &p.live
	lv.flagsImportant = true
	lv.flagsInFlags = flagValid
	lv.flagsOnStack = flagTrash
}

// dontCareFlags marks the flags as disposable until the next liveFlags:
// both homes count as valid so nothing is ever spilled or reloaded.
func (p *compiler) dontCareFlags() {
	lv := &p.live
	lv.flagsImportant = false
	lv.flagsInFlags = flagValid
	lv.flagsOnStack = flagValid
}

// flushFlags prepares for leaving compiled code: the in-memory copy must be
// current.
func (p *compiler) flushFlags() {
	p.flagsToStack()
}

// duplicateCarry copies the host carry into the FLAGX register. Called
// right after an emitted instruction whose carry is the 68k X result.
func (p *compiler) duplicateCarry() {
	r := p.rmw(vFlagX, 1, 1)
	p.a.setccR(ccB, r) // setc
	p.unlock(r)
}

// restoreCarry loads FLAGX back into the host carry bit ahead of an
// ADDX/SUBX/NEGX-style instruction. bt leaves every other host flag alone.
func (p *compiler) restoreCarry() {
	r := p.readreg(vFlagX, 4)
	p.a.btlRI(r, 0)
	p.unlock(r)
}

// condToNative maps a 68k condition code (2-15) to the native condition
// under the direct flag mapping (guest flags live in host flags).
func condToNative(cc uint16) int {
	switch cc {
	case 2: // HI
		return ccA
	case 3: // LS
		return ccBE
	case 4: // CC
		return ccAE
	case 5: // CS
		return ccB
	case 6: // NE
		return ccNE
	case 7: // EQ
		return ccE
	case 8: // VC
		return ccNO
	case 9: // VS
		return ccO
	case 10: // PL
		return ccNS
	case 11: // MI
		return ccS
	case 12: // GE
		return ccGE
	case 13: // LT
		return ccL
	case 14: // GT
		return ccG
	default: // LE
		return ccLE
	}
}

// nativeInverse flips a native condition code.
func nativeInverse(cc int) int {
	return cc ^ 1
}
