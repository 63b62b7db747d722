package m68k

import (
	"encoding/binary"
	"unsafe"
)

// Block states.
const (
	biInvalid = iota
	biActive
	biNeedCheck
	biNeedRecomp
	biChecking
	biCompiling
	biFinalizing
)

const (
	tagBits    = 15
	tagSize    = 1 << tagBits // dispatch table entries
	tagMask    = tagSize - 1
	maxHoldBI  = 256  // pre-prepared blockinfos between compiles
	maxRun     = 1024 // trace length cap
	longestInst = 12  // worst-case 68k instruction length in bytes
	maxChecksumLen = 2048
	compileSafety  = 1024 // hard-flush margin at the end of the cache
)

// blockInfo is the metadata for one translated region. It is allocated
// from the pinned data arena: generated code embeds the addresses of the
// count and pcp fields, so a blockinfo must never move for the life of
// the engine. Recycling goes through the free list instead.
type blockInfo struct {
	count int32  // countdown; block-head code decrements and traps on <0
	pcp   uint32 // guest offset of the first instruction

	handler      uintptr // non-direct entry (pc_p guard), 0 when invalid
	handlerToUse uintptr // what the dispatch tag holds right now
	directHandler uintptr // chained entry, 0 when invalid
	directToUse  uintptr // what chained callers currently jump to
	directPen    uintptr // per-block execute-normal trampoline
	directPcc    uintptr // per-block checksum-check trampoline

	status      int
	optlevel    int
	c1, c2      uint32
	csi         *checksumInfo
	neededFlags uint8
	inROM       bool

	// Hash-line chain (double indirection so unlinking needs no walk).
	nextSameCl *blockInfo
	prevSameCl **blockInfo

	// Membership in the active or dormant list.
	next  *blockInfo
	prevP **blockInfo

	// Outgoing edges (a block chains to at most two successors) and the
	// incoming edge list.
	dep     [2]dependency
	deplist *dependency

	nextFree *blockInfo
}

// dependency is one chaining edge: a patchable jump in the source block
// aimed at the target block's direct handler.
type dependency struct {
	jmpOff int // cache offset of the rel32 field, 0 = unused
	source *blockInfo
	target *blockInfo
	next   *dependency
	prevP  **dependency
}

// checksumInfo records one covered guest-memory range.
type checksumInfo struct {
	start  uint32
	length int32
	next   *checksumInfo
}

// cacheline hashes a guest PC offset into a dispatch-table index.
func cacheline(pcp uint32) uint32 {
	return (pcp >> 1) & tagMask
}

// addr converts a cache offset into the absolute entry address generated
// code jumps through.
func (j *JIT) addr(pos int) uintptr {
	return uintptr(unsafe.Pointer(&j.cache[0])) + uintptr(pos)
}

func (j *JIT) getBlockinfo(cl uint32) *blockInfo {
	return j.tagBI[cl]
}

// getBlockinfoAddr finds the block starting at the given guest offset, or
// nil.
func (j *JIT) getBlockinfoAddr(pcp uint32) *blockInfo {
	bi := j.getBlockinfo(cacheline(pcp))
	for bi != nil {
		if bi.pcp == pcp {
			return bi
		}
		bi = bi.nextSameCl
	}
	return nil
}

/* --- list plumbing ------------------------------------------------------- */

func (j *JIT) removeFromClList(bi *blockInfo) {
	cl := cacheline(bi.pcp)
	if bi.prevSameCl != nil {
		*bi.prevSameCl = bi.nextSameCl
	}
	if bi.nextSameCl != nil {
		bi.nextSameCl.prevSameCl = bi.prevSameCl
	}
	if j.tagBI[cl] != nil {
		j.tags[cl] = j.tagBI[cl].handlerToUse
	} else {
		j.tags[cl] = j.popallExecuteNormal
	}
}

func (j *JIT) addToClList(bi *blockInfo) {
	cl := cacheline(bi.pcp)
	if j.tagBI[cl] != nil {
		j.tagBI[cl].prevSameCl = &bi.nextSameCl
	}
	bi.nextSameCl = j.tagBI[cl]
	j.tagBI[cl] = bi
	bi.prevSameCl = &j.tagBI[cl]
	j.tags[cl] = bi.handlerToUse
}

// raiseInClList moves a block to the head of its hash line so the direct
// dispatch hits it first.
func (j *JIT) raiseInClList(bi *blockInfo) {
	j.removeFromClList(bi)
	j.addToClList(bi)
}

func (j *JIT) addToActive(bi *blockInfo) {
	if j.active != nil {
		j.active.prevP = &bi.next
	}
	bi.next = j.active
	j.active = bi
	bi.prevP = &j.active
}

func (j *JIT) addToDormant(bi *blockInfo) {
	if j.dormant != nil {
		j.dormant.prevP = &bi.next
	}
	bi.next = j.dormant
	j.dormant = bi
	bi.prevP = &j.dormant
}

func removeFromList(bi *blockInfo) {
	if bi.prevP != nil {
		*bi.prevP = bi.next
	}
	if bi.next != nil {
		bi.next.prevP = bi.prevP
	}
	bi.next = nil
	bi.prevP = nil
}

func removeDep(d *dependency) {
	if d.prevP != nil {
		*d.prevP = d.next
	}
	if d.next != nil {
		d.next.prevP = d.prevP
	}
	d.prevP = nil
	d.next = nil
}

// removeDeps detaches both outgoing edges: this block's code is about to
// be thrown away, so it no longer depends on anything.
func removeDeps(bi *blockInfo) {
	removeDep(&bi.dep[0])
	removeDep(&bi.dep[1])
}

// adjustJmpdep re-aims one incoming edge's patch site.
func (j *JIT) adjustJmpdep(d *dependency, target uintptr) {
	j.writeJmpTarget(d.jmpOff, target)
}

// writeJmpTarget patches the rel32 field at the given cache offset to land
// on an absolute entry address.
func (j *JIT) writeJmpTarget(site int, target uintptr) {
	rel := uint32(target - j.addr(site) - 4)
	binary.LittleEndian.PutUint32(j.cache[site:], rel)
}

// setDhtu changes the entry point chained callers use, walking the
// incoming edge list and re-patching every caller.
func (j *JIT) setDhtu(bi *blockInfo, dh uintptr) {
	if dh == bi.directToUse {
		return
	}
	for x := bi.deplist; x != nil; x = x.next {
		if x.jmpOff != 0 {
			j.adjustJmpdep(x, dh)
		}
	}
	bi.directToUse = dh
}

/* --- lifecycle ----------------------------------------------------------- */

// invalidateBlock resets a block to the not-yet-compiled state: counters
// re-armed, handlers detached, incoming callers re-aimed at the
// execute-normal trampoline, all edges dropped.
func (j *JIT) invalidateBlock(bi *blockInfo) {
	bi.optlevel = 0
	bi.count = int32(j.cfg.OptCount[0] - 1)
	bi.handler = 0
	bi.handlerToUse = j.popallExecuteNormal
	bi.directHandler = 0
	j.setDhtu(bi, bi.directPen)
	bi.neededFlags = 0xFF
	bi.status = biInvalid
	for i := range bi.dep {
		bi.dep[i].jmpOff = 0
		bi.dep[i].target = nil
	}
	removeDeps(bi)
}

// blockNeedRecompile routes every entry path of an active block back
// through the slow trampolines.
func (j *JIT) blockNeedRecompile(bi *blockInfo) {
	cl := cacheline(bi.pcp)
	j.setDhtu(bi, bi.directPen)
	bi.directHandler = bi.directPen
	bi.handlerToUse = j.popallExecuteNormal
	bi.handler = j.popallExecuteNormal
	if bi == j.tagBI[cl] {
		j.tags[cl] = j.popallExecuteNormal
	}
	bi.status = biNeedRecomp
}

// createJmpdep records the chaining edge from bi's slot i to the block at
// the target guest offset.
func (j *JIT) createJmpdep(bi *blockInfo, i int, jmpOff int, target uint32) {
	tbi := j.getBlockinfoAddr(target)
	if tbi == nil {
		panic("m68k: jit: chaining to an unknown block")
	}
	d := &bi.dep[i]
	d.jmpOff = jmpOff
	d.source = bi
	d.target = tbi
	d.next = tbi.deplist
	if d.next != nil {
		d.next.prevP = &d.next
	}
	d.prevP = &tbi.deplist
	tbi.deplist = d
}

// getBlockinfoAddrNew finds or allocates the block for a guest offset,
// pulling a prepared blockinfo from the hold list.
func (j *JIT) getBlockinfoAddrNew(pcp uint32) *blockInfo {
	if bi := j.getBlockinfoAddr(pcp); bi != nil {
		return bi
	}
	for i := range j.holdBI {
		if j.holdBI[i] == nil {
			continue
		}
		bi := j.holdBI[i]
		j.holdBI[i] = nil
		bi.pcp = pcp
		j.invalidateBlock(bi)
		j.addToActive(bi)
		j.addToClList(bi)
		return bi
	}
	panic("m68k: jit: no free blockinfo")
}

/* --- blockinfo allocation ------------------------------------------------ */

// allocBlockinfo pops a recycled blockinfo or carves a fresh one from the
// data arena.
func (j *JIT) allocBlockinfo() *blockInfo {
	if bi := j.freeBI; bi != nil {
		j.freeBI = bi.nextFree
		*bi = blockInfo{}
		return bi
	}
	return (*blockInfo)(j.arena.alloc(int(unsafe.Sizeof(blockInfo{})), 8))
}

func (j *JIT) freeBlockinfo(bi *blockInfo) {
	j.freeChecksumChain(bi.csi)
	bi.csi = nil
	bi.nextFree = j.freeBI
	j.freeBI = bi
}

func (j *JIT) allocChecksumInfo() *checksumInfo {
	if c := j.freeCSI; c != nil {
		j.freeCSI = c.next
		*c = checksumInfo{}
		return c
	}
	return (*checksumInfo)(j.arena.alloc(int(unsafe.Sizeof(checksumInfo{})), 8))
}

func (j *JIT) freeChecksumChain(c *checksumInfo) {
	for c != nil {
		next := c.next
		c.next = j.freeCSI
		j.freeCSI = c
		c = next
	}
}

// allocBlockinfos keeps the hold list full of prepared blocks so the
// compiler never allocates mid-compile.
func (j *JIT) allocBlockinfos() {
	for i := range j.holdBI {
		if j.holdBI[i] != nil {
			return
		}
		bi := j.allocBlockinfo()
		j.prepareBlock(bi)
		j.holdBI[i] = bi
	}
}

/* --- checksums ----------------------------------------------------------- */

// calcChecksum computes the sum and xor checksums over every covered
// guest-memory range.
func (j *JIT) calcChecksum(bi *blockInfo) (c1, c2 uint32) {
	for csi := bi.csi; csi != nil; csi = csi.next {
		length := csi.length
		start := csi.start
		// Align down to a 32-bit boundary, widening the range to match.
		length += int32(start & 3)
		start &^= 3
		if length < 0 || length > maxChecksumLen {
			continue
		}
		for length > 0 {
			if int(start)+4 <= len(j.ram) {
				c1 += binary.LittleEndian.Uint32(j.ram[start:])
				c2 ^= binary.LittleEndian.Uint32(j.ram[start:])
			}
			start += 4
			length -= 4
		}
	}
	return c1, c2
}

// blockCheckChecksum revalidates a NEED_CHECK block: matching checksums
// reactivate it (and, transitively, its chained successors); a mismatch
// invalidates it for retranslation.
func (j *JIT) blockCheckChecksum(bi *blockInfo) bool {
	if bi.status != biNeedCheck {
		return true
	}

	var c1, c2 uint32
	if bi.c1 != 0 || bi.c2 != 0 {
		c1, c2 = j.calcChecksum(bi)
	} else {
		c1, c2 = 1, 1 // never matches a zero pair
	}

	good := c1 == bi.c1 && c2 == bi.c2
	if good {
		bi.handlerToUse = bi.handler
		j.setDhtu(bi, bi.directHandler)
		bi.status = biChecking
		good = j.calledCheckChecksum(bi)
	}
	if good {
		removeFromList(bi)
		j.addToActive(bi)
		j.raiseInClList(bi)
		bi.status = biActive
	} else {
		j.invalidateBlock(bi)
		j.raiseInClList(bi)
	}
	return good
}

func (j *JIT) calledCheckChecksum(bi *blockInfo) bool {
	for i := 0; i < 2; i++ {
		if bi.dep[i].jmpOff != 0 {
			if !j.blockCheckChecksum(bi.dep[i].target) {
				return false
			}
		}
	}
	return true
}

/* --- flushes ------------------------------------------------------------- */

// flushHard drops every block and rewinds the cache cursor to just past
// the stub region. The blockinfos are recycled through the free list.
func (j *JIT) flushHard() {
	for _, bi := range []*blockInfo{j.active, j.dormant} {
		for bi != nil {
			cl := cacheline(bi.pcp)
			j.tags[cl] = j.popallExecuteNormal
			j.tagBI[cl] = nil
			next := bi.next
			j.freeBlockinfo(bi)
			bi = next
		}
	}
	j.active = nil
	j.dormant = nil
	for i := range j.holdBI {
		if j.holdBI[i] != nil {
			j.freeBlockinfo(j.holdBI[i])
		}
		j.holdBI[i] = nil
	}
	j.a.setPos(j.cacheStart)
	j.a.err = nil
	j.stats.HardFlushes++
}

// flushLazy is the soft flush: every active block transitions to
// NEED_CHECK and moves to the dormant list; nothing is freed. The next
// entry into each block revalidates through its checksum trampoline.
func (j *JIT) flushLazy() {
	if j.active == nil {
		return
	}
	var last *blockInfo
	for bi := j.active; bi != nil; bi = bi.next {
		cl := cacheline(bi.pcp)
		if bi.status == biInvalid || bi.status == biNeedRecomp {
			if bi == j.tagBI[cl] {
				j.tags[cl] = j.popallExecuteNormal
			}
			bi.handlerToUse = j.popallExecuteNormal
			j.setDhtu(bi, bi.directPen)
			bi.status = biInvalid
		} else {
			if bi == j.tagBI[cl] {
				j.tags[cl] = j.popallCheckChecksum
			}
			bi.handlerToUse = j.popallCheckChecksum
			j.setDhtu(bi, bi.directPcc)
			bi.status = biNeedCheck
		}
		last = bi
	}
	last.next = j.dormant
	if j.dormant != nil {
		j.dormant.prevP = &last.next
	}
	j.dormant = j.active
	j.active.prevP = &j.dormant
	j.active = nil
	j.stats.LazyFlushes++
}

// FlushRange is the partial invalidation: blocks whose covered ranges
// overlap [start, start+length) in guest space are marked for
// recompilation. Other blocks are untouched.
func (j *JIT) FlushRange(start, length uint32) {
	bi := j.active
	for bi != nil {
		next := bi.next
		hit := false
		for csi := bi.csi; csi != nil && !hit; csi = csi.next {
			hit = start < csi.start+uint32(csi.length) && csi.start < start+length
		}
		if hit {
			j.blockNeedRecompile(bi)
		}
		bi = next
	}
}

// Flush invalidates the whole cache using the configured strategy.
func (j *JIT) Flush() {
	if j.cfg.LazyFlush {
		j.flushLazy()
	} else {
		j.flushHard()
	}
}
