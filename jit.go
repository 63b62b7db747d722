package m68k

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unsafe"
)

// jitLogf reports translator diagnostics in the same style as the CPU's
// own logging.
func jitLogf(format string, args ...interface{}) {
	log.Printf("[jit] "+format, args...)
}

// DirectBus is implemented by buses whose whole 24-bit address space is
// backed by one byte slice. The translator requires it: compiled code
// reads and writes guest memory as base-plus-offset with an inline byte
// swap, never through bus callbacks. The slice must stay valid and in
// place for the CPU's lifetime.
type DirectBus interface {
	Bus
	RAM() []byte
}

// ROMBus optionally marks guest addresses as immutable. Blocks compiled
// entirely from ROM skip checksumming and survive lazy flushes untouched.
type ROMBus interface {
	InROM(addr uint32) bool
}

// JITConfig holds the process-wide translator knobs, read once at attach
// time.
type JITConfig struct {
	// CacheSize is the translation cache size in KB. Values below 1024,
	// including 0, disable the translator.
	CacheSize int

	// Inline follows unconditional constant-target jumps into the same
	// block instead of ending the trace.
	Inline bool

	// LazyFlush prefers checksum-revalidation over dropping all blocks
	// when the cache must be invalidated.
	LazyFlush bool

	// FPU compiles the supported FPU moves; anything else still falls
	// back to the interpreter.
	FPU bool

	// Blacklist is a comma-separated list of hex opcode ranges that are
	// never compiled, e.g. "a000-afff,4afc".
	Blacklist string

	// Debug disassembles every compiled block to the log.
	Debug bool

	// OptCount is the execution-count ladder: a block must be entered
	// OptCount[0] times before it is translated, and re-translated after
	// OptCount[2] further runs. A zero OptCount[1] skips level 1, a zero
	// OptCount[2] leaves translated blocks without a countdown, and a zero
	// OptCount[0] replaces the whole ladder with the default one.
	OptCount [3]int
}

// DefaultJITConfig returns the standard knob settings.
func DefaultJITConfig() JITConfig {
	return JITConfig{
		CacheSize: 8192,
		Inline:    true,
		LazyFlush: true,
		OptCount:  [3]int{4, 0, 500},
	}
}

// JITStats is a snapshot of translator counters.
type JITStats struct {
	Compiles      uint64
	CompileAborts uint64
	HardFlushes   uint64
	LazyFlushes   uint64
	CacheMisses   uint64
	ChecksumFails uint64
	JittedBytes   int
}

// dataArena is a bump allocator over pinned memory. Everything generated
// code references by absolute address lives here: the guest state vector,
// the dispatch tag table and the blockinfo pool.
type dataArena struct {
	mem  []byte
	used int
}

func newDataArena(size int) (*dataArena, error) {
	mem, err := vmAlloc(size, false)
	if err != nil {
		return nil, err
	}
	return &dataArena{mem: mem}, nil
}

func (ar *dataArena) alloc(size, align int) unsafe.Pointer {
	ar.used = (ar.used + align - 1) &^ (align - 1)
	if ar.used+size > len(ar.mem) {
		panic("m68k: jit: data arena exhausted")
	}
	p := unsafe.Pointer(&ar.mem[ar.used])
	ar.used += size
	return p
}

// JIT is the dynamic translation engine attached to a CPU. All of its
// mutable state is confined to the CPU's thread; there is no locking.
type JIT struct {
	cpu *CPU
	cfg JITConfig
	ram []byte

	arena *dataArena
	regs  *guestRegs
	tags  []uintptr // dispatch table, read by generated code

	cache      []byte // RWX mapping: stubs, then translated blocks
	cacheStart int    // first usable offset after the stub page
	asmSpace   asm
	a          *asm

	comp compiler

	tagBI   []*blockInfo
	active  *blockInfo
	dormant *blockInfo
	holdBI  [maxHoldBI]*blockInfo
	freeBI  *blockInfo
	freeCSI *checksumInfo

	pushallCallHandler   uintptr
	popallDoNothing      uintptr
	popallExecNostats    uintptr
	popallExecuteNormal  uintptr
	popallCacheMiss      uintptr
	popallRecompileBlock uintptr
	popallCheckChecksum  uintptr

	compBlocked [65536]bool // merged opcode blacklist
	inROM       func(addr uint32) bool

	stats JITStats
}

var errJITUnsupported = errors.New("m68k: jit: no translator backend for this host")

// newJIT builds the engine: data arena, guest state vector, dispatch
// table, executable cache and stubs.
func newJIT(c *CPU, cfg JITConfig) (*JIT, error) {
	if !jitHostSupported {
		return nil, errJITUnsupported
	}
	db, ok := c.bus.(DirectBus)
	if !ok {
		return nil, errors.New("m68k: jit: bus does not expose direct memory")
	}
	ram := db.RAM()
	if len(ram) < 1<<24 {
		return nil, errors.New("m68k: jit: direct memory must cover the 24-bit bus")
	}

	if cfg.OptCount[0] == 0 {
		cfg.OptCount = DefaultJITConfig().OptCount
	}
	if cfg.CacheSize == 0 {
		return nil, errors.New("m68k: jit: disabled (cache size 0)")
	}
	if cfg.CacheSize < 1024 {
		return nil, fmt.Errorf("m68k: jit: cache size %d KB below the 1024 KB minimum", cfg.CacheSize)
	}

	cacheBytes := cfg.CacheSize * 1024
	arenaBytes := cacheBytes*2 + 1<<20

	arena, err := newDataArena(arenaBytes)
	if err != nil {
		return nil, err
	}
	cache, err := vmAlloc(cacheBytes, true)
	if err != nil {
		vmFree(arena.mem)
		return nil, fmt.Errorf("m68k: jit: cannot allocate executable cache: %w", err)
	}

	j := &JIT{
		cpu:   c,
		cfg:   cfg,
		ram:   ram,
		arena: arena,
		cache: cache,
		tagBI: make([]*blockInfo, tagSize),
	}
	if rb, ok := c.bus.(ROMBus); ok {
		j.inROM = rb.InROM
	}
	j.regs = (*guestRegs)(arena.alloc(int(unsafe.Sizeof(guestRegs{})), 8))
	tagMem := arena.alloc(tagSize*8, 8)
	j.tags = unsafe.Slice((*uintptr)(tagMem), tagSize)

	j.asmSpace = asm{buf: cache}
	j.a = &j.asmSpace
	j.comp.j = j
	j.comp.a = j.a

	if err := j.createPopalls(); err != nil {
		j.Close()
		return nil, err
	}
	for i := range j.tags {
		j.tags[i] = j.popallExecuteNormal
	}
	if err := j.mergeBlacklist(); err != nil {
		j.Close()
		return nil, err
	}
	j.allocBlockinfos()

	jitLogf("translation cache: %d KB at %p", cfg.CacheSize, unsafe.Pointer(&cache[0]))
	return j, nil
}

// Close releases the engine's mappings. The CPU must not run with the
// translator attached afterwards.
func (j *JIT) Close() {
	if j.cache != nil {
		vmProtect(j.cache[:stubRegion], true)
		vmFree(j.cache)
		j.cache = nil
	}
	if j.arena != nil {
		vmFree(j.arena.mem)
		j.arena = nil
	}
}

// Stats returns a snapshot of the translator counters.
func (j *JIT) Stats() JITStats {
	s := j.stats
	s.JittedBytes = j.a.here() - j.cacheStart
	return s
}

// mergeBlacklist parses the configured opcode ranges into the blocked
// table.
func (j *JIT) mergeBlacklist() error {
	bl := strings.TrimSpace(j.cfg.Blacklist)
	if bl == "" {
		return nil
	}
	for _, part := range strings.Split(bl, ",") {
		lo, hi, ok := strings.Cut(strings.TrimSpace(part), "-")
		first, err := strconv.ParseUint(lo, 16, 16)
		if err != nil {
			return fmt.Errorf("m68k: jit: bad blacklist opcode %q", part)
		}
		last := first
		if ok {
			last, err = strconv.ParseUint(hi, 16, 16)
			if err != nil || last < first {
				return fmt.Errorf("m68k: jit: bad blacklist range %q", part)
			}
		}
		for op := first; op <= last; op++ {
			j.compBlocked[op] = true
		}
		jitLogf("blacklisted opcodes %04x-%04x", first, last)
	}
	return nil
}

// checkForCacheMiss re-heads the hash line when the current block exists
// but lost its line-head position.
func (j *JIT) checkForCacheMiss() bool {
	bi := j.getBlockinfoAddr(j.regs.pcp)
	if bi != nil && bi != j.getBlockinfo(cacheline(j.regs.pcp)) {
		j.raiseInClList(bi)
		return true
	}
	return false
}

// recompileBlock services the countdown trap: the block is still in the
// cache but wants a hotter translation.
func (j *JIT) recompileBlock() {
	bi := j.getBlockinfoAddr(j.regs.pcp)
	if bi == nil {
		panic("m68k: jit: recompile for an unknown block")
	}
	j.raiseInClList(bi)
	j.cpu.executeNormal()
}

// cacheMiss re-heads the hash line after a tag collision, or compiles the
// block when it is genuinely absent.
func (j *JIT) cacheMiss() {
	bi := j.getBlockinfoAddr(j.regs.pcp)
	j.stats.CacheMisses++
	if bi == nil {
		j.cpu.executeNormal()
		return
	}
	j.raiseInClList(bi)
}

// checkChecksum revalidates the block the dispatch just tried to enter.
func (j *JIT) checkChecksum() {
	pcp := j.regs.pcp
	bi := j.getBlockinfoAddr(pcp)
	if bi == nil {
		// The line head is some dormant block; this PC itself is new.
		j.cpu.executeNormal()
		return
	}
	if bi != j.getBlockinfo(cacheline(pcp)) {
		j.cacheMiss()
		return
	}
	if !j.blockCheckChecksum(bi) {
		j.stats.ChecksumFails++
		j.cpu.executeNormal()
	}
}

// enter dispatches into the cache once and services the resulting exit.
// Returns true while the cache should be re-entered.
func (j *JIT) enter() bool {
	code := jitEnter(j.pushallCallHandler)
	switch code {
	case exitDoNothing:
		return false
	case exitExecNostats:
		j.cpu.execNostats()
	case exitExecuteNormal:
		if !j.checkForCacheMiss() {
			j.cpu.executeNormal()
		}
	case exitCacheMiss:
		j.cacheMiss()
	case exitRecompile:
		j.recompileBlock()
	case exitCheckChecksum:
		j.checkChecksum()
	default:
		panic("m68k: jit: unknown exit code")
	}
	return j.regs.spcflags == 0
}
