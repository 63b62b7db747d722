package m68k

// opFunc is the handler signature for a single MC68000 instruction.
// The first word of the instruction is already in c.ir when called.
type opFunc func(*CPU)

// opcodeTable is a 64K-entry lookup table indexed by the first instruction word.
// nil entries are treated as illegal instructions.
var opcodeTable [65536]opFunc

// CCR bit masks used by the translator's flag-liveness pass.
const (
	ccrC uint8 = 1 << iota
	ccrV
	ccrZ
	ccrN
	ccrX

	ccrCZNV = ccrC | ccrV | ccrZ | ccrN
	ccrAll  = ccrCZNV | ccrX
)

// Control-flow classes. Everything except cfNormal terminates a recorded
// trace; cfConstJump may additionally be followed through when inlining
// is enabled.
const (
	cfNormal    = uint8(iota) // falls through to the next instruction
	cfBranch                  // conditional or computed control flow
	cfConstJump               // unconditional jump to a constant target
	cfTrap                    // raises an exception
)

// opProp describes one opcode to the translator: which CCR flags it
// reads, which it defines, and how it ends (or doesn't end) a block.
// isAddx marks the ADDX/SUBX/NEGX family, whose Z output also depends on
// the incoming Z.
type opProp struct {
	use    uint8
	set    uint8
	cflow  uint8
	isAddx bool
}

// opProps parallels opcodeTable. The registration functions in the ops
// files fill it in; unregistered opcodes keep the conservative default
// (trap, all flags live). Initialized as a variable so it is ready before
// any init function runs.
var opProps = func() (t [65536]opProp) {
	for i := range t {
		t[i] = opProp{use: ccrAll, set: ccrAll, cflow: cfTrap}
	}
	return
}()

// setProp records the translator-visible behavior of one opcode.
func setProp(opcode uint16, use, set uint8) {
	opProps[opcode] = opProp{use: use, set: set, cflow: cfNormal}
}

// setPropFlow is setProp for opcodes that end a block.
func setPropFlow(opcode uint16, use, set, cflow uint8) {
	opProps[opcode] = opProp{use: use, set: set, cflow: cflow}
}

// setPropAddx marks an extended-arithmetic opcode (X consumed, Z sticky).
func setPropAddx(opcode uint16) {
	opProps[opcode] = opProp{use: ccrX | ccrZ, set: ccrAll, isAddx: true}
}

// condUse returns the CCR flags a 68k condition code (0-15) reads.
func condUse(cc uint16) uint8 {
	switch cc {
	case 0, 1: // T, F
		return 0
	case 2, 3: // HI, LS
		return ccrC | ccrZ
	case 4, 5: // CC, CS
		return ccrC
	case 6, 7: // NE, EQ
		return ccrZ
	case 8, 9: // VC, VS
		return ccrV
	case 10, 11: // PL, MI
		return ccrN
	case 12, 13: // GE, LT
		return ccrN | ccrV
	default: // GT, LE
		return ccrN | ccrV | ccrZ
	}
}
