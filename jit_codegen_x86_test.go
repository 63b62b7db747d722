package m68k

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

// The encoder is checked against an independent disassembler: every
// emitted form must come back with the mnemonic and operands it claimed
// to encode.

func newAsm() *asm {
	return &asm{buf: make([]byte, 256)}
}

// decodeOne disassembles exactly one instruction and fails on leftovers.
func decodeOne(t *testing.T, a *asm) x86asm.Inst {
	t.Helper()
	if a.err != nil {
		t.Fatalf("encoder error: %v", a.err)
	}
	inst, err := x86asm.Decode(a.buf[:a.pos], 64)
	if err != nil {
		t.Fatalf("disassembly failed on % x: %v", a.buf[:a.pos], err)
	}
	if inst.Len != a.pos {
		t.Fatalf("encoded %d bytes but disassembler consumed %d (% x)", a.pos, inst.Len, a.buf[:a.pos])
	}
	return inst
}

var reg32 = [16]x86asm.Reg{
	x86asm.EAX, x86asm.ECX, x86asm.EDX, x86asm.EBX,
	x86asm.ESP, x86asm.EBP, x86asm.ESI, x86asm.EDI,
	x86asm.R8L, x86asm.R9L, x86asm.R10L, x86asm.R11L,
	x86asm.R12L, x86asm.R13L, x86asm.R14L, x86asm.R15L,
}

var reg64 = [16]x86asm.Reg{
	x86asm.RAX, x86asm.RCX, x86asm.RDX, x86asm.RBX,
	x86asm.RSP, x86asm.RBP, x86asm.RSI, x86asm.RDI,
	x86asm.R8, x86asm.R9, x86asm.R10, x86asm.R11,
	x86asm.R12, x86asm.R13, x86asm.R14, x86asm.R15,
}

func wantOp(t *testing.T, inst x86asm.Inst, op x86asm.Op) {
	t.Helper()
	if inst.Op != op {
		t.Fatalf("decoded %v, want %v (%v)", inst.Op, op, inst)
	}
}

func wantArgReg(t *testing.T, inst x86asm.Inst, i int, r x86asm.Reg) {
	t.Helper()
	if got, ok := inst.Args[i].(x86asm.Reg); !ok || got != r {
		t.Fatalf("arg %d = %v, want %v (%v)", i, inst.Args[i], r, inst)
	}
}

func wantArgImm(t *testing.T, inst x86asm.Inst, i int, v int64) {
	t.Helper()
	if got, ok := inst.Args[i].(x86asm.Imm); !ok || int64(got) != v {
		t.Fatalf("arg %d = %v, want imm %d (%v)", i, inst.Args[i], v, inst)
	}
}

func wantArgMem(t *testing.T, inst x86asm.Inst, i int, m x86asm.Mem) {
	t.Helper()
	got, ok := inst.Args[i].(x86asm.Mem)
	if !ok {
		t.Fatalf("arg %d = %v, want memory operand (%v)", i, inst.Args[i], inst)
	}
	if got.Base != m.Base || got.Index != m.Index || got.Disp != m.Disp ||
		(m.Index != 0 && got.Scale != m.Scale) {
		t.Fatalf("arg %d = %+v, want %+v (%v)", i, got, m, inst)
	}
}

func TestEncodeMovRegImm(t *testing.T) {
	for r := 0; r < 16; r++ {
		if r == hRSP {
			continue
		}
		a := newAsm()
		a.movlRI(r, 0x12345678)
		inst := decodeOne(t, a)
		wantOp(t, inst, x86asm.MOV)
		wantArgReg(t, inst, 0, reg32[r])
		wantArgImm(t, inst, 1, 0x12345678)
	}
}

func TestEncodeMovAbs64(t *testing.T) {
	a := newAsm()
	a.movqRI(hR14, 0x1122334455667788)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.MOV)
	wantArgReg(t, inst, 0, x86asm.R14)
	wantArgImm(t, inst, 1, 0x1122334455667788)
}

func TestEncodeMovRegReg(t *testing.T) {
	a := newAsm()
	a.movlRR(hRSI, hR9)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.MOV)
	wantArgReg(t, inst, 0, x86asm.ESI)
	wantArgReg(t, inst, 1, x86asm.R9L)
}

func TestEncodeMovLoadStateOperand(t *testing.T) {
	a := newAsm()
	a.movlRM(hRAX, stateMem(0x40))
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.MOV)
	wantArgReg(t, inst, 0, x86asm.EAX)
	wantArgMem(t, inst, 1, x86asm.Mem{Base: x86asm.R14, Disp: 0x40})
}

// R13 is encoded like RBP: a zero displacement still needs an explicit
// disp8 byte.
func TestEncodeZeroDispOnBPandR13(t *testing.T) {
	for _, base := range []int{hRBP, hR13} {
		a := newAsm()
		a.movlRM(hRCX, baseMem(base, 0))
		inst := decodeOne(t, a)
		wantOp(t, inst, x86asm.MOV)
		wantArgMem(t, inst, 1, x86asm.Mem{Base: reg64[base], Disp: 0})
	}
}

// RSP and R12 as bases force a SIB byte.
func TestEncodeSIBForcedBases(t *testing.T) {
	for _, base := range []int{hRSP, hR12} {
		a := newAsm()
		a.movlRM(hRDX, baseMem(base, 8))
		inst := decodeOne(t, a)
		wantOp(t, inst, x86asm.MOV)
		wantArgMem(t, inst, 1, x86asm.Mem{Base: reg64[base], Disp: 8})
	}
}

func TestEncodeIndexedLoad(t *testing.T) {
	a := newAsm()
	a.movlRM(hRBX, memOp{base: hR15, index: hRAX, scale: 8, disp: -4})
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.MOV)
	wantArgMem(t, inst, 1, x86asm.Mem{Base: x86asm.R15, Index: x86asm.RAX, Scale: 8, Disp: -4})
}

func TestEncodeDispWidths(t *testing.T) {
	a := newAsm()
	a.movlRM(hRAX, baseMem(hRBX, 127))
	if decodeOne(t, a); a.pos != 3 {
		t.Fatalf("disp8 form took %d bytes (% x)", a.pos, a.buf[:a.pos])
	}
	a = newAsm()
	a.movlRM(hRAX, baseMem(hRBX, 128))
	if decodeOne(t, a); a.pos != 6 {
		t.Fatalf("disp32 form took %d bytes (% x)", a.pos, a.buf[:a.pos])
	}
}

func TestEncodeStore(t *testing.T) {
	a := newAsm()
	a.movlMR(stateMem(0x10), hR8)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.MOV)
	wantArgMem(t, inst, 0, x86asm.Mem{Base: x86asm.R14, Disp: 0x10})
	wantArgReg(t, inst, 1, x86asm.R8L)
}

func TestEncodeMovImmToMem(t *testing.T) {
	a := newAsm()
	a.movlMI(stateMem(0x54), 0xDEADBEEF)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.MOV)
	wantArgMem(t, inst, 0, x86asm.Mem{Base: x86asm.R14, Disp: 0x54})
}

func TestEncodeWordByteMoves(t *testing.T) {
	a := newAsm()
	a.movwRR(hRBX, hRDX)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.MOV)
	wantArgReg(t, inst, 0, x86asm.BX)

	a = newAsm()
	a.movbRR(hRCX, hRBX)
	inst = decodeOne(t, a)
	wantOp(t, inst, x86asm.MOV)
	wantArgReg(t, inst, 0, x86asm.CL)
	wantArgReg(t, inst, 1, x86asm.BL)

	// SIL needs the empty REX prefix.
	a = newAsm()
	a.movbRR(hRSI, hRAX)
	inst = decodeOne(t, a)
	wantArgReg(t, inst, 0, x86asm.SIB)
}

func TestEncodeALU(t *testing.T) {
	ops := []struct {
		alu  int
		want x86asm.Op
	}{
		{aluADD, x86asm.ADD}, {aluOR, x86asm.OR}, {aluADC, x86asm.ADC},
		{aluSBB, x86asm.SBB}, {aluAND, x86asm.AND}, {aluSUB, x86asm.SUB},
		{aluXOR, x86asm.XOR}, {aluCMP, x86asm.CMP},
	}
	for _, c := range ops {
		a := newAsm()
		a.alulRR(c.alu, hRDI, hR11)
		inst := decodeOne(t, a)
		wantOp(t, inst, c.want)
		wantArgReg(t, inst, 0, x86asm.EDI)
		wantArgReg(t, inst, 1, x86asm.R11L)
	}
}

func TestEncodeALUImmWidths(t *testing.T) {
	a := newAsm()
	a.alulRI(aluADD, hRBX, 5)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.ADD)
	wantArgImm(t, inst, 1, 5)
	if a.pos != 3 {
		t.Fatalf("imm8 ALU form took %d bytes", a.pos)
	}

	a = newAsm()
	a.alulRI(aluSUB, hRBX, 0x1234)
	inst = decodeOne(t, a)
	wantOp(t, inst, x86asm.SUB)
	wantArgImm(t, inst, 1, 0x1234)
}

func TestEncodeCmpMemImm(t *testing.T) {
	a := newAsm()
	a.alulMI(aluCMP, stateMem(0x58), 0)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.CMP)
	wantArgMem(t, inst, 0, x86asm.Mem{Base: x86asm.R14, Disp: 0x58})
	wantArgImm(t, inst, 1, 0)
}

func TestEncodeShifts(t *testing.T) {
	cases := []struct {
		sub  int
		want x86asm.Op
	}{
		{shROL, x86asm.ROL}, {shROR, x86asm.ROR}, {shRCL, x86asm.RCL},
		{shRCR, x86asm.RCR}, {shSHL, x86asm.SHL}, {shSHR, x86asm.SHR},
		{shSAR, x86asm.SAR},
	}
	for _, c := range cases {
		a := newAsm()
		a.shiftlRI(c.sub, hRDX, 7)
		inst := decodeOne(t, a)
		wantOp(t, inst, c.want)
		wantArgImm(t, inst, 1, 7)

		a = newAsm()
		a.shiftlRCL(c.sub, hR10)
		inst = decodeOne(t, a)
		wantOp(t, inst, c.want)
		wantArgReg(t, inst, 1, x86asm.CL)
	}

	// Count 1 uses the short form.
	a := newAsm()
	a.shiftlRI(shSHR, hRAX, 1)
	if decodeOne(t, a); a.pos != 2 {
		t.Fatalf("shift-by-1 took %d bytes", a.pos)
	}
}

func TestEncodeUnary(t *testing.T) {
	a := newAsm()
	a.neglR(hRSI)
	wantOp(t, decodeOne(t, a), x86asm.NEG)

	a = newAsm()
	a.notlR(hR9)
	wantOp(t, decodeOne(t, a), x86asm.NOT)

	a = newAsm()
	a.bswaplR(hRDX)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.BSWAP)
	wantArgReg(t, inst, 0, x86asm.EDX)
}

func TestEncodeWidening(t *testing.T) {
	a := newAsm()
	a.movzx16lRR(hRAX, hRBX)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.MOVZX)
	wantArgReg(t, inst, 0, x86asm.EAX)
	wantArgReg(t, inst, 1, x86asm.BX)

	a = newAsm()
	a.movsx8lRR(hRCX, hRDX)
	inst = decodeOne(t, a)
	wantOp(t, inst, x86asm.MOVSX)
	wantArgReg(t, inst, 1, x86asm.DL)

	a = newAsm()
	a.movsx8wRR(hRAX, hRCX)
	inst = decodeOne(t, a)
	wantOp(t, inst, x86asm.MOVSX)
	wantArgReg(t, inst, 0, x86asm.AX)
	wantArgReg(t, inst, 1, x86asm.CL)
}

func TestEncodeLea(t *testing.T) {
	a := newAsm()
	a.leal(hRDI, memOp{base: hRAX, index: hRBX, scale: 1, disp: 10})
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.LEA)
	wantArgReg(t, inst, 0, x86asm.EDI)
	wantArgMem(t, inst, 1, x86asm.Mem{Base: x86asm.RAX, Index: x86asm.RBX, Scale: 1, Disp: 10})
}

func TestEncodeBitTest(t *testing.T) {
	a := newAsm()
	a.btlRI(hRBX, 0)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.BT)
	wantArgImm(t, inst, 1, 0)

	a = newAsm()
	a.btlRR(hRBX, hRCX)
	inst = decodeOne(t, a)
	wantOp(t, inst, x86asm.BT)
	wantArgReg(t, inst, 1, x86asm.ECX)
}

func TestEncodeSetccCmov(t *testing.T) {
	a := newAsm()
	a.setccR(ccB, hRDX)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.SETB)
	wantArgReg(t, inst, 0, x86asm.DL)

	a = newAsm()
	a.setccR(ccO, hRAX) // the seto al of the flag spill
	wantOp(t, decodeOne(t, a), x86asm.SETO)

	a = newAsm()
	a.cmovlRR(ccE, hRAX, hRBX)
	inst = decodeOne(t, a)
	wantOp(t, inst, x86asm.CMOVE)
	wantArgReg(t, inst, 0, x86asm.EAX)

	a = newAsm()
	a.cmovqRM(ccE, hRCX, memOp{base: hR13, index: hRAX, scale: 8})
	inst = decodeOne(t, a)
	wantOp(t, inst, x86asm.CMOVE)
	wantArgReg(t, inst, 0, x86asm.RCX)
	wantArgMem(t, inst, 1, x86asm.Mem{Base: x86asm.R13, Index: x86asm.RAX, Scale: 8})
}

// decodeFirst disassembles the first instruction of a multi-instruction
// sequence.
func decodeFirst(t *testing.T, a *asm) x86asm.Inst {
	t.Helper()
	if a.err != nil {
		t.Fatalf("encoder error: %v", a.err)
	}
	inst, err := x86asm.Decode(a.buf[:a.pos], 64)
	if err != nil {
		t.Fatalf("disassembly failed on % x: %v", a.buf[:a.pos], err)
	}
	return inst
}

func TestEncodeBranchPatching(t *testing.T) {
	a := newAsm()
	p := a.jccB(ccNE)
	a.movlRI(hRAX, 1) // 5 bytes to skip
	a.patchRel8(p)
	wantOp(t, decodeFirst(t, a), x86asm.JNE)
	if a.buf[p] != 5 {
		t.Fatalf("short branch displacement = %d, want 5", a.buf[p])
	}

	a = newAsm()
	p = a.jccL(ccE)
	a.movlRI(hRAX, 1)
	a.patchRel32(p)
	wantOp(t, decodeFirst(t, a), x86asm.JE)
	if a.buf[p] != 5 || a.buf[p+1] != 0 {
		t.Fatalf("near branch displacement wrong: % x", a.buf[p:p+4])
	}

	a = newAsm()
	pj := a.jmpL()
	a.writeRel32(pj, 0x40)
	wantOp(t, decodeOne(t, a), x86asm.JMP)
}

func TestEncodeIndirectJumps(t *testing.T) {
	a := newAsm()
	a.jmpR(hRCX)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.JMP)
	wantArgReg(t, inst, 0, x86asm.RCX)

	a = newAsm()
	a.jmpM(memOp{base: hR13, index: hRAX, scale: 8})
	inst = decodeOne(t, a)
	wantOp(t, inst, x86asm.JMP)
	wantArgMem(t, inst, 0, x86asm.Mem{Base: x86asm.R13, Index: x86asm.RAX, Scale: 8})
}

func TestEncodeStackAndFlags(t *testing.T) {
	a := newAsm()
	a.pushR(hR15)
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.PUSH)
	wantArgReg(t, inst, 0, x86asm.R15)

	a = newAsm()
	a.popR(hRBX)
	inst = decodeOne(t, a)
	wantOp(t, inst, x86asm.POP)

	a = newAsm()
	a.lahf()
	wantOp(t, decodeOne(t, a), x86asm.LAHF)

	a = newAsm()
	a.sahf()
	wantOp(t, decodeOne(t, a), x86asm.SAHF)

	a = newAsm()
	a.ret()
	wantOp(t, decodeOne(t, a), x86asm.RET)
}

func TestEncodeMovsd(t *testing.T) {
	a := newAsm()
	a.movsdXM(3, stateMem(0x68))
	inst := decodeOne(t, a)
	wantOp(t, inst, x86asm.MOVSD_XMM)
	wantArgReg(t, inst, 0, x86asm.X3)

	a = newAsm()
	a.movsdMX(stateMem(0x70), 9)
	inst = decodeOne(t, a)
	wantOp(t, inst, x86asm.MOVSD_XMM)
	wantArgReg(t, inst, 1, x86asm.X9)
}

func TestEncodeAlign(t *testing.T) {
	a := newAsm()
	a.emit8(0x90)
	a.align(16)
	if a.pos != 16 {
		t.Fatalf("align left cursor at %d", a.pos)
	}
	// The padding must disassemble as NOPs only.
	pos := 1
	for pos < 16 {
		inst, err := x86asm.Decode(a.buf[pos:16], 64)
		if err != nil {
			t.Fatalf("padding not decodable at %d: %v", pos, err)
		}
		if inst.Op != x86asm.NOP {
			t.Fatalf("padding decodes as %v", inst.Op)
		}
		pos += inst.Len
	}
}

func TestEncodeImmediateRangeChecks(t *testing.T) {
	a := newAsm()
	a.shiftlRI(shSHL, hRAX, 37)
	if a.err == nil {
		t.Fatal("out-of-range shift count was accepted")
	}

	a = newAsm()
	a.alubRI(aluADD, hRAX, 0x1234)
	if a.err == nil {
		t.Fatal("16-bit value accepted into an 8-bit field")
	}

	// The error is sticky: later emissions are suppressed.
	pos := a.pos
	a.movlRI(hRAX, 1)
	if a.pos != pos {
		t.Fatal("encoder kept emitting after a range failure")
	}
}

func TestEncodeOutOfSpace(t *testing.T) {
	a := &asm{buf: make([]byte, 4)}
	a.movlRI(hRAX, 0x12345678)
	if a.err == nil {
		t.Fatal("cache overrun not detected")
	}
}
