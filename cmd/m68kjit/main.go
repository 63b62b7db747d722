// m68kjit loads a raw 68000 memory image, runs it with the dynamic
// translator attached and offers a small interactive monitor for poking
// at the machine and the translation cache.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	getopt "github.com/pborman/getopt/v2"
	"github.com/peterh/liner"

	m68k "github.com/user-none/go-jit-m68k"
)

// imageBus is a flat 16MB bus backed by one slice, which is exactly what
// the translator's direct-memory fast path wants.
type imageBus struct {
	mem [1 << 24]byte
}

func (b *imageBus) Read(sz m68k.Size, addr uint32) uint32 {
	addr &= 0xFFFFFF
	v := uint32(0)
	for i := 0; i < int(sz); i++ {
		v = v<<8 | uint32(b.mem[(addr+uint32(i))&0xFFFFFF])
	}
	return v
}

func (b *imageBus) Write(sz m68k.Size, addr uint32, val uint32) {
	addr &= 0xFFFFFF
	for i := int(sz) - 1; i >= 0; i-- {
		b.mem[(addr+uint32(i))&0xFFFFFF] = byte(val)
		val >>= 8
	}
}

func (b *imageBus) Reset() {}

func (b *imageBus) RAM() []byte { return b.mem[:] }

var monitorCommands = []string{"regs", "step", "run", "blocks", "flush", "stats", "quit"}

func main() {
	optImage := getopt.StringLong("image", 'i', "", "Raw memory image loaded at address 0")
	optCache := getopt.IntLong("cachesize", 'c', 8192, "Translation cache size in KB (0 disables the JIT)")
	optLazy := getopt.BoolLong("lazyflush", 'z', "Prefer lazy (checksum) cache invalidation")
	optInline := getopt.BoolLong("inline", 'n', "Follow constant jumps while tracing")
	optFPU := getopt.BoolLong("fpu", 'f', "Compile supported FPU instructions")
	optBlacklist := getopt.StringLong("blacklist", 'b', "", "Hex opcode ranges never to compile, e.g. a000-afff")
	optDebug := getopt.BoolLong("jitdebug", 'd', "Disassemble compiled blocks")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}
	if *optImage == "" {
		fmt.Fprintln(os.Stderr, "an image file is required (-i)")
		getopt.Usage()
		os.Exit(1)
	}

	bus := &imageBus{}
	image, err := os.ReadFile(*optImage)
	if err != nil {
		log.Fatalf("cannot read image: %v", err)
	}
	copy(bus.mem[:], image)

	cpu := m68k.New(bus)
	if *optCache > 0 {
		cfg := m68k.DefaultJITConfig()
		cfg.CacheSize = *optCache
		cfg.LazyFlush = *optLazy
		cfg.Inline = *optInline
		cfg.FPU = *optFPU
		cfg.Blacklist = *optBlacklist
		cfg.Debug = *optDebug
		if err := cpu.AttachJIT(cfg); err != nil {
			log.Printf("translator unavailable, running interpreted: %v", err)
		}
	}

	monitor(cpu)
}

func monitor(cpu *m68k.CPU) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(l string) []string {
		var out []string
		for _, c := range monitorCommands {
			if strings.HasPrefix(c, l) {
				out = append(out, c)
			}
		}
		return out
	})

	for {
		cmd, err := line.Prompt("m68k> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			log.Printf("error reading line: %v", err)
			return
		}
		line.AppendHistory(cmd)
		if quit := runCommand(cpu, strings.Fields(cmd)); quit {
			return
		}
	}
}

func runCommand(cpu *m68k.CPU, args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "quit", "q":
		return true

	case "regs", "r":
		printRegs(cpu)

	case "step", "s":
		n := 1
		if len(args) > 1 {
			n, _ = strconv.Atoi(args[1])
		}
		for i := 0; i < n; i++ {
			cpu.Step()
		}
		printRegs(cpu)

	case "run":
		n := 1000000
		if len(args) > 1 {
			n, _ = strconv.Atoi(args[1])
		}
		cpu.Run(n)
		printRegs(cpu)

	case "blocks", "stats":
		if j := cpu.JITEngine(); j != nil {
			j.DumpState()
		} else {
			fmt.Println("no translator attached")
		}

	case "flush":
		if j := cpu.JITEngine(); j != nil {
			j.Flush()
			fmt.Println("cache flushed")
		}

	default:
		fmt.Printf("unknown command %q\n", args[0])
	}
	return false
}

func printRegs(cpu *m68k.CPU) {
	r := cpu.Registers()
	for i := 0; i < 8; i++ {
		fmt.Printf("D%d=%08X ", i, r.D[i])
		if i == 3 || i == 7 {
			fmt.Println()
		}
	}
	for i := 0; i < 8; i++ {
		fmt.Printf("A%d=%08X ", i, r.A[i])
		if i == 3 || i == 7 {
			fmt.Println()
		}
	}
	fmt.Printf("PC=%06X SR=%04X\n", r.PC&0xFFFFFF, r.SR)
}
