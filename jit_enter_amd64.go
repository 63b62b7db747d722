//go:build amd64

package m68k

// jitEnter transfers control to the pushall stub at entry and returns the
// exit code left in EAX by whichever popall stub the cache left through.
// Implemented in jit_enter_amd64.s.
func jitEnter(entry uintptr) uint32

const jitHostSupported = true
