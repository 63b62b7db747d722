//go:build unix

package m68k

import "golang.org/x/sys/unix"

// vmAlloc maps an anonymous region with the given protection. Executable
// regions hold the dispatch stubs and the translation cache; data regions
// hold state the emitted code addresses by absolute offset (guest state
// vector, cache tags, block pool), which therefore must never move.
func vmAlloc(size int, exec bool) ([]byte, error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if exec {
		prot |= unix.PROT_EXEC
	}
	return unix.Mmap(-1, 0, size, prot, unix.MAP_PRIVATE|unix.MAP_ANON)
}

// vmProtect changes the protection of a region previously obtained from
// vmAlloc. Used to write-protect the stub page once it is initialized.
func vmProtect(mem []byte, writable bool) error {
	prot := unix.PROT_READ | unix.PROT_EXEC
	if writable {
		prot |= unix.PROT_WRITE
	}
	return unix.Mprotect(mem, prot)
}

// vmFree releases a region obtained from vmAlloc.
func vmFree(mem []byte) error {
	return unix.Munmap(mem)
}
