//go:build !unix

package m68k

import "errors"

var errNoVM = errors.New("m68k: executable memory is not supported on this platform")

func vmAlloc(size int, exec bool) ([]byte, error) {
	if exec {
		return nil, errNoVM
	}
	return make([]byte, size), nil
}

func vmProtect(mem []byte, writable bool) error { return nil }

func vmFree(mem []byte) error { return nil }
