//go:build linux

package sandbox

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// memfdWrite creates an anonymous (unsealed) memory-backed file containing
// data and returns it open, ready to be symlinked into the sandbox via
// /proc/self/fd/<n> (spec.md §4.6's "embedded bash/busybox" requirement).
func memfdWrite(name string, data []byte) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, 0)
	if err != nil {
		return nil, fmt.Errorf("memfd_create %s: %w", name, err)
	}
	f := os.NewFile(uintptr(fd), name)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing %s into memfd: %w", name, err)
	}
	if err := unix.Fchmod(fd, 0o555); err != nil {
		f.Close()
		return nil, fmt.Errorf("chmod memfd %s: %w", name, err)
	}
	return f, nil
}
