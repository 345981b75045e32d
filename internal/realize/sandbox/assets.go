package sandbox

import _ "embed"

// Bash and Busybox are statically-linked binaries embedded directly in the
// miq binary. They are memfd_create'd at sandbox setup time and symlinked
// into the sandbox's /bin and /usr/bin, so the build namespace never needs
// a host $PATH lookup (spec.md §4.6).
//
//go:embed assets/bash
var Bash []byte

//go:embed assets/busybox
var Busybox []byte
