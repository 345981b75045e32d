package sandbox

// Applets lists the busybox applet names symlinked into the sandbox's
// /usr/bin, each pointing at the single embedded busybox binary. This is a
// curated subset of the original project's full applet table: the
// commands a package build script plausibly needs (coreutils, archive
// tools, text processing), not busybox's entire multi-call surface.
var Applets = []string{
	"[", "[[",
	"ash", "awk",
	"base32", "base64", "basename",
	"bunzip2", "bzcat", "bzip2",
	"cat", "chgrp", "chmod", "chown", "chroot", "cksum", "clear", "cmp", "comm", "cp", "cpio", "cut",
	"date", "dd", "diff", "dirname", "du",
	"echo", "egrep", "env", "expand", "expr",
	"false", "find", "fold",
	"grep", "gunzip", "gzip",
	"head", "hostname",
	"id",
	"kill",
	"less", "ln", "ls",
	"md5sum", "mkdir", "mkfifo", "mknod", "more", "mv",
	"nice", "nl", "nohup",
	"od",
	"paste", "patch", "pgrep", "pidof", "pkill", "printenv", "printf", "ps", "pwd",
	"readlink", "realpath", "rev", "rm", "rmdir",
	"sed", "seq", "sha1sum", "sha256sum", "sha512sum", "sleep", "sort", "split", "stat", "strings",
	"sync",
	"tac", "tail", "tar", "tee", "test", "time", "touch", "tr", "true", "truncate", "tsort",
	"uname", "unexpand", "uniq", "unlink", "unzip", "uptime",
	"wc", "which", "whoami",
	"xargs", "xxd",
	"xz", "xzcat",
	"yes",
	"zcat",
}
