package main

import (
	"fmt"
	"io"

	"github.com/viperML/miq/internal/miqerr"
)

// FormatError renders err for terminal output: the message and its cause
// chain, followed by every suggestion miqerr attached, one per line. This
// is the single top-level formatter every RunE funnels its error through,
// mirroring the teacher's cli/errors.go FormatError.
func FormatError(w io.Writer, err error, useColor bool) {
	if err == nil {
		return
	}

	fmt.Fprintf(w, "%s%s\n", colorize("Error: ", colorRed, useColor), err.Error())

	var merr *miqerr.Error
	if asMiqErr(err, &merr) && len(merr.Suggestions) > 0 {
		for _, s := range merr.Suggestions {
			fmt.Fprintf(w, "%s%s\n", colorize("  -> ", colorYellow, useColor), colorize(s, colorGray, useColor))
		}
	}
}

// asMiqErr is a small errors.As wrapper kept local to avoid importing
// "errors" twice for a single call site.
func asMiqErr(err error, target **miqerr.Error) bool {
	for err != nil {
		if e, ok := err.(*miqerr.Error); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
