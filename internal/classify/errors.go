package classify

import (
	"errors"
	"strings"
)

// ErrUncharacterizable is returned by Fingerprint when the input is too
// short or too uniform for TLSH to produce a meaningful digest (e.g. empty
// files, files under TLSH's minimum length). Per spec §7 this is not a
// scan error: the caller classifies such files as Benign and still caches
// the result.
var ErrUncharacterizable = errors.New("input not characterizable by TLSH")

// classifyErr maps glaslos/tlsh's own "too small"/"too uniform" error text
// onto ErrUncharacterizable so callers can distinguish it from a real I/O
// failure with errors.Is, without this package depending on tlsh's
// unexported error values.
func classifyErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "too small") || strings.Contains(msg, "length too small") || strings.Contains(msg, "not enough") {
		return ErrUncharacterizable
	}
	return err
}
