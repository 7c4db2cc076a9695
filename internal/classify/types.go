// Package classify implements the TLSH classifier: fingerprinting a byte
// stream into a locality-sensitive digest and scoring it against a
// signature.Snapshot. TLSH itself — the pure fingerprint function and its
// distance metric — is an external collaborator (spec §1); this package
// only adapts github.com/glaslos/tlsh's digest type to the small capability
// interfaces the scan pipeline depends on, per spec §9's guidance to model
// the detector as a capability set rather than an inheritance hierarchy.
package classify

import (
	"bufio"
	"errors"
	"io"

	"github.com/glaslos/tlsh"
)

// Verdict is the outcome of comparing a Digest against a signature store.
type Verdict int

const (
	Benign Verdict = iota
	Malicious
)

func (v Verdict) String() string {
	if v == Malicious {
		return "malicious"
	}
	return "benign"
}

// MatchedSignature describes why a file was classified Malicious, for
// alerting and quarantine sidecar metadata.
type MatchedSignature struct {
	Name     string
	Distance int
}

// Digest is a fingerprint produced by Fingerprint. It is comparable via
// Diff, matching the original's ComparableHash trait.
type Digest struct {
	hash *tlsh.TLSH
}

// Diff returns the TLSH distance between two digests; smaller is more
// similar, 0 is identical.
func (d Digest) Diff(other Digest) int {
	return d.hash.Diff(other.hash)
}

// Hex returns the digest's canonical hex representation.
func (d Digest) Hex() string {
	return d.hash.String()
}

// Fingerprinter produces a Digest from a byte stream. Implementations must
// be deterministic: the same bytes always produce the same digest
// (spec §8, classification determinism).
type Fingerprinter interface {
	Fingerprint(r io.Reader) (Digest, error)
}

// TLSHFingerprinter is the Fingerprinter backed by glaslos/tlsh.
type TLSHFingerprinter struct{}

// minDataLength is TLSH's standard minimum input length in bytes; shorter
// inputs have no meaningful digest.
const minDataLength = 50

// Fingerprint streams r into a TLSH digest. Inputs too short or too
// uniform for TLSH to characterize are not an error per spec §7 — the
// caller treats ErrUncharacterizable as "classify as Benign, cache the
// result" rather than propagating a scan failure. Inputs shorter than
// minDataLength bytes are reported as ErrUncharacterizable here, before
// hashing.
func (TLSHFingerprinter) Fingerprint(r io.Reader) (Digest, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	if _, err := br.Peek(minDataLength); err != nil {
		if errors.Is(err, io.EOF) {
			return Digest{}, ErrUncharacterizable
		}
		return Digest{}, err
	}
	h, err := tlsh.HashReader(br)
	if err != nil {
		return Digest{}, classifyErr(err)
	}
	return Digest{hash: h}, nil
}
