package classify

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/glaslos/tlsh"
	"github.com/simbiota/simbiotad/internal/signature"
)

// index is a parsed, comparison-ready view of one signature.Snapshot.
// Snapshots are immutable and hot-swapped as whole objects (spec §4.A), so
// caching by pointer identity is sound: a given *signature.Snapshot value
// is parsed at most once.
type index struct {
	snap   *signature.Snapshot
	parsed []*tlsh.TLSH
}

var (
	indexMu sync.Mutex
	cached  *index
)

func buildIndex(snap *signature.Snapshot) (*index, error) {
	indexMu.Lock()
	defer indexMu.Unlock()

	if cached != nil && cached.snap == snap {
		return cached, nil
	}

	parsed := make([]*tlsh.TLSH, len(snap.Signatures))
	for i, sig := range snap.Signatures {
		t, err := tlsh.ParseStringToTlsh(hex.EncodeToString(sig.Digest))
		if err != nil {
			return nil, fmt.Errorf("parsing signature %d (%s): %w", i, sig.Name, err)
		}
		parsed[i] = t
	}

	idx := &index{snap: snap, parsed: parsed}
	cached = idx
	return idx, nil
}

// Classify scores digest against snap in on-disk order, per spec §4.B:
// the first signature whose distance is <= min(sig.threshold,
// snap.DefaultThreshold) wins. Preserving order is an observable property
// (spec §8) — this never reorders for a faster average case.
func Classify(digest Digest, snap *signature.Snapshot) (Verdict, *MatchedSignature, error) {
	if snap == nil || len(snap.Signatures) == 0 {
		return Benign, nil, nil
	}

	idx, err := buildIndex(snap)
	if err != nil {
		return Benign, nil, err
	}

	for i, sig := range snap.Signatures {
		distance := digest.hash.Diff(idx.parsed[i])
		if distance <= sig.EffectiveThreshold(snap.DefaultThreshold) {
			return Malicious, &MatchedSignature{Name: sig.Name, Distance: distance}, nil
		}
	}
	return Benign, nil, nil
}
