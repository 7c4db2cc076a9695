package classify_test

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/simbiota/simbiotad/internal/classify"
	"github.com/simbiota/simbiotad/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fingerprint(t *testing.T, data string) classify.Digest {
	t.Helper()
	d, err := classify.TLSHFingerprinter{}.Fingerprint(strings.NewReader(data))
	require.NoError(t, err)
	return d
}

func TestFingerprintDeterministic(t *testing.T) {
	data := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)

	a := fingerprint(t, data)
	b := fingerprint(t, data)

	assert.Equal(t, a.Hex(), b.Hex())
	assert.Equal(t, 0, a.Diff(b))
}

func TestFingerprintUncharacterizableReturnsErrUncharacterizable(t *testing.T) {
	_, err := classify.TLSHFingerprinter{}.Fingerprint(strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, classify.ErrUncharacterizable))
}

func TestClassifyEmptySnapshotIsBenign(t *testing.T) {
	data := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	digest := fingerprint(t, data)

	verdict, matched, err := classify.Classify(digest, &signature.Snapshot{DefaultThreshold: 40})
	require.NoError(t, err)
	assert.Equal(t, classify.Benign, verdict)
	assert.Nil(t, matched)
}

func TestClassifyMatchesExactSelfSignature(t *testing.T) {
	malicious := strings.Repeat("malicious payload content for scanning tests ", 20)
	maliciousDigest := fingerprint(t, malicious)

	// Signature digests are stored as raw bytes decoded from hex, the
	// same as signature.parseLine does when reading the database file.
	rawDigest, err := hex.DecodeString(maliciousDigest.Hex())
	require.NoError(t, err)

	snap := &signature.Snapshot{
		DefaultThreshold: 40,
		Signatures: []signature.Signature{
			{Name: "sig#1", Digest: rawDigest},
		},
	}

	verdict, matched, err := classify.Classify(maliciousDigest, snap)
	require.NoError(t, err)
	assert.Equal(t, classify.Malicious, verdict)
	require.NotNil(t, matched)
	assert.Equal(t, "sig#1", matched.Name)
	assert.Equal(t, 0, matched.Distance)
}

func TestSignatureEffectiveThreshold(t *testing.T) {
	assert.Equal(t, 40, signature.Signature{}.EffectiveThreshold(40))
	assert.Equal(t, 10, signature.Signature{Threshold: 10}.EffectiveThreshold(40))
	assert.Equal(t, 40, signature.Signature{Threshold: 100}.EffectiveThreshold(40))
}
