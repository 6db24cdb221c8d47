package poll

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintOf(t *testing.T) {
	a := []byte(`{"status":"in-progress","score":3}`)
	b := []byte(`{"status":"in-progress","score":4}`)

	assert.Equal(t, FingerprintOf(a), FingerprintOf(append([]byte(nil), a...)))
	assert.NotEqual(t, FingerprintOf(a), FingerprintOf(b))
	assert.Equal(t, FingerprintOf(nil), FingerprintOf([]byte{}))
}

func TestFingerprint_String(t *testing.T) {
	assert.Equal(t, "00000000000000ff", Fingerprint(255).String())
	assert.Len(t, FingerprintOf([]byte("x")).String(), 16)
}
