package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderAccessors(t *testing.T) {
	var p Page

	p.SetType(KindLeaf)
	assert.Equal(t, KindLeaf, p.Type())
	assert.True(t, p.IsTreePage())

	p.SetType(KindFree)
	assert.False(t, p.IsTreePage())

	p.SetIsRoot(true)
	assert.True(t, p.IsRoot())
	p.SetIsRoot(false)
	assert.False(t, p.IsRoot())
}

func TestCRCRoundTrip(t *testing.T) {
	var p Page
	p.SetType(KindLeaf)
	copy(p[HeaderSize:], []byte("some record bytes"))

	StampCRC32(&p)
	require.NotZero(t, p.Checksum())

	ok, stored, computed := VerifyCRC32(&p)
	assert.True(t, ok)
	assert.Equal(t, stored, computed)
}

func TestCRCDetectsCorruption(t *testing.T) {
	var p Page
	p.SetType(KindInternal)
	copy(p[HeaderSize:], []byte("payload"))
	StampCRC32(&p)

	p[100] ^= 0xFF

	ok, stored, computed := VerifyCRC32(&p)
	assert.False(t, ok)
	assert.NotEqual(t, stored, computed)
}

func TestZeroCRCMeansNeverFlushed(t *testing.T) {
	var p Page
	p.SetType(KindLeaf)
	copy(p[HeaderSize:], []byte("unflushed"))

	ok, stored, _ := VerifyCRC32(&p)
	assert.True(t, ok)
	assert.Zero(t, stored)
}

func TestChecksumFieldExcludedFromCRC(t *testing.T) {
	var a, b Page
	a.SetType(KindLeaf)
	b.SetType(KindLeaf)
	b.SetChecksum(0xDEADBEEF)

	assert.Equal(t, ComputeCRC32(&a), ComputeCRC32(&b))
}
