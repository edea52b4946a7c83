package row

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	r := Row{ID: 42, Username: "alice", Email: "alice@example.com"}

	buf := make([]byte, Size(r))
	n := Serialize(r, buf)
	require.Equal(t, Size(r), n)

	assert.Equal(t, r, Deserialize(buf))
}

func TestEmptyFields(t *testing.T) {
	r := Row{ID: 7}
	require.Equal(t, MinEncoded, Size(r))

	buf := make([]byte, Size(r))
	Serialize(r, buf)
	assert.Equal(t, r, Deserialize(buf))
}

func TestMaxSizeRow(t *testing.T) {
	r := Row{
		ID:       ^uint32(0),
		Username: strings.Repeat("u", MaxUsername),
		Email:    strings.Repeat("e", MaxEmail),
	}
	require.NoError(t, r.Validate())
	require.Equal(t, MaxEncoded, Size(r))

	buf := make([]byte, Size(r))
	n := Serialize(r, buf)
	require.Equal(t, MaxEncoded, n)
	assert.Equal(t, r, Deserialize(buf))
}

func TestValidateRejectsOversizedFields(t *testing.T) {
	assert.Error(t, Row{Username: strings.Repeat("u", MaxUsername+1)}.Validate())
	assert.Error(t, Row{Email: strings.Repeat("e", MaxEmail+1)}.Validate())
	assert.NoError(t, Row{Username: "ok", Email: "ok@x"}.Validate())
}
