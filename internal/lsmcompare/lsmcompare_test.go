package lsmcompare_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nujra-panda/forgeDB/internal/lsmcompare"
	"github.com/nujra-panda/forgeDB/internal/row"
)

func openStore(t *testing.T) *lsmcompare.Store {
	t.Helper()
	st, err := lsmcompare.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestInsertGetDelete(t *testing.T) {
	st := openStore(t)

	r := row.Row{ID: 7, Username: "alice", Email: "alice@example.com"}
	require.NoError(t, st.Insert(r))

	got, found, err := st.Get(7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, r, got)

	_, found, err = st.Get(8)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, st.Delete(7))
	_, found, err = st.Get(7)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRangeIsOrderedAndInclusive(t *testing.T) {
	st := openStore(t)

	// Insert out of order; big-endian keys must come back sorted.
	for _, id := range []uint32{50, 10, 30, 20, 40} {
		require.NoError(t, st.Insert(row.Row{ID: id, Username: "u", Email: "u@x"}))
	}

	rows, err := st.Range(10, 40)
	require.NoError(t, err)
	keys := make([]uint32, len(rows))
	for i, r := range rows {
		keys[i] = r.ID
	}
	assert.Equal(t, []uint32{10, 20, 30, 40}, keys)
}

func TestRangeAtKeySpaceCeiling(t *testing.T) {
	st := openStore(t)

	maxID := ^uint32(0)
	require.NoError(t, st.Insert(row.Row{ID: maxID, Username: "u", Email: "u@x"}))

	rows, err := st.Range(maxID-1, maxID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, maxID, rows[0].ID)
}
