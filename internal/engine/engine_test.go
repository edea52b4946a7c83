package engine_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nujra-panda/forgeDB/internal/bptree"
	"github.com/nujra-panda/forgeDB/internal/dberrors"
	"github.com/nujra-panda/forgeDB/internal/engine"
	"github.com/nujra-panda/forgeDB/internal/page"
	"github.com/nujra-panda/forgeDB/internal/row"
)

func maxRow(id uint32) row.Row {
	return row.Row{
		ID:       id,
		Username: strings.Repeat("u", row.MaxUsername),
		Email:    strings.Repeat("e", row.MaxEmail),
	}
}

func keysOf(rows []row.Row) []uint32 {
	keys := make([]uint32, len(rows))
	for i, r := range rows {
		keys[i] = r.ID
	}
	return keys
}

func seq(from, to uint32) []uint32 {
	keys := make([]uint32, 0, to-from+1)
	for k := from; k <= to; k++ {
		keys = append(keys, k)
	}
	return keys
}

func TestOpenEmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	eng, err := engine.Open(path)
	require.NoError(t, err)
	defer eng.Close()

	rows, err := eng.SelectAll()
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, eng.Insert(row.Row{ID: 1, Username: "a", Email: "a@x"}))
	assert.Equal(t, uint32(2), eng.Header().TotalPages,
		"header page plus root leaf after the first insert")
}

func TestDuplicateInsertScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	eng, err := engine.Open(path)
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Insert(row.Row{ID: 1, Username: "a", Email: "a@x"}))
	require.NoError(t, eng.Insert(row.Row{ID: 2, Username: "b", Email: "b@x"}))

	err = eng.Insert(row.Row{ID: 1, Username: "c", Email: "c@x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dberrors.ErrDuplicateKey)

	rows, err := eng.SelectAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, row.Row{ID: 1, Username: "a", Email: "a@x"}, rows[0])
	assert.Equal(t, row.Row{ID: 2, Username: "b", Email: "b@x"}, rows[1])
}

func TestInsertRejectsOversizedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	eng, err := engine.Open(path)
	require.NoError(t, err)
	defer eng.Close()

	err = eng.Insert(row.Row{ID: 1, Username: strings.Repeat("u", row.MaxUsername+1)})
	assert.Error(t, err)
}

func TestMultiLevelGrowthAndRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	eng, err := engine.Open(path)
	require.NoError(t, err)
	defer eng.Close()

	for id := uint32(1); id <= 200; id++ {
		require.NoError(t, eng.Insert(maxRow(id)))
	}

	h, err := eng.Tree().Height()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, h, 2)

	rows, err := eng.Range(50, 60)
	require.NoError(t, err)
	assert.Equal(t, seq(50, 60), keysOf(rows))
}

func TestBulkDeleteAndBloomRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	eng, err := engine.Open(path)
	require.NoError(t, err)
	defer eng.Close()

	for id := uint32(1); id <= 200; id++ {
		require.NoError(t, eng.Insert(maxRow(id)))
	}
	for id := uint32(1); id <= 100; id++ {
		_, err := eng.Delete(id)
		require.NoError(t, err)
	}

	rows, err := eng.SelectAll()
	require.NoError(t, err)
	assert.Equal(t, seq(101, 200), keysOf(rows))

	require.NoError(t, eng.RebuildBloom())
	for id := uint32(101); id <= 200; id++ {
		_, res, err := eng.Lookup(id)
		require.NoError(t, err)
		assert.Equal(t, bptree.LookupFound, res)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	eng, err := engine.Open(path)
	require.NoError(t, err)
	for id := uint32(1); id <= 200; id++ {
		require.NoError(t, eng.Insert(maxRow(id)))
	}
	before, err := eng.SelectAll()
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	eng2, err := engine.Open(path)
	require.NoError(t, err)
	defer eng2.Close()
	after, err := eng2.SelectAll()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReopenIsByteStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	eng, err := engine.Open(path)
	require.NoError(t, err)
	for id := uint32(1); id <= 200; id++ {
		require.NoError(t, eng.Insert(maxRow(id)))
	}
	require.NoError(t, eng.Close())

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// Reopening an insert-only database and closing it again must not
	// change a single byte: same pages, same CRCs, same rebuilt bloom.
	eng2, err := engine.Open(path)
	require.NoError(t, err)
	require.NoError(t, eng2.Close())

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCRCClosureAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	eng, err := engine.Open(path)
	require.NoError(t, err)
	for id := uint32(1); id <= 300; id++ {
		require.NoError(t, eng.Insert(maxRow(id)))
	}
	for id := uint32(1); id <= 150; id++ {
		_, err := eng.Delete(id)
		require.NoError(t, err)
	}
	require.NoError(t, eng.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Zero(t, len(raw)%page.Size)

	for n := 1; n < len(raw)/page.Size; n++ {
		var pg page.Page
		copy(pg[:], raw[n*page.Size:])
		if !pg.IsTreePage() {
			continue
		}
		require.NotZero(t, pg.Checksum(), "tree page %d flushed without CRC", n)
		ok, stored, computed := page.VerifyCRC32(&pg)
		assert.True(t, ok, "page %d CRC mismatch: stored %#x computed %#x", n, stored, computed)
	}
}

func TestFreeListSoundness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	eng, err := engine.Open(path)
	require.NoError(t, err)
	defer eng.Close()

	for id := uint32(1); id <= 300; id++ {
		require.NoError(t, eng.Insert(maxRow(id)))
	}
	for id := uint32(1); id <= 200; id++ {
		_, err := eng.Delete(id)
		require.NoError(t, err)
	}

	// Collect pages reachable from the root.
	tree := eng.Tree()
	reachable := map[uint32]bool{}
	var walk func(pageNum uint32)
	walk = func(pageNum uint32) {
		require.False(t, reachable[pageNum], "page %d reached twice", pageNum)
		reachable[pageNum] = true
		pp, err := tree.Pager().Get(pageNum)
		require.NoError(t, err)
		if pp.Type() == page.KindLeaf {
			return
		}
		node := bptree.Internal(pp)
		nk := node.NumKeys()
		children := make([]uint32, 0, nk+1)
		for i := 0; i <= nk; i++ {
			children = append(children, node.Child(i))
		}
		for _, c := range children {
			walk(c)
		}
	}
	walk(tree.Root())

	free, err := eng.FreeList()
	require.NoError(t, err)
	freeSet := map[uint32]bool{}
	for _, n := range free {
		require.False(t, reachable[n], "page %d both reachable and free", n)
		require.False(t, freeSet[n], "page %d twice in the free list", n)
		freeSet[n] = true
	}

	total := eng.Header().TotalPages
	assert.Equal(t, int(total), 1+len(reachable)+len(freeSet),
		"tree pages + free pages + header page must cover the file")
}

func TestFreePageRejectsHeaderAndRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	eng, err := engine.Open(path)
	require.NoError(t, err)
	defer eng.Close()

	assert.ErrorIs(t, eng.FreePage(0), dberrors.ErrFreeForbidden)
	assert.ErrorIs(t, eng.FreePage(1), dberrors.ErrFreeForbidden)
}

func TestDeleteMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	eng, err := engine.Open(path)
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Insert(row.Row{ID: 1, Username: "a", Email: "a@x"}))

	_, err = eng.Delete(42)
	require.Error(t, err)
	assert.ErrorIs(t, err, dberrors.ErrKeyNotFound)

	// Lookup on a never-inserted key answers without touching the tree.
	_, res, err := eng.Lookup(42)
	require.NoError(t, err)
	assert.NotEqual(t, bptree.LookupFound, res)
}

func TestBloomStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	eng, err := engine.Open(path)
	require.NoError(t, err)
	defer eng.Close()

	require.Zero(t, eng.BloomStats().BitsSet)
	for id := uint32(1); id <= 100; id++ {
		require.NoError(t, eng.Insert(maxRow(id)))
	}
	st := eng.BloomStats()
	assert.Greater(t, st.BitsSet, 0)
	assert.LessOrEqual(t, st.BitsSet, 300)
}
