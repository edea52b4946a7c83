// Package lsmcompare wraps Pebble (CockroachDB's LSM storage engine)
// behind the same insert/lookup/delete/range surface as the native
// engine, so the benchmark tool can compare the two like for like.
package lsmcompare

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/nujra-panda/forgeDB/internal/row"
)

// Store is a Pebble-backed row store keyed by id.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble database at the given directory.
func Open(dir string) (*Store, error) {
	opts := &pebble.Options{
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrap(err, "lsmcompare open")
	}
	return &Store{db: db}, nil
}

// Close cleanly shuts down Pebble, flushing in-memory state.
func (s *Store) Close() error { return s.db.Close() }

// Insert stores (or overwrites) the row under its id.
func (s *Store) Insert(r row.Row) error {
	buf := make([]byte, row.Size(r))
	row.Serialize(r, buf)
	return s.db.Set(encodeKey(r.ID), buf, pebble.NoSync)
}

// Get retrieves the row for id. The second return is false when absent.
func (s *Store) Get(id uint32) (row.Row, bool, error) {
	val, closer, err := s.db.Get(encodeKey(id))
	if err == pebble.ErrNotFound {
		return row.Row{}, false, nil
	}
	if err != nil {
		return row.Row{}, false, errors.Wrap(err, "lsmcompare get")
	}
	// val is only valid until closer.Close(), so decode first.
	r := row.Deserialize(val)
	closer.Close()
	return r, true, nil
}

// Delete removes the row for id.
func (s *Store) Delete(id uint32) error {
	if err := s.db.Delete(encodeKey(id), pebble.NoSync); err != nil {
		return errors.Wrap(err, "lsmcompare delete")
	}
	return nil
}

// Range returns all rows with start ≤ id ≤ end in key order.
func (s *Store) Range(start, end uint32) ([]row.Row, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: encodeKey(start),
		UpperBound: encodeKeyExclusive(end),
	})
	if err != nil {
		return nil, errors.Wrap(err, "lsmcompare range")
	}
	defer iter.Close()

	var rows []row.Row
	for iter.First(); iter.Valid(); iter.Next() {
		rows = append(rows, row.Deserialize(iter.Value()))
	}
	return rows, iter.Error()
}

// encodeKey encodes the id as a big-endian 4-byte slice. Big-endian
// preserves sort order, which Pebble relies on.
func encodeKey(id uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, id)
	return b
}

// encodeKeyExclusive returns the exclusive upper bound for Pebble's
// UpperBound option (our interface is inclusive).
func encodeKeyExclusive(id uint32) []byte {
	if id == ^uint32(0) {
		// Saturate: one past the maximum 4-byte key.
		return []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00}
	}
	return encodeKey(id + 1)
}
