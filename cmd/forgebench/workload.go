package main

import (
	"fmt"
	"math/rand"

	"github.com/nujra-panda/forgeDB/internal/row"
)

// store is the common surface both engines expose for benchmarking.
type store interface {
	Insert(r row.Row) error
	Get(id uint32) (row.Row, bool, error)
	Range(start, end uint32) ([]row.Row, error)
	Close() error
}

type WorkloadType string

const (
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"
)

func benchRow(key uint32) row.Row {
	return row.Row{
		ID:       key,
		Username: fmt.Sprintf("user%d", key),
		Email:    fmt.Sprintf("user%d@bench.local", key),
	}
}

// ExecuteWorkload runs a mixed distribution of ops. Duplicate-key errors
// on inserts are expected and ignored.
func ExecuteWorkload(st store, wType WorkloadType, ops int, rng *rand.Rand) {
	for i := 0; i < ops; i++ {
		choice := rng.Intn(100)
		key := uint32(rng.Intn(ops))

		switch wType {
		case OLTP:
			if choice < 90 {
				_, _, _ = st.Get(key)
			} else {
				_ = st.Insert(benchRow(key))
			}
		case OLAP:
			if choice < 10 {
				_, _, _ = st.Get(key)
			} else {
				_ = st.Insert(benchRow(key))
			}
		case Reporting:
			_, _ = st.Range(key, key+100)
		}
	}
}
