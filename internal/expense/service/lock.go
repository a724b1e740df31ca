package service

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

const lockStripes = 64

// expenseLocks serializes completion decisions per expense. Two concurrent
// approvals on the same expense must not both conclude "complete", and a
// rejection must not race an approval into a dual terminal state. Striping
// bounds memory; a stripe collision only costs contention, never correctness.
type expenseLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *expenseLocks) Lock(id snowflake.ID) *sync.Mutex {
	mu := &l.stripes[uint64(id)%lockStripes]
	mu.Lock()
	return mu
}
