package services

import (
	"sync"

	"github.com/google/uuid"
)

const lockStripes = 64

// keyedMutex serializes work per conversation id while letting distinct
// conversations proceed in parallel. Striping bounds the lock table; two
// conversations hashing to the same stripe contend, which is acceptable
// at 64 stripes.
type keyedMutex struct {
	stripes [lockStripes]sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{}
}

func (m *keyedMutex) stripe(id uuid.UUID) *sync.Mutex {
	var h uint32 = 2166136261
	for _, b := range id {
		h ^= uint32(b)
		h *= 16777619
	}
	return &m.stripes[h%lockStripes]
}

func (m *keyedMutex) Lock(id uuid.UUID) {
	m.stripe(id).Lock()
}

func (m *keyedMutex) Unlock(id uuid.UUID) {
	m.stripe(id).Unlock()
}
