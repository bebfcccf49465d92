package order

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator hands out unique order ids. Generators are owned by whoever
// creates orders and are injected into the constructors.
type IDGenerator interface {
	NextID() string
}

// SequenceGenerator produces ids of the form "<prefix>-<n>" from an owned counter.
type SequenceGenerator struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequenceGenerator creates a generator whose first id is "<prefix>-1".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{
		prefix:  prefix,
		counter: atomic.Uint64{},
	}
}

// NextID implements IDGenerator.
func (g *SequenceGenerator) NextID() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.counter.Add(1))
}

// UUIDGenerator produces random UUIDv4 ids.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a UUIDGenerator.
func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

// NextID implements IDGenerator.
func (UUIDGenerator) NextID() string {
	return uuid.New().String()
}
