// Package idgen generates order numbers and opaque ids.
package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// OrderPrefix starts every order number.
const OrderPrefix = "ORD-"

// Generator issues time-ordered order numbers from a snowflake node.
type Generator struct {
	node *snowflake.Node
}

// NewGenerator creates a generator for the given node id (0-1023).
func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// OrderNumber returns a new "ORD-<snowflake>" number.
func (g *Generator) OrderNumber() string {
	return OrderPrefix + g.node.Generate().String()
}

var (
	defaultOnce sync.Once
	defaultGen  *Generator
)

// Default returns a process-wide generator on node 0.
func Default() *Generator {
	defaultOnce.Do(func() {
		gen, err := NewGenerator(0)
		if err != nil {
			panic(err)
		}
		defaultGen = gen
	})
	return defaultGen
}

// NewID returns a random UUID string for sessions and messages.
func NewID() string {
	return uuid.NewString()
}
