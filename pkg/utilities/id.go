package utilities

import (
	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// IDGenerator hands out document ids. A single snowflake node is shared so ids
// generated in the same millisecond still differ by sequence.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for the given snowflake node. If the node
// cannot be initialized the generator falls back to KSUIDs.
func NewIDGenerator(nodeID int64) *IDGenerator {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &IDGenerator{}
	}
	return &IDGenerator{node: node}
}

// NewID returns a snowflake id string, or a KSUID when no node is available.
func (g *IDGenerator) NewID() string {
	if g == nil || g.node == nil {
		return NewKSUID()
	}
	return g.node.Generate().String()
}

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// ValidID reports whether s has the shape of an id this service issues:
// a positive snowflake or a KSUID.
func ValidID(s string) bool {
	if s == "" {
		return false
	}
	if id, err := snowflake.ParseString(s); err == nil {
		return id.Int64() > 0
	}
	_, err := ksuid.Parse(s)
	return err == nil
}
