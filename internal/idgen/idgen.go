// Package idgen assigns stable, server-generated 64-bit user ids
// (spec.md §3: "user_id (stable 64-bit id, server-assigned)"), wrapping
// github.com/tinode/snowflake, the teacher's own dependency for this exact
// concern (server/cluster.go takes a "snowflake worker id" at cluster
// init).
package idgen

import "github.com/tinode/snowflake"

// Generator issues monotonically-increasing, cluster-unique ids.
type Generator struct {
	sf *snowflake.IdGenerator
}

// New constructs a Generator for the given worker id (0 for a
// single-process deployment; distinct ids per process in a sharded one).
func New(workerID int) (*Generator, error) {
	sf, err := snowflake.NewIdGenerator(workerID)
	if err != nil {
		return nil, err
	}
	return &Generator{sf: sf}, nil
}

// Next returns the next id.
func (g *Generator) Next() int64 {
	return int64(g.sf.Get())
}
