package reproduction

import (
	"math/rand"

	"github.com/ishanwen-byte/songevolve-go/pkg/habitat"
)

// Slot is one planned reproduction batch: parents come from Source and the
// children are placed at Dest
type Slot struct {
	Source int `json:"source"`
	Dest   int `json:"dest"`
}

// Migrated reports whether the slot draws parents from another node
func (s Slot) Migrated() bool {
	return s.Source != s.Dest
}

// PlanMigration rolls every incoming edge of every node once. A roll at or
// below the edge probability sources the slot from the edge's origin, otherwise
// the slot stays local. Nodes without incoming edges get a single local slot. Nodes are
// visited in ascending id order and edges in insertion order, so a seeded rng
// gives a reproducible plan.
func PlanMigration(rng *rand.Rand, g *habitat.Graph) []Slot {
	var slots []Slot
	for _, id := range g.NodeIDs() {
		incoming := g.Incoming(id)
		if len(incoming) == 0 {
			slots = append(slots, Slot{Source: id, Dest: id})
			continue
		}
		for _, e := range incoming {
			if rng.Float64() <= e.Probability {
				slots = append(slots, Slot{Source: e.From, Dest: id})
			} else {
				slots = append(slots, Slot{Source: id, Dest: id})
			}
		}
	}
	return slots
}
