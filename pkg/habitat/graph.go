package habitat

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/ishanwen-byte/songevolve-go/internal/types"
	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
)

var (
	ErrUnknownNode        = errors.New("unknown habitat node")
	ErrDuplicateNode      = errors.New("duplicate habitat node")
	ErrInvalidProbability = errors.New("migration probability outside [0,1]")
	ErrInvalidCapacity    = errors.New("node capacity must not be negative")
)

// Song is a genome resident in a node together with its fitness
type Song struct {
	ID      int64          `json:"id"`
	Genome  *genome.Genome `json:"genome,omitempty"`
	Fitness float64        `json:"fitness"`
}

// Node is a capacity-bounded deme
type Node struct {
	ID       int     `json:"id"`
	Capacity int     `json:"capacity"`
	Songs    []*Song `json:"songs"`
}

// Edge is a directed migration route. Probability is the chance that a
// reproduction slot at To draws its parents from From.
type Edge struct {
	From        int     `json:"from"`
	To          int     `json:"to"`
	Probability float64 `json:"probability"`
}

// AddSong places s in the node unless it is already full
func (n *Node) AddSong(s *Song) bool {
	if len(n.Songs) >= n.Capacity {
		return false
	}
	n.Songs = append(n.Songs, s)
	return true
}

// Full reports whether the node has reached its capacity
func (n *Node) Full() bool {
	return len(n.Songs) >= n.Capacity
}

// RandomSong removes and returns a uniformly chosen resident
func (n *Node) RandomSong(rng *rand.Rand) (*Song, bool) {
	if len(n.Songs) == 0 {
		return nil, false
	}
	i := rng.Intn(len(n.Songs))
	s := n.Songs[i]
	n.Songs = append(n.Songs[:i], n.Songs[i+1:]...)
	return s, true
}

// Graph is the habitat: demes connected by migration edges. It is owned by a
// single cycle and carries no locking.
type Graph struct {
	nodes map[int]*Node
	edges []Edge
}

func NewGraph() *Graph {
	return &Graph{nodes: make(map[int]*Node)}
}

// FromTopology builds a graph from stored node and edge tuples
func FromTopology(nodes []types.HabitatNode, edges []types.HabitatEdge) (*Graph, error) {
	g := NewGraph()
	for _, n := range nodes {
		if err := g.AddNode(n.ID, n.Capacity); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(e.FromNode, e.ToNode, e.Probability); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode registers an empty node
func (g *Graph) AddNode(id, capacity int) error {
	if _, exists := g.nodes[id]; exists {
		return fmt.Errorf("node %d: %w", id, ErrDuplicateNode)
	}
	if capacity < 0 {
		return fmt.Errorf("node %d capacity %d: %w", id, capacity, ErrInvalidCapacity)
	}
	g.nodes[id] = &Node{ID: id, Capacity: capacity}
	return nil
}

// AddEdge registers a migration route between two existing nodes. Duplicate
// routes are kept; each one is rolled separately during planning.
func (g *Graph) AddEdge(from, to int, probability float64) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("edge %d->%d source: %w", from, to, ErrUnknownNode)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("edge %d->%d destination: %w", from, to, ErrUnknownNode)
	}
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return fmt.Errorf("edge %d->%d probability %v: %w", from, to, probability, ErrInvalidProbability)
	}
	g.edges = append(g.edges, Edge{From: from, To: to, Probability: probability})
	return nil
}

// Node looks up a node by id
func (g *Graph) Node(id int) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// AddSong places a song in node id. It reports false when the node is full.
func (g *Graph) AddSong(id int, s *Song) (bool, error) {
	n, ok := g.nodes[id]
	if !ok {
		return false, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	return n.AddSong(s), nil
}

// Incoming returns the edges ending at id in insertion order
func (g *Graph) Incoming(id int) []Edge {
	var in []Edge
	for _, e := range g.edges {
		if e.To == id {
			in = append(in, e)
		}
	}
	return in
}

// Edges returns a copy of every edge in insertion order
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// NodeIDs returns all node ids in ascending order
func (g *Graph) NodeIDs() []int {
	ids := make([]int, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Population counts resident songs across all nodes
func (g *Graph) Population() int {
	total := 0
	for _, n := range g.nodes {
		total += len(n.Songs)
	}
	return total
}

// Topology converts the graph back into storable tuples, nodes sorted by id
func (g *Graph) Topology() ([]types.HabitatNode, []types.HabitatEdge) {
	nodes := make([]types.HabitatNode, 0, len(g.nodes))
	for _, id := range g.NodeIDs() {
		nodes = append(nodes, types.HabitatNode{ID: id, Capacity: g.nodes[id].Capacity})
	}
	edges := make([]types.HabitatEdge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, types.HabitatEdge{FromNode: e.From, ToNode: e.To, Probability: e.Probability})
	}
	return nodes, edges
}
