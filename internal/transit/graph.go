package transit

import "sort"

// DefaultTransferSeconds applies when a transfer record has no
// min_transfer_time.
const DefaultTransferSeconds = 120

// Neighbor is one adjacency entry.
type Neighbor struct {
	ID      string
	Minutes float64
}

// TransferRecord is a row of transfers.txt. MinTransferSeconds is nil when
// the feed leaves it blank.
type TransferRecord struct {
	From               string
	To                 string
	MinTransferSeconds *int
}

// Graph is an undirected adjacency list keyed by station ID. It may hold
// nodes that are not canonical stations; those are still traversable.
//
// A Graph must not be modified once shortest-path queries start.
type Graph struct {
	adj map[string][]Neighbor
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{adj: make(map[string][]Neighbor)}
}

// BuildGraph inserts every averaged edge in both directions with the weight
// recorded for that ordered pair. If both (a,b) and (b,a) were observed, each
// node ends up with two entries for the other, one per observed weight.
func BuildGraph(averaged map[Pair]float64) *Graph {
	pairs := make([]Pair, 0, len(averaged))
	for p := range averaged {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].From != pairs[j].From {
			return pairs[i].From < pairs[j].From
		}
		return pairs[i].To < pairs[j].To
	})

	g := NewGraph()
	for _, p := range pairs {
		g.AddEdge(p.From, p.To, averaged[p])
	}
	return g
}

// AddEdge links a and b both ways with the same weight.
func (g *Graph) AddEdge(a, b string, minutes float64) {
	g.adj[a] = append(g.adj[a], Neighbor{ID: b, Minutes: minutes})
	g.adj[b] = append(g.adj[b], Neighbor{ID: a, Minutes: minutes})
}

// EnsureNode adds id with no neighbours if it is not already present.
func (g *Graph) EnsureNode(id string) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = nil
	}
}

// AddTransfers injects walking transfers as bidirectional edges and returns
// how many were added. Self transfers and transfers touching the excluded
// sub-network are skipped.
func (g *Graph) AddTransfers(records []TransferRecord) int {
	added := 0
	for _, t := range records {
		if Excluded(t.From) || Excluded(t.To) {
			continue
		}
		if t.From == t.To {
			continue
		}
		seconds := DefaultTransferSeconds
		if t.MinTransferSeconds != nil {
			seconds = *t.MinTransferSeconds
		}
		g.EnsureNode(t.From)
		g.EnsureNode(t.To)
		g.AddEdge(t.From, t.To, float64(seconds)/60)
		added++
	}
	return added
}

// Neighbors returns the adjacency list of id, or nil if id is unknown.
func (g *Graph) Neighbors(id string) []Neighbor {
	return g.adj[id]
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.adj)
}

// EdgeCount returns the number of adjacency entries, i.e. twice the number
// of inserted edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, ns := range g.adj {
		n += len(ns)
	}
	return n
}
