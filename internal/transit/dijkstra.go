package transit

import "container/heap"

// Row maps each reachable station to its travel time in minutes from one
// source.
type Row map[string]float64

type queueItem struct {
	id      string
	minutes float64
}

type minQueue []queueItem

func (q minQueue) Len() int           { return len(q) }
func (q minQueue) Less(i, j int) bool { return q[i].minutes < q[j].minutes }
func (q minQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *minQueue) Push(x any)        { *q = append(*q, x.(queueItem)) }
func (q *minQueue) Pop() any {
	old := *q
	n := len(old)
	v := old[n-1]
	*q = old[:n-1]
	return v
}

// ShortestTimes runs Dijkstra from source and returns the minimal travel time
// to every node reachable within horizon minutes. The source is always in the
// result with time 0, even when it is not in the graph.
//
// Superseded queue entries are left in place and skipped when popped.
func ShortestTimes(g *Graph, source string, horizon float64) Row {
	dist := Row{source: 0}
	visited := make(map[string]bool)
	q := &minQueue{{id: source, minutes: 0}}

	for q.Len() > 0 {
		cur := heap.Pop(q).(queueItem)
		if visited[cur.id] || cur.minutes > horizon {
			continue
		}
		visited[cur.id] = true

		for _, nb := range g.Neighbors(cur.id) {
			candidate := cur.minutes + nb.Minutes
			if candidate > horizon {
				continue
			}
			if best, known := dist[nb.ID]; known && candidate >= best {
				continue
			}
			dist[nb.ID] = candidate
			heap.Push(q, queueItem{id: nb.ID, minutes: candidate})
		}
	}
	return dist
}
