package routing

import "container/heap"

// FindPath runs a weighted shortest-path search from start to end over
// non-negative edge costs. Returns the ordered connector path and total
// weighted distance, or absent when end is unreachable from start.
func FindPath(graph Graph, coords Coords, start, end string) (*PathResult, bool) {
	if _, ok := coords[start]; !ok {
		return nil, false
	}
	if _, ok := coords[end]; !ok {
		return nil, false
	}
	if start == end {
		return &PathResult{ConnectorIDs: []string{start}}, true
	}

	dist := map[string]float64{start: 0}
	prev := make(map[string]string)
	done := make(map[string]bool)

	pq := &nodeQueue{{id: start, cost: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		current := heap.Pop(pq).(queueNode)
		if done[current.id] {
			continue
		}
		done[current.id] = true

		if current.id == end {
			return &PathResult{
				ConnectorIDs:          reconstruct(prev, start, end),
				TotalWeightedDistance: current.cost,
			}, true
		}

		for _, edge := range graph[current.id] {
			if done[edge.To] {
				continue
			}
			next := current.cost + edge.CostM
			if best, seen := dist[edge.To]; !seen || next < best {
				dist[edge.To] = next
				prev[edge.To] = current.id
				heap.Push(pq, queueNode{id: edge.To, cost: next})
			}
		}
	}

	return nil, false
}

// reconstruct walks the predecessor map back from end to start.
func reconstruct(prev map[string]string, start, end string) []string {
	var path []string
	for id := end; ; id = prev[id] {
		path = append(path, id)
		if id == start {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type queueNode struct {
	id   string
	cost float64
}

type nodeQueue []queueNode

func (q nodeQueue) Len() int           { return len(q) }
func (q nodeQueue) Less(i, j int) bool { return q[i].cost < q[j].cost }
func (q nodeQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)        { *q = append(*q, x.(queueNode)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	node := old[n-1]
	*q = old[:n-1]
	return node
}
