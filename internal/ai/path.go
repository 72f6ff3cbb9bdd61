package ai

import (
	"container/heap"

	"github.com/gravitas-games/hexnav/internal/hex"
)

// PathResult is the outcome of a successful path search.
type PathResult struct {
	// Path runs from the goal back towards the start. The start itself is
	// not included, so a path to an adjacent cell has one element and a
	// path to the start cell has none.
	Path []hex.Axial
	// Cost is the accumulated cost at the goal. The start is seeded with
	// its distance to the goal rather than zero, so Cost equals that
	// distance plus the number of steps.
	Cost int
	// Expanded counts cells moved to the closed set.
	Expanded int
}

// PathBetween returns the shortest path from start to end in goal-to-start
// order, start excluded. It reports false when either coordinate is
// unpopulated or end cannot be reached.
func (c *Controller) PathBetween(start, end hex.Axial) ([]hex.Axial, bool) {
	res, ok := c.FindPath(start, end)
	if !ok {
		return nil, false
	}
	return res.Path, true
}

// FindPath runs a uniform-cost search from start to end over ValidNeighbors.
// All search state is local to the call.
func (c *Controller) FindPath(start, end hex.Axial) (PathResult, bool) {
	startCell, ok := c.grid.Get(start)
	if !ok {
		return PathResult{}, false
	}
	endCell, ok := c.grid.Get(end)
	if !ok {
		return PathResult{}, false
	}

	g := map[hex.Axial]int{start: DistBetween(startCell, endCell)}
	parent := map[hex.Axial]hex.Axial{}
	closed := map[hex.Axial]bool{}

	open := &openSet{}
	heap.Init(open)
	open.push(startCell, g[start])

	expanded := 0
	for open.Len() > 0 {
		n := heap.Pop(open).(*openNode)
		cur := n.cell
		// stale entry left behind by a relaxation
		if closed[cur.Coord] || n.g != g[cur.Coord] {
			continue
		}
		if cur.Coord == end {
			return PathResult{
				Path:     ReconstructPath(parent, end, start),
				Cost:     g[end],
				Expanded: expanded,
			}, true
		}
		closed[cur.Coord] = true
		expanded++

		for _, nb := range c.ValidNeighbors(cur, c.searchHeight) {
			if closed[nb.Coord] {
				continue
			}
			tentative := g[cur.Coord] + DistBetween(cur, nb)
			if old, seen := g[nb.Coord]; seen && tentative >= old {
				continue
			}
			g[nb.Coord] = tentative
			parent[nb.Coord] = cur.Coord
			open.push(nb, tentative)
		}
	}
	return PathResult{}, false
}

// ReconstructPath walks parent links from end back to start and returns the
// visited coordinates in that order, start excluded. It returns an empty,
// non-nil slice when end == start.
func ReconstructPath(parent map[hex.Axial]hex.Axial, end, start hex.Axial) []hex.Axial {
	path := []hex.Axial{}
	for cur := end; cur != start; {
		path = append(path, cur)
		prev, ok := parent[cur]
		if !ok {
			break
		}
		cur = prev
	}
	return path
}

// TravelOrder returns a copy of a goal-to-start path reversed into the order
// it is walked.
func TravelOrder(path []hex.Axial) []hex.Axial {
	out := make([]hex.Axial, len(path))
	for i, a := range path {
		out[len(path)-1-i] = a
	}
	return out
}

// openSet is a min-heap on g. Equal costs pop in insertion order.
type openNode struct {
	cell *Cell
	g    int
	seq  int
}

type openSet struct {
	nodes []*openNode
	seq   int
}

func (s *openSet) Len() int { return len(s.nodes) }

func (s *openSet) Less(i, j int) bool {
	if s.nodes[i].g != s.nodes[j].g {
		return s.nodes[i].g < s.nodes[j].g
	}
	return s.nodes[i].seq < s.nodes[j].seq
}

func (s *openSet) Swap(i, j int) { s.nodes[i], s.nodes[j] = s.nodes[j], s.nodes[i] }

func (s *openSet) Push(x any) { s.nodes = append(s.nodes, x.(*openNode)) }

func (s *openSet) Pop() any {
	old := s.nodes
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	s.nodes = old[:n-1]
	return node
}

func (s *openSet) push(cell *Cell, g int) {
	s.seq++
	heap.Push(s, &openNode{cell: cell, g: g, seq: s.seq})
}
