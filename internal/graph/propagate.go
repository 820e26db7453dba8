package graph

import (
	"github.com/relicta-tech/bitsmith/internal/domain/component"
)

// Tier is one breadth-first step of auto-tag propagation.
type Tier struct {
	// Depth is 1 for direct dependents of the roots.
	Depth int
	// Delta holds the components first reached at this depth, in canonical order.
	Delta []Dependent
}

// Dependent is a component reached by propagation along with the roots whose
// dependents closure contains it.
type Dependent struct {
	ID          component.ID
	TriggeredBy component.IDList
}

// PropagateDependents walks reverse dependency edges from roots in tiers.
// Each tier holds only components not reached before, so propagation stops
// at the first empty tier and never runs more than Len() tiers. Roots that
// are not part of the graph have no dependents.
func (g *Graph) PropagateDependents(roots []component.ID) []Tier {
	visited := make([]bool, len(g.ids))
	var rootIdx []int
	var frontier []int
	for _, r := range roots {
		i, ok := g.lookup(r)
		if !ok || visited[i] {
			continue
		}
		visited[i] = true
		rootIdx = append(rootIdx, i)
		frontier = append(frontier, i)
	}
	if len(frontier) == 0 {
		return nil
	}

	reach := make([][]bool, len(rootIdx))
	for k, r := range rootIdx {
		reach[k] = g.reachableDependents(r)
	}

	var tiers []Tier
	for depth := 1; depth <= len(g.ids) && len(frontier) > 0; depth++ {
		mark := make([]bool, len(g.ids))
		for _, v := range frontier {
			for _, w := range g.incoming[v] {
				if !visited[w] {
					mark[w] = true
				}
			}
		}

		var delta []Dependent
		frontier = frontier[:0:0]
		for w, ok := range mark {
			if !ok {
				continue
			}
			visited[w] = true
			frontier = append(frontier, w)
			dep := Dependent{ID: g.ids[w]}
			for k, r := range rootIdx {
				if reach[k][w] {
					dep.TriggeredBy = append(dep.TriggeredBy, g.ids[r])
				}
			}
			delta = append(delta, dep)
		}
		if len(delta) == 0 {
			break
		}
		tiers = append(tiers, Tier{Depth: depth, Delta: delta})
	}
	return tiers
}

// reachableDependents marks every component that transitively depends on v.
func (g *Graph) reachableDependents(v int) []bool {
	seen := make([]bool, len(g.ids))
	queue := []int{v}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, w := range g.incoming[cur] {
			if !seen[w] {
				seen[w] = true
				queue = append(queue, w)
			}
		}
	}
	return seen
}
