// Package prune computes the set of nodes skipped after a branch decision.
//
// A node is disabled only when every path from the entry to it crosses an
// unchosen branch port: the naive flood fill from the pruned port alone
// would also disable nodes that re-converge from an active path (diamond
// shapes), so the disabled set subtracts everything still reachable along
// active edges.
package prune

import (
	"github.com/fluxionhq/fluxion/pkg/graph"
)

// Subtree returns every node reachable from start strictly along outgoing
// edges. Iterative depth-first flood fill, no recursion, so deep graphs
// cannot exhaust the stack.
func Subtree(g *graph.Graph, start string) map[string]bool {
	visited := make(map[string]bool)
	stack := []string{start}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			continue
		}

		visited[id] = true

		for _, conn := range g.Outgoing(id) {
			stack = append(stack, conn.TargetNode)
		}
	}

	return visited
}

// Disabled computes the disabled set given the branch decisions made so
// far. decisions maps a branch node ID to its chosen output port; edges
// leaving a decided branch node on any other port are inactive.
func Disabled(g *graph.Graph, decisions map[string]string) map[string]bool {
	active := activeSet(g, decisions)

	disabled := make(map[string]bool)

	for branchID, chosenPort := range decisions {
		for _, conn := range g.Outgoing(branchID) {
			if conn.FromPort() == chosenPort {
				continue
			}

			for id := range Subtree(g, conn.TargetNode) {
				if !active[id] {
					disabled[id] = true
				}
			}
		}
	}

	return disabled
}

// activeSet flood-fills from the entry node, following only chosen ports
// out of decided branch nodes and every port out of undecided ones.
func activeSet(g *graph.Graph, decisions map[string]string) map[string]bool {
	active := make(map[string]bool)
	stack := []string{g.Entry().ID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if active[id] {
			continue
		}

		active[id] = true

		chosenPort, decided := decisions[id]

		for _, conn := range g.Outgoing(id) {
			if decided && conn.FromPort() != chosenPort {
				continue
			}

			stack = append(stack, conn.TargetNode)
		}
	}

	return active
}
