// Package graph builds the immutable in-memory representation of a
// workflow's nodes and connections used during a single run.
package graph

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
)

var validate = validator.New()

// Graph exposes adjacency queries over a loaded workflow. The engine
// treats the graph as read-only for the duration of one run.
type Graph struct {
	workflow *models.Workflow
	nodes    map[string]*models.WorkflowNode
	outgoing map[string][]*models.Connection
	incoming map[string][]*models.Connection
	entry    *models.WorkflowNode
}

// Load validates the stored workflow and builds adjacency indexes. It
// fails with a configuration error when the entry node is missing, a
// connection references an unknown node, or the graph contains a cycle.
func Load(workflow *models.Workflow) (*Graph, error) {
	if err := validate.Struct(workflow); err != nil {
		return nil, flowerr.NonRetriable(fmt.Errorf("invalid workflow %s: %w", workflow.ID, err))
	}

	g := &Graph{
		workflow: workflow,
		nodes:    make(map[string]*models.WorkflowNode, len(workflow.Nodes)),
		outgoing: make(map[string][]*models.Connection),
		incoming: make(map[string][]*models.Connection),
	}

	for _, node := range workflow.Nodes {
		g.nodes[node.ID] = node

		if node.IsTriggerNode() {
			if g.entry != nil {
				return nil, flowerr.Configuration("workflow %s has multiple trigger nodes", workflow.ID)
			}

			g.entry = node
		}
	}

	if g.entry == nil {
		return nil, flowerr.Configuration("workflow %s has no trigger node", workflow.ID)
	}

	for _, conn := range workflow.Connections {
		if _, ok := g.nodes[conn.SourceNode]; !ok {
			return nil, flowerr.Configuration("connection %s references missing node %s", conn.ID, conn.SourceNode)
		}

		if _, ok := g.nodes[conn.TargetNode]; !ok {
			return nil, flowerr.Configuration("connection %s references missing node %s", conn.ID, conn.TargetNode)
		}

		g.outgoing[conn.SourceNode] = append(g.outgoing[conn.SourceNode], conn)
		g.incoming[conn.TargetNode] = append(g.incoming[conn.TargetNode], conn)
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}

	return g, nil
}

// Entry returns the workflow's designated trigger node.
func (g *Graph) Entry() *models.WorkflowNode {
	return g.entry
}

// Node returns the node with the given ID, or nil when absent.
func (g *Graph) Node(id string) *models.WorkflowNode {
	return g.nodes[id]
}

// Nodes returns all nodes of the workflow.
func (g *Graph) Nodes() []*models.WorkflowNode {
	return g.workflow.Nodes
}

// Outgoing returns every connection leaving the node.
func (g *Graph) Outgoing(nodeID string) []*models.Connection {
	return g.outgoing[nodeID]
}

// OutgoingFrom returns the connections leaving the node on a specific
// output port.
func (g *Graph) OutgoingFrom(nodeID, port string) []*models.Connection {
	var matched []*models.Connection

	for _, conn := range g.outgoing[nodeID] {
		if conn.FromPort() == port {
			matched = append(matched, conn)
		}
	}

	return matched
}

// Incoming returns every connection entering the node.
func (g *Graph) Incoming(nodeID string) []*models.Connection {
	return g.incoming[nodeID]
}

// TopologicalOrder returns the node IDs in an order where every node
// appears after all of its predecessors, starting from the entry node.
func (g *Graph) TopologicalOrder() []string {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.incoming[id])
	}

	queue := []string{}

	for id, degree := range indegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	// Stable start: the entry node goes first among the roots.
	for i, id := range queue {
		if id == g.entry.ID {
			queue[0], queue[i] = queue[i], queue[0]

			break
		}
	}

	order := make([]string, 0, len(g.nodes))

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, conn := range g.outgoing[id] {
			indegree[conn.TargetNode]--
			if indegree[conn.TargetNode] == 0 {
				queue = append(queue, conn.TargetNode)
			}
		}
	}

	return order
}

// checkAcyclic runs Kahn's algorithm; any node left with a positive
// indegree sits on a cycle, which is a fatal configuration error because
// the orchestrator could never satisfy the predecessor ordering guarantee.
func (g *Graph) checkAcyclic() error {
	if len(g.TopologicalOrder()) != len(g.nodes) {
		return fmt.Errorf("workflow %s: %w", g.workflow.ID, flowerr.ErrCycle)
	}

	return nil
}
