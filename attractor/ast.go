// ABOUTME: AST types for the DOT digraph model used by the workflow engine.
// ABOUTME: Defines Graph, Node, Edge, and Subgraph types with helper methods for traversal and lookup.
package attractor

import "sort"

// Graph represents a parsed DOT digraph with its nodes, edges, attributes, and subgraphs.
// Node order is observable through NodeOrder, reflecting first-declaration order.
type Graph struct {
	Name         string
	Nodes        map[string]*Node
	NodeOrder    []string
	Edges        []*Edge
	Attrs        Attrs
	NodeDefaults Attrs
	EdgeDefaults Attrs
	Subgraphs    []*Subgraph
}

// Node represents a node in the graph with an ID and typed attributes.
type Node struct {
	ID    string
	Attrs Attrs
}

// Edge represents a directed edge from one node to another with optional attributes.
type Edge struct {
	From  string
	To    string
	Attrs Attrs
}

// Subgraph represents a subgraph scope containing nodes and scoped defaults.
type Subgraph struct {
	Name         string
	Nodes        []string
	NodeDefaults Attrs
	Attrs        Attrs
}

// FindNode returns the node with the given ID, or nil if not found.
func (g *Graph) FindNode(id string) *Node {
	if g.Nodes == nil {
		return nil
	}
	return g.Nodes[id]
}

// OutgoingEdges returns all edges originating from the given node ID, in declaration order.
func (g *Graph) OutgoingEdges(nodeID string) []*Edge {
	var result []*Edge
	for _, e := range g.Edges {
		if e.From == nodeID {
			result = append(result, e)
		}
	}
	return result
}

// IncomingEdges returns all edges terminating at the given node ID.
func (g *Graph) IncomingEdges(nodeID string) []*Edge {
	var result []*Edge
	for _, e := range g.Edges {
		if e.To == nodeID {
			result = append(result, e)
		}
	}
	return result
}

// FindStartNode returns the unique node with shape=Mdiamond, or nil if none is present.
func (g *Graph) FindStartNode() *Node {
	for _, id := range g.orderedIDs() {
		if n := g.Nodes[id]; n.Attrs.GetString("shape", "") == "Mdiamond" {
			return n
		}
	}
	return nil
}

// FindExitNode returns a node with shape=Msquare, or nil if none is present.
func (g *Graph) FindExitNode() *Node {
	for _, id := range g.orderedIDs() {
		if n := g.Nodes[id]; n.Attrs.GetString("shape", "") == "Msquare" {
			return n
		}
	}
	return nil
}

// NodeIDs returns all node IDs in sorted (lexical) order for deterministic diagnostics.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// orderedIDs returns node IDs in declaration order, falling back to sorted order
// if NodeOrder was not populated (e.g. a hand-built graph in tests).
func (g *Graph) orderedIDs() []string {
	if len(g.NodeOrder) == len(g.Nodes) {
		return g.NodeOrder
	}
	return g.NodeIDs()
}

// isStartNode reports whether a node is recognized as the pipeline's entry point.
func isStartNode(n *Node) bool {
	if n.Attrs == nil {
		return false
	}
	if n.Attrs.GetString("shape", "") == "Mdiamond" {
		return true
	}
	t := n.Attrs.GetString("type", "")
	return t == "start"
}

// isTerminal reports whether a node is recognized as a pipeline exit point.
func isTerminal(n *Node) bool {
	if n.Attrs == nil {
		return false
	}
	if n.Attrs.GetString("shape", "") == "Msquare" {
		return true
	}
	t := n.Attrs.GetString("type", "")
	return t == "exit"
}
