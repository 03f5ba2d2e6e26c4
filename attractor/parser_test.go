// ABOUTME: Tests for the recursive descent DOT parser: nodes, edges, attributes, defaults, and subgraphs.
package attractor

import "testing"

func TestParseSimpleGraph(t *testing.T) {
	g, err := Parse(`digraph pipeline {
		start [shape=Mdiamond]
		done [shape=Msquare]
		start -> done
	}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if g.Name != "pipeline" {
		t.Errorf("expected graph name 'pipeline', got %q", g.Name)
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(g.Nodes))
	}
	if len(g.Edges) != 1 || g.Edges[0].From != "start" || g.Edges[0].To != "done" {
		t.Fatalf("expected one edge start->done, got %v", g.Edges)
	}
}

func TestParseGraphAttribute(t *testing.T) {
	g, err := Parse(`digraph g { goal = "ship it" max_attempts = 3 }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := g.Attrs.GetString("goal", ""); got != "ship it" {
		t.Errorf("expected goal attribute, got %q", got)
	}
	if got := g.Attrs.GetInt("max_attempts", 0); got != 3 {
		t.Errorf("expected max_attempts 3, got %d", got)
	}
}

func TestParseChainedEdges(t *testing.T) {
	g, err := Parse(`digraph g { a -> b -> c }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(g.Edges) != 2 {
		t.Fatalf("expected 2 edges from chained expansion, got %d", len(g.Edges))
	}
	if g.Edges[0].From != "a" || g.Edges[0].To != "b" || g.Edges[1].From != "b" || g.Edges[1].To != "c" {
		t.Errorf("expected a->b and b->c, got %v", g.Edges)
	}
}

func TestParseEdgeAttributes(t *testing.T) {
	g, err := Parse(`digraph g { a -> b [label="pass", condition="status = SUCCESS"] }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	e := g.Edges[0]
	if got := e.Attrs.GetString("label", ""); got != "pass" {
		t.Errorf("expected label attribute, got %q", got)
	}
	if got := e.Attrs.GetString("condition", ""); got != "status = SUCCESS" {
		t.Errorf("expected condition attribute, got %q", got)
	}
}

func TestParseNodeDefaultsApplyToSubsequentNodes(t *testing.T) {
	g, err := Parse(`digraph g {
		node [type=codergen]
		a
		b [type=tool]
	}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := g.Nodes["a"].Attrs.GetString("type", ""); got != "codergen" {
		t.Errorf("expected node default type applied to 'a', got %q", got)
	}
	if got := g.Nodes["b"].Attrs.GetString("type", ""); got != "tool" {
		t.Errorf("expected explicit attribute to override node default on 'b', got %q", got)
	}
}

func TestParseEdgeDefaultsApplyToSubsequentEdges(t *testing.T) {
	g, err := Parse(`digraph g {
		edge [weight=1]
		a -> b
		b -> c [weight=5]
	}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := g.Edges[0].Attrs.GetInt("weight", 0); got != 1 {
		t.Errorf("expected edge default weight 1 on first edge, got %d", got)
	}
	if got := g.Edges[1].Attrs.GetInt("weight", 0); got != 5 {
		t.Errorf("expected explicit weight 5 to override default, got %d", got)
	}
}

func TestParseDurationAttribute(t *testing.T) {
	g, err := Parse(`digraph g { backoff_base = 2s }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := g.Attrs.GetDuration("backoff_base", 0); got.Seconds() != 2 {
		t.Errorf("expected backoff_base of 2s, got %v", got)
	}
}

func TestParseSubgraphAssignsDerivedClass(t *testing.T) {
	g, err := Parse(`digraph g {
		subgraph cluster_impl {
			label = "Implementation Phase"
			a
			b
		}
	}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := g.Nodes["a"].Attrs.GetString("class", ""); got != "implementation-phase" {
		t.Errorf("expected derived class on 'a', got %q", got)
	}
	if len(g.Subgraphs) != 1 || g.Subgraphs[0].Name != "cluster_impl" {
		t.Fatalf("expected one subgraph named cluster_impl, got %v", g.Subgraphs)
	}
}

func TestParseRejectsStrictModifier(t *testing.T) {
	if _, err := Parse(`strict digraph g { a -> b }`); err == nil {
		t.Error("expected error for unsupported 'strict' modifier")
	}
}

func TestParseRejectsUndirectedEdges(t *testing.T) {
	if _, err := Parse(`digraph g { a -- b }`); err == nil {
		t.Error("expected error for undirected edge syntax")
	}
}

func TestParseRejectsMultipleDigraphs(t *testing.T) {
	if _, err := Parse(`digraph a { x } digraph b { y }`); err == nil {
		t.Error("expected error for multiple digraphs in one source")
	}
}

func TestParseRejectsMalformedSource(t *testing.T) {
	if _, err := Parse(`digraph g { a -> }`); err == nil {
		t.Error("expected parse error for edge with missing target identifier")
	}
}
