// ABOUTME: Edge selection algorithm for choosing the next edge during pipeline traversal.
// ABOUTME: Filters to condition-true-or-absent edges, then prefers suggested IDs, then weight/lexical.
package attractor

import (
	"regexp"
	"sort"
	"strings"
)

// acceleratorPatterns matches accelerator prefixes like "[Y] ", "Y) ", "Y - " at the
// start of a label. Used by the human-interaction handler, not by edge selection.
var acceleratorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\[\w\]\s+`), // [Y] Yes
	regexp.MustCompile(`^\w\)\s*`),   // Y) Yes
	regexp.MustCompile(`^\w\s*-\s+`), // Y - Yes
}

// NormalizeLabel lowercases a label, trims whitespace, and strips accelerator prefixes
// used for keyboard shortcuts in human interaction nodes.
func NormalizeLabel(label string) string {
	s := strings.TrimSpace(label)
	s = strings.ToLower(s)
	for _, pat := range acceleratorPatterns {
		s = pat.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// bestByWeightThenLexical picks the edge with the highest weight attribute.
// If weights are tied, the edge whose To field comes first lexicographically wins.
// Returns nil for an empty slice.
func bestByWeightThenLexical(edges []*Edge) *Edge {
	if len(edges) == 0 {
		return nil
	}

	sorted := make([]*Edge, len(edges))
	copy(sorted, edges)

	sort.Slice(sorted, func(i, j int) bool {
		wi := edgeWeight(sorted[i])
		wj := edgeWeight(sorted[j])
		if wi != wj {
			return wi > wj
		}
		return sorted[i].To < sorted[j].To
	})

	return sorted[0]
}

// edgeWeight reads the "weight" attribute of an edge (integer or float),
// defaulting to 0.
func edgeWeight(e *Edge) float64 {
	if e.Attrs == nil {
		return 0
	}
	return e.Attrs.GetFloat("weight", 0)
}

// SelectEdge chooses the next edge from a node:
//  1. Gather outgoing edges in declaration order.
//  2. Filter to the candidate pool: edges with no condition attribute, an empty
//     condition, or a condition that evaluates true.
//  3. Within that pool, prefer edges whose To matches outcome.SuggestedNextIDs,
//     in the order edges were declared.
//  4. Otherwise, pick the highest-weight edge, breaking ties by ascending To.
//
// Returns nil if there are no outgoing edges or no candidate survives filtering.
func SelectEdge(node *Node, outcome *Outcome, ctx *Context, graph *Graph) *Edge {
	edges := graph.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return nil
	}

	var candidates []*Edge
	for _, e := range edges {
		cond := e.Attrs.GetString("condition", "")
		if strings.TrimSpace(cond) == "" {
			candidates = append(candidates, e)
			continue
		}
		if EvaluateCondition(cond, outcome, ctx, graph) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	if len(outcome.SuggestedNextIDs) > 0 {
		suggestedSet := make(map[string]bool, len(outcome.SuggestedNextIDs))
		for _, id := range outcome.SuggestedNextIDs {
			suggestedSet[id] = true
		}
		for _, e := range candidates {
			if suggestedSet[e.To] {
				return e
			}
		}
	}

	return bestByWeightThenLexical(candidates)
}
