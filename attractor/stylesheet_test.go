// ABOUTME: Tests for stylesheet selector specificity, property resolution, and never-override-explicit application.
package attractor

import "testing"

func TestParseStylesheetEmptyErrors(t *testing.T) {
	if _, err := ParseStylesheet("   "); err == nil {
		t.Error("expected error for empty stylesheet")
	}
}

func TestParseStylesheetBasicRule(t *testing.T) {
	ss, err := ParseStylesheet(`.retryable { max_attempts: 3; backoff_base: 2s; }`)
	if err != nil {
		t.Fatalf("ParseStylesheet failed: %v", err)
	}
	if len(ss.Rules) != 1 || ss.Rules[0].Specificity != 1 {
		t.Fatalf("expected one class rule with specificity 1, got %+v", ss.Rules)
	}
	if ss.Rules[0].Properties["max_attempts"] != "3" {
		t.Errorf("expected max_attempts property parsed, got %+v", ss.Rules[0].Properties)
	}
}

func TestParseStylesheetInvalidSelector(t *testing.T) {
	if _, err := ParseStylesheet(`!bad { x: 1; }`); err == nil {
		t.Error("expected error for invalid selector")
	}
}

func TestParseStylesheetMissingColon(t *testing.T) {
	if _, err := ParseStylesheet(`* { justakey }`); err == nil {
		t.Error("expected error for property missing colon")
	}
}

func TestSelectorMatchesIDAndClass(t *testing.T) {
	n := &Node{ID: "implement", Attrs: Attrs{"class": StringAttr("retryable,slow")}}

	if !selectorMatches("#implement", n) {
		t.Error("expected ID selector to match by node ID")
	}
	if !selectorMatches(".retryable", n) {
		t.Error("expected class selector to match comma-joined class list")
	}
	if selectorMatches(".other", n) {
		t.Error("expected class selector not to match an absent class")
	}
	if !selectorMatches("*", n) {
		t.Error("expected universal selector to match any node")
	}
}

func TestMatchNodeHigherSpecificityWins(t *testing.T) {
	ss := &Stylesheet{Rules: []StyleRule{
		{Selector: "*", Properties: map[string]string{"max_attempts": "1"}, Specificity: 0},
		{Selector: ".retryable", Properties: map[string]string{"max_attempts": "3"}, Specificity: 1},
		{Selector: "#implement", Properties: map[string]string{"max_attempts": "5"}, Specificity: 2},
	}}
	n := &Node{ID: "implement", Attrs: Attrs{"class": StringAttr("retryable")}}

	resolved := ss.MatchNode(n)
	if resolved["max_attempts"] != "5" {
		t.Errorf("expected ID selector (highest specificity) to win, got %+v", resolved)
	}
}

func TestApplyNeverOverwritesExplicitAttribute(t *testing.T) {
	ss := &Stylesheet{Rules: []StyleRule{
		{Selector: "*", Properties: map[string]string{"max_attempts": "9"}, Specificity: 0},
	}}
	g := &Graph{Nodes: map[string]*Node{
		"a": {ID: "a", Attrs: Attrs{"max_attempts": IntAttr(1)}},
	}}

	ss.Apply(g)
	if got := g.Nodes["a"].Attrs.GetInt("max_attempts", 0); got != 1 {
		t.Errorf("expected explicit attribute preserved, got %d", got)
	}
}

func TestApplySeedsAbsentAttribute(t *testing.T) {
	ss := &Stylesheet{Rules: []StyleRule{
		{Selector: "*", Properties: map[string]string{"retry_on_fail": "true"}, Specificity: 0},
	}}
	g := &Graph{Nodes: map[string]*Node{
		"a": {ID: "a", Attrs: Attrs{}},
	}}

	ss.Apply(g)
	if !g.Nodes["a"].Attrs.GetBool("retry_on_fail", false) {
		t.Error("expected stylesheet to seed retry_on_fail when absent")
	}
}

func TestInferAttributeValueKinds(t *testing.T) {
	cases := []struct {
		text string
		kind AttributeKind
	}{
		{"true", KindBoolean},
		{"false", KindBoolean},
		{"900s", KindDuration},
		{"42", KindInteger},
		{"3.14", KindFloat},
		{"hello", KindString},
	}
	for _, c := range cases {
		got := inferAttributeValue(c.text)
		if got.Kind != c.kind {
			t.Errorf("text %q: expected kind %v, got %v", c.text, c.kind, got.Kind)
		}
	}
}
