package pattern

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		wantKind Kind
		wantErr  bool
	}{
		{in: "gpt-4o-mini", wantKind: Exact},
		{in: "gpt-*", wantKind: Prefix},
		{in: "*-preview", wantKind: Suffix},
		{in: "*claude*", wantKind: Contains},
		{in: "*", wantKind: Any},
		{in: "*/*", wantKind: Contains},
		{in: "", wantErr: true},
		{in: "gpt*4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.in, err)
			}
			if p.Kind() != tt.wantKind {
				t.Errorf("Parse(%q) kind = %s, want %s", tt.in, p.Kind(), tt.wantKind)
			}
		})
	}
}

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"gpt-4o-mini", "gpt-4o-mini", true},
		{"gpt-4o-mini", "GPT-4o-Mini", true},
		{"gpt-4o-mini", "gpt-4o-mini-2024-07-18", false},
		{"gpt-*", "gpt-4o", true},
		{"gpt-*", "chatgpt-4o", false},
		{"*-preview", "o1-preview", true},
		{"*llama*", "meta/llama-3.1-8b", true},
		{"*/*", "anthropic/claude-sonnet-4.5", true},
		{"*/*", "claude-sonnet-4.5", false},
		{"*", "anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.name, func(t *testing.T) {
			if got := MustParse(tt.pattern).Match(tt.name); got != tt.want {
				t.Errorf("%q.Match(%q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
			}
		})
	}
}

func TestTable_ExactBeforeWildcard(t *testing.T) {
	// The generic rule is declared first; the exact literal must still win.
	table, err := NewTable([]Entry[string]{
		{Pattern: MustParse("gpt-*"), Value: "generic"},
		{Pattern: MustParse("gpt-4o-mini"), Value: "mini"},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	got, p, ok := table.Lookup("gpt-4o-mini")
	if !ok || got != "mini" {
		t.Fatalf("Expected exact rule, got %q (ok=%v)", got, ok)
	}
	if p.String() != "gpt-4o-mini" {
		t.Errorf("Expected matched pattern gpt-4o-mini, got %s", p)
	}

	got, _, _ = table.Lookup("gpt-4-turbo")
	if got != "generic" {
		t.Errorf("Expected generic rule for gpt-4-turbo, got %q", got)
	}
}

func TestTable_FirstWildcardWins(t *testing.T) {
	table, err := NewTable([]Entry[int]{
		{Pattern: MustParse("*gpt-4o-mini*"), Value: 1},
		{Pattern: MustParse("*gpt-4o*"), Value: 2},
		{Pattern: MustParse("*"), Value: 3},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	cases := map[string]int{
		"openai/gpt-4o-mini": 1,
		"gpt-4o-2024-08-06":  2,
		"mistral-large":      3,
	}
	for name, want := range cases {
		if got, _, _ := table.Lookup(name); got != want {
			t.Errorf("Lookup(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestTable_NoMatch(t *testing.T) {
	table, _ := NewTable([]Entry[int]{{Pattern: MustParse("claude-*"), Value: 1}})
	if _, _, ok := table.Lookup("gpt-4o"); ok {
		t.Error("Expected no match")
	}
}

func TestTable_DuplicateExact(t *testing.T) {
	_, err := NewTable([]Entry[int]{
		{Pattern: MustParse("gpt-4o"), Value: 1},
		{Pattern: MustParse("GPT-4o"), Value: 2},
	})
	if err == nil {
		t.Fatal("Expected duplicate exact pattern to be rejected")
	}
}

func TestTable_Shadowed(t *testing.T) {
	table, err := NewTable([]Entry[int]{
		{Pattern: MustParse("*gpt-4o*"), Value: 1},
		{Pattern: MustParse("*gpt-4o-mini*"), Value: 2},
		{Pattern: MustParse("claude-*"), Value: 3},
		{Pattern: MustParse("claude-3-*"), Value: 4},
		{Pattern: MustParse("gemini-*"), Value: 5},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	shadows := table.Shadowed()
	if len(shadows) != 2 {
		t.Fatalf("Expected 2 shadowed entries, got %d: %+v", len(shadows), shadows)
	}
	if shadows[0].Pattern != "*gpt-4o-mini*" || shadows[0].ShadowedBy != "*gpt-4o*" {
		t.Errorf("Unexpected first shadow: %+v", shadows[0])
	}
	if shadows[1].Pattern != "claude-3-*" || shadows[1].ShadowedBy != "claude-*" {
		t.Errorf("Unexpected second shadow: %+v", shadows[1])
	}
}
