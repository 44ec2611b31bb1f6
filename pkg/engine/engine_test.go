package engine

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/chazu/umbra/pkg/canopy"
)

// slowStreet adds one building, spins, then adds another.
const slowStreet = `
(block "first" :size (vec2 10 10) :target true)
(def i 0)
(for [() (< i 300000) ()] (set i (+ i 1)))
(block "last" :at (vec2 20 0) :size (vec2 10 10))
`

func TestEvaluateEmptySource(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t  \n  "},
		{"comment only", "; nothing built yet\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := evalOK(t, tt.source)
			if c.Len() != 0 {
				t.Errorf("Len() = %d, want 0", c.Len())
			}
		})
	}
}

func TestEvaluateKeepsScriptOrder(t *testing.T) {
	c := evalOK(t, `
(def w 8)
(block "north" :at (vec2 0 20) :size (vec2 w w))
(block "south" :size (vec2 w w) :target true)
(block "east" :at (vec2 20 0) :size (vec2 w w))
`)
	want := []canopy.BuildingID{"north", "south", "east"}
	if got := c.IDs(); !slices.Equal(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	if got := c.Targets(); len(got) != 1 || got[0].ID != "south" {
		t.Errorf("Targets() = %v, want [south]", got)
	}
}

func TestEvaluateFreshSandboxPerCall(t *testing.T) {
	eng := NewEngine()

	first, evalErrs, err := eng.Evaluate(`(def w 5) (block "a" :size (vec2 w w))`)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("first Evaluate() = %v, %v", evalErrs, err)
	}

	// w and building "a" belong to the first script only.
	second, evalErrs, err := eng.Evaluate(`(block "b" :size (vec2 w w))`)
	if err != nil {
		t.Fatalf("second Evaluate() fatal error = %v", err)
	}
	if second != nil || len(evalErrs) == 0 {
		t.Errorf("second Evaluate() = %v, %v; want undefined symbol error", second, evalErrs)
	}

	third, evalErrs, err := eng.Evaluate(`(block "a" :size (vec2 5 5))`)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("third Evaluate() = %v, %v", evalErrs, err)
	}
	if third == first {
		t.Error("Evaluate() reused a canopy across calls")
	}
	if third.Len() != 1 {
		t.Errorf("Len() = %d, want 1", third.Len())
	}
}

func TestEvaluateRuntimeErrorDropsBuildings(t *testing.T) {
	c, evalErrs, err := NewEngine().Evaluate(`(block "a" :size (vec2 4 4))
(block "b" :size (vec2 4 4))
(block "c" :height 3)`)
	if err != nil {
		t.Fatalf("Evaluate() fatal error = %v", err)
	}
	if c != nil {
		t.Errorf("canopy with %d buildings survived a failing script", c.Len())
	}
	if len(evalErrs) != 1 {
		t.Fatalf("eval errors = %v, want 1", evalErrs)
	}
	if msg := evalErrs[0].Message; !strings.Contains(msg, "block c") || !strings.Contains(msg, ":size") {
		t.Errorf("message = %q, want it to name block c and :size", msg)
	}
}

func TestEvaluateSyntaxErrorLine(t *testing.T) {
	// The third building form is never closed.
	source := `(block "a" :size (vec2 4 4))
(building "b" :footprint (footprint (vec2 10 0) (vec2 14 0) (vec2 14 4)))
(block "c" :size (vec2 4 4)`
	c, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("Evaluate() fatal error = %v", err)
	}
	if c != nil {
		t.Error("expected nil canopy on syntax error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error")
	}
	if e := evalErrs[0]; e.Line != 3 || e.Message == "" {
		t.Errorf("eval error = %+v, want a message on line 3", e)
	}
}

func TestEvaluateTimeout(t *testing.T) {
	eng := NewEngine()
	eng.timeout = 20 * time.Millisecond

	start := time.Now()
	c, evalErrs, err := eng.Evaluate(slowStreet)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Evaluate() error = %v, want ErrTimeout", err)
	}
	if c != nil || evalErrs != nil {
		t.Errorf("Evaluate() = %v, %v; want nothing on timeout", c, evalErrs)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestEvaluateSupersededByNewerScript(t *testing.T) {
	eng := NewEngine()

	type outcome struct {
		c   *canopy.Canopy
		err error
	}
	slow := make(chan outcome, 1)
	go func() {
		c, _, err := eng.Evaluate(slowStreet)
		slow <- outcome{c, err}
	}()

	// Wait until the slow script has claimed its generation.
	for {
		eng.mu.Lock()
		started := eng.generation > 0
		eng.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	c := evalOK(t, `(block "quick" :size (vec2 6 6) :target true)`)
	if !slices.Equal(c.IDs(), []canopy.BuildingID{"quick"}) {
		t.Errorf("newer script IDs = %v, want [quick]", c.IDs())
	}

	got := <-slow
	if !errors.Is(got.err, ErrSuperseded) {
		t.Errorf("older script error = %v, want ErrSuperseded", got.err)
	}
	if got.c != nil {
		t.Errorf("older script delivered %v", got.c.IDs())
	}
}

func TestEvalErrorString(t *testing.T) {
	tests := []struct {
		err  EvalError
		want string
	}{
		{EvalError{Line: 3, Message: "parser needs more input"}, "line 3: parser needs more input"},
		{EvalError{Message: "block c: :size is required"}, "block c: :size is required"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{"unclosed form", "Error on line 3: parser needs more input\n", 3, "parser needs more input"},
		{"short form", "line 12: missing paren", 12, "missing paren"},
		{"builtin failure", "block c: :size is required", 0, "block c: :size is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errors.New(tt.msg))
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1", len(errs))
			}
			if errs[0].Line != tt.wantLine || errs[0].Message != tt.wantMsg {
				t.Errorf("got %+v, want line %d message %q", errs[0], tt.wantLine, tt.wantMsg)
			}
		})
	}
}
