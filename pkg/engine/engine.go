// Package engine provides the Lisp evaluation engine for canopy scripts.
// It wraps zygomys in a sandboxed environment and produces a canopy.Canopy
// from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/umbra/pkg/canopy"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning is a non-fatal finding about the canopy a script produced.
type EvalWarning struct {
	Message  string
	Building canopy.BuildingID
}

// EvalResult bundles the full output of Load.
type EvalResult struct {
	Canopy   *canopy.Canopy
	Errors   []EvalError
	Warnings []EvalWarning
}

// Engine wraps the zygomys interpreter for canopy evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
}

// NewEngine creates a new Engine instance with the default EvalTimeout.
func NewEngine() *Engine {
	return &Engine{timeout: EvalTimeout}
}

// Evaluate takes Lisp source code and produces a new Canopy.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns canopy + nil errors + nil error
//   - On parse/eval failure: returns nil canopy + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*canopy.Canopy, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		c, evalErrs, err := e.evaluate(source)
		ch <- evalResult{canopy: c, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, e.timeout)
}

// Load evaluates source and validates the resulting canopy. Validation
// errors are reported as eval errors and drop the canopy; warnings are kept.
func (e *Engine) Load(source string) (EvalResult, error) {
	c, evalErrs, err := e.Evaluate(source)
	if err != nil {
		return EvalResult{}, err
	}
	if len(evalErrs) > 0 {
		return EvalResult{Errors: evalErrs}, nil
	}

	res := EvalResult{Canopy: c}
	for _, v := range canopy.Validate(c) {
		if v.Severity == canopy.SeverityError {
			res.Errors = append(res.Errors, EvalError{Message: v.Error()})
			continue
		}
		res.Warnings = append(res.Warnings, EvalWarning{Message: v.Message, Building: v.Building})
	}
	if len(res.Errors) > 0 {
		res.Canopy = nil
	}
	return res, nil
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*canopy.Canopy, []EvalError, error) {
	c := canopy.New()

	// Empty source is a valid program that produces an empty canopy.
	if strings.TrimSpace(source) == "" {
		return c, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, c)

	err := env.LoadString(preprocessSource(source))
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	_, err = env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	return c, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?is)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
