package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/paulmach/orb"

	"github.com/chazu/umbra/pkg/canopy"
	"github.com/chazu/umbra/pkg/geom"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms canopy script source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: building-ref -> building_ref
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec2 wraps a planar point.
type sexpVec2 struct {
	pt orb.Point
}

func (v *sexpVec2) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec2 %.2f %.2f)", v.pt[0], v.pt[1])
}
func (v *sexpVec2) Type() *zygo.RegisteredType { return nil }

// sexpFootprint wraps a closed footprint ring so it can be returned from
// `footprint` and consumed by `building`.
type sexpFootprint struct {
	ring orb.Ring
}

func (f *sexpFootprint) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(footprint %d points)", len(f.ring)-1)
}
func (f *sexpFootprint) Type() *zygo.RegisteredType { return nil }

// sexpBuildingRef names a building already added to the canopy.
type sexpBuildingRef struct {
	id canopy.BuildingID
}

func (b *sexpBuildingRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(building-ref %q)", string(b.id))
}
func (b *sexpBuildingRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toBool extracts a boolean from a Sexp.
func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toVec2 extracts a planar point from a sexpVec2.
func toVec2(s zygo.Sexp) (orb.Point, error) {
	if v, ok := s.(*sexpVec2); ok {
		return v.pt, nil
	}
	return orb.Point{}, fmt.Errorf("expected vec2, got %T (%s)", s, s.SexpString(nil))
}

// toFootprint extracts a ring from a sexpFootprint.
func toFootprint(s zygo.Sexp) (orb.Ring, error) {
	if f, ok := s.(*sexpFootprint); ok {
		return f.ring, nil
	}
	return nil, fmt.Errorf("expected footprint, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Building attributes
// ---------------------------------------------------------------------------

// buildingAttrs are the keyword arguments shared by `building` and `block`.
type buildingAttrs struct {
	height    float64
	elevation float64
	target    bool
}

func parseBuildingAttrs(fn string, pa kwArgs) (buildingAttrs, error) {
	attrs := buildingAttrs{height: canopy.DefaultHeight}
	if v, ok := pa.kw["height"]; ok {
		f, err := toFloat64(v)
		if err != nil {
			return attrs, fmt.Errorf("%s: height: %w", fn, err)
		}
		attrs.height = f
	}
	if v, ok := pa.kw["elevation"]; ok {
		f, err := toFloat64(v)
		if err != nil {
			return attrs, fmt.Errorf("%s: elevation: %w", fn, err)
		}
		attrs.elevation = f
	}
	if v, ok := pa.kw["target"]; ok {
		if v == zygo.SexpNull {
			// Bare :target at the end of the call.
			attrs.target = true
		} else {
			b, err := toBool(v)
			if err != nil {
				return attrs, fmt.Errorf("%s: target: %w", fn, err)
			}
			attrs.target = b
		}
	}
	if !(attrs.height > 0) {
		return attrs, fmt.Errorf("%s: height must be positive, got %g", fn, attrs.height)
	}
	return attrs, nil
}

// buildingID reads the leading name argument of `building` and `block`.
func buildingID(fn string, pa kwArgs) (canopy.BuildingID, error) {
	if len(pa.positional) < 1 {
		return "", fmt.Errorf("%s requires a name argument", fn)
	}
	name, err := toKeywordString(pa.positional[0])
	if err != nil {
		return "", fmt.Errorf("%s: name: %w", fn, err)
	}
	if name == "" {
		return "", fmt.Errorf("%s: name must not be empty", fn)
	}
	return canopy.BuildingID(name), nil
}

// addBuilding inserts a building built from ring and attrs into c.
func addBuilding(c *canopy.Canopy, fn string, id canopy.BuildingID, ring orb.Ring, attrs buildingAttrs) (zygo.Sexp, error) {
	b := canopy.NewBuilding(id, ring, attrs.elevation, attrs.height)
	b.Target = attrs.target
	if err := c.Add(b); err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
	}
	return &sexpBuildingRef{id: id}, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the canopy DSL builtins into a zygomys
// environment. The builtins add buildings to c during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, c *canopy.Canopy) {

	// -----------------------------------------------------------------------
	// (vec2 10 20)
	// -----------------------------------------------------------------------
	env.AddFunction("vec2", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("vec2 requires exactly 2 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: y: %w", err)
		}

		return &sexpVec2{pt: orb.Point{x, y}}, nil
	})

	// -----------------------------------------------------------------------
	// (footprint (vec2 0 0) (vec2 10 0) (vec2 10 10))
	// (footprint (list (vec2 0 0) ...))
	// -----------------------------------------------------------------------
	env.AddFunction("footprint", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		items := args
		if len(args) == 1 {
			list, err := sexpListToSlice(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("footprint: %w", err)
			}
			items = list
		}

		ring := make(orb.Ring, 0, len(items)+1)
		for i, item := range items {
			pt, err := toVec2(item)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("footprint: point %d: %w", i, err)
			}
			ring = append(ring, pt)
		}
		if len(ring) > 1 && ring[0].Equal(ring[len(ring)-1]) {
			ring = ring[:len(ring)-1]
		}
		if len(ring) < 3 {
			return zygo.SexpNull, fmt.Errorf("footprint requires at least 3 points, got %d", len(ring))
		}
		ring = append(ring, ring[0])

		return &sexpFootprint{ring: ring}, nil
	})

	// -----------------------------------------------------------------------
	// (building "hall" :footprint fp :height 12 :elevation 2 :target true)
	// -----------------------------------------------------------------------
	env.AddFunction("building", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		id, err := buildingID("building", pa)
		if err != nil {
			return zygo.SexpNull, err
		}

		v, ok := pa.kw["footprint"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("building %s: :footprint is required", id)
		}
		ring, err := toFootprint(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("building: footprint: %w", err)
		}

		attrs, err := parseBuildingAttrs("building", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		return addBuilding(c, "building", id, ring, attrs)
	})

	// -----------------------------------------------------------------------
	// (block "b1" :at (vec2 20 0) :size (vec2 10 8) :height 15)
	// -----------------------------------------------------------------------
	env.AddFunction("block", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		id, err := buildingID("block", pa)
		if err != nil {
			return zygo.SexpNull, err
		}

		var at orb.Point
		if v, ok := pa.kw["at"]; ok {
			at, err = toVec2(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("block: at: %w", err)
			}
		}
		v, ok := pa.kw["size"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("block %s: :size is required", id)
		}
		size, err := toVec2(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("block: size: %w", err)
		}
		if !(size[0] > 0 && size[1] > 0) {
			return zygo.SexpNull, fmt.Errorf("block %s: size must be positive, got %v", id, size)
		}

		attrs, err := parseBuildingAttrs("block", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		return addBuilding(c, "block", id, geom.Rectangle(at[0], at[1], size[0], size[1]), attrs)
	})

	// -----------------------------------------------------------------------
	// (building-ref "hall")
	//
	// Note: registered as "building_ref" because zygomys does not support
	// hyphens in identifiers.
	// -----------------------------------------------------------------------
	env.AddFunction("building_ref", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("building-ref requires a name argument")
		}
		id, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("building-ref: name: %w", err)
		}
		if c.Get(canopy.BuildingID(id)) == nil {
			return zygo.SexpNull, fmt.Errorf("building-ref: no building named %q", id)
		}
		return &sexpBuildingRef{id: canopy.BuildingID(id)}, nil
	})

	// -----------------------------------------------------------------------
	// (mark-target (building-ref "hall") "annex")
	// -----------------------------------------------------------------------
	env.AddFunction("mark_target", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		for i, arg := range args {
			var id canopy.BuildingID
			if ref, ok := arg.(*sexpBuildingRef); ok {
				id = ref.id
			} else {
				s, err := toKeywordString(arg)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("mark-target: argument %d: %w", i, err)
				}
				id = canopy.BuildingID(s)
			}
			b := c.Get(id)
			if b == nil {
				return zygo.SexpNull, fmt.Errorf("mark-target: no building named %q", id)
			}
			b.Target = true
		}
		return zygo.SexpNull, nil
	})
}
