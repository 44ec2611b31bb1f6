package main

import (
	"context"
	"io"
	"log"

	"github.com/chazu/umbra/pkg/canopy"
	"github.com/chazu/umbra/pkg/config"
	"github.com/chazu/umbra/pkg/contextfilter"
	"github.com/chazu/umbra/pkg/engine"
	"github.com/chazu/umbra/pkg/occlusion"
)

// colorPalette is a default palette used to assign distinct colors to buildings.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App runs the filtering pipeline for the command line.
type App struct {
	engine *engine.Engine
	filter *contextfilter.Filter
	meshes bool
}

// MeshData is the JSON-serializable mesh format written with -mesh.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable error or warning.
type EvalErrorData struct {
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	Building string `json:"building,omitempty"`
	Message  string `json:"message"`
}

// RunResult is the full result written to the output.
type RunResult struct {
	Report   *contextfilter.Report `json:"report,omitempty"`
	Meshes   []MeshData            `json:"meshes"`
	Errors   []EvalErrorData       `json:"errors"`
	Warnings []EvalErrorData       `json:"warnings"`
}

func newRunResult() RunResult {
	return RunResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
}

// NewApp creates an App with a fresh engine and a filter for cfg. The
// logger receives the filter's progress; nil discards it.
func NewApp(cfg config.Config, logger *log.Logger, meshes bool) (*App, error) {
	f, err := contextfilter.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &App{engine: engine.NewEngine(), filter: f, meshes: meshes}, nil
}

// Evaluate takes canopy script source and returns the filtering report.
func (a *App) Evaluate(ctx context.Context, source string) RunResult {
	result := newRunResult()

	// Step 1: Evaluate the script into a canopy.
	loaded, err := a.engine.Load(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		log.Printf("Evaluate fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	for _, w := range loaded.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{
			Building: string(w.Building),
			Message:  w.Message,
		})
	}

	// Step 2: Convert eval errors to the output format.
	if len(loaded.Errors) > 0 {
		for _, e := range loaded.Errors {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	return a.run(ctx, loaded.Canopy, result)
}

// EvaluateGeoJSON reads a GeoJSON footprint collection and returns the
// filtering report. Skipped features are reported as warnings.
func (a *App) EvaluateGeoJSON(ctx context.Context, r io.Reader) RunResult {
	result := newRunResult()

	c, err := canopy.LoadGeoJSON(r)
	if c == nil {
		log.Printf("GeoJSON error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if err != nil {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: err.Error()})
	}
	for _, v := range canopy.Validate(c) {
		if v.Severity == canopy.SeverityWarning {
			result.Warnings = append(result.Warnings, EvalErrorData{
				Building: string(v.Building),
				Message:  v.Message,
			})
		}
	}

	return a.run(ctx, c, result)
}

// run filters c and, when requested, attaches the occlusion meshes.
func (a *App) run(ctx context.Context, c *canopy.Canopy, result RunResult) RunResult {
	report, err := a.filter.Run(ctx, c)
	if err != nil {
		log.Printf("Filter error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "filtering failed: " + err.Error(),
		})
		return result
	}
	result.Report = report

	if !a.meshes {
		return result
	}
	mesh, err := occlusion.Build(c)
	if err != nil {
		log.Printf("Tessellate error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "tessellation failed: " + err.Error(),
		})
		return result
	}
	for i, m := range mesh.Parts() {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}
	return result
}
