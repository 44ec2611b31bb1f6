package contextfilter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/chazu/umbra/pkg/canopy"
	"github.com/chazu/umbra/pkg/config"
	"github.com/chazu/umbra/pkg/occlusion"
	"github.com/chazu/umbra/pkg/raycast"
)

// State is the phase of a filtering run. Phases are run-wide: Pass2 is
// entered when the first target finishes, while other targets may still be
// in Pass1.
type State int

const (
	StateIdle State = iota
	StateBuildMesh
	StatePass1
	StatePass2
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuildMesh:
		return "build-mesh"
	case StatePass1:
		return "pass-1"
	case StatePass2:
		return "pass-2"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrInvalidCanopy is returned when canopy validation finds blocking errors.
var ErrInvalidCanopy = errors.New("invalid canopy")

// Filter runs context filtering over a canopy. A Filter may be reused for
// several runs but runs one at a time.
type Filter struct {
	cfg    config.Config
	logger *log.Logger

	busy  sync.Mutex // one Run at a time
	mu    sync.Mutex // guards state
	state State
}

// New returns a Filter. A nil logger discards output. The configuration is
// validated here, before any geometry is touched.
func New(cfg config.Config, logger *log.Logger) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Filter{cfg: cfg, logger: logger}, nil
}

// State returns the current phase.
func (f *Filter) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Filter) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	f.logger.Printf("contextfilter: %s", s)
}

// job is one target handed to a worker.
type job struct {
	target *canopy.Building
}

type outcome struct {
	res *SelectionResult
	err error
}

// Run filters every target building of c. The occlusion mesh is built once
// before any worker starts and shared read-only. Cancelling ctx abandons the
// run; partial results are discarded.
func (f *Filter) Run(ctx context.Context, c *canopy.Canopy) (*Report, error) {
	f.busy.Lock()
	defer f.busy.Unlock()

	report, err := f.run(ctx, c)
	if err != nil {
		f.setState(StateFailed)
		return nil, err
	}
	f.setState(StateDone)
	return report, nil
}

func (f *Filter) run(ctx context.Context, c *canopy.Canopy) (*Report, error) {
	if c == nil {
		c = canopy.New()
	}
	var errs []error
	for _, v := range canopy.Validate(c) {
		if v.Severity == canopy.SeverityError {
			errs = append(errs, v)
			continue
		}
		f.logger.Printf("contextfilter: %v", v)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCanopy, errors.Join(errs...))
	}

	runID := uuid.New()
	f.setState(StateBuildMesh)
	mesh, err := occlusion.Build(c)
	if err != nil {
		return nil, err
	}
	f.logger.Printf("contextfilter: run %s: occlusion mesh has %d triangles", runID, mesh.TriangleCount())

	targets := c.Targets()
	report := &Report{
		RunID:         runID,
		Config:        f.cfg,
		Results:       make(map[canopy.BuildingID]*SelectionResult, len(targets)),
		MeshTriangles: mesh.TriangleCount(),
	}
	if len(targets) == 0 {
		return report, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f.setState(StatePass1)
	jobs := make(chan job)
	out := make(chan outcome)
	var wg sync.WaitGroup
	workers := min(f.cfg.EffectiveWorkers(), len(targets))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res, err := f.filterTarget(ctx, runID, j.target, c, mesh)
				select {
				case out <- outcome{res: res, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, t := range targets {
			select {
			case jobs <- job{target: t}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	passTwo := false
	for o := range out {
		if o.err != nil {
			cancel()
			return nil, o.err
		}
		if !passTwo {
			f.setState(StatePass2)
			passTwo = true
		}
		report.Results[o.res.Target] = o.res
		f.logger.Printf("contextfilter: target %s: %d candidate buildings, %d kept faces, %d undetermined",
			o.res.Target, len(o.res.CandidateBuildings), len(o.res.KeptFaces), len(o.res.Undetermined))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, t := range targets {
		report.Order = append(report.Order, t.ID)
	}
	return report, nil
}

// filterTarget runs both passes for one target.
func (f *Filter) filterTarget(ctx context.Context, run uuid.UUID, target *canopy.Building, c *canopy.Canopy, mesh *occlusion.Mesh) (*SelectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env, err := target.Envelope()
	if err != nil {
		return nil, err
	}

	others := c.Others(target.ID)
	ids, err := SelectCandidateBuildings(env, others, f.cfg.MinVFCriterion)
	if err != nil {
		return nil, fmt.Errorf("target %s: pass 1: %w", target.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	survivors := make([]*canopy.Building, 0, len(ids))
	for _, id := range ids {
		survivors = append(survivors, c.Get(id))
	}
	kept, undetermined, err := SelectNonObstructedSurfaces(env, survivors, mesh, raycast.OptionsFrom(f.cfg))
	if err != nil {
		return nil, fmt.Errorf("target %s: pass 2: %w", target.ID, err)
	}
	return newSelectionResult(run, target.ID, ids, kept, undetermined), nil
}

// FilterTarget runs both passes for a single target against c, building a
// fresh occlusion mesh. Use Run to filter many targets against one mesh.
func (f *Filter) FilterTarget(ctx context.Context, c *canopy.Canopy, target canopy.BuildingID) (*SelectionResult, error) {
	b := c.Get(target)
	if b == nil {
		return nil, fmt.Errorf("contextfilter: no building %q", target)
	}
	mesh, err := occlusion.Build(c)
	if err != nil {
		return nil, err
	}
	return f.filterTarget(ctx, uuid.New(), b, c, mesh)
}
