package osm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 8

// Runtime executes batches of jobs against one store and one namespace
// state. For each batch it resolves the jobs' declared dependencies via
// scoped reload, compiles and merges their actions into a single plan, and
// executes that plan layer by layer.
//
// The runtime owns state exclusively for the duration of one Run call;
// concurrent Runs against overlapping scopes are the caller's
// responsibility to avoid.
type Runtime struct {
	store   Store
	workers int
	timeout time.Duration
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithWorkers bounds the number of actions executing concurrently within a
// layer. Default: 8.
func WithWorkers(n int) RuntimeOption {
	return func(r *Runtime) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithActionTimeout sets a per-action execution timeout. A timed-out action
// counts as a failed action. Default: none.
func WithActionTimeout(d time.Duration) RuntimeOption {
	return func(r *Runtime) { r.timeout = d }
}

// NewRuntime creates a runtime over the given store.
func NewRuntime(store Store, opts ...RuntimeOption) *Runtime {
	r := &Runtime{store: store, workers: defaultWorkers}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run resolves, plans, and executes one batch. Planning failures (missing
// dependencies, malformed parameters, conflict cycles) return an error with
// no actions executed. Execution failures are reported per action in the
// returned report: completed layers stay applied to state, later layers
// never start, and no rollback is attempted.
func (r *Runtime) Run(ctx context.Context, state *State, jobs []Job) (*Report, error) {
	if err := r.resolve(ctx, state, jobs); err != nil {
		return nil, err
	}

	report := &Report{Status: PlanPending}
	var actions []*Action
	for _, job := range jobs {
		if query, ok := job.(Query); ok {
			output, err := query.Render(state)
			if err != nil {
				return nil, fmt.Errorf("query %s: %w", job.Name(), err)
			}
			report.Queries = append(report.Queries, QueryResult{Name: job.Name(), Output: output})
			continue
		}
		compiled, err := job.Actions(state)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", job.Name(), err)
		}
		actions = append(actions, compiled...)
	}

	plan, err := BuildPlan(actions)
	if err != nil {
		return nil, err
	}
	if plan.ActionCount() == 0 {
		report.Status = PlanSucceeded
		return report, nil
	}

	r.execute(ctx, state, plan, report)
	return report, nil
}

// resolve reloads every distinct dependency path declared by the batch.
// A job's actions are never compiled before its declared paths finished
// reloading.
func (r *Runtime) resolve(ctx context.Context, state *State, jobs []Job) error {
	seen := make(map[string]struct{})
	for _, job := range jobs {
		for _, dep := range job.Dependencies() {
			key := fmt.Sprintf("%T:%s", dep, dep)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if err := Reload(ctx, r.store, state, dep); err != nil {
				return fmt.Errorf("resolve %s: %w", job.Name(), err)
			}
		}
	}
	return nil
}

// actionOutcome carries what a successful backend operation needs to apply
// to state.
type actionOutcome struct {
	size        int64
	compression string
}

func (r *Runtime) execute(ctx context.Context, state *State, plan *Plan, report *Report) {
	plan.status = PlanRunning
	report.Status = PlanRunning

	done := make([]bool, len(plan.Layers))
	completed := 0

	for completed < len(plan.Layers) {
		if err := ctx.Err(); err != nil {
			plan.status = PlanFailed
			report.Status = PlanFailed
			report.Interrupted = err
			return
		}

		// A layer is ready once every layer with an edge into it has
		// succeeded. Ready layers never conflict with each other: any
		// conflict would have produced an edge-path between them.
		var ready []int
		for i := range plan.Layers {
			if done[i] {
				continue
			}
			ok := true
			for _, pred := range plan.Predecessors(i) {
				if !done[pred] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, i)
			}
		}

		results := make([][]ActionResult, len(ready))
		outcomes := make([][]actionOutcome, len(ready))

		var group errgroup.Group
		group.SetLimit(r.workers)
		for wi, li := range ready {
			layer := plan.Layers[li]
			results[wi] = make([]ActionResult, len(layer.Actions))
			outcomes[wi] = make([]actionOutcome, len(layer.Actions))
			for ai, action := range layer.Actions {
				group.Go(func() error {
					outcome, err := r.perform(ctx, state, action)
					results[wi][ai] = ActionResult{Key: action.Key(), Err: err}
					outcomes[wi][ai] = outcome
					return nil
				})
			}
		}
		_ = group.Wait()

		// Barrier passed: apply state mutations serially. Targets within a
		// layer are disjoint by construction.
		failed := false
		for wi, li := range ready {
			layer := plan.Layers[li]
			layerResult := LayerResult{Layer: li}
			for ai, action := range layer.Actions {
				result := results[wi][ai]
				if result.Err == nil {
					if err := r.apply(state, action, outcomes[wi][ai]); err != nil {
						result.Err = err
					}
				}
				if result.Err != nil {
					failed = true
				}
				layerResult.Results = append(layerResult.Results, result)
			}
			report.Layers = append(report.Layers, layerResult)
			done[li] = true
			completed++
		}

		if failed {
			plan.status = PlanFailed
			report.Status = PlanFailed
			return
		}
	}

	plan.status = PlanSucceeded
	report.Status = PlanSucceeded
}

// perform runs one action against the backend. It never touches state
// mutably; successful outcomes are applied after the layer barrier.
func (r *Runtime) perform(ctx context.Context, state *State, action *Action) (actionOutcome, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return actionOutcome{}, err
	}

	switch action.Kind {
	case Read:
		object, ok := action.Object()
		if !ok {
			return actionOutcome{}, fmt.Errorf("read: non-object scope %s", action.Scope)
		}
		_, err := r.store.Read(ctx, object, action.Version)
		return actionOutcome{}, err

	case Create:
		object, ok := action.Object()
		if !ok {
			return actionOutcome{}, fmt.Errorf("create: non-object scope %s", action.Scope)
		}
		payload, err := r.payload(ctx, action)
		if err != nil {
			return actionOutcome{}, err
		}
		if err := r.store.Write(ctx, object, action.Version, payload); err != nil {
			return actionOutcome{}, err
		}
		return outcomeFor(action, payload), nil

	case Update:
		object, ok := action.Object()
		if !ok {
			return actionOutcome{}, fmt.Errorf("update: non-object scope %s", action.Scope)
		}
		if _, err := r.store.Read(ctx, object, action.Version); err != nil {
			return actionOutcome{}, err
		}
		payload, err := r.payload(ctx, action)
		if err != nil {
			return actionOutcome{}, err
		}
		if err := r.store.Delete(ctx, object, action.Version); err != nil {
			return actionOutcome{}, err
		}
		if err := r.store.Write(ctx, object, action.Version, payload); err != nil {
			return actionOutcome{}, err
		}
		return outcomeFor(action, payload), nil

	case Remove:
		if object, ok := action.Object(); ok {
			return actionOutcome{}, r.store.Delete(ctx, object, action.Version)
		}
		// Structural delete: every live version under the scope. State is
		// read-only during a wave, so enumerating here is safe.
		for _, version := range state.scopeVersions(action.Scope) {
			if err := r.store.Delete(ctx, version.Path, version.Version); err != nil {
				return actionOutcome{}, err
			}
		}
		return actionOutcome{}, nil

	default:
		return actionOutcome{}, fmt.Errorf("unknown action kind %d", action.Kind)
	}
}

// payload produces the bytes a Create or Update writes: the transform's
// output, or a plain copy of the single source.
func (r *Runtime) payload(ctx context.Context, action *Action) ([]byte, error) {
	sources := make([][]byte, len(action.Sources))
	for i, source := range action.Sources {
		data, err := r.store.Read(ctx, source.Path, source.Version)
		if err != nil {
			return nil, err
		}
		sources[i] = data
	}

	if action.Transform == nil {
		if len(sources) != 1 {
			return nil, fmt.Errorf("%s: plain copy needs exactly one source, got %d",
				action.Key(), len(sources))
		}
		return sources[0], nil
	}
	return action.Transform.Apply(sources)
}

func outcomeFor(action *Action, payload []byte) actionOutcome {
	outcome := actionOutcome{size: int64(len(payload))}
	if hint, ok := action.Transform.(interface{ Compression() string }); ok {
		outcome.compression = hint.Compression()
	}
	return outcome
}

// apply records a successful action in state. Create appends a version,
// Update rewrites version metadata, Remove drops a version or scope, Read
// is a no-op.
func (r *Runtime) apply(state *State, action *Action, outcome actionOutcome) error {
	switch action.Kind {
	case Read:
		return nil
	case Create:
		object, _ := action.Object()
		return state.createVersion(object, action.Version, ObjectMeta{
			SizeBytes:   outcome.size,
			Format:      object.Format(),
			Compression: outcome.compression,
		})
	case Update:
		object, _ := action.Object()
		return state.updateVersion(object, action.Version, ObjectMeta{
			SizeBytes:   outcome.size,
			Format:      object.Format(),
			Compression: outcome.compression,
		})
	case Remove:
		if object, ok := action.Object(); ok {
			return state.removeVersion(object, action.Version)
		}
		return state.removeScope(action.Scope)
	default:
		return fmt.Errorf("unknown action kind %d", action.Kind)
	}
}
