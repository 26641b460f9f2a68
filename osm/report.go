package osm

import (
	"errors"
	"fmt"
	"strings"
)

// ActionResult records one action's outcome.
type ActionResult struct {
	Key string
	Err error
}

// LayerResult records the outcomes of one executed layer.
type LayerResult struct {
	Layer   int
	Results []ActionResult
}

// QueryResult holds one read-only job's rendered answer.
type QueryResult struct {
	Name   string
	Output string
}

// Report is the structured result of one batch: ordered layer outcomes,
// per-action success or failure, and query answers. Together with the
// updated state it is sufficient to print a full execution trace.
type Report struct {
	Status  PlanStatus
	Layers  []LayerResult
	Queries []QueryResult

	// Interrupted holds the context error when execution was cancelled
	// between layers.
	Interrupted error
}

// Passed returns the keys of every action that succeeded, in execution
// order.
func (r *Report) Passed() []string {
	var out []string
	for _, layer := range r.Layers {
		for _, result := range layer.Results {
			if result.Err == nil {
				out = append(out, result.Key)
			}
		}
	}
	return out
}

// Failed returns the keys of every action that failed, in execution order.
func (r *Report) Failed() []string {
	var out []string
	for _, layer := range r.Layers {
		for _, result := range layer.Results {
			if result.Err != nil {
				out = append(out, result.Key)
			}
		}
	}
	return out
}

// Err returns the combined execution failure, or nil when the batch
// succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, layer := range r.Layers {
		for _, result := range layer.Results {
			if result.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", result.Key, result.Err))
			}
		}
	}
	if r.Interrupted != nil {
		errs = append(errs, r.Interrupted)
	}
	return errors.Join(errs...)
}

// String renders the human-readable execution trace.
func (r *Report) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "plan %s", r.Status)
	for _, layer := range r.Layers {
		fmt.Fprintf(&out, "\nlayer %d:", layer.Layer)
		for _, result := range layer.Results {
			if result.Err == nil {
				fmt.Fprintf(&out, "\n  ok    %s", result.Key)
			} else {
				fmt.Fprintf(&out, "\n  fail  %s: %v", result.Key, result.Err)
			}
		}
	}
	if r.Interrupted != nil {
		fmt.Fprintf(&out, "\ninterrupted: %v", r.Interrupted)
	}
	for _, query := range r.Queries {
		fmt.Fprintf(&out, "\n%s", query.Output)
	}
	return out.String()
}
