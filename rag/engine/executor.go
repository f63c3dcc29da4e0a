package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
)

// SampleLimit caps the global relationship sample.
const SampleLimit = 20

// State is a step of the fallback ladder.
type State int

const (
	StateEntityRelationships State = iota + 1
	StateEntityNoRelationships
	StateAllRelationships
	StateNoData
	StateError
	stateDone
)

func (s State) String() string {
	switch s {
	case StateEntityRelationships:
		return "entity_relationships"
	case StateEntityNoRelationships:
		return "entity_no_relationships"
	case StateAllRelationships:
		return "all_relationships"
	case StateNoData:
		return "no_data"
	case StateError:
		return "error"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StoreFault is a graph store error swallowed at a given state.
type StoreFault struct {
	State State
	Err   error
}

func (f *StoreFault) Error() string {
	return fmt.Sprintf("store fault in %s: %v", f.State, f.Err)
}

func (f *StoreFault) Unwrap() error {
	return f.Err
}

// FallbackExecutor walks the tier ladder against a knowledge graph until a
// tier yields records or the ladder runs out. It never returns an error.
type FallbackExecutor struct {
	graph   rag.KnowledgeGraph
	timeout time.Duration
	logger  log.Logger
}

// NewFallbackExecutor creates an executor. A zero timeout leaves store calls
// bounded only by the caller's context.
func NewFallbackExecutor(graph rag.KnowledgeGraph, timeout time.Duration, logger log.Logger) *FallbackExecutor {
	return &FallbackExecutor{
		graph:   graph,
		timeout: timeout,
		logger:  log.OrDefault(logger),
	}
}

// execution is the per-request state carried between steps.
type execution struct {
	ctx     context.Context
	outcome *rag.QueryOutcome
}

type stepFunc func(e *FallbackExecutor, x *execution) State

var steps = map[State]stepFunc{
	StateEntityRelationships:   (*FallbackExecutor).entityRelationships,
	StateEntityNoRelationships: (*FallbackExecutor).entityNoRelationships,
	StateAllRelationships:      (*FallbackExecutor).allRelationships,
	StateNoData:                (*FallbackExecutor).noData,
	StateError:                 (*FallbackExecutor).failed,
}

// Execute runs the ladder for the given entity matches.
func (e *FallbackExecutor) Execute(ctx context.Context, entityMatches []rag.MatchResult) *rag.QueryOutcome {
	x := &execution{
		ctx: ctx,
		outcome: &rag.QueryOutcome{
			Records: []rag.Record{},
			Faults:  []error{},
		},
	}

	state := StateAllRelationships
	if centre, ok := SelectCentre(entityMatches); ok {
		x.outcome.Entity = centre.Matched
		state = StateEntityRelationships
	}

	for state != stateDone {
		step, ok := steps[state]
		if !ok {
			panic(fmt.Sprintf("engine: no step for %s", state))
		}
		next := step(e, x)
		e.logger.Debug("executor %s -> %s", state, next)
		state = next
	}
	return x.outcome
}

// SelectCentre picks the highest-confidence match. Among equal confidences
// the earliest match wins.
func SelectCentre(matches []rag.MatchResult) (rag.MatchResult, bool) {
	if len(matches) == 0 {
		return rag.MatchResult{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}
	return best, true
}

func (e *FallbackExecutor) call(ctx context.Context, fn func(context.Context) ([]rag.Record, error)) ([]rag.Record, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (e *FallbackExecutor) fault(x *execution, state State, err error) {
	f := &StoreFault{State: state, Err: err}
	e.logger.Error("%v", f)
	x.outcome.Faults = append(x.outcome.Faults, f)
}

func (e *FallbackExecutor) finish(x *execution, tier rag.Tier, records []rag.Record) State {
	x.outcome.Tier = tier
	if records != nil {
		x.outcome.Records = records
	}
	return stateDone
}

func (e *FallbackExecutor) entityRelationships(x *execution) State {
	name := x.outcome.Entity
	records, err := e.call(x.ctx, func(ctx context.Context) ([]rag.Record, error) {
		return e.graph.Neighbors(ctx, name)
	})
	if err != nil {
		e.fault(x, StateEntityRelationships, err)
		return StateAllRelationships
	}
	if len(records) > 0 {
		return e.finish(x, rag.TierEntityRelationships, records)
	}
	return StateEntityNoRelationships
}

func (e *FallbackExecutor) entityNoRelationships(x *execution) State {
	name := x.outcome.Entity
	records, err := e.call(x.ctx, func(ctx context.Context) ([]rag.Record, error) {
		return e.graph.FindEntity(ctx, name)
	})
	if err != nil {
		e.fault(x, StateEntityNoRelationships, err)
		return StateAllRelationships
	}
	if len(records) > 0 {
		return e.finish(x, rag.TierEntityNoRelationships, records)
	}
	return StateAllRelationships
}

func (e *FallbackExecutor) allRelationships(x *execution) State {
	records, err := e.call(x.ctx, func(ctx context.Context) ([]rag.Record, error) {
		return e.graph.SampleRelationships(ctx, SampleLimit)
	})
	if err != nil {
		e.fault(x, StateAllRelationships, err)
		return StateError
	}
	if len(records) > 0 {
		return e.finish(x, rag.TierAllRelationships, records)
	}
	return StateNoData
}

func (e *FallbackExecutor) noData(x *execution) State {
	return e.finish(x, rag.TierNoData, nil)
}

func (e *FallbackExecutor) failed(x *execution) State {
	return e.finish(x, rag.TierError, nil)
}
