package workflow

import (
	"context"
	"fmt"

	"content-empire/manager-go/internal/retry"
	"content-empire/manager-go/internal/utils"
)

const (
	StepRunning = "running"
	StepDone    = "done"
	StepFailed  = "failed"
	StepSkipped = "skipped"

	RunDone   = "done"
	RunFailed = "failed"
)

// Recorder persists run and step state. The db store implements it; tests
// use an in-memory one.
type Recorder interface {
	StartRun(ctx context.Context, runID, name string) error
	FinishRun(ctx context.Context, runID, status string) error
	StepStatus(ctx context.Context, runID, step string) (string, error)
	StartStep(ctx context.Context, runID, step string, attempt int) error
	FinishStep(ctx context.Context, runID, step, status, errMsg string) error
}

// NopRecorder discards all state. Useful for one-shot graphs.
type NopRecorder struct{}

func (NopRecorder) StartRun(context.Context, string, string) error         { return nil }
func (NopRecorder) FinishRun(context.Context, string, string) error        { return nil }
func (NopRecorder) StepStatus(context.Context, string, string) (string, error) {
	return "", nil
}
func (NopRecorder) StartStep(context.Context, string, string, int) error    { return nil }
func (NopRecorder) FinishStep(context.Context, string, string, string, string) error {
	return nil
}

type Executor struct {
	Workers  int
	Retry    retry.Config
	Recorder Recorder
}

// Run executes the graph. A step runs once all its dependencies are done;
// a failed step marks every transitive dependent skipped while unrelated
// branches keep running. Steps recorded done for runID are not rerun.
func (e *Executor) Run(ctx context.Context, runID, name string, g *Graph) error {
	order, err := g.Order()
	if err != nil {
		return err
	}

	workers := e.Workers
	if workers <= 0 {
		workers = 1
	}
	rec := e.Recorder
	if rec == nil {
		rec = NopRecorder{}
	}

	if err := rec.StartRun(ctx, runID, name); err != nil {
		return err
	}
	utils.Info("workflow run", "run_id", runID, "name", name, "steps", len(order), "workers", workers)

	// "" means not yet dispatched.
	state := make(map[string]string, len(order))
	for _, stepName := range order {
		recorded, err := rec.StepStatus(ctx, runID, stepName)
		if err != nil {
			return err
		}
		if recorded == StepDone {
			state[stepName] = StepDone
			utils.Debug("workflow resume: step already done", "run_id", runID, "step", stepName)
		}
	}

	waiting := make(map[string]int, len(order))
	dependents := make(map[string][]string, len(order))
	for _, stepName := range order {
		st := g.steps[stepName]
		if state[stepName] == StepDone {
			continue
		}
		n := 0
		for _, dep := range st.deps {
			if state[dep] == StepDone {
				continue
			}
			n++
			dependents[dep] = append(dependents[dep], stepName)
		}
		waiting[stepName] = n
	}

	var ready []string
	for _, stepName := range order {
		if state[stepName] == "" && waiting[stepName] == 0 {
			ready = append(ready, stepName)
		}
	}

	type result struct {
		name string
		err  error
	}
	results := make(chan result)
	running := 0
	var firstErr error

	var skipCascade func(failed string)
	skipCascade = func(failed string) {
		for _, dependent := range dependents[failed] {
			if state[dependent] != "" {
				continue
			}
			state[dependent] = StepSkipped
			utils.Warn("workflow step skipped", "run_id", runID, "step", dependent, "blocked_by", failed)
			_ = rec.FinishStep(ctx, runID, dependent, StepSkipped, "dependency "+failed+" did not succeed")
			skipCascade(dependent)
		}
	}

	for {
		for running < workers && len(ready) > 0 && ctx.Err() == nil {
			next := ready[0]
			ready = ready[1:]
			state[next] = StepRunning
			running++
			go func(stepName string, fn StepFunc) {
				results <- result{stepName, e.runStep(ctx, rec, runID, stepName, fn)}
			}(next, g.steps[next].fn)
		}
		if running == 0 {
			break
		}

		res := <-results
		running--
		if res.err != nil {
			state[res.name] = StepFailed
			utils.Error("workflow step failed", "run_id", runID, "step", res.name, "err", res.err)
			_ = rec.FinishStep(ctx, runID, res.name, StepFailed, res.err.Error())
			skipCascade(res.name)
			if firstErr == nil {
				firstErr = fmt.Errorf("step %s: %w", res.name, res.err)
			}
			continue
		}

		state[res.name] = StepDone
		utils.Info("workflow step done", "run_id", runID, "step", res.name)
		if err := rec.FinishStep(ctx, runID, res.name, StepDone, ""); err != nil && firstErr == nil {
			firstErr = err
		}
		for _, dependent := range dependents[res.name] {
			if state[dependent] != "" {
				continue
			}
			waiting[dependent]--
			if waiting[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}

	status := RunDone
	if firstErr != nil {
		status = RunFailed
	}
	if err := rec.FinishRun(ctx, runID, status); err != nil && firstErr == nil {
		firstErr = err
	}
	utils.Info("workflow finished", "run_id", runID, "status", status)
	return firstErr
}

func (e *Executor) runStep(ctx context.Context, rec Recorder, runID, name string, fn StepFunc) error {
	attempt := 0
	return retry.Do(ctx, e.Retry, nil, func(ctx context.Context) error {
		attempt++
		if err := rec.StartStep(ctx, runID, name, attempt); err != nil {
			return retry.Permanent(err)
		}
		utils.Debug("workflow step attempt", "run_id", runID, "step", name, "attempt", attempt)
		return fn(ctx)
	})
}
