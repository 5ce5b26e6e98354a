package db

import (
	"context"
	"errors"
	"time"

	"content-empire/manager-go/internal/utils"
	"github.com/jackc/pgx/v5"
)

type WorkflowRun struct {
	ID         string
	Name       string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

type WorkflowStep struct {
	RunID      string
	Step       string
	Status     string
	Attempts   int
	Error      *string
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// StartRun records a run as running. A rerun of an existing run ID keeps
// its recorded steps so the executor can resume.
func (s *Store) StartRun(ctx context.Context, runID, name string) error {
	utils.Debug("db start workflow run", "run_id", runID, "name", name)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_runs (id, name, status, started_at)
		VALUES ($1, $2, 'running', NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = 'running',
			finished_at = NULL
	`, runID, name)
	return err
}

func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	utils.Debug("db finish workflow run", "run_id", runID, "status", status)
	_, err := s.pool.Exec(ctx, `
		UPDATE workflow_runs
		SET status = $1,
			finished_at = NOW()
		WHERE id = $2
	`, status, runID)
	return err
}

// StepStatus returns the recorded status for a step, or "" when the step
// has never run.
func (s *Store) StepStatus(ctx context.Context, runID, step string) (string, error) {
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT status
		FROM workflow_steps
		WHERE run_id = $1 AND step = $2
	`, runID, step).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return status, nil
}

func (s *Store) StartStep(ctx context.Context, runID, step string, attempt int) error {
	utils.Debug("db start workflow step", "run_id", runID, "step", step, "attempt", attempt)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_steps (run_id, step, status, attempts, started_at)
		VALUES ($1, $2, 'running', $3, NOW())
		ON CONFLICT (run_id, step) DO UPDATE SET
			status = 'running',
			attempts = $3,
			error = NULL,
			started_at = NOW(),
			finished_at = NULL
	`, runID, step, attempt)
	return err
}

func (s *Store) FinishStep(ctx context.Context, runID, step, status, errMsg string) error {
	utils.Debug("db finish workflow step", "run_id", runID, "step", step, "status", status)
	var errValue *string
	if errMsg != "" {
		errValue = &errMsg
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_steps (run_id, step, status, attempts, error, finished_at)
		VALUES ($1, $2, $3, 0, $4, NOW())
		ON CONFLICT (run_id, step) DO UPDATE SET
			status = $3,
			error = $4,
			finished_at = NOW()
	`, runID, step, status, errValue)
	return err
}

func (s *Store) GetWorkflowRun(ctx context.Context, runID string) (WorkflowRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, status, started_at, finished_at
		FROM workflow_runs
		WHERE id = $1
	`, runID)
	var run WorkflowRun
	err := row.Scan(&run.ID, &run.Name, &run.Status, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WorkflowRun{}, nil
		}
		return WorkflowRun{}, err
	}
	return run, nil
}

func (s *Store) ListWorkflowSteps(ctx context.Context, runID string) ([]WorkflowStep, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, step, status, attempts, error, started_at, finished_at
		FROM workflow_steps
		WHERE run_id = $1
		ORDER BY step
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []WorkflowStep
	for rows.Next() {
		var st WorkflowStep
		if err := rows.Scan(&st.RunID, &st.Step, &st.Status, &st.Attempts, &st.Error, &st.StartedAt, &st.FinishedAt); err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}
