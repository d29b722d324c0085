package history

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateRun records a new run in the running state.
func (s *Storage) CreateRun(environment string) (*Run, error) {
	now := time.Now()
	result, err := s.db.Exec(
		"INSERT INTO runs (environment, status, started_at) VALUES (?, ?, ?)",
		environment, StatusRunning, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading run id: %w", err)
	}

	return &Run{
		ID:          int(id),
		Environment: environment,
		Status:      StatusRunning,
		StartedAt:   now,
	}, nil
}

// FinishRun marks a run finished with its final status and duration.
func (s *Storage) FinishRun(runID int, success bool, duration time.Duration) error {
	status := StatusSuccess
	if !success {
		status = StatusFailed
	}
	_, err := s.db.Exec(
		"UPDATE runs SET status = ?, finished_at = ?, duration = ? WHERE id = ?",
		status, time.Now(), duration.String(), runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// RecordStage appends one stage execution to a run.
func (s *Storage) RecordStage(runID int, name, policy string, stageErr error, duration time.Duration) error {
	status := StatusSuccess
	errText := ""
	if stageErr != nil {
		status = StatusFailed
		errText = stageErr.Error()
	}

	_, err := s.db.Exec(
		"INSERT INTO stage_executions (run_id, name, policy, status, error, duration) VALUES (?, ?, ?, ?, ?, ?)",
		runID, name, policy, status, errText, duration.String(),
	)
	if err != nil {
		return fmt.Errorf("recording stage %q: %w", name, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, most recent first.
func (s *Storage) RecentRuns(limit int) ([]*Run, error) {
	rows, err := s.db.Query(
		"SELECT id, environment, status, started_at, finished_at, duration FROM runs ORDER BY started_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			r          Run
			finishedAt sql.NullTime
			duration   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Environment, &r.Status, &r.StartedAt, &finishedAt, &duration); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finishedAt.Valid {
			r.FinishedAt = &finishedAt.Time
		}
		if duration.Valid {
			r.Duration = duration.String
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// StagesForRun returns the stage executions of one run in insertion order.
func (s *Storage) StagesForRun(runID int) ([]*StageExecution, error) {
	rows, err := s.db.Query(
		"SELECT id, run_id, name, policy, status, error, duration FROM stage_executions WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying stages: %w", err)
	}
	defer rows.Close()

	var stages []*StageExecution
	for rows.Next() {
		var (
			st       StageExecution
			duration sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.RunID, &st.Name, &st.Policy, &st.Status, &st.Error, &duration); err != nil {
			return nil, fmt.Errorf("scanning stage: %w", err)
		}
		if duration.Valid {
			st.Duration = duration.String
		}
		stages = append(stages, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stages: %w", err)
	}
	return stages, nil
}
