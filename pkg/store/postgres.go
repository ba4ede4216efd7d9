package store

import (
	"context"
	"fmt"
	"time"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	pipeline    TEXT NOT NULL,
	status      TEXT NOT NULL,
	seq         BIGSERIAL,
	create_time TIMESTAMPTZ,
	start_time  TIMESTAMPTZ,
	end_time    TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS task_runs (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	ord        INT  NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	start_time TIMESTAMPTZ,
	end_time   TIMESTAMPTZ,
	PRIMARY KEY (run_id, name)
);
CREATE TABLE IF NOT EXISTS steps (
	run_id     TEXT NOT NULL,
	task_name  TEXT NOT NULL,
	idx        INT  NOT NULL,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	start_time TIMESTAMPTZ,
	end_time   TIMESTAMPTZ,
	PRIMARY KEY (run_id, task_name, idx),
	FOREIGN KEY (run_id, task_name) REFERENCES task_runs(run_id, name) ON DELETE CASCADE
);
`

// NewPostgresStore returns a Store backed by PostgreSQL, creating the
// schema if missing.
func NewPostgresStore(ctx context.Context, uri string) (Store, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create connection pool")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "cannot create schema")
	}
	return &postgres{pool: pool}, nil
}

type postgres struct {
	pool *pgxpool.Pool
}

func (s *postgres) CreateRun(ctx context.Context, runID, pipeline string, tasks []TaskInit, opt TimeOption) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "cannot begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, pipeline, status, create_time) VALUES ($1, $2, $3, $4)`,
		runID, pipeline, api.StatusPending, orNow(opt.CreateTime))
	if err != nil {
		return errors.Wrapf(err, "cannot create run %s", runID)
	}
	for ord, t := range tasks {
		_, err = tx.Exec(ctx,
			`INSERT INTO task_runs (run_id, name, ord, status) VALUES ($1, $2, $3, $4)`,
			runID, t.Name, ord, api.StatusQueued)
		if err != nil {
			return errors.Wrapf(err, "cannot create task run %s", t.Name)
		}
		for idx, sn := range t.Steps {
			_, err = tx.Exec(ctx,
				`INSERT INTO steps (run_id, task_name, idx, name, status) VALUES ($1, $2, $3, $4, $5)`,
				runID, t.Name, idx, sn, api.StatusPending)
			if err != nil {
				return errors.Wrapf(err, "cannot create step %s of task %s", sn, t.Name)
			}
		}
	}
	return tx.Commit(ctx)
}

func (s *postgres) SetRunStatus(ctx context.Context, runID string, status api.Status, opt TimeOption) error {
	var tag string
	var t time.Time
	switch {
	case status == api.StatusRunning:
		tag, t = "start_time", orNow(opt.StartTime)
	case status.Finished():
		tag, t = "end_time", orNow(opt.EndTime)
	}

	var err error
	var n int64
	if tag == "" {
		ct, e := s.pool.Exec(ctx, `UPDATE runs SET status = $1 WHERE id = $2`, status, runID)
		n, err = ct.RowsAffected(), e
	} else {
		ct, e := s.pool.Exec(ctx, fmt.Sprintf(`UPDATE runs SET status = $1, %s = $2 WHERE id = $3`, tag), status, t, runID)
		n, err = ct.RowsAffected(), e
	}
	if err != nil {
		return errors.Wrapf(err, "cannot set status of run %s", runID)
	}
	if n == 0 {
		return api.NotFoundError(fmt.Sprintf("run %s", runID))
	}
	return nil
}

func (s *postgres) SetTaskStatus(ctx context.Context, runID, task string, status api.Status, message string, opt TimeOption) error {
	query := `UPDATE task_runs SET status = $1, message = $2 WHERE run_id = $3 AND name = $4`
	args := []interface{}{status, message, runID, task}
	if status == api.StatusRunning {
		query = `UPDATE task_runs SET status = $1, message = $2, start_time = $5 WHERE run_id = $3 AND name = $4`
		args = append(args, orNow(opt.StartTime))
	} else if status.Finished() {
		query = `UPDATE task_runs SET status = $1, message = $2, end_time = $5 WHERE run_id = $3 AND name = $4`
		args = append(args, orNow(opt.EndTime))
	}
	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "cannot set status of task %s in run %s", task, runID)
	}
	if ct.RowsAffected() == 0 {
		return api.NotFoundError(fmt.Sprintf("task %s in run %s", task, runID))
	}
	return nil
}

func (s *postgres) SetStepStatus(ctx context.Context, runID, task string, step int, status api.Status, message string, opt TimeOption) error {
	query := `UPDATE steps SET status = $1, message = $2 WHERE run_id = $3 AND task_name = $4 AND idx = $5`
	args := []interface{}{status, message, runID, task, step}
	if status == api.StatusRunning {
		query = `UPDATE steps SET status = $1, message = $2, start_time = $6 WHERE run_id = $3 AND task_name = $4 AND idx = $5`
		args = append(args, orNow(opt.StartTime))
	} else if status.Finished() {
		query = `UPDATE steps SET status = $1, message = $2, end_time = $6 WHERE run_id = $3 AND task_name = $4 AND idx = $5`
		args = append(args, orNow(opt.EndTime))
	}
	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "cannot set status of step %d of task %s in run %s", step, task, runID)
	}
	if ct.RowsAffected() == 0 {
		return api.NotFoundError(fmt.Sprintf("step %d of task %s in run %s", step, task, runID))
	}
	return nil
}

func (s *postgres) ListRuns(ctx context.Context) ([]api.RunInfo, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, pipeline, status FROM runs ORDER BY seq DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list runs")
	}
	defer rows.Close()

	var res []api.RunInfo
	for rows.Next() {
		var ri api.RunInfo
		if err := rows.Scan(&ri.ID, &ri.Pipeline, &ri.Status); err != nil {
			return nil, errors.Wrap(err, "cannot scan run")
		}
		res = append(res, ri)
	}
	return res, rows.Err()
}

func (s *postgres) GetRunState(ctx context.Context, runID string) (api.RunState, error) {
	var state api.RunState
	err := s.pool.QueryRow(ctx,
		`SELECT id, pipeline, status, create_time, start_time, end_time FROM runs WHERE id = $1`, runID).
		Scan(&state.ID, &state.Pipeline, &state.Status, &state.CreateTime, &state.StartTime, &state.EndTime)
	if err == pgx.ErrNoRows {
		return api.RunState{}, api.NotFoundError(fmt.Sprintf("run %s", runID))
	}
	if err != nil {
		return api.RunState{}, errors.Wrapf(err, "cannot get run %s", runID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT name FROM task_runs WHERE run_id = $1 ORDER BY ord`, runID)
	if err != nil {
		return api.RunState{}, errors.Wrapf(err, "cannot get task runs of run %s", runID)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return api.RunState{}, errors.Wrap(err, "cannot scan task run")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return api.RunState{}, errors.Wrap(err, "cannot read task runs")
	}

	for _, name := range names {
		ts, err := s.GetTaskState(ctx, runID, name)
		if err != nil {
			return api.RunState{}, err
		}
		state.Tasks = append(state.Tasks, ts)
	}
	return state, nil
}

func (s *postgres) GetTaskState(ctx context.Context, runID, task string) (api.TaskRunState, error) {
	var state api.TaskRunState
	err := s.pool.QueryRow(ctx,
		`SELECT name, status, message, start_time, end_time FROM task_runs WHERE run_id = $1 AND name = $2`, runID, task).
		Scan(&state.Name, &state.Status, &state.Message, &state.StartTime, &state.EndTime)
	if err == pgx.ErrNoRows {
		return api.TaskRunState{}, api.NotFoundError(fmt.Sprintf("task %s in run %s", task, runID))
	}
	if err != nil {
		return api.TaskRunState{}, errors.Wrapf(err, "cannot get task %s of run %s", task, runID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT name, status, message, start_time, end_time FROM steps WHERE run_id = $1 AND task_name = $2 ORDER BY idx`,
		runID, task)
	if err != nil {
		return api.TaskRunState{}, errors.Wrapf(err, "cannot get steps of task %s", task)
	}
	defer rows.Close()
	for rows.Next() {
		var ss api.StepState
		if err := rows.Scan(&ss.Name, &ss.Status, &ss.Message, &ss.StartTime, &ss.EndTime); err != nil {
			return api.TaskRunState{}, errors.Wrap(err, "cannot scan step")
		}
		state.Steps = append(state.Steps, ss)
	}
	return state, rows.Err()
}
