// Copyright 2024 LatentFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage keeps the history of probe runs in a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/go-libsql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"mountcheck/internal/util"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// History is the run history database.
type History struct {
	path string
	db   *sql.DB
	bun  *bun.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("libsql", BuildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := execStatements(db, historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	h := &History{path: path, db: db, bun: bun.NewDB(db, sqlitedialect.New())}
	if err := h.ensureSchemaVersion(context.Background()); err != nil {
		h.Close()
		return nil, err
	}
	log.Debugf("[HISTORY] Opened %s", path)
	return h, nil
}

func (h *History) ensureSchemaVersion(ctx context.Context) error {
	var info SchemaInfoModel
	err := h.bun.NewSelect().Model(&info).Where("key = ?", "version").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = h.bun.NewInsert().
			Model(&SchemaInfoModel{Key: "version", Value: SchemaVersion}).
			Exec(ctx)
		return err
	}
	if err != nil {
		return err
	}
	if info.Value != SchemaVersion {
		return fmt.Errorf("unsupported history schema version %s (want %s)", info.Value, SchemaVersion)
	}
	return nil
}

// Path returns the database file path.
func (h *History) Path() string { return h.path }

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// RecordRun stores a run and its results in one transaction. An empty ID is
// filled with a new UUID. Transient "database is locked" errors are retried.
func (h *History) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return util.RetryLocked(ctx, "record run", func() error {
		return h.recordRunInternal(ctx, run)
	})
}

func (h *History) recordRunInternal(ctx context.Context, run *Run) error {
	return h.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(runModelFromRun(run)).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		if len(run.Results) == 0 {
			return nil
		}
		models := make([]ResultModel, len(run.Results))
		for i, r := range run.Results {
			models[i] = ResultModel{
				RunID:      run.ID,
				Seq:        i,
				Probe:      r.Probe,
				Status:     r.Status,
				Error:      r.Error,
				DurationMs: r.Duration.Milliseconds(),
			}
		}
		if _, err := tx.NewInsert().Model(&models).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert results: %w", err)
		}
		return nil
	})
}

// ListRuns returns the most recent runs, newest first, without their
// results. A limit of zero or less returns every run.
func (h *History) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	var models []RunModel
	q := h.bun.NewSelect().Model(&models).Order("started_at DESC", "id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	runs := make([]*Run, len(models))
	for i := range models {
		runs[i] = models[i].toRun()
	}
	return runs, nil
}

// GetRun returns a run with its results in probe order.
func (h *History) GetRun(ctx context.Context, id string) (*Run, error) {
	var model RunModel
	err := h.bun.NewSelect().Model(&model).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var results []ResultModel
	if err := h.bun.NewSelect().Model(&results).Where("run_id = ?", id).Order("seq").Scan(ctx); err != nil {
		return nil, err
	}

	run := model.toRun()
	for i := range results {
		run.Results = append(run.Results, results[i].toResult())
	}
	return run, nil
}

// ProbeStat counts outcomes of one probe across all recorded runs.
type ProbeStat struct {
	Probe   string `bun:"probe"`
	Passed  int    `bun:"passed"`
	Failed  int    `bun:"failed"`
	Errored int    `bun:"errored"`
}

// ProbeStats aggregates outcomes per probe, ignoring pending results.
func (h *History) ProbeStats(ctx context.Context) ([]ProbeStat, error) {
	var stats []ProbeStat
	err := h.bun.NewRaw(`
		SELECT probe,
		       SUM(CASE WHEN status = 'passed' THEN 1 ELSE 0 END) AS passed,
		       SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed,
		       SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END) AS errored
		FROM results
		WHERE status != 'pending'
		GROUP BY probe
		ORDER BY probe`).Scan(ctx, &stats)
	return stats, err
}

// Prune deletes all but the keep most recent runs and returns how many were
// removed.
func (h *History) Prune(ctx context.Context, keep int) (int, error) {
	return util.RetryLockedWithResult(ctx, "prune", func() (int, error) {
		var removed int64
		err := h.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			results := tx.NewDelete().Model((*ResultModel)(nil))
			runs := tx.NewDelete().Model((*RunModel)(nil))
			if keep > 0 {
				keepIDs := tx.NewSelect().
					Model((*RunModel)(nil)).
					Column("id").
					Order("started_at DESC", "id").
					Limit(keep)
				results = results.Where("run_id NOT IN (?)", keepIDs)
				runs = runs.Where("id NOT IN (?)", keepIDs)
			} else {
				results = results.Where("1 = 1")
				runs = runs.Where("1 = 1")
			}
			if _, err := results.Exec(ctx); err != nil {
				return err
			}
			res, err := runs.Exec(ctx)
			if err != nil {
				return err
			}
			removed, err = res.RowsAffected()
			return err
		})
		return int(removed), err
	})
}
