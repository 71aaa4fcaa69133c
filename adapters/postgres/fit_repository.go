package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"gocanopy/domain/canopy"
	"gocanopy/domain/core"
	"gocanopy/domain/fit"
	"gocanopy/internal/errors"
	"gocanopy/ports"
)

// FitRepositoryImpl implements FitResultRepository for PostgreSQL
type FitRepositoryImpl struct {
	db *sqlx.DB
}

// NewFitRepository creates a new PostgreSQL fit result repository
func NewFitRepository(db *sqlx.DB) *FitRepositoryImpl {
	return &FitRepositoryImpl{db: db}
}

var _ ports.FitResultRepository = (*FitRepositoryImpl)(nil)

// EnsureSchema creates the result tables if they do not exist
func (r *FitRepositoryImpl) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS fit_runs (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS fit_estimates (
		run_id TEXT NOT NULL REFERENCES fit_runs(id),
		method TEXT NOT NULL,
		group_label TEXT NOT NULL,
		estimate DOUBLE PRECISION NOT NULL,
		std_err DOUBLE PRECISION NOT NULL,
		ci_lower DOUBLE PRECISION NOT NULL,
		ci_upper DOUBLE PRECISION NOT NULL,
		ci_level DOUBLE PRECISION NOT NULL,
		multimodal BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (run_id, method, group_label)
	);
	CREATE TABLE IF NOT EXISTS posterior_summaries (
		run_id TEXT NOT NULL REFERENCES fit_runs(id),
		param TEXT NOT NULL,
		mean DOUBLE PRECISION NOT NULL,
		mcse DOUBLE PRECISION NOT NULL,
		sd DOUBLE PRECISION NOT NULL,
		q2_5 DOUBLE PRECISION NOT NULL,
		q25 DOUBLE PRECISION NOT NULL,
		q50 DOUBLE PRECISION NOT NULL,
		q75 DOUBLE PRECISION NOT NULL,
		q97_5 DOUBLE PRECISION NOT NULL,
		r_hat DOUBLE PRECISION,
		unreliable BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (run_id, param)
	);`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to ensure fit result schema")
	}
	return nil
}

// SaveRun records a fit run and its per-method estimate tables
func (r *FitRepositoryImpl) SaveRun(ctx context.Context, runID core.RunID, tables []fit.EstimateTable) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fit_runs (id, created_at) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, runID.String(), core.Now().Time()); err != nil {
		return errors.Wrap(err, "failed to insert fit run")
	}

	for _, table := range tables {
		for _, row := range table.Rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO fit_estimates (run_id, method, group_label, estimate, std_err, ci_lower, ci_upper, ci_level, multimodal)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (run_id, method, group_label) DO UPDATE
				SET estimate = EXCLUDED.estimate, std_err = EXCLUDED.std_err,
				    ci_lower = EXCLUDED.ci_lower, ci_upper = EXCLUDED.ci_upper,
				    ci_level = EXCLUDED.ci_level, multimodal = EXCLUDED.multimodal
			`, runID.String(), string(table.Method), string(row.Group),
				row.Estimate, row.StdErr, row.Lower, row.Upper,
				table.Level, table.Diagnostics.Multimodal); err != nil {
				return errors.Wrap(err, "failed to insert estimate row")
			}
		}
	}
	return tx.Commit()
}

// SavePosteriorSummaries records the Bayesian summary table for a run
func (r *FitRepositoryImpl) SavePosteriorSummaries(ctx context.Context, runID core.RunID, result *fit.Posterior) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fit_runs (id, created_at) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, runID.String(), core.Now().Time()); err != nil {
		return errors.Wrap(err, "failed to insert fit run")
	}

	for _, s := range result.Summaries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO posterior_summaries (run_id, param, mean, mcse, sd, q2_5, q25, q50, q75, q97_5, r_hat, unreliable)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (run_id, param) DO UPDATE
			SET mean = EXCLUDED.mean, mcse = EXCLUDED.mcse, sd = EXCLUDED.sd,
			    q2_5 = EXCLUDED.q2_5, q25 = EXCLUDED.q25, q50 = EXCLUDED.q50,
			    q75 = EXCLUDED.q75, q97_5 = EXCLUDED.q97_5,
			    r_hat = EXCLUDED.r_hat, unreliable = EXCLUDED.unreliable
		`, runID.String(), s.Name, s.Mean, s.MCSE, s.SD,
			s.Q2_5, s.Q25, s.Q50, s.Q75, s.Q97_5, s.RHat, result.Unreliable); err != nil {
			return errors.Wrap(err, "failed to insert posterior summary")
		}
	}
	return tx.Commit()
}

// estimateRow mirrors the fit_estimates table for sqlx scanning
type estimateRow struct {
	Method     string  `db:"method"`
	GroupLabel string  `db:"group_label"`
	Estimate   float64 `db:"estimate"`
	StdErr     float64 `db:"std_err"`
	CILower    float64 `db:"ci_lower"`
	CIUpper    float64 `db:"ci_upper"`
	CILevel    float64 `db:"ci_level"`
	Multimodal bool    `db:"multimodal"`
}

// GetEstimates returns the stored estimate tables for a run
func (r *FitRepositoryImpl) GetEstimates(ctx context.Context, runID core.RunID) ([]fit.EstimateTable, error) {
	var rows []estimateRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT method, group_label, estimate, std_err, ci_lower, ci_upper, ci_level, multimodal
		FROM fit_estimates
		WHERE run_id = $1
		ORDER BY method, group_label
	`, runID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load estimates")
	}

	byMethod := make(map[string]*fit.EstimateTable)
	var order []string
	for _, row := range rows {
		table, ok := byMethod[row.Method]
		if !ok {
			table = &fit.EstimateTable{
				Method:      fit.Method(row.Method),
				Level:       row.CILevel,
				Diagnostics: fit.Diagnostics{Multimodal: row.Multimodal},
			}
			byMethod[row.Method] = table
			order = append(order, row.Method)
		}
		table.Rows = append(table.Rows, fit.EstimateRow{
			Group:    canopy.GroupLabel(row.GroupLabel),
			Estimate: row.Estimate,
			StdErr:   row.StdErr,
			Lower:    row.CILower,
			Upper:    row.CIUpper,
		})
	}

	out := make([]fit.EstimateTable, 0, len(order))
	for _, m := range order {
		out = append(out, *byMethod[m])
	}
	return out, nil
}

// ListRuns returns the known run IDs, most recent first
func (r *FitRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]core.RunID, error) {
	if limit <= 0 {
		limit = 50
	}
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM fit_runs ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	out := make([]core.RunID, len(ids))
	for i, id := range ids {
		out[i] = core.RunID(id)
	}
	return out, nil
}
