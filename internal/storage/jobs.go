package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `id, title, snippet, job_type, budget, job_status, category2, subcategory2,
	url, workload, duration, date_created, skills,
	"client.feedback", "client.reviews_count", "client.jobs_posted",
	"client.payment_verification_status", "client.past_hires", "client.country", label`

// jobRow mirrors the jobs table; nested client columns map through the
// "client." prefix.
type jobRow struct {
	ID           string              `db:"id"`
	Title        string              `db:"title"`
	Snippet      string              `db:"snippet"`
	JobType      string              `db:"job_type"`
	Budget       sql.NullFloat64     `db:"budget"`
	JobStatus    string              `db:"job_status"`
	Category2    string              `db:"category2"`
	Subcategory2 string              `db:"subcategory2"`
	URL          string              `db:"url"`
	Workload     string              `db:"workload"`
	Duration     string              `db:"duration"`
	DateCreated  sqlTime             `db:"date_created"`
	Skills       string              `db:"skills"`
	Client       model.ClientProfile `db:"client"`
	Label        string              `db:"label"`
}

func (r *jobRow) toModel() model.JobRecord {
	job := model.JobRecord{
		ID:           r.ID,
		Title:        r.Title,
		Snippet:      r.Snippet,
		JobType:      r.JobType,
		JobStatus:    r.JobStatus,
		Category2:    r.Category2,
		Subcategory2: r.Subcategory2,
		URL:          r.URL,
		Workload:     r.Workload,
		Duration:     r.Duration,
		DateCreated:  r.DateCreated.Time,
		Skills:       model.SplitSkills(r.Skills),
		Client:       r.Client,
		Label:        model.Label(r.Label),
	}
	if r.Budget.Valid {
		v := r.Budget.Float64
		job.Budget = &v
	}
	return job
}

func toModels(rows []jobRow) []model.JobRecord {
	out := make([]model.JobRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out
}

// UpsertJobs inserts new records and refreshes the marketplace fields of
// existing ones. The label of an existing record is never overwritten.
func (s *Storage) UpsertJobs(ctx context.Context, jobs []model.JobRecord) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	query := s.db.Rebind(`
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			snippet = excluded.snippet,
			job_type = excluded.job_type,
			budget = excluded.budget,
			job_status = excluded.job_status,
			category2 = excluded.category2,
			subcategory2 = excluded.subcategory2,
			url = excluded.url,
			workload = excluded.workload,
			duration = excluded.duration,
			date_created = excluded.date_created,
			skills = excluded.skills,
			"client.feedback" = excluded."client.feedback",
			"client.reviews_count" = excluded."client.reviews_count",
			"client.jobs_posted" = excluded."client.jobs_posted",
			"client.payment_verification_status" = excluded."client.payment_verification_status",
			"client.past_hires" = excluded."client.past_hires",
			"client.country" = excluded."client.country"
	`)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, j := range jobs {
		if j.ID == "" {
			return 0, fmt.Errorf("failed to upsert job: empty id")
		}
		label := j.Label
		if !label.Valid() {
			label = model.LabelUncategorized
		}
		var budget sql.NullFloat64
		if v, ok := j.BudgetValue(); ok {
			budget = sql.NullFloat64{Float64: v, Valid: true}
		}

		_, err := tx.ExecContext(ctx, query,
			j.ID, j.Title, j.Snippet, j.JobType, budget, j.JobStatus,
			j.Category2, j.Subcategory2, j.URL, j.Workload, j.Duration,
			j.DateCreated.UTC(), model.JoinSkills(j.Skills),
			j.Client.Feedback, j.Client.ReviewsCount, j.Client.JobsPosted,
			j.Client.PaymentVerificationStatus, j.Client.PastHires, j.Client.Country,
			string(label),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert job %s: %w", j.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit jobs: %w", err)
	}

	s.logger.Info("Jobs upserted", slog.Int("count", len(jobs)))
	return len(jobs), nil
}

// GetJob retrieves a job by id
func (s *Storage) GetJob(ctx context.Context, id string) (*model.JobRecord, error) {
	var row jobRow
	query := s.db.Rebind(`SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	job := row.toModel()
	return &job, nil
}

// JobFilter selects a page of jobs
type JobFilter struct {
	Labels   []model.Label
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the position after the last job of the previous page
type JobCursor struct {
	DateCreated time.Time
	ID          string
}

// ListJobs returns up to PageSize+1 jobs, newest first. The extra row tells
// the caller whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}

	if len(filter.Labels) > 0 {
		query += " AND label IN (?)"
		args = append(args, labelStrings(filter.Labels))
	}

	if filter.Cursor != nil {
		at := filter.Cursor.DateCreated.UTC()
		query += " AND (date_created < ? OR (date_created = ? AND id < ?))"
		args = append(args, at, at, filter.Cursor.ID)
	}

	query += " ORDER BY date_created DESC, id DESC LIMIT ?"
	args = append(args, filter.PageSize+1)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return toModels(rows), nil
}

// LoadByLabels returns every job carrying one of labels, newest first
func (s *Storage) LoadByLabels(ctx context.Context, labels ...model.Label) ([]model.JobRecord, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT `+jobColumns+` FROM jobs WHERE label IN (?) ORDER BY date_created DESC, id DESC`,
		labelStrings(labels),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build load query: %w", err)
	}

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	return toModels(rows), nil
}

// LabelCounts is the number of jobs per label
type LabelCounts struct {
	Labeled int                 `json:"labeled"`
	ByLabel map[model.Label]int `json:"by_label"`
}

// CountLabels counts jobs per label; Labeled excludes Uncategorized
func (s *Storage) CountLabels(ctx context.Context) (*LabelCounts, error) {
	var rows []struct {
		Label string `db:"label"`
		N     int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT label, COUNT(*) AS n FROM jobs GROUP BY label`); err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	counts := &LabelCounts{ByLabel: make(map[model.Label]int, len(model.AllLabels))}
	for _, l := range model.AllLabels {
		counts.ByLabel[l] = 0
	}
	for _, r := range rows {
		l := model.Label(r.Label)
		counts.ByLabel[l] = r.N
		if l != model.LabelUncategorized {
			counts.Labeled += r.N
		}
	}
	return counts, nil
}

// UpdateLabel applies an operator label, allowing only the transition from
// Uncategorized to a terminal label.
func (s *Storage) UpdateLabel(ctx context.Context, id string, label model.Label) (*model.JobRecord, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row jobRow
	if err := tx.GetContext(ctx, &row, tx.Rebind(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if err := model.CanTransition(model.Label(row.Label), label); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE jobs SET label = ? WHERE id = ?`), string(label), id); err != nil {
		return nil, fmt.Errorf("failed to update label: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit label: %w", err)
	}

	s.logger.Info("Job labelled",
		slog.String("job_id", id),
		slog.String("from", row.Label),
		slog.String("to", string(label)),
	)

	job := row.toModel()
	job.Label = label
	return &job, nil
}

func labelStrings(labels []model.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}
