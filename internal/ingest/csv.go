// Package ingest reads job exports into JobRecords.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/job-triage/internal/model"
)

// ErrMissingColumn is returned when a required header column is absent
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{"id", "title", "date_created"}

// accepted creation timestamp layouts, tried in order
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// RowError reports a malformed value with its 1-based data row
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d, column %q: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ReadCSV parses a CSV export whose header uses the persisted column names.
// Unknown columns are ignored. Rows without a label column, or with an empty
// one, are Uncategorized. Timestamps without an offset are taken as UTC.
func ReadCSV(r io.Reader) ([]model.JobRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var jobs []model.JobRecord
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		job, err := parseRow(&rowReader{index: index, rec: rec, row: row})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

type rowReader struct {
	index map[string]int
	rec   []string
	row   int
	err   error
}

func (r *rowReader) str(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *rowReader) fail(col string, err error) {
	if r.err == nil {
		r.err = &RowError{Row: r.row, Column: col, Err: err}
	}
}

func (r *rowReader) float(col string) float64 {
	s := r.str(col)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(col, err)
	}
	return v
}

// integer accepts "12" as well as the "12.0" a dataframe export writes
func (r *rowReader) integer(col string) int {
	return int(r.float(col))
}

func (r *rowReader) budget() *float64 {
	if r.str("budget") == "" {
		return nil
	}
	v := r.float("budget")
	return &v
}

func (r *rowReader) date() time.Time {
	s := r.str("date_created")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	r.fail("date_created", fmt.Errorf("unrecognized timestamp %q", s))
	return time.Time{}
}

func (r *rowReader) label() model.Label {
	s := r.str("label")
	if s == "" {
		return model.LabelUncategorized
	}
	l, err := model.ParseLabel(s)
	if err != nil {
		r.fail("label", err)
	}
	return l
}

func parseRow(r *rowReader) (model.JobRecord, error) {
	job := model.JobRecord{
		ID:           r.str("id"),
		Title:        r.str("title"),
		Snippet:      r.str("snippet"),
		JobType:      r.str("job_type"),
		Budget:       r.budget(),
		JobStatus:    r.str("job_status"),
		Category2:    r.str("category2"),
		Subcategory2: r.str("subcategory2"),
		URL:          r.str("url"),
		Workload:     r.str("workload"),
		Duration:     r.str("duration"),
		DateCreated:  r.date(),
		Skills:       model.SplitSkills(r.str("skills")),
		Client: model.ClientProfile{
			Feedback:                  r.float("client.feedback"),
			ReviewsCount:              r.integer("client.reviews_count"),
			JobsPosted:                r.integer("client.jobs_posted"),
			PaymentVerificationStatus: r.str("client.payment_verification_status"),
			PastHires:                 r.integer("client.past_hires"),
			Country:                   r.str("client.country"),
		},
		Label: r.label(),
	}
	if job.ID == "" {
		r.fail("id", errors.New("empty id"))
	}
	return job, r.err
}
