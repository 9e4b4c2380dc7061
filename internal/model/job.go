package model

import (
	"strings"
	"time"
)

// Job type constants as reported by the marketplace
const (
	JobTypeHourly = "Hourly"
	JobTypeFixed  = "Fixed"
)

// SkillsSeparator joins the ordered skill list into its persisted form
const SkillsSeparator = "; "

// JobRecord is one marketplace job posting. ID is assigned by the marketplace
// and stays stable across refetches.
type JobRecord struct {
	ID           string        `db:"id" json:"id"`
	Title        string        `db:"title" json:"title"`
	Snippet      string        `db:"snippet" json:"snippet"`
	JobType      string        `db:"job_type" json:"job_type"`
	Budget       *float64      `db:"budget" json:"budget"`
	JobStatus    string        `db:"job_status" json:"job_status"`
	Category2    string        `db:"category2" json:"category2"`
	Subcategory2 string        `db:"subcategory2" json:"subcategory2"`
	URL          string        `db:"url" json:"url"`
	Workload     string        `db:"workload" json:"workload"`
	Duration     string        `db:"duration" json:"duration"`
	DateCreated  time.Time     `db:"date_created" json:"date_created"`
	Skills       []string      `db:"-" json:"skills"`
	Client       ClientProfile `db:"client" json:"client"`
	Label        Label         `db:"label" json:"label"`
}

// ClientProfile holds the statistics of the client who posted the job
type ClientProfile struct {
	Feedback                  float64 `db:"feedback" json:"feedback"`
	ReviewsCount              int     `db:"reviews_count" json:"reviews_count"`
	JobsPosted                int     `db:"jobs_posted" json:"jobs_posted"`
	PaymentVerificationStatus string  `db:"payment_verification_status" json:"payment_verification_status"`
	PastHires                 int     `db:"past_hires" json:"past_hires"`
	Country                   string  `db:"country" json:"country"`
}

// JoinSkills serializes the skill list for storage
func JoinSkills(skills []string) string {
	return strings.Join(skills, SkillsSeparator)
}

// SplitSkills parses a persisted skill list, dropping empty entries
func SplitSkills(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	skills := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			skills = append(skills, p)
		}
	}
	return skills
}

// BudgetValue returns the budget and whether it was set
func (j *JobRecord) BudgetValue() (float64, bool) {
	if j.Budget == nil {
		return 0, false
	}
	return *j.Budget, true
}
