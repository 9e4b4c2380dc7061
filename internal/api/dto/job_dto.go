package dto

import (
	"time"

	"github.com/cuongbtq/job-triage/internal/model"
)

// UpsertJobsRequest is a batch of marketplace postings to ingest
type UpsertJobsRequest struct {
	Jobs []JobInput `json:"jobs" binding:"required,min=1,dive"`
}

// JobInput is one posting as delivered by the marketplace fetcher. Labels are
// not accepted here; new records start Uncategorized.
type JobInput struct {
	ID           string      `json:"id" binding:"required"`
	Title        string      `json:"title" binding:"required"`
	Snippet      string      `json:"snippet"`
	JobType      string      `json:"job_type" binding:"omitempty,oneof=Hourly Fixed"`
	Budget       *float64    `json:"budget" binding:"omitempty,gte=0"`
	JobStatus    string      `json:"job_status"`
	Category2    string      `json:"category2"`
	Subcategory2 string      `json:"subcategory2"`
	URL          string      `json:"url" binding:"omitempty,url"`
	Workload     string      `json:"workload"`
	Duration     string      `json:"duration"`
	DateCreated  time.Time   `json:"date_created" binding:"required"`
	Skills       []string    `json:"skills"`
	Client       ClientInput `json:"client"`
}

// ClientInput holds the posting client's statistics
type ClientInput struct {
	Feedback                  float64 `json:"feedback" binding:"gte=0,lte=5"`
	ReviewsCount              int     `json:"reviews_count" binding:"gte=0"`
	JobsPosted                int     `json:"jobs_posted" binding:"gte=0"`
	PaymentVerificationStatus string  `json:"payment_verification_status"`
	PastHires                 int     `json:"past_hires" binding:"gte=0"`
	Country                   string  `json:"country"`
}

// ToModel converts the input into an Uncategorized job record
func (in JobInput) ToModel() model.JobRecord {
	return model.JobRecord{
		ID:           in.ID,
		Title:        in.Title,
		Snippet:      in.Snippet,
		JobType:      in.JobType,
		Budget:       in.Budget,
		JobStatus:    in.JobStatus,
		Category2:    in.Category2,
		Subcategory2: in.Subcategory2,
		URL:          in.URL,
		Workload:     in.Workload,
		Duration:     in.Duration,
		DateCreated:  in.DateCreated,
		Skills:       in.Skills,
		Client: model.ClientProfile{
			Feedback:                  in.Client.Feedback,
			ReviewsCount:              in.Client.ReviewsCount,
			JobsPosted:                in.Client.JobsPosted,
			PaymentVerificationStatus: in.Client.PaymentVerificationStatus,
			PastHires:                 in.Client.PastHires,
			Country:                   in.Client.Country,
		},
		Label: model.LabelUncategorized,
	}
}

type UpsertJobsResponse struct {
	Upserted int `json:"upserted"`
}

type ListJobsRequest struct {
	Labels   []string `form:"labels"`
	PageSize int      `form:"page_size"`
	Cursor   string   `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []model.JobRecord `json:"jobs"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type UpdateLabelRequest struct {
	Label string `json:"label" binding:"required"`
}
