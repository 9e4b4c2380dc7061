package features

import "github.com/cuongbtq/job-triage/internal/model"

type numericAccessor func(*model.JobRecord) (float64, bool)
type stringAccessor func(*model.JobRecord) string

var numericColumns = map[string]numericAccessor{
	"budget":               func(j *model.JobRecord) (float64, bool) { return j.BudgetValue() },
	"client.feedback":      func(j *model.JobRecord) (float64, bool) { return j.Client.Feedback, true },
	"client.reviews_count": func(j *model.JobRecord) (float64, bool) { return float64(j.Client.ReviewsCount), true },
	"client.jobs_posted":   func(j *model.JobRecord) (float64, bool) { return float64(j.Client.JobsPosted), true },
	"client.past_hires":    func(j *model.JobRecord) (float64, bool) { return float64(j.Client.PastHires), true },
}

var textColumns = map[string]stringAccessor{
	"title":   func(j *model.JobRecord) string { return j.Title },
	"snippet": func(j *model.JobRecord) string { return j.Snippet },
	"skills":  func(j *model.JobRecord) string { return model.JoinSkills(j.Skills) },
}

var categoricalColumns = map[string]stringAccessor{
	"job_type":                           func(j *model.JobRecord) string { return j.JobType },
	"category2":                          func(j *model.JobRecord) string { return j.Category2 },
	"subcategory2":                       func(j *model.JobRecord) string { return j.Subcategory2 },
	"workload":                           func(j *model.JobRecord) string { return j.Workload },
	"duration":                           func(j *model.JobRecord) string { return j.Duration },
	"client.country":                     func(j *model.JobRecord) string { return j.Client.Country },
	"client.payment_verification_status": func(j *model.JobRecord) string { return j.Client.PaymentVerificationStatus },
}

// Default column groups fed to the classifier; every other column is dropped.
var (
	DefaultNumericColumns     = []string{"budget", "client.feedback", "client.reviews_count", "client.jobs_posted", "client.past_hires"}
	DefaultCategoricalColumns = []string{"job_type", "category2", "client.country"}
)
