package dto

// PredictRequest overrides the configured prediction defaults. Absent
// fields keep the configured value.
type PredictRequest struct {
	Retrain      *bool           `json:"retrain"`
	NJobs        *int            `json:"n_jobs" binding:"omitempty,gte=0"`
	WindowDays   *int            `json:"window_days" binding:"omitempty,gte=0"`
	ToPredict    map[string]bool `json:"to_predict"`
	IncludePlots bool            `json:"include_plots"`
}

type ReportRequest struct {
	IncludePlots bool `form:"include_plots"`
}
