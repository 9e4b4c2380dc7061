package prediction

import (
	"sort"
	"time"

	"github.com/cuongbtq/job-triage/internal/model"
)

// RankedJob is a record annotated with its prediction. Score is the largest
// entry of Scores, whose meaning depends on the classifier kind.
type RankedJob struct {
	model.JobRecord
	Predicted model.Label             `json:"predicted_label"`
	Score     float64                 `json:"score"`
	Scores    map[model.Label]float64 `json:"scores"`
}

// Rank selects at most nJobs candidates bucket by bucket in
// model.PriorityOrder. Each bucket is ordered by descending score and
// contributes only when enabled in toPredict; a record whose window has
// elapsed at now is skipped. Buckets are never interleaved.
func Rank(cands []RankedJob, now time.Time, window time.Duration, nJobs int, toPredict map[model.Label]bool) []RankedJob {
	if nJobs <= 0 {
		return []RankedJob{}
	}
	buckets := make(map[model.Label][]RankedJob, len(model.PriorityOrder))
	for _, c := range cands {
		buckets[c.Predicted] = append(buckets[c.Predicted], c)
	}

	out := make([]RankedJob, 0, min(nJobs, len(cands)))
	for _, label := range model.PriorityOrder {
		if !toPredict[label] {
			continue
		}
		bucket := buckets[label]
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].Score > bucket[j].Score })

		for _, c := range bucket {
			if len(out) >= nJobs {
				return out
			}
			if !now.Before(c.DateCreated.Add(window)) {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}
