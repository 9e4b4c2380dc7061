package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/prediction"
	"github.com/spf13/cobra"
)

type predictOptions struct {
	nJobs      int
	windowDays int
	retrain    bool
	labels     []string
	json       bool
}

func newPredictCmd(opts *rootOptions) *cobra.Command {
	p := &predictOptions{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Print the ranked shortlist of recent unlabelled jobs",
		Long:  "Score the Uncategorized jobs created inside the window and print at most --n-jobs of them, Good first, then Maybe, Bad and Irrelevant. Flags left unset use the configured defaults.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, opts, p)
		},
	}

	cmd.Flags().IntVar(&p.nJobs, "n-jobs", 0, "Maximum number of jobs to print")
	cmd.Flags().IntVar(&p.windowDays, "window-days", 0, "Only consider jobs created in the last N days")
	cmd.Flags().BoolVar(&p.retrain, "retrain", false, "Train a fresh model before predicting")
	cmd.Flags().StringSliceVar(&p.labels, "labels", nil, "Predicted labels to include, e.g. Good,Maybe")
	cmd.Flags().BoolVar(&p.json, "json", false, "Print the result as JSON")
	return cmd
}

// resolve overlays the flags the user set on the configured defaults
func (p *predictOptions) resolve(cmd *cobra.Command, defaults prediction.Options) (prediction.Options, error) {
	o := defaults
	flags := cmd.Flags()
	if flags.Changed("n-jobs") {
		o.NJobs = p.nJobs
	}
	if flags.Changed("window-days") {
		o.WindowDays = p.windowDays
	}
	if flags.Changed("retrain") {
		o.Retrain = p.retrain
	}
	if flags.Changed("labels") {
		o.ToPredict = make(map[model.Label]bool, len(model.PriorityOrder))
		for _, l := range model.PriorityOrder {
			o.ToPredict[l] = false
		}
		for _, s := range p.labels {
			l, err := model.ParseLabel(s)
			if err != nil {
				return o, err
			}
			if !l.IsTerminal() {
				return o, fmt.Errorf("%w: %s cannot be predicted", model.ErrInvalidLabel, l)
			}
			o.ToPredict[l] = true
		}
	}
	return o, nil
}

func runPredict(cmd *cobra.Command, opts *rootOptions, p *predictOptions) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	o, err := p.resolve(cmd, a.cfg.Pipeline.PredictOptions())
	if err != nil {
		return err
	}

	res, err := a.pipeline.Predictor.Predict(ctx, o)
	if err != nil {
		return fmt.Errorf("prediction failed: %w", err)
	}

	if p.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(prediction.Result{Jobs: res.Jobs})
	}
	return printShortlist(cmd.OutOrStdout(), res.Jobs, a.pipeline.Location)
}

func printShortlist(out io.Writer, jobs []prediction.RankedJob, loc *time.Location) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(out, "no jobs to review")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tLABEL\tSCORE\tCREATED\tTITLE\tURL")
	for i, j := range jobs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.3f\t%s\t%s\t%s\n",
			i+1, j.ID, j.Predicted, j.Score, j.DateCreated.In(loc).Format("2006-01-02 15:04"), truncate(j.Title, 60), j.URL)
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
