package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "id,title,snippet,job_type,budget,job_status,category2,subcategory2,url,workload,duration,date_created,skills," +
	"client.feedback,client.reviews_count,client.jobs_posted,client.payment_verification_status,client.past_hires,client.country,label\n"

func TestReadCSV(t *testing.T) {
	input := "\ufeff" + header +
		`~01a,Go developer,"Build a gRPC service, fast",Hourly,,Open,Web Dev,Backend,https://example.com/1,More than 30 hrs/week,1 to 3 months,2024-03-01T10:00:00-05:00,Go; gRPC,4.9,12.0,30,VERIFIED,8,United States,Good` + "\n" +
		`~01b,Logo design,Need a logo,Fixed,150,Open,Design,Logo,https://example.com/2,,,2024-03-02 08:30:00,,,,,,,,` + "\n"

	jobs, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	first := jobs[0]
	assert.Equal(t, "~01a", first.ID)
	assert.Equal(t, "Build a gRPC service, fast", first.Snippet)
	assert.Nil(t, first.Budget)
	assert.Equal(t, []string{"Go", "gRPC"}, first.Skills)
	assert.Equal(t, 4.9, first.Client.Feedback)
	assert.Equal(t, 12, first.Client.ReviewsCount)
	assert.Equal(t, 30, first.Client.JobsPosted)
	assert.Equal(t, 8, first.Client.PastHires)
	assert.Equal(t, "United States", first.Client.Country)
	assert.Equal(t, model.LabelGood, first.Label)
	assert.True(t, first.DateCreated.Equal(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)))

	second := jobs[1]
	require.NotNil(t, second.Budget)
	assert.Equal(t, 150.0, *second.Budget)
	assert.Nil(t, second.Skills)
	assert.Equal(t, model.LabelUncategorized, second.Label)
	assert.True(t, second.DateCreated.Equal(time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)))
}

func TestReadCSV_IgnoresUnknownColumns(t *testing.T) {
	input := ",id,title,date_created\n0,~01,Scraper,2024-01-01\n"

	jobs, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "~01", jobs[0].ID)
	assert.Equal(t, model.LabelUncategorized, jobs[0].Label)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		column  string
	}{
		{
			name:    "empty input",
			input:   "",
			wantErr: ErrMissingColumn,
		},
		{
			name:    "missing date column",
			input:   "id,title\n~01,Scraper\n",
			wantErr: ErrMissingColumn,
		},
		{
			name:    "bad label",
			input:   "id,title,date_created,label\n~01,Scraper,2024-01-01,Great\n",
			wantErr: model.ErrInvalidLabel,
			column:  "label",
		},
		{
			name:   "bad number",
			input:  "id,title,date_created,client.feedback\n~01,Scraper,2024-01-01,high\n",
			column: "client.feedback",
		},
		{
			name:   "bad timestamp",
			input:  "id,title,date_created\n~01,Scraper,yesterday\n",
			column: "date_created",
		},
		{
			name:   "empty id",
			input:  "id,title,date_created\n,Scraper,2024-01-01\n",
			column: "id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.column != "" {
				var rowErr *RowError
				require.True(t, errors.As(err, &rowErr))
				assert.Equal(t, 1, rowErr.Row)
				assert.Equal(t, tt.column, rowErr.Column)
			}
		})
	}
}
