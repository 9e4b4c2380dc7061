package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Label
		wantErr bool
	}{
		{name: "good", input: "Good", want: LabelGood},
		{name: "uncategorized", input: "Uncategorized", want: LabelUncategorized},
		{name: "irrelevant", input: "Irrelevant", want: LabelIrrelevant},
		{name: "lowercase is rejected", input: "good", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLabel(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLabel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Label
		to      Label
		wantErr error
	}{
		{name: "uncategorized to good", from: LabelUncategorized, to: LabelGood},
		{name: "uncategorized to irrelevant", from: LabelUncategorized, to: LabelIrrelevant},
		{name: "good to bad", from: LabelGood, to: LabelBad, wantErr: ErrInvalidTransition},
		{name: "back to uncategorized", from: LabelMaybe, to: LabelUncategorized, wantErr: ErrInvalidTransition},
		{name: "uncategorized to itself", from: LabelUncategorized, to: LabelUncategorized, wantErr: ErrInvalidTransition},
		{name: "unknown target", from: LabelUncategorized, to: Label("Great"), wantErr: ErrInvalidLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(tt.from, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPriorityOrder(t *testing.T) {
	assert.Equal(t, []Label{LabelGood, LabelMaybe, LabelBad, LabelIrrelevant}, PriorityOrder)
	for _, l := range PriorityOrder {
		assert.True(t, l.IsTerminal())
	}
	assert.False(t, LabelUncategorized.IsTerminal())
}

func TestSkills(t *testing.T) {
	assert.Equal(t, "Go; SQL; Docker", JoinSkills([]string{"Go", "SQL", "Docker"}))
	assert.Equal(t, []string{"Go", "SQL", "Docker"}, SplitSkills("Go; SQL;Docker ; "))
	assert.Nil(t, SplitSkills("  "))
}
