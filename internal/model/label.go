package model

import (
	"errors"
	"fmt"
)

// Label is the operator-assigned classification of a job record
type Label string

const (
	LabelUncategorized Label = "Uncategorized"
	LabelGood          Label = "Good"
	LabelMaybe         Label = "Maybe"
	LabelBad           Label = "Bad"
	LabelIrrelevant    Label = "Irrelevant"
)

var (
	// ErrInvalidLabel is returned when a string does not name a known label
	ErrInvalidLabel = errors.New("invalid label")

	// ErrInvalidTransition is returned for any label change other than
	// Uncategorized -> terminal label
	ErrInvalidTransition = errors.New("invalid label transition")
)

// PriorityOrder is the fixed order in which predicted buckets are offered to the operator
var PriorityOrder = []Label{LabelGood, LabelMaybe, LabelBad, LabelIrrelevant}

// AllLabels lists every label, initial state first
var AllLabels = []Label{LabelUncategorized, LabelGood, LabelMaybe, LabelBad, LabelIrrelevant}

// ParseLabel converts a string into a Label
func ParseLabel(s string) (Label, error) {
	for _, l := range AllLabels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLabel, s)
}

// IsTerminal reports whether the label is one an operator assigns
func (l Label) IsTerminal() bool {
	switch l {
	case LabelGood, LabelMaybe, LabelBad, LabelIrrelevant:
		return true
	}
	return false
}

// Valid reports whether l is a known label
func (l Label) Valid() bool {
	return l == LabelUncategorized || l.IsTerminal()
}

func (l Label) String() string {
	return string(l)
}

// CanTransition checks the only allowed transition: Uncategorized to a terminal label
func CanTransition(from, to Label) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, to)
	}
	if from != LabelUncategorized || !to.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
