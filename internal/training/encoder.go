package training

import (
	"fmt"

	"github.com/cuongbtq/job-triage/internal/model"
)

// LabelEncoder maps terminal labels to the integer codes used as score
// columns. The order is explicit and persisted with the model.
type LabelEncoder struct {
	Classes []model.Label `json:"classes"`
}

// NewLabelEncoder validates classes and fixes their order
func NewLabelEncoder(classes []model.Label) (*LabelEncoder, error) {
	seen := make(map[model.Label]struct{}, len(classes))
	for _, c := range classes {
		if !c.IsTerminal() {
			return nil, fmt.Errorf("%w: %q cannot be a training class", model.ErrInvalidLabel, c)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("duplicate class %q", c)
		}
		seen[c] = struct{}{}
	}
	return &LabelEncoder{Classes: append([]model.Label(nil), classes...)}, nil
}

func (e *LabelEncoder) Len() int { return len(e.Classes) }

// Encode returns the code of l
func (e *LabelEncoder) Encode(l model.Label) (int, error) {
	for i, c := range e.Classes {
		if c == l {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q is not a trained class", model.ErrInvalidLabel, l)
}

// Decode returns the label of code i
func (e *LabelEncoder) Decode(i int) model.Label {
	return e.Classes[i]
}

// Strings returns the class names in code order
func (e *LabelEncoder) Strings() []string {
	out := make([]string, len(e.Classes))
	for i, c := range e.Classes {
		out[i] = string(c)
	}
	return out
}
