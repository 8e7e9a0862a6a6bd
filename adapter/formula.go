package adapter

import (
	"fmt"
	"strings"

	"github.com/ezoic/mlsurface/dataset"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

// Formula names the label and the predictors a model is fitted on. It is written
// in the usual "label ~ a + b" form; "." on the right-hand side stands for every
// non-label column and "1" for an intercept-only model.
type Formula struct {
	Label      string
	Predictors []string
	all        bool
}

// ParseFormula parses text such as "Diabetes ~ Age + BMI". Malformed text is a
// ConfigError. Column names are only checked by Resolve.
func ParseFormula(text string) (Formula, error) {
	parts := strings.Split(text, "~")
	if len(parts) != 2 {
		return Formula{}, mlerrors.NewConfigError("formula", "must contain exactly one '~'", text)
	}

	label := strings.TrimSpace(parts[0])
	if !validName(label) {
		return Formula{}, mlerrors.NewConfigError("formula", "needs a single label name left of '~'", text)
	}

	f := Formula{Label: label}
	seen := make(map[string]bool)
	for _, term := range strings.Split(parts[1], "+") {
		term = strings.TrimSpace(term)
		switch {
		case term == ".":
			f.all = true
		case term == "1":
		case !validName(term):
			return Formula{}, mlerrors.NewConfigError("formula", fmt.Sprintf("bad term %q", term), text)
		case term == label:
			return Formula{}, mlerrors.NewConfigError("formula", "label cannot also be a predictor", text)
		case !seen[term]:
			seen[term] = true
			f.Predictors = append(f.Predictors, term)
		}
	}
	return f, nil
}

// MustParseFormula is like ParseFormula but panics on error.
func MustParseFormula(text string) Formula {
	f, err := ParseFormula(text)
	if err != nil {
		panic(err)
	}
	return f
}

func validName(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t~+.")
}

// Resolve checks the formula against records and expands ".". Unknown columns and a
// label that is not the record set's label are SchemaErrors.
func (f Formula) Resolve(records *dataset.RecordSet) (Formula, error) {
	if f.Label != records.Label() {
		return Formula{}, mlerrors.NewSchemaError(f.Label,
			fmt.Sprintf("formula label differs from record label %q", records.Label()))
	}

	out := Formula{Label: f.Label}
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out.Predictors = append(out.Predictors, name)
		}
	}
	for _, name := range f.Predictors {
		if !records.Has(name) {
			return Formula{}, mlerrors.NewSchemaError(name, "formula term is not a prepared column")
		}
		add(name)
	}
	if f.all {
		for _, name := range records.Predictors() {
			add(name)
		}
	}
	return out, nil
}

// String renders the formula in its parsed form.
func (f Formula) String() string {
	rhs := make([]string, 0, len(f.Predictors)+1)
	rhs = append(rhs, f.Predictors...)
	if f.all {
		rhs = append(rhs, ".")
	}
	if len(rhs) == 0 {
		rhs = append(rhs, "1")
	}
	return f.Label + " ~ " + strings.Join(rhs, " + ")
}
