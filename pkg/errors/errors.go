// Package errors provides the error taxonomy and warning system used across mlsurface.
//
// Structural errors (SchemaError, ConfigError) abort a comparison run before any model
// is fitted. Per-model errors (AdapterContractError, AlignmentError) are isolated to the
// model that produced them and surface through PartialFailure.
//
// All constructors attach a stack trace via cockroachdb/errors; use errors.As to recover
// the concrete type after wrapping.
package errors

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("mlsurface-Warning: %v\n", w)
	}
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the handler that receives warnings raised through Warn.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a structured warning sink. It takes precedence over the
// plain handler. pkg/log wires this in to avoid an import cycle.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn raises a warning.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// RowsDroppedWarning reports records removed because a selected column was missing.
type RowsDroppedWarning struct {
	Dropped int
	Kept    int
	Columns []string
}

func (w *RowsDroppedWarning) Error() string {
	return fmt.Sprintf("dropped %d of %d records with missing values in %s",
		w.Dropped, w.Dropped+w.Kept, strings.Join(w.Columns, ", "))
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *RowsDroppedWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("dropped", w.Dropped).
		Int("kept", w.Kept).
		Strs("columns", w.Columns).
		Str("type", "RowsDroppedWarning")
}

// NewRowsDroppedWarning creates a RowsDroppedWarning.
func NewRowsDroppedWarning(dropped, kept int, columns []string) *RowsDroppedWarning {
	return &RowsDroppedWarning{Dropped: dropped, Kept: kept, Columns: columns}
}

// ===========================================================================
//
//	Pipeline taxonomy
//
// ===========================================================================

// SchemaError reports a missing or mistyped input column.
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("mlsurface: schema: column '%s': %s", e.Column, e.Reason)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "SchemaError")
}

// NewSchemaError creates a SchemaError with a stack trace.
func NewSchemaError(column, reason string) error {
	return errors.WithStack(&SchemaError{Column: column, Reason: reason})
}

// ConfigError reports an invalid grid resolution or hyperparameter.
type ConfigError struct {
	Param  string
	Reason string
	Value  interface{}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("mlsurface: config: '%s' %s (got: %v)", e.Param, e.Reason, e.Value)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ConfigError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigError")
}

// NewConfigError creates a ConfigError with a stack trace.
func NewConfigError(param, reason string, value interface{}) error {
	return errors.WithStack(&ConfigError{Param: param, Reason: reason, Value: value})
}

// AdapterContractError reports a model whose prediction output violates the
// one-probability-per-grid-point contract.
type AdapterContractError struct {
	Model    string
	Expected int
	Got      int
	Reason   string
}

func (e *AdapterContractError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("mlsurface: adapter '%s': %s", e.Model, e.Reason)
	}
	return fmt.Sprintf("mlsurface: adapter '%s': expected %d predictions, got %d", e.Model, e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *AdapterContractError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model", e.Model).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("reason", e.Reason).
		Str("type", "AdapterContractError")
}

// NewAdapterContractError creates a length-mismatch AdapterContractError.
func NewAdapterContractError(model string, expected, got int) error {
	return errors.WithStack(&AdapterContractError{Model: model, Expected: expected, Got: got})
}

// NewAdapterContractErrorf creates an AdapterContractError with a free-form reason.
func NewAdapterContractErrorf(model string, format string, args ...interface{}) error {
	return errors.WithStack(&AdapterContractError{Model: model, Reason: fmt.Sprintf(format, args...)})
}

// AlignmentError reports a prediction surface that does not cover the grid exactly.
type AlignmentError struct {
	Model    string
	Expected int
	Got      int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("mlsurface: assemble: model '%s' covers %d of %d grid points", e.Model, e.Got, e.Expected)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *AlignmentError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model", e.Model).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("type", "AlignmentError")
}

// NewAlignmentError creates an AlignmentError with a stack trace.
func NewAlignmentError(model string, expected, got int) error {
	return errors.WithStack(&AlignmentError{Model: model, Expected: expected, Got: got})
}

// PartialFailure collects per-model errors from a run in which at least one model failed.
type PartialFailure struct {
	Failures  map[string]error
	Succeeded []string
}

func (e *PartialFailure) Error() string {
	names := e.FailedModels()
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %v", name, e.Failures[name])
	}
	return fmt.Sprintf("mlsurface: %d model(s) failed (%d succeeded): %s",
		len(names), len(e.Succeeded), strings.Join(parts, "; "))
}

// FailedModels returns the failed model names in lexicographic order.
func (e *PartialFailure) FailedModels() []string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unwrap exposes the per-model errors to errors.Is / errors.As.
func (e *PartialFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, name := range e.FailedModels() {
		errs = append(errs, e.Failures[name])
	}
	return errs
}

// IsStructural reports whether err aborts a whole run (schema or config problems).
func IsStructural(err error) bool {
	var schemaErr *SchemaError
	var configErr *ConfigError
	return As(err, &schemaErr) || As(err, &configErr)
}

// ===========================================================================
//
//	Estimator errors
//
// ===========================================================================

// NotFittedError is returned when Predict is called before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("mlsurface: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports a shape mismatch along one axis.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("mlsurface: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValueError reports an inappropriate argument value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("mlsurface: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError is a general failure inside an estimator.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mlsurface: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("mlsurface: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ErrEmptyData is returned when an operation receives no records.
var ErrEmptyData = New("empty data")
