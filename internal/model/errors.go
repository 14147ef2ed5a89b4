package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRequest is returned for a pipeline request that cannot be run.
var ErrInvalidRequest = errors.New("invalid request")

// NoDataError means the upstream source returned zero rows.
type NoDataError struct {
	Symbol string
	Start  time.Time
	End    time.Time
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data for %s in [%s, %s)", e.Symbol,
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

// SchemaError means two column keys flattened to the same name.
type SchemaError struct {
	Column string
	First  ColumnKey
	Second ColumnKey
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: columns %s and %s both flatten to %q", e.First, e.Second, e.Column)
}

// ColumnNotFoundError means no column matched the wanted name.
type ColumnNotFoundError struct {
	Want    string
	Columns []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("no %q column among [%s]", e.Want, strings.Join(e.Columns, ", "))
}

// EmptySeriesError means validation left fewer usable points than required.
type EmptySeriesError struct {
	Column   string
	Required int
	Got      int
}

func (e *EmptySeriesError) Error() string {
	return fmt.Sprintf("series %q has %d usable points, need at least %d", e.Column, e.Got, e.Required)
}

// ModelFitError means the forecaster could not produce a model. Err holds
// the underlying cause.
type ModelFitError struct {
	Reason string
	Err    error
}

func (e *ModelFitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model fit: %s: %v", e.Reason, e.Err)
	}
	return "model fit: " + e.Reason
}

func (e *ModelFitError) Unwrap() error { return e.Err }

// FetchError means the upstream source failed, as opposed to answering with
// no rows.
type FetchError struct {
	Source string
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Symbol, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrorKind returns a short stable label for the error taxonomy, used for
// metrics and persisted run records. A ModelFitError wrapping an
// EmptySeriesError reports as "model_fit". Unknown errors map to "internal".
func ErrorKind(err error) string {
	var (
		noData   *NoDataError
		schema   *SchemaError
		notFound *ColumnNotFoundError
		empty    *EmptySeriesError
		fit      *ModelFitError
		fetch    *FetchError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &noData):
		return "no_data"
	case errors.As(err, &schema):
		return "schema"
	case errors.As(err, &notFound):
		return "column_not_found"
	case errors.As(err, &fit):
		return "model_fit"
	case errors.As(err, &empty):
		return "empty_series"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.As(err, &fetch):
		return "fetch"
	default:
		return "internal"
	}
}
