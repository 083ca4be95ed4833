package persist

import (
	"errors"
	"path/filepath"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
)

// Files is the set of output files owned by one analyzer: a JSON array of
// every sample, its CSV mirror, and a text report regenerated on each save.
type Files[T any] struct {
	JSONPath   string
	CSVPath    string
	ReportPath string

	// Report renders the text report from the full sample log.
	Report func(log []sample.Sample[T]) string
}

// NewFiles places the three files for base name in dir.
func NewFiles[T any](dir, jsonName, csvName, reportName string, report func([]sample.Sample[T]) string) *Files[T] {
	f := &Files[T]{Report: report}
	if jsonName != "" {
		f.JSONPath = filepath.Join(dir, jsonName)
	}
	if csvName != "" {
		f.CSVPath = filepath.Join(dir, csvName)
	}
	if reportName != "" {
		f.ReportPath = filepath.Join(dir, reportName)
	}
	return f
}

// Write persists log to every configured file. Each file is attempted even
// if an earlier one fails; the failures are joined.
func (f *Files[T]) Write(log []sample.Sample[T]) error {
	var errs []error
	if log == nil {
		log = []sample.Sample[T]{}
	}
	if f.JSONPath != "" {
		if err := WriteJSON(f.JSONPath, log); err != nil {
			errs = append(errs, err)
		}
	}
	if f.CSVPath != "" {
		if err := WriteCSV(f.CSVPath, log); err != nil {
			errs = append(errs, err)
		}
	}
	if f.ReportPath != "" && f.Report != nil {
		if err := WriteText(f.ReportPath, f.Report(log)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
