package persist

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Report builds a plain-text report out of titled sections.
type Report struct {
	b strings.Builder
}

// NewReport starts a report with a banner title and generation time.
func NewReport(title string, generated time.Time) *Report {
	r := &Report{}
	line := strings.Repeat("=", 60)
	fmt.Fprintf(&r.b, "%s\n%s\n%s\n", line, title, line)
	fmt.Fprintf(&r.b, "Generated: %s\n", generated.Format(time.RFC3339))
	return r
}

// Section starts a new titled section.
func (r *Report) Section(title string) {
	fmt.Fprintf(&r.b, "\n%s\n%s\n", strings.ToUpper(title), strings.Repeat("-", len(title)))
}

// KeyValue writes an aligned "key: value" line.
func (r *Report) KeyValue(key string, value any) {
	fmt.Fprintf(&r.b, "  %-28s %v\n", key+":", value)
}

// Line writes a free-form line.
func (r *Report) Line(format string, args ...any) {
	fmt.Fprintf(&r.b, "  "+format+"\n", args...)
}

// Table renders rows under headers. Empty rows write a placeholder line.
func (r *Report) Table(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		r.Line("(none)")
		return nil
	}
	table := tablewriter.NewWriter(&r.b)
	defer func() { _ = table.Close() }()

	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// String returns the report text.
func (r *Report) String() string {
	return r.b.String()
}
