package persist

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
)

type nested struct {
	Score  float64  `json:"score"`
	Ratio  *float64 `json:"ratio,omitempty"`
	Labels []string `json:"labels"`
}

type record struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Nested nested `json:"nested"`
}

func ptr(v float64) *float64 { return &v }

func TestWriteJSON_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analysis_suite.json")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var log []sample.Sample[record]
	for i := 0; i < 25; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		if i%5 == 4 {
			log = append(log, sample.FailureWithStatus[record](ts, sample.StatusTimeout, errors.New("deadline")))
			continue
		}
		r := record{Name: "r", Count: i, Nested: nested{Score: float64(i) / 10, Labels: []string{"a"}}}
		if i%2 == 0 {
			r.Nested.Ratio = ptr(0)
		}
		log = append(log, sample.Success(ts, r))
	}

	if err := WriteJSON(path, log); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	got, err := ReadJSONLog[sample.Sample[record]](path)
	if err != nil {
		t.Fatalf("ReadJSONLog: %v", err)
	}
	if len(got) != len(log) {
		t.Fatalf("read %d samples, want %d", len(got), len(log))
	}
	for i := range log {
		if !got[i].Timestamp.Equal(log[i].Timestamp) {
			t.Errorf("sample %d timestamp = %v, want %v", i, got[i].Timestamp, log[i].Timestamp)
		}
		got[i].Timestamp = log[i].Timestamp
		if !reflect.DeepEqual(got[i], log[i]) {
			t.Errorf("sample %d differs:\n got %+v\nwant %+v", i, got[i], log[i])
		}
	}
	// Zero ratio survives; absent ratio stays absent.
	if got[0].Result.Nested.Ratio == nil || *got[0].Result.Nested.Ratio != 0 {
		t.Error("explicit zero should round-trip")
	}
	if got[1].Result.Nested.Ratio != nil {
		t.Error("absent value should stay absent")
	}
}

func TestReadJSONLog_Missing(t *testing.T) {
	got, err := ReadJSONLog[int](filepath.Join(t.TempDir(), "nope.json"))
	if err != nil || got != nil {
		t.Errorf("ReadJSONLog(missing) = %v, %v", got, err)
	}
}

func TestWriteFileAtomic_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	for i := 0; i < 3; i++ {
		if err := WriteText(path, strings.Repeat("x", i+1)); err != nil {
			t.Fatalf("WriteText: %v", err)
		}
	}
	data, _ := os.ReadFile(path)
	if string(data) != "xxx" {
		t.Errorf("content = %q, want xxx", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

func TestWriteFileAtomic_Errors(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		err := WriteText(filepath.Join(t.TempDir(), "missing", "out.txt"), "x")
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			t.Fatalf("err = %v, want *PersistenceError", err)
		}
		if !strings.HasSuffix(pe.Path, "out.txt") {
			t.Errorf("Path = %q", pe.Path)
		}
	})

	t.Run("fill failure keeps old file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.txt")
		if err := WriteText(path, "old"); err != nil {
			t.Fatal(err)
		}
		boom := errors.New("boom")
		err := WriteFileAtomic(path, func(w io.Writer) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped boom", err)
		}
		data, _ := os.ReadFile(path)
		if string(data) != "old" {
			t.Errorf("content = %q, want old", data)
		}
	})
}

func TestFlattenRecord(t *testing.T) {
	flat, err := FlattenRecord(record{
		Name:   "x",
		Count:  3,
		Nested: nested{Score: 0.5, Labels: []string{"a", "b"}},
	})
	if err != nil {
		t.Fatalf("FlattenRecord: %v", err)
	}
	want := map[string]string{
		"name":          "x",
		"count":         "3",
		"nested.score":  "0.5",
		"nested.labels": `["a","b"]`,
	}
	if !reflect.DeepEqual(flat, want) {
		t.Errorf("FlattenRecord = %v, want %v", flat, want)
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	log := []sample.Sample[record]{
		sample.Success(ts, record{Name: "a", Count: 1, Nested: nested{Score: 1, Ratio: ptr(0.25)}}),
		sample.FailureWithStatus[record](ts, sample.StatusError, errors.New("HTTP 500")),
	}
	if err := WriteCSV(path, log); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	header := rows[0]
	for i := 1; i < len(header); i++ {
		if header[i-1] > header[i] {
			t.Errorf("header not sorted: %v", header)
		}
	}
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %q missing from %v", name, header)
		return -1
	}
	if rows[1][col("result.nested.ratio")] != "0.25" {
		t.Errorf("ratio cell = %q", rows[1][col("result.nested.ratio")])
	}
	if rows[2][col("error")] != "HTTP 500" || rows[2][col("result.name")] != "" {
		t.Errorf("failure row = %v", rows[2])
	}
}

func TestReport(t *testing.T) {
	r := NewReport("LATENCY REPORT", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	r.Section("Manifest")
	r.KeyValue("Average", "12.00 ms")
	if err := r.Table([]string{"Time", "Latency"}, [][]string{{"12:00:00", "12.00 ms"}}); err != nil {
		t.Fatalf("Table: %v", err)
	}
	r.Section("Empty")
	if err := r.Table([]string{"A"}, nil); err != nil {
		t.Fatalf("Table(empty): %v", err)
	}

	out := r.String()
	for _, want := range []string{"LATENCY REPORT", "MANIFEST", "Average:", "12:00:00", "(none)", "2024-03-01T00:00:00Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestWritePromTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "stream_health_score", Help: "health"})
	reg.MustRegister(g)
	g.Set(0.75)

	path := filepath.Join(t.TempDir(), "dashboard_data.prom")
	if err := WritePromTextfile(path, reg); err != nil {
		t.Fatalf("WritePromTextfile: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "stream_health_score 0.75") {
		t.Errorf("textfile = %q", data)
	}
	if !strings.Contains(string(data), "# TYPE stream_health_score gauge") {
		t.Errorf("textfile missing TYPE line: %q", data)
	}
}

func TestFiles_Write(t *testing.T) {
	dir := t.TempDir()
	files := NewFiles(dir, "a.json", "a.csv", "a.txt", func(log []sample.Sample[record]) string {
		return "samples: " + strings.Repeat("*", len(log))
	})
	ts := time.Now()
	log := []sample.Sample[record]{sample.Success(ts, record{Name: "a"}), sample.Success(ts, record{Name: "b"})}
	if err := files.Write(log); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, name := range []string{"a.json", "a.csv", "a.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	report, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	if string(report) != "samples: **" {
		t.Errorf("report = %q", report)
	}

	broken := NewFiles[record](filepath.Join(dir, "missing"), "a.json", "a.csv", "", nil)
	err := broken.Write(log)
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
}
