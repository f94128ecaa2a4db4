package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ivlev/concept2video/internal/pipeline"
)

// Output formats command results.
type Output struct {
	jsonMode bool
	w        io.Writer // data
	errW     io.Writer // messages
}

// Print writes rows as a table, or jsonData in JSON mode.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success writes a status line to stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

type resultView struct {
	JobID      string `json:"job_id"`
	Stage      string `json:"stage"`
	OutputPath string `json:"output_path,omitempty"`
	Attempts   int    `json:"attempts"`
	WorkDir    string `json:"work_dir,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
}

func viewOf(r *pipeline.Result) resultView {
	v := resultView{
		JobID:      r.JobID.String(),
		Stage:      string(r.Stage),
		OutputPath: r.OutputPath,
		Attempts:   r.Attempts,
		WorkDir:    r.WorkDir,
	}
	if r.Err != nil {
		v.ErrorKind = string(r.Err.Kind)
		v.Error = r.Err.Error()
	}
	return v
}

// Results prints one row per job.
func (o *Output) Results(results []*pipeline.Result) {
	views := make([]resultView, 0, len(results))
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		v := viewOf(r)
		views = append(views, v)
		rows = append(rows, []string{v.JobID, v.Stage, v.OutputPath, strconv.Itoa(v.Attempts), v.Error})
	}
	o.Print([]string{"JOB_ID", "STAGE", "OUTPUT", "ATTEMPTS", "ERROR"}, rows, views)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// slug turns free text into a short file-name stem.
func slug(s string) string {
	s = strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
	if len(s) > 40 {
		s = strings.TrimRight(s[:40], "_")
	}
	if s == "" {
		return "concept"
	}
	return s
}

// outputName builds dir/<stem>_<timestamp><ext> from a source file name or
// free text.
func outputName(dir, source, ext string, now time.Time) string {
	base := filepath.Base(source)
	stem := slug(strings.TrimSuffix(base, filepath.Ext(base)))
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, now.Format("2006-01-02_15-04-05"), ext))
}
