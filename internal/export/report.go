package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/od-table/internal/pipeline"
)

// Report is the machine-readable record of a run.
type Report struct {
	Summary    pipeline.Summary        `json:"summary" yaml:"summary"`
	Exceptions []pipeline.BatchFailure `json:"exceptions" yaml:"exceptions"`
}

// NewReport builds the report of res.
func NewReport(res *pipeline.Result) Report {
	exceptions := res.Failures
	if exceptions == nil {
		exceptions = []pipeline.BatchFailure{}
	}
	return Report{Summary: res.Summary, Exceptions: exceptions}
}

// WriteReport writes the run report to path, as YAML when the extension is
// .yaml or .yml and as indented JSON otherwise.
func WriteReport(path string, res *pipeline.Result) error {
	report := NewReport(res)

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(report)
	default:
		data, err = json.MarshalIndent(report, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return eris.Wrap(err, "export: encode report")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write report")
	}
	return nil
}
