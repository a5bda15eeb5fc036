package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/messaging-cli/internal/model"
)

var outputHeader = []string{
	"company_name",
	"company_website",
	"prospect_brief",
	"custom_messaging",
	"custom_message_output_1",
	"custom_message_output_2",
	"custom_message_output_3",
	"from_cache",
}

// WriteResults writes every prospect outcome to a CSV file. The brief is
// serialized as JSON in a single column so the file round-trips into
// spreadsheet tools.
func WriteResults(path string, results []model.ProspectResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "pipeline: create output file")
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(outputHeader); err != nil {
		return eris.Wrap(err, "pipeline: write output header")
	}

	for i := range results {
		r := &results[i]

		var briefJSON string
		if r.Brief != nil {
			b, err := json.Marshal(r.Brief)
			if err != nil {
				return eris.Wrap(err, "pipeline: marshal brief for output")
			}
			briefJSON = string(b)
		}

		record := []string{
			r.CompanyName,
			r.CompanyWebsite,
			briefJSON,
			r.Messaging,
			r.MessageService,
			r.MessageProblem,
			r.MessageSignals,
			strconv.FormatBool(r.FromCache),
		}
		if err := w.Write(record); err != nil {
			return eris.Wrap(err, "pipeline: write output row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "pipeline: flush output")
	}
	return f.Close()
}

// WriteErrors writes the failed prospects to a companion CSV so they can be
// fixed up and resubmitted as-is.
func WriteErrors(path string, results []model.ProspectResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "pipeline: create errors file")
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"company_name", "company_website", "error"}); err != nil {
		return eris.Wrap(err, "pipeline: write errors header")
	}

	for i := range results {
		r := &results[i]
		if !r.Failed() {
			continue
		}
		if err := w.Write([]string{r.CompanyName, r.CompanyWebsite, r.Error}); err != nil {
			return eris.Wrap(err, "pipeline: write errors row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "pipeline: flush errors")
	}
	return f.Close()
}

// ErrorsPath derives the companion errors file name: out.csv → out_errors.csv.
func ErrorsPath(outputPath string) string {
	ext := ".csv"
	base := outputPath
	if i := strings.LastIndex(outputPath, "."); i > 0 {
		ext = outputPath[i:]
		base = outputPath[:i]
	}
	return base + "_errors" + ext
}
