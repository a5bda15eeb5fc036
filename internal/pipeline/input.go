package pipeline

import (
	"go.uber.org/zap"

	"github.com/sells-group/messaging-cli/internal/fetcher"
	"github.com/sells-group/messaging-cli/internal/model"
)

const (
	colCompanyName = "company_name"
	colWebsite     = "company_website"
	colLinkedIn    = "company_linkedin_url"
)

// ReadProspects parses the input file into prospects. Rows without a
// company website cannot be cached or scraped and are skipped with a
// warning.
func ReadProspects(path string) ([]model.Prospect, error) {
	table, err := fetcher.ReadTable(path)
	if err != nil {
		return nil, err
	}

	idx, err := table.ColumnIndex(colCompanyName, colWebsite, colLinkedIn)
	if err != nil {
		return nil, err
	}

	var prospects []model.Prospect
	for i, row := range table.Rows {
		p := model.Prospect{
			CompanyName:    fetcher.Cell(row, idx[colCompanyName]),
			CompanyWebsite: fetcher.Cell(row, idx[colWebsite]),
			LinkedInURL:    fetcher.Cell(row, idx[colLinkedIn]),
		}
		if p.CompanyWebsite == "" {
			zap.L().Warn("skipping prospect row without company website",
				zap.Int("row", i+2), // 1-based, after the header
				zap.String("company", p.CompanyName),
			)
			continue
		}
		prospects = append(prospects, p)
	}
	return prospects, nil
}
