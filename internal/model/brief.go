package model

// CaseStudy is one customer story extracted from a company website.
type CaseStudy struct {
	Company  string `json:"case_study_company"`
	Industry string `json:"case_study_industry"`
	Results  string `json:"case_study_results"`
	Services string `json:"case_study_services"`
}

// ProspectBrief is the structured summary produced by the brief stage.
type ProspectBrief struct {
	CompanyName        string      `json:"company_name"`
	ServicesProducts   []string    `json:"services_products"`
	MarketsIndustries  []string    `json:"markets_industries"`
	ProblemsPainPoints []string    `json:"problems_pain_points"`
	CaseStudies        []CaseStudy `json:"case_studies"`
}

// EmptyBrief returns a brief with all list fields empty, used as the
// fallback when generation exhausts its retries.
func EmptyBrief(companyName string) *ProspectBrief {
	return &ProspectBrief{
		CompanyName:        companyName,
		ServicesProducts:   []string{},
		MarketsIndustries:  []string{},
		ProblemsPainPoints: []string{},
		CaseStudies:        []CaseStudy{},
	}
}

// NeedsPainPointResearch reports whether the fallback research stage should
// run: no pain points were found but the brief does name offerings.
func (b *ProspectBrief) NeedsPainPointResearch() bool {
	return len(b.ProblemsPainPoints) == 0 && len(b.ServicesProducts) > 0
}
