package domain

// SectionDef names one report section within a topic.
type SectionDef struct {
	Key   string
	Title string
}

// SectionSchemas lists the sections seeded for each topic when a
// conversation is first opened. Additional sections (e.g. per-executive
// profiles) may be added dynamically by the reporting workflow.
var SectionSchemas = map[Topic][]SectionDef{
	TopicGeneral: {
		{Key: "company_overview", Title: "Company Overview"},
		{Key: "ax_moves", Title: "Recent AX Moves"},
		{Key: "biz_moves", Title: "Recent Business Moves"},
		{Key: "ax_insights", Title: "AX Sales Insights"},
		{Key: "smalltalk", Title: "Small Talk Topics"},
	},
	TopicFinance: {
		{Key: "financial_summary", Title: "Three-Year Financial Summary"},
		{Key: "financial_health", Title: "Financial Health Assessment"},
		{Key: "key_changes", Title: "Key Changes"},
		{Key: "ax_investment", Title: "AX Investment Capacity"},
		{Key: "sales_considerations", Title: "Sales Considerations"},
	},
	TopicExecutives: {
		{Key: "executive_list", Title: "Executive List"},
		{Key: "curation_panel", Title: "Curation Panel"},
	},
}
