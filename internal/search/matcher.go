package search

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wreporter/company-directory/internal/domain"
	"github.com/wreporter/company-directory/internal/store/schema"
)

const (
	// minQueryRunes is the minimum trimmed query length.
	minQueryRunes = 2

	// prefixLimit caps the first tiered pass.
	prefixLimit = 10
	// substringLimit caps the second tiered pass before merging.
	substringLimit = 20
	// tieredTarget is the merged size the tiered strategy fills up to.
	tieredTarget = 10
	// substringThreshold triggers the second pass when the first yields
	// fewer results than this.
	substringThreshold = 5

	// fuzzyLimit caps the fuzzy strategy.
	fuzzyLimit = 15
)

// Directory is the read surface the matcher needs from the company store.
type Directory interface {
	ScanByNamePrefix(ctx context.Context, text string, includeEngName bool, limit int) ([]*schema.Company, error)
	ScanByNameSubstring(ctx context.Context, text string, includeEngName bool, limit int) ([]*schema.Company, error)
	ScanByFuzzyPattern(ctx context.Context, pattern string, includeEngName bool, limit int) ([]*schema.Company, error)
}

// MatchedCompany is one search hit with the derived display labels.
type MatchedCompany struct {
	RegistryID        *string             `json:"registry_id"`
	LegalEntityNo     string              `json:"legal_entity_no"`
	Name              string              `json:"name"`
	EngName           string              `json:"eng_name,omitempty"`
	Class             domain.CompanyClass `json:"class"`
	Industry          string              `json:"industry,omitempty"`
	CEOName           string              `json:"ceo_name,omitempty"`
	MarketLabel       string              `json:"market_label"`
	SourceLabel       string              `json:"source_label"`
	HasRegistryRecord bool                `json:"has_registry_record"`
}

// Result is the search response: hits plus their count.
type Result struct {
	Results []MatchedCompany `json:"results"`
	Count   int              `json:"count"`
}

// Matcher resolves partial, possibly misspelled company names against the
// directory using two mutually exclusive strategies.
type Matcher struct {
	directory Directory
}

// NewMatcher creates a matcher over the given directory.
func NewMatcher(directory Directory) *Matcher {
	return &Matcher{directory: directory}
}

// Search runs one query. fuzzy selects the inter-character wildcard
// strategy; otherwise the tiered prefix-then-substring strategy runs.
// includeEngName widens every pass to the English display name.
//
// A query under two runes after trimming fails with ErrInvalidQuery before
// any directory access. Directory failures surface as ErrSearchUnavailable;
// an empty result set is not an error.
func (m *Matcher) Search(ctx context.Context, query string, includeEngName, fuzzy bool) (*Result, error) {
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < minQueryRunes {
		return nil, domain.ErrInvalidQuery
	}

	var (
		companies []*schema.Company
		err       error
	)
	if fuzzy {
		companies, err = m.directory.ScanByFuzzyPattern(ctx, CompileFuzzyPattern(trimmed), includeEngName, fuzzyLimit)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrSearchUnavailable, err)
		}
	} else {
		companies, err = m.tieredScan(ctx, trimmed, includeEngName)
		if err != nil {
			return nil, err
		}
	}

	results := make([]MatchedCompany, 0, len(companies))
	for _, company := range companies {
		results = append(results, NewMatchedCompany(company))
	}
	return &Result{Results: results, Count: len(results)}, nil
}

// tieredScan is the default strategy: a prefix pass, then, only when that
// pass is thin, a substring pass whose hits are deduplicated against the
// first and appended until the merged set reaches the target size. The
// second pass is a dependent call, not a speculative parallel one, because
// the dedupe step needs the first pass materialized.
func (m *Matcher) tieredScan(ctx context.Context, query string, includeEngName bool) ([]*schema.Company, error) {
	merged, err := m.directory.ScanByNamePrefix(ctx, query, includeEngName, prefixLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSearchUnavailable, err)
	}
	if len(merged) >= substringThreshold {
		return merged, nil
	}

	seen := make(map[string]struct{}, len(merged))
	for _, company := range merged {
		seen[company.DedupeKey()] = struct{}{}
	}

	wider, err := m.directory.ScanByNameSubstring(ctx, query, includeEngName, substringLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSearchUnavailable, err)
	}
	for _, company := range wider {
		if len(merged) >= tieredTarget {
			break
		}
		if _, ok := seen[company.DedupeKey()]; ok {
			continue
		}
		seen[company.DedupeKey()] = struct{}{}
		merged = append(merged, company)
	}
	return merged, nil
}

// NewMatchedCompany decorates a directory record with its derived labels.
func NewMatchedCompany(company *schema.Company) MatchedCompany {
	return MatchedCompany{
		RegistryID:        company.RegistryID,
		LegalEntityNo:     company.LegalEntityNo,
		Name:              company.Name,
		EngName:           company.EngName,
		Class:             company.Class,
		Industry:          company.Industry,
		CEOName:           company.CEOName,
		MarketLabel:       domain.MarketLabel(company.Class, company.HasRegistryRecord()),
		SourceLabel:       domain.SourceLabel(company.DataSource),
		HasRegistryRecord: company.HasRegistryRecord(),
	}
}
