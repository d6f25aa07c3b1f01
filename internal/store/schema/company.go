package schema

import (
	"github.com/wreporter/company-directory/internal/domain"
)

// Company represents the companies table - the company directory this
// service searches against. Rows are loaded by an external ingestion
// pipeline; this service only reads them.
type Company struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// RegistryID is the public disclosure registry identifier. Present
	// iff the record's provenance includes the registry feed.
	RegistryID *string `gorm:"column:registry_id;uniqueIndex;type:text"`
	// LegalEntityNo is the legal entity registration number, the canonical
	// join key across all stores.
	LegalEntityNo string `gorm:"column:legal_entity_no;not null;uniqueIndex;type:text"`
	// Name is the company display name. Substring and fuzzy scans run
	// against a trigram index on this column.
	Name string `gorm:"column:name;not null;type:text"`
	// EngName is the optional English display name.
	EngName string `gorm:"column:eng_name;type:text"`
	// Class is the exchange listing classification (Y/K/N/E).
	Class domain.CompanyClass `gorm:"column:class;not null;type:text"`
	// Industry is free-form industry text.
	Industry string `gorm:"column:industry;type:text"`
	// CEOName is the registered representative's name.
	CEOName string `gorm:"column:ceo_name;type:text"`
	// DataSource records which upstream feed(s) contributed this record.
	DataSource domain.DataSource `gorm:"column:data_source;not null;type:text"`
}

// TableName specifies the table name for the Company model
func (Company) TableName() string {
	return "companies"
}

// HasRegistryRecord reports whether the company exists in the public
// disclosure registry.
func (c *Company) HasRegistryRecord() bool {
	return c.RegistryID != nil && *c.RegistryID != ""
}

// DedupeKey is the identity used when merging search passes: the legal
// entity number, falling back to the registry identifier for rows that
// lack one.
func (c *Company) DedupeKey() string {
	if c.LegalEntityNo != "" {
		return c.LegalEntityNo
	}
	if c.RegistryID != nil {
		return *c.RegistryID
	}
	return ""
}
