package schema

import (
	"time"

	"github.com/wreporter/company-directory/internal/domain"
)

// PinnedCompany represents the pinned_companies table - companies a user
// has bookmarked. Each row is a snapshot of the directory record at pin
// time plus the derived display labels; identity is the legal entity
// number, so re-pinning upserts the snapshot instead of duplicating it.
type PinnedCompany struct {
	// ID is an auto-incrementing sequence number
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// RegistryID is the registry identifier snapshot (nullable)
	RegistryID *string `gorm:"column:registry_id;type:text"`
	// LegalEntityNo is the pin's identity; unique across all pins
	LegalEntityNo string `gorm:"column:legal_entity_no;not null;uniqueIndex;type:text"`
	// Name is the display name snapshot
	Name string `gorm:"column:name;not null;type:text"`
	// EngName is the English display name snapshot
	EngName string `gorm:"column:eng_name;type:text"`
	// Class is the listing classification snapshot
	Class domain.CompanyClass `gorm:"column:class;type:text"`
	// MarketLabel is the derived market label at pin time
	MarketLabel string `gorm:"column:market_label;type:text"`
	// SourceLabel is the derived provenance label at pin time
	SourceLabel string `gorm:"column:source_label;type:text"`
	// HasRegistryRecord caches registry-identifier presence
	HasRegistryRecord bool `gorm:"column:has_registry_record;not null;default:false"`
	// Industry is the industry text snapshot
	Industry string `gorm:"column:industry;type:text"`
	// CEOName is the CEO name snapshot
	CEOName string `gorm:"column:ceo_name;type:text"`
	// PinnedAt is when the pin was first created; untouched by re-pins
	PinnedAt time.Time `gorm:"column:pinned_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the PinnedCompany model
func (PinnedCompany) TableName() string {
	return "pinned_companies"
}
