package schema

import (
	"time"

	"github.com/wreporter/company-directory/internal/domain"
)

// Artifact represents the artifacts table - one versioned report section
// per (legal entity number, topic, section key) triple. Each artifact is
// owned by exactly one conversation and is deleted with it via the
// cascading foreign key; it is never hard-deleted otherwise.
type Artifact struct {
	// ID is a ULID assigned at creation, sortable by creation time
	ID string `gorm:"column:id;primaryKey;type:varchar(26)"`
	// ConversationID links the owning conversation
	ConversationID string `gorm:"column:conversation_id;not null;index;type:uuid"`
	// LegalEntityNo identifies the company
	LegalEntityNo string `gorm:"column:legal_entity_no;not null;uniqueIndex:idx_artifacts_company_topic_section,priority:1;type:text"`
	// Topic is the research track
	Topic domain.Topic `gorm:"column:topic;not null;uniqueIndex:idx_artifacts_company_topic_section,priority:2;type:text"`
	// SectionKey identifies the section within the topic
	SectionKey string `gorm:"column:section_key;not null;uniqueIndex:idx_artifacts_company_topic_section,priority:3;type:text"`
	// Title is the human-readable section title
	Title string `gorm:"column:title;not null;type:text"`
	// Content is the generated section text; empty until the first done
	Content string `gorm:"column:content;not null;default:'';type:text"`
	// Status is the lifecycle state (empty/loading/done)
	Status domain.ArtifactStatus `gorm:"column:status;not null;default:'empty';type:text"`
	// Version starts at 1 and increments on every transition into done
	Version int `gorm:"column:version;not null;default:1"`
	// CreatedAt is when the section row was first created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is refreshed on every status or content change
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Artifact model
func (Artifact) TableName() string {
	return "artifacts"
}
