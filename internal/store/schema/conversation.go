package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/wreporter/company-directory/internal/domain"
)

// Conversation represents the conversations table - one message log per
// (legal entity number, topic) pair. The uniqueness constraint on that
// pair is what serializes concurrent open-or-continue calls; writers must
// treat a duplicate-key insert as "fetch the existing row".
type Conversation struct {
	// ID is a UUID assigned at creation
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// LegalEntityNo identifies the company
	LegalEntityNo string `gorm:"column:legal_entity_no;not null;uniqueIndex:idx_conversations_company_topic,priority:1;type:text"`
	// Topic is the research track (general/finance/executives)
	Topic domain.Topic `gorm:"column:topic;not null;uniqueIndex:idx_conversations_company_topic,priority:2;type:text"`
	// RegistryID is the registry identifier snapshot (nullable)
	RegistryID *string `gorm:"column:registry_id;type:text"`
	// CompanyName is the display name snapshot
	CompanyName string `gorm:"column:company_name;type:text"`
	// Messages is the append-only JSONB array of {role, content, timestamp}
	Messages datatypes.JSON `gorm:"column:messages;not null;type:jsonb;default:'[]'"`
	// CreatedAt is when the conversation was opened
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is refreshed on every append
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Artifacts []Artifact `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Conversation model
func (Conversation) TableName() string {
	return "conversations"
}
