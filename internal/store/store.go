package store

import (
	"context"

	"github.com/wreporter/company-directory/internal/domain"
	"github.com/wreporter/company-directory/internal/store/schema"
)

// DirectoryStats summarizes the company directory in a single aggregate.
type DirectoryStats struct {
	Total             int64                         `json:"total"`
	WithRegistryID    int64                         `json:"with_registry_id"`
	WithoutRegistryID int64                         `json:"without_registry_id"`
	ByClass           map[domain.CompanyClass]int64 `json:"by_class"`
}

// PinCompanyInput carries the directory snapshot to persist when pinning.
// Market and source labels are derived inside the store so a stale caller
// cannot persist inconsistent labels.
type PinCompanyInput struct {
	RegistryID    *string
	LegalEntityNo string
	Name          string
	EngName       string
	Class         domain.CompanyClass
	DataSource    domain.DataSource
	Industry      string
	CEOName       string
	// RefreshPinnedAt resets the pin timestamp on re-pin; by default a
	// re-pin only refreshes the snapshot columns.
	RefreshPinnedAt bool
}

// OpenConversationInput identifies the conversation to open or continue.
type OpenConversationInput struct {
	LegalEntityNo string
	Topic         domain.Topic
	RegistryID    *string
	CompanyName   string
}

// UpsertArtifactInput carries one report-section write.
type UpsertArtifactInput struct {
	LegalEntityNo string
	Topic         domain.Topic
	SectionKey    string
	Title         string
	Content       string
	Status        domain.ArtifactStatus
}

// Store defines the interface for database operations
type Store interface {
	// GetCompanyByLegalEntityNo retrieves a directory record by its legal entity number
	GetCompanyByLegalEntityNo(ctx context.Context, legalEntityNo string) (*schema.Company, error)
	// GetCompanyByRegistryID retrieves a directory record by its registry identifier
	GetCompanyByRegistryID(ctx context.Context, registryID string) (*schema.Company, error)
	// ScanByNamePrefix returns companies whose name starts with text, listed tiers first
	ScanByNamePrefix(ctx context.Context, text string, includeEngName bool, limit int) ([]*schema.Company, error)
	// ScanByNameSubstring returns companies whose name contains text anywhere, listed tiers first
	ScanByNameSubstring(ctx context.Context, text string, includeEngName bool, limit int) ([]*schema.Company, error)
	// ScanByFuzzyPattern returns companies whose name matches an ILIKE pattern, listed tiers first
	ScanByFuzzyPattern(ctx context.Context, pattern string, includeEngName bool, limit int) ([]*schema.Company, error)
	// DirectoryStats aggregates directory counters in a single round trip
	DirectoryStats(ctx context.Context) (*DirectoryStats, error)

	// PinCompany upserts a bookmark keyed by legal entity number
	PinCompany(ctx context.Context, input PinCompanyInput) (*schema.PinnedCompany, error)
	// UnpinCompany removes a bookmark; returns false when nothing was pinned
	UnpinCompany(ctx context.Context, legalEntityNo string) (bool, error)
	// ListPinnedCompanies returns all bookmarks, most recently pinned first
	ListPinnedCompanies(ctx context.Context) ([]*schema.PinnedCompany, error)

	// OpenOrContinueConversation creates the conversation for a (company, topic)
	// pair if absent, seeding its empty sections, else returns the existing one
	OpenOrContinueConversation(ctx context.Context, input OpenConversationInput) (*schema.Conversation, error)
	// GetConversation retrieves a conversation by (company, topic); nil when absent
	GetConversation(ctx context.Context, legalEntityNo string, topic domain.Topic) (*schema.Conversation, error)
	// AppendMessage appends one message to a conversation log
	AppendMessage(ctx context.Context, conversationID string, msg domain.Message) error
	// DeleteConversation removes a conversation and, via cascade, its artifacts
	DeleteConversation(ctx context.Context, legalEntityNo string, topic domain.Topic) error

	// UpsertArtifact creates or advances one report section
	UpsertArtifact(ctx context.Context, input UpsertArtifactInput) (*schema.Artifact, error)
	// GetArtifact retrieves a single section; nil when absent
	GetArtifact(ctx context.Context, legalEntityNo string, topic domain.Topic, sectionKey string) (*schema.Artifact, error)
	// GetArtifacts returns all sections for a (company, topic), ordered by section key
	GetArtifacts(ctx context.Context, legalEntityNo string, topic domain.Topic) ([]*schema.Artifact, error)
}
