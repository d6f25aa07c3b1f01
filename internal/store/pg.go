package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/wreporter/company-directory/internal/domain"
	"github.com/wreporter/company-directory/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

func hasDBResolver(db *gorm.DB) bool {
	return db != nil && db.Callback().Query().Get("gorm:db_resolver") != nil
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// RegisterReadReplica routes read queries to a replica via the dbresolver
// plugin. Writes and transactions stay on the primary.
func RegisterReadReplica(db *gorm.DB, readDSN string) error {
	return db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: []gorm.Dialector{postgres.Open(readDSN)},
		Policy:   dbresolver.RandomPolicy{},
	}))
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	// Set defaults if not provided
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// escapeLike neutralizes ILIKE metacharacters in user-supplied text so a
// query containing '%' or '_' matches those characters literally.
func escapeLike(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(text)
}

// GetCompanyByLegalEntityNo retrieves a directory record by its legal entity number
func (s *pgStore) GetCompanyByLegalEntityNo(ctx context.Context, legalEntityNo string) (*schema.Company, error) {
	var company schema.Company
	err := s.db.WithContext(ctx).Where("legal_entity_no = ?", legalEntityNo).First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}

// GetCompanyByRegistryID retrieves a directory record by its registry identifier
func (s *pgStore) GetCompanyByRegistryID(ctx context.Context, registryID string) (*schema.Company, error) {
	var company schema.Company
	err := s.db.WithContext(ctx).Where("registry_id = ?", registryID).First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}

// scanByPattern runs one ILIKE pass over the directory. Listed tiers sort
// before unlisted ones because the class tags were chosen so that plain
// lexicographic DESC yields that order.
func (s *pgStore) scanByPattern(ctx context.Context, pattern string, includeEngName bool, limit int) ([]*schema.Company, error) {
	query := s.db.WithContext(ctx).Model(&schema.Company{})
	if includeEngName {
		query = query.Where("name ILIKE ? OR eng_name ILIKE ?", pattern, pattern)
	} else {
		query = query.Where("name ILIKE ?", pattern)
	}

	var companies []*schema.Company
	err := query.
		Order("class DESC, name ASC").
		Limit(limit).
		Find(&companies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan companies: %w", err)
	}
	return companies, nil
}

// ScanByNamePrefix returns companies whose name starts with text, listed tiers first
func (s *pgStore) ScanByNamePrefix(ctx context.Context, text string, includeEngName bool, limit int) ([]*schema.Company, error) {
	return s.scanByPattern(ctx, escapeLike(text)+"%", includeEngName, limit)
}

// ScanByNameSubstring returns companies whose name contains text anywhere, listed tiers first
func (s *pgStore) ScanByNameSubstring(ctx context.Context, text string, includeEngName bool, limit int) ([]*schema.Company, error) {
	return s.scanByPattern(ctx, "%"+escapeLike(text)+"%", includeEngName, limit)
}

// ScanByFuzzyPattern returns companies whose name matches a prebuilt ILIKE
// pattern, listed tiers first. The caller is responsible for escaping.
func (s *pgStore) ScanByFuzzyPattern(ctx context.Context, pattern string, includeEngName bool, limit int) ([]*schema.Company, error) {
	return s.scanByPattern(ctx, pattern, includeEngName, limit)
}

// DirectoryStats aggregates directory counters via a single server-side
// function call instead of issuing one COUNT per classification.
func (s *pgStore) DirectoryStats(ctx context.Context) (*DirectoryStats, error) {
	var raw []byte
	row := s.db.WithContext(ctx).Raw("SELECT company_directory_stats()").Row()
	if err := row.Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to get directory stats: %w", err)
	}

	var stats DirectoryStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode directory stats: %w", err)
	}
	stats.WithoutRegistryID = stats.Total - stats.WithRegistryID
	if stats.ByClass == nil {
		stats.ByClass = map[domain.CompanyClass]int64{}
	}
	return &stats, nil
}

// PinCompany upserts a bookmark keyed by legal entity number. A re-pin
// refreshes the snapshot columns but keeps the original pinned_at unless
// the caller asks for a refresh.
func (s *pgStore) PinCompany(ctx context.Context, input PinCompanyInput) (*schema.PinnedCompany, error) {
	hasRegistryRecord := input.RegistryID != nil && *input.RegistryID != ""

	pin := schema.PinnedCompany{
		RegistryID:        input.RegistryID,
		LegalEntityNo:     input.LegalEntityNo,
		Name:              input.Name,
		EngName:           input.EngName,
		Class:             input.Class,
		MarketLabel:       domain.MarketLabel(input.Class, hasRegistryRecord),
		SourceLabel:       domain.SourceLabel(input.DataSource),
		HasRegistryRecord: hasRegistryRecord,
		Industry:          input.Industry,
		CEOName:           input.CEOName,
	}

	snapshotColumns := clause.AssignmentColumns([]string{
		"registry_id", "name", "eng_name", "class",
		"market_label", "source_label", "has_registry_record",
		"industry", "ceo_name",
	})
	if input.RefreshPinnedAt {
		snapshotColumns = append(snapshotColumns, clause.Assignment{
			Column: clause.Column{Name: "pinned_at"},
			Value:  time.Now(),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "legal_entity_no"}},
			DoUpdates: snapshotColumns,
		}).Create(&pin).Error; err != nil {
			return fmt.Errorf("failed to upsert pin: %w", err)
		}

		// On conflict the in-memory struct keeps its zero ID and default
		// pinned_at, so read the row back.
		if err := tx.Where("legal_entity_no = ?", input.LegalEntityNo).First(&pin).Error; err != nil {
			return fmt.Errorf("failed to get pin: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pin, nil
}

// UnpinCompany removes a bookmark; returns false when nothing was pinned
func (s *pgStore) UnpinCompany(ctx context.Context, legalEntityNo string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("legal_entity_no = ?", legalEntityNo).
		Delete(&schema.PinnedCompany{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to unpin company: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListPinnedCompanies returns all bookmarks, most recently pinned first
func (s *pgStore) ListPinnedCompanies(ctx context.Context) ([]*schema.PinnedCompany, error) {
	var pins []*schema.PinnedCompany
	err := s.db.WithContext(ctx).
		Order("pinned_at DESC, id DESC").
		Find(&pins).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pinned companies: %w", err)
	}
	return pins, nil
}

// OpenOrContinueConversation creates the conversation for a (company, topic)
// pair if absent, else returns the existing one. Every open seeds one empty
// artifact per section of the topic's schema, skipping keys that already
// exist, so readers always see the full section list even when a report
// event created the conversation first.
func (s *pgStore) OpenOrContinueConversation(ctx context.Context, input OpenConversationInput) (*schema.Conversation, error) {
	var conv schema.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.createOrFetchConversation(tx, input, &conv); err != nil {
			return err
		}
		return s.seedEmptySections(tx, &conv)
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// createOrFetchConversation inserts the conversation row, treating a
// duplicate-key conflict as "another writer got there first" and fetching
// the existing row instead.
func (s *pgStore) createOrFetchConversation(tx *gorm.DB, input OpenConversationInput, conv *schema.Conversation) error {
	*conv = schema.Conversation{
		ID:            uuid.NewString(),
		LegalEntityNo: input.LegalEntityNo,
		Topic:         input.Topic,
		RegistryID:    input.RegistryID,
		CompanyName:   input.CompanyName,
		Messages:      datatypes.JSON("[]"),
	}

	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "legal_entity_no"}, {Name: "topic"}},
		DoNothing: true,
	}).Clauses(clause.Returning{Columns: []clause.Column{}}).
		Create(conv)
	if result.Error != nil {
		return fmt.Errorf("failed to create conversation: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Conflict: the conversation already exists, fetch it
	err := tx.Where("legal_entity_no = ? AND topic = ?", input.LegalEntityNo, input.Topic).
		First(conv).Error
	if err != nil {
		return fmt.Errorf("failed to get existing conversation: %w", err)
	}
	return nil
}

// seedEmptySections creates one empty artifact per section of the topic's
// schema. Conflicts are ignored so a concurrently delivered report event
// cannot be clobbered back to empty.
func (s *pgStore) seedEmptySections(tx *gorm.DB, conv *schema.Conversation) error {
	sections := domain.SectionSchemas[conv.Topic]
	if len(sections) == 0 {
		return nil
	}

	artifacts := make([]schema.Artifact, 0, len(sections))
	now := time.Now()
	for _, section := range sections {
		artifacts = append(artifacts, schema.Artifact{
			ID:             ulid.MustNewDefault(now).String(),
			ConversationID: conv.ID,
			LegalEntityNo:  conv.LegalEntityNo,
			Topic:          conv.Topic,
			SectionKey:     section.Key,
			Title:          section.Title,
			Status:         domain.ArtifactStatusEmpty,
			Version:        1,
		})
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "legal_entity_no"}, {Name: "topic"}, {Name: "section_key"}},
		DoNothing: true,
	}).Create(&artifacts).Error; err != nil {
		return fmt.Errorf("failed to seed sections: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by (company, topic); nil when absent
func (s *pgStore) GetConversation(ctx context.Context, legalEntityNo string, topic domain.Topic) (*schema.Conversation, error) {
	var conv schema.Conversation

	query := func(db *gorm.DB) error {
		return db.WithContext(ctx).
			Where("legal_entity_no = ? AND topic = ?", legalEntityNo, topic).
			First(&conv).Error
	}

	err := query(s.db)
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if !hasDBResolver(s.db) {
		return nil, nil
	}

	// Replica can lag behind primary; retry on primary before returning nil.
	err = query(s.db.Clauses(dbresolver.Write))
	if err == nil {
		return &conv, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("failed to get conversation: %w", err)
}

// AppendMessage appends one message to a conversation log as a single
// jsonb concatenation, avoiding a read-modify-write of the whole array.
func (s *pgStore) AppendMessage(ctx context.Context, conversationID string, msg domain.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	payload, err := json.Marshal([]domain.Message{msg})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	result := s.db.WithContext(ctx).Model(&schema.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"messages":   gorm.Expr("messages || ?::jsonb", string(payload)),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to append message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

// DeleteConversation removes a conversation; the artifacts go with it via
// the cascading foreign key.
func (s *pgStore) DeleteConversation(ctx context.Context, legalEntityNo string, topic domain.Topic) error {
	result := s.db.WithContext(ctx).
		Where("legal_entity_no = ? AND topic = ?", legalEntityNo, topic).
		Delete(&schema.Conversation{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

// UpsertArtifact creates or advances one report section under a row lock.
//
// A missing section row is created at version 1 with the requested status;
// the owning conversation is opened first if the reporting pipeline beat
// the user to it. An existing row moves through the lifecycle state
// machine: loading keeps the previous content visible, done replaces title
// and content and bumps the version.
func (s *pgStore) UpsertArtifact(ctx context.Context, input UpsertArtifactInput) (*schema.Artifact, error) {
	var artifact schema.Artifact
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Lock the existing row (if any) to serialize concurrent writers
		var existing schema.Artifact
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("legal_entity_no = ? AND topic = ? AND section_key = ?",
				input.LegalEntityNo, input.Topic, input.SectionKey).
			First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to lock artifact: %w", err)
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			created, err := s.createArtifact(tx, input, &artifact)
			if err != nil {
				return err
			}
			if created {
				return nil
			}
			// Lost a race with another writer: lock the row it created
			// and fall through to the update path.
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("legal_entity_no = ? AND topic = ? AND section_key = ?",
					input.LegalEntityNo, input.Topic, input.SectionKey).
				First(&existing).Error; err != nil {
				return fmt.Errorf("failed to get existing artifact: %w", err)
			}
		}

		return s.advanceArtifact(tx, &existing, input, &artifact)
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// createArtifact inserts a new section row, ensuring the owning
// conversation exists first. Returns false when a concurrent writer
// created the row between the lock probe and the insert.
func (s *pgStore) createArtifact(tx *gorm.DB, input UpsertArtifactInput, artifact *schema.Artifact) (bool, error) {
	var conv schema.Conversation
	if err := s.createOrFetchConversation(tx, OpenConversationInput{
		LegalEntityNo: input.LegalEntityNo,
		Topic:         input.Topic,
	}, &conv); err != nil {
		return false, err
	}

	*artifact = schema.Artifact{
		ID:             ulid.MustNewDefault(time.Now()).String(),
		ConversationID: conv.ID,
		LegalEntityNo:  input.LegalEntityNo,
		Topic:          input.Topic,
		SectionKey:     input.SectionKey,
		Title:          input.Title,
		Content:        input.Content,
		Status:         input.Status,
		Version:        1,
	}

	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "legal_entity_no"}, {Name: "topic"}, {Name: "section_key"}},
		DoNothing: true,
	}).Clauses(clause.Returning{Columns: []clause.Column{}}).
		Create(artifact)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create artifact: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// advanceArtifact applies one lifecycle transition to a locked section row.
func (s *pgStore) advanceArtifact(tx *gorm.DB, existing *schema.Artifact, input UpsertArtifactInput, artifact *schema.Artifact) error {
	if !domain.CanTransitionArtifactStatus(existing.Status, input.Status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatusTransition, existing.Status, input.Status)
	}

	updates := map[string]interface{}{
		"status":     input.Status,
		"updated_at": time.Now(),
	}
	if input.Title != "" {
		updates["title"] = input.Title
	}
	if input.Status == domain.ArtifactStatusDone {
		// A completed regeneration replaces the content and bumps the
		// version; a loading transition keeps the previous content
		// visible until the new one lands.
		updates["content"] = input.Content
		updates["version"] = gorm.Expr("version + 1")
	}

	if err := tx.Model(&schema.Artifact{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update artifact: %w", err)
	}

	if err := tx.Where("id = ?", existing.ID).First(artifact).Error; err != nil {
		return fmt.Errorf("failed to get updated artifact: %w", err)
	}
	return nil
}

// GetArtifact retrieves a single section; nil when absent
func (s *pgStore) GetArtifact(ctx context.Context, legalEntityNo string, topic domain.Topic, sectionKey string) (*schema.Artifact, error) {
	var artifact schema.Artifact
	err := s.db.WithContext(ctx).
		Where("legal_entity_no = ? AND topic = ? AND section_key = ?", legalEntityNo, topic, sectionKey).
		First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return &artifact, nil
}

// GetArtifacts returns all sections for a (company, topic), ordered by section key
func (s *pgStore) GetArtifacts(ctx context.Context, legalEntityNo string, topic domain.Topic) ([]*schema.Artifact, error) {
	var artifacts []*schema.Artifact
	err := s.db.WithContext(ctx).
		Where("legal_entity_no = ? AND topic = ?", legalEntityNo, topic).
		Order("section_key ASC").
		Find(&artifacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get artifacts: %w", err)
	}
	return artifacts, nil
}
