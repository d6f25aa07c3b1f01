package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wreporter/company-directory/internal/domain"
	"github.com/wreporter/company-directory/internal/store/schema"
)

// StoreTestSuite provides the interface for running store tests against different implementations
type StoreTestSuite struct {
	Store Store
	// InitDB should be called before each test to initialize the database
	InitDB func(t *testing.T) Store
	// CleanupDB should be called after each test to clean up the database
	CleanupDB func(t *testing.T)
}

func stringPtr(s string) *string {
	return &s
}

// The directory rows referenced below come from db/pg_test_data.sql and
// are seeded once before the suite runs.
const (
	seedSamsungElectronics = "110111-0000001"
	seedSamsungWelstory    = "110111-0000004"
	seedKakao              = "110111-0000005"
	seedKakaoGames         = "110111-0000006"
)

func names(companies []*schema.Company) []string {
	out := make([]string, 0, len(companies))
	for _, c := range companies {
		out = append(out, c.Name)
	}
	return out
}

// =============================================================================
// Test: Directory lookups
// =============================================================================

func testGetCompany(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("lookup by legal entity number", func(t *testing.T) {
		company, err := store.GetCompanyByLegalEntityNo(ctx, seedSamsungElectronics)
		require.NoError(t, err)
		require.NotNil(t, company)
		assert.Equal(t, "Samsung Electronics", company.Name)
		assert.Equal(t, domain.ClassTierA, company.Class)
		assert.Equal(t, domain.DataSourceBoth, company.DataSource)
		require.NotNil(t, company.RegistryID)
		assert.Equal(t, "00126380", *company.RegistryID)
	})

	t.Run("lookup by registry identifier", func(t *testing.T) {
		company, err := store.GetCompanyByRegistryID(ctx, "00434003")
		require.NoError(t, err)
		require.NotNil(t, company)
		assert.Equal(t, "Kakao", company.Name)
	})

	t.Run("missing company returns nil without error", func(t *testing.T) {
		company, err := store.GetCompanyByLegalEntityNo(ctx, "999999-9999999")
		require.NoError(t, err)
		assert.Nil(t, company)

		company, err = store.GetCompanyByRegistryID(ctx, "99999999")
		require.NoError(t, err)
		assert.Nil(t, company)
	})
}

// =============================================================================
// Test: Directory scans
// =============================================================================

func testDirectoryScans(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("prefix scan orders listed tiers before unlisted", func(t *testing.T) {
		companies, err := store.ScanByNamePrefix(ctx, "Samsung", false, 10)
		require.NoError(t, err)
		// Y rows sort before E because class DESC on Y/K/N/E puts
		// listed tiers first; names break ties ascending.
		assert.Equal(t, []string{
			"Samsung Biologics",
			"Samsung Electronics",
			"Samsung SDI",
			"Samsung Welstory",
		}, names(companies))
	})

	t.Run("prefix scan respects limit", func(t *testing.T) {
		companies, err := store.ScanByNamePrefix(ctx, "Samsung", false, 2)
		require.NoError(t, err)
		assert.Len(t, companies, 2)
	})

	t.Run("prefix scan does not match mid-name", func(t *testing.T) {
		companies, err := store.ScanByNamePrefix(ctx, "Games", false, 10)
		require.NoError(t, err)
		assert.Empty(t, companies)
	})

	t.Run("substring scan matches anywhere in the name", func(t *testing.T) {
		companies, err := store.ScanByNameSubstring(ctx, "Games", false, 10)
		require.NoError(t, err)
		require.Len(t, companies, 1)
		assert.Equal(t, "Kakao Games", companies[0].Name)
	})

	t.Run("english name column only joins the scan when asked", func(t *testing.T) {
		companies, err := store.ScanByNameSubstring(ctx, "Corp.", false, 10)
		require.NoError(t, err)
		assert.Empty(t, companies)

		companies, err = store.ScanByNameSubstring(ctx, "Corp.", true, 10)
		require.NoError(t, err)
		assert.NotEmpty(t, companies)
		for _, c := range companies {
			assert.Contains(t, c.EngName, "Corp.")
		}
	})

	t.Run("ILIKE metacharacters in the query match literally", func(t *testing.T) {
		companies, err := store.ScanByNameSubstring(ctx, "50%", false, 10)
		require.NoError(t, err)
		require.Len(t, companies, 1)
		assert.Equal(t, "50% Off Mart", companies[0].Name)

		// '_' must not act as a single-character wildcard: A_B matches
		// only A_B Systems, never AXB Systems.
		companies, err = store.ScanByNameSubstring(ctx, "A_B", false, 10)
		require.NoError(t, err)
		require.Len(t, companies, 1)
		assert.Equal(t, "A_B Systems", companies[0].Name)
	})

	t.Run("fuzzy scan takes the pattern as-is", func(t *testing.T) {
		companies, err := store.ScanByFuzzyPattern(ctx, "%K%k%o%P%y%", false, 15)
		require.NoError(t, err)
		require.Len(t, companies, 1)
		assert.Equal(t, "Kakao Pay", companies[0].Name)
	})
}

// =============================================================================
// Test: DirectoryStats
// =============================================================================

func testDirectoryStats(t *testing.T, store Store) {
	ctx := context.Background()

	stats, err := store.DirectoryStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats)

	assert.Equal(t, int64(12), stats.Total)
	assert.Equal(t, int64(11), stats.WithRegistryID)
	assert.Equal(t, int64(1), stats.WithoutRegistryID)
	assert.Equal(t, int64(5), stats.ByClass[domain.ClassTierA])
	assert.Equal(t, int64(1), stats.ByClass[domain.ClassTierB])
	assert.Equal(t, int64(1), stats.ByClass[domain.ClassTierC])
	assert.Equal(t, int64(5), stats.ByClass[domain.ClassUnlisted])
}

// =============================================================================
// Test: Pins
// =============================================================================

func testPinCompany(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("pin derives labels from the snapshot", func(t *testing.T) {
		pin, err := store.PinCompany(ctx, PinCompanyInput{
			RegistryID:    stringPtr("00126380"),
			LegalEntityNo: seedSamsungElectronics,
			Name:          "Samsung Electronics",
			Class:         domain.ClassTierA,
			DataSource:    domain.DataSourceBoth,
		})
		require.NoError(t, err)
		assert.Equal(t, "KOSPI-equivalent", pin.MarketLabel)
		assert.Equal(t, "REGISTRY+SUPERVISORY", pin.SourceLabel)
		assert.True(t, pin.HasRegistryRecord)
		assert.False(t, pin.PinnedAt.IsZero())
	})

	t.Run("unlisted pin without registry identifier", func(t *testing.T) {
		pin, err := store.PinCompany(ctx, PinCompanyInput{
			LegalEntityNo: seedSamsungWelstory,
			Name:          "Samsung Welstory",
			Class:         domain.ClassUnlisted,
			DataSource:    domain.DataSourceSupervisory,
		})
		require.NoError(t, err)
		assert.Equal(t, "unlisted-unaudited", pin.MarketLabel)
		assert.Equal(t, "SUPERVISORY", pin.SourceLabel)
		assert.False(t, pin.HasRegistryRecord)
	})

	t.Run("re-pin refreshes the snapshot but keeps pinned_at", func(t *testing.T) {
		first, err := store.PinCompany(ctx, PinCompanyInput{
			RegistryID:    stringPtr("00434003"),
			LegalEntityNo: seedKakao,
			Name:          "Kakao",
			Class:         domain.ClassTierA,
			DataSource:    domain.DataSourceSupervisory,
		})
		require.NoError(t, err)

		second, err := store.PinCompany(ctx, PinCompanyInput{
			RegistryID:    stringPtr("00434003"),
			LegalEntityNo: seedKakao,
			Name:          "Kakao Corporation",
			Class:         domain.ClassTierA,
			DataSource:    domain.DataSourceBoth,
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID, "re-pin must not create a second row")
		assert.Equal(t, "Kakao Corporation", second.Name)
		assert.Equal(t, "REGISTRY+SUPERVISORY", second.SourceLabel)
		assert.True(t, second.PinnedAt.Equal(first.PinnedAt))

		third, err := store.PinCompany(ctx, PinCompanyInput{
			RegistryID:      stringPtr("00434003"),
			LegalEntityNo:   seedKakao,
			Name:            "Kakao Corporation",
			Class:           domain.ClassTierA,
			DataSource:      domain.DataSourceBoth,
			RefreshPinnedAt: true,
		})
		require.NoError(t, err)
		assert.True(t, third.PinnedAt.After(first.PinnedAt))
	})

	t.Run("unpin reports whether a row existed", func(t *testing.T) {
		_, err := store.PinCompany(ctx, PinCompanyInput{
			LegalEntityNo: seedKakaoGames,
			Name:          "Kakao Games",
			Class:         domain.ClassTierB,
			DataSource:    domain.DataSourceBoth,
		})
		require.NoError(t, err)

		removed, err := store.UnpinCompany(ctx, seedKakaoGames)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = store.UnpinCompany(ctx, seedKakaoGames)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("list returns all pins", func(t *testing.T) {
		pins, err := store.ListPinnedCompanies(ctx)
		require.NoError(t, err)
		require.Len(t, pins, 3)
	})
}

// =============================================================================
// Test: Conversations
// =============================================================================

func testConversations(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("open seeds one empty artifact per section", func(t *testing.T) {
		conv, err := store.OpenOrContinueConversation(ctx, OpenConversationInput{
			LegalEntityNo: seedSamsungElectronics,
			Topic:         domain.TopicFinance,
			RegistryID:    stringPtr("00126380"),
			CompanyName:   "Samsung Electronics",
		})
		require.NoError(t, err)
		require.NotEmpty(t, conv.ID)
		assert.Equal(t, "Samsung Electronics", conv.CompanyName)

		artifacts, err := store.GetArtifacts(ctx, seedSamsungElectronics, domain.TopicFinance)
		require.NoError(t, err)
		require.Len(t, artifacts, len(domain.SectionSchemas[domain.TopicFinance]))
		for _, artifact := range artifacts {
			assert.Equal(t, domain.ArtifactStatusEmpty, artifact.Status)
			assert.Equal(t, 1, artifact.Version)
			assert.Equal(t, conv.ID, artifact.ConversationID)
			assert.NotEmpty(t, artifact.Title)
		}
	})

	t.Run("open backfills sections when a report event arrived first", func(t *testing.T) {
		// The pipeline can create the conversation as a side effect of a
		// section event before the user ever opens the topic. A later open
		// must still seed the rest of the topic's schema.
		_, err := store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedKakaoGames,
			Topic:         domain.TopicExecutives,
			SectionKey:    "executive_list",
			Title:         "Executive List",
			Status:        domain.ArtifactStatusLoading,
		})
		require.NoError(t, err)

		conv, err := store.OpenOrContinueConversation(ctx, OpenConversationInput{
			LegalEntityNo: seedKakaoGames,
			Topic:         domain.TopicExecutives,
		})
		require.NoError(t, err)

		artifacts, err := store.GetArtifacts(ctx, seedKakaoGames, domain.TopicExecutives)
		require.NoError(t, err)
		require.Len(t, artifacts, len(domain.SectionSchemas[domain.TopicExecutives]))
		for _, artifact := range artifacts {
			assert.Equal(t, conv.ID, artifact.ConversationID)
			if artifact.SectionKey == "executive_list" {
				assert.Equal(t, domain.ArtifactStatusLoading, artifact.Status,
					"backfill must not clobber the section the event wrote")
			} else {
				assert.Equal(t, domain.ArtifactStatusEmpty, artifact.Status)
			}
		}
	})

	t.Run("reopening returns the existing conversation without reseeding", func(t *testing.T) {
		first, err := store.OpenOrContinueConversation(ctx, OpenConversationInput{
			LegalEntityNo: seedKakao,
			Topic:         domain.TopicExecutives,
		})
		require.NoError(t, err)

		// Advance a section so a reseed would be observable
		_, err = store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedKakao,
			Topic:         domain.TopicExecutives,
			SectionKey:    "executive_list",
			Status:        domain.ArtifactStatusLoading,
		})
		require.NoError(t, err)

		second, err := store.OpenOrContinueConversation(ctx, OpenConversationInput{
			LegalEntityNo: seedKakao,
			Topic:         domain.TopicExecutives,
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		artifact, err := store.GetArtifact(ctx, seedKakao, domain.TopicExecutives, "executive_list")
		require.NoError(t, err)
		require.NotNil(t, artifact)
		assert.Equal(t, domain.ArtifactStatusLoading, artifact.Status)
	})

	t.Run("same company on different topics gets separate conversations", func(t *testing.T) {
		general, err := store.OpenOrContinueConversation(ctx, OpenConversationInput{
			LegalEntityNo: seedSamsungElectronics,
			Topic:         domain.TopicGeneral,
		})
		require.NoError(t, err)

		finance, err := store.GetConversation(ctx, seedSamsungElectronics, domain.TopicFinance)
		require.NoError(t, err)
		require.NotNil(t, finance)
		assert.NotEqual(t, general.ID, finance.ID)
	})

	t.Run("missing conversation reads as nil", func(t *testing.T) {
		conv, err := store.GetConversation(ctx, "999999-9999999", domain.TopicGeneral)
		require.NoError(t, err)
		assert.Nil(t, conv)
	})

	t.Run("append preserves message order", func(t *testing.T) {
		conv, err := store.OpenOrContinueConversation(ctx, OpenConversationInput{
			LegalEntityNo: seedKakaoGames,
			Topic:         domain.TopicGeneral,
		})
		require.NoError(t, err)

		err = store.AppendMessage(ctx, conv.ID, domain.Message{
			Role:    domain.MessageRoleUser,
			Content: "What changed this quarter?",
		})
		require.NoError(t, err)
		err = store.AppendMessage(ctx, conv.ID, domain.Message{
			Role:    domain.MessageRoleAssistant,
			Content: "Revenue grew on new title launches.",
		})
		require.NoError(t, err)

		got, err := store.GetConversation(ctx, seedKakaoGames, domain.TopicGeneral)
		require.NoError(t, err)
		require.NotNil(t, got)

		var messages []domain.Message
		require.NoError(t, json.Unmarshal(got.Messages, &messages))
		require.Len(t, messages, 2)
		assert.Equal(t, domain.MessageRoleUser, messages[0].Role)
		assert.Equal(t, domain.MessageRoleAssistant, messages[1].Role)
		assert.False(t, messages[0].Timestamp.IsZero(), "append must stamp missing timestamps")
		assert.False(t, messages[1].Timestamp.Before(messages[0].Timestamp))
	})

	t.Run("append to a missing conversation fails", func(t *testing.T) {
		err := store.AppendMessage(ctx, "00000000-0000-0000-0000-000000000000", domain.Message{
			Role:    domain.MessageRoleUser,
			Content: "hello",
		})
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("delete cascades to artifacts", func(t *testing.T) {
		_, err := store.OpenOrContinueConversation(ctx, OpenConversationInput{
			LegalEntityNo: seedSamsungWelstory,
			Topic:         domain.TopicFinance,
		})
		require.NoError(t, err)

		err = store.DeleteConversation(ctx, seedSamsungWelstory, domain.TopicFinance)
		require.NoError(t, err)

		conv, err := store.GetConversation(ctx, seedSamsungWelstory, domain.TopicFinance)
		require.NoError(t, err)
		assert.Nil(t, conv)

		artifacts, err := store.GetArtifacts(ctx, seedSamsungWelstory, domain.TopicFinance)
		require.NoError(t, err)
		assert.Empty(t, artifacts)

		err = store.DeleteConversation(ctx, seedSamsungWelstory, domain.TopicFinance)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})
}

// =============================================================================
// Test: UpsertArtifact
// =============================================================================

func testUpsertArtifact(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("upsert on an absent section creates it and its conversation", func(t *testing.T) {
		artifact, err := store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedKakao,
			Topic:         domain.TopicFinance,
			SectionKey:    "financial_summary",
			Title:         "Three-Year Financial Summary",
			Status:        domain.ArtifactStatusLoading,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ArtifactStatusLoading, artifact.Status)
		assert.Equal(t, 1, artifact.Version)

		// The reporting pipeline beat the user here, so the conversation
		// must now exist for later appends.
		conv, err := store.GetConversation(ctx, seedKakao, domain.TopicFinance)
		require.NoError(t, err)
		require.NotNil(t, conv)
		assert.Equal(t, conv.ID, artifact.ConversationID)
	})

	t.Run("done replaces content and bumps the version", func(t *testing.T) {
		_, err := store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedSamsungElectronics,
			Topic:         domain.TopicFinance,
			SectionKey:    "financial_health",
			Status:        domain.ArtifactStatusLoading,
		})
		require.NoError(t, err)

		artifact, err := store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedSamsungElectronics,
			Topic:         domain.TopicFinance,
			SectionKey:    "financial_health",
			Title:         "Financial Health Assessment",
			Content:       "Debt ratio improved year over year.",
			Status:        domain.ArtifactStatusDone,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ArtifactStatusDone, artifact.Status)
		assert.Equal(t, "Debt ratio improved year over year.", artifact.Content)
		assert.Equal(t, 2, artifact.Version)
	})

	t.Run("regeneration keeps the previous content while loading", func(t *testing.T) {
		_, err := store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedSamsungElectronics,
			Topic:         domain.TopicGeneral,
			SectionKey:    "company_overview",
			Status:        domain.ArtifactStatusLoading,
		})
		require.NoError(t, err)

		done, err := store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedSamsungElectronics,
			Topic:         domain.TopicGeneral,
			SectionKey:    "company_overview",
			Content:       "First generation.",
			Status:        domain.ArtifactStatusDone,
		})
		require.NoError(t, err)
		require.Equal(t, 2, done.Version)

		reloading, err := store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedSamsungElectronics,
			Topic:         domain.TopicGeneral,
			SectionKey:    "company_overview",
			Status:        domain.ArtifactStatusLoading,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ArtifactStatusLoading, reloading.Status)
		assert.Equal(t, "First generation.", reloading.Content, "loading must not clear content")
		assert.Equal(t, 2, reloading.Version, "only done bumps the version")

		redone, err := store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedSamsungElectronics,
			Topic:         domain.TopicGeneral,
			SectionKey:    "company_overview",
			Content:       "Second generation.",
			Status:        domain.ArtifactStatusDone,
		})
		require.NoError(t, err)
		assert.Equal(t, "Second generation.", redone.Content)
		assert.Equal(t, 3, redone.Version)
	})

	t.Run("forbidden transitions are rejected", func(t *testing.T) {
		// Seeded empty sections cannot jump straight to done
		_, err := store.OpenOrContinueConversation(ctx, OpenConversationInput{
			LegalEntityNo: seedKakaoGames,
			Topic:         domain.TopicFinance,
		})
		require.NoError(t, err)

		_, err = store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedKakaoGames,
			Topic:         domain.TopicFinance,
			SectionKey:    "key_changes",
			Content:       "skipped loading",
			Status:        domain.ArtifactStatusDone,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

		// A section that has left empty can never return to it
		_, err = store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedKakaoGames,
			Topic:         domain.TopicFinance,
			SectionKey:    "key_changes",
			Status:        domain.ArtifactStatusLoading,
		})
		require.NoError(t, err)

		_, err = store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedKakaoGames,
			Topic:         domain.TopicFinance,
			SectionKey:    "key_changes",
			Status:        domain.ArtifactStatusEmpty,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	})

	t.Run("sections outside the seeded schema are accepted", func(t *testing.T) {
		// Per-executive profile sections are added dynamically by the
		// reporting workflow.
		artifact, err := store.UpsertArtifact(ctx, UpsertArtifactInput{
			LegalEntityNo: seedKakao,
			Topic:         domain.TopicExecutives,
			SectionKey:    "profile_hong_eun_taek",
			Title:         "Hong Eun-taek",
			Status:        domain.ArtifactStatusLoading,
		})
		require.NoError(t, err)
		assert.Equal(t, "profile_hong_eun_taek", artifact.SectionKey)
	})

	t.Run("artifact listing is ordered by section key", func(t *testing.T) {
		_, err := store.OpenOrContinueConversation(ctx, OpenConversationInput{
			LegalEntityNo: seedKakaoGames,
			Topic:         domain.TopicGeneral,
		})
		require.NoError(t, err)

		artifacts, err := store.GetArtifacts(ctx, seedKakaoGames, domain.TopicGeneral)
		require.NoError(t, err)
		require.NotEmpty(t, artifacts)
		for i := 1; i < len(artifacts); i++ {
			assert.LessOrEqual(t, artifacts[i-1].SectionKey, artifacts[i].SectionKey)
		}
	})

	t.Run("missing artifact reads as nil", func(t *testing.T) {
		artifact, err := store.GetArtifact(ctx, seedKakao, domain.TopicFinance, "no_such_section")
		require.NoError(t, err)
		assert.Nil(t, artifact)
	})
}

// =============================================================================
// Suite runner
// =============================================================================

// RunStoreTests runs the full store test suite against an implementation.
// Each entry gets a fresh store from initDB; cleanupDB runs after it.
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"GetCompany", testGetCompany},
		{"DirectoryScans", testDirectoryScans},
		{"DirectoryStats", testDirectoryStats},
		{"PinCompany", testPinCompany},
		{"Conversations", testConversations},
		{"UpsertArtifact", testUpsertArtifact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
