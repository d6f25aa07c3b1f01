package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wreporter/company-directory/internal/domain"
	"github.com/wreporter/company-directory/internal/logger"
	"github.com/wreporter/company-directory/internal/search"
	"github.com/wreporter/company-directory/internal/store"
	"github.com/wreporter/company-directory/internal/store/schema"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// Search resolves a company name query against the directory
	// GET /search?q=<text>&eng=<0|1>&fuzzy=<0|1>
	Search(c *gin.Context)

	// GetCompany retrieves one directory record with derived labels
	// GET /api/v1/companies/:legal_entity_no (?by=registry_id to look up by registry identifier)
	GetCompany(c *gin.Context)

	// GetStats returns directory-wide counters
	// GET /api/v1/stats
	GetStats(c *gin.Context)

	// PinCompany bookmarks a company by legal entity number
	// POST /api/v1/pins
	PinCompany(c *gin.Context)

	// UnpinCompany removes a bookmark
	// DELETE /api/v1/pins/:legal_entity_no
	UnpinCompany(c *gin.Context)

	// ListPins returns all bookmarks, most recent first
	// GET /api/v1/pins
	ListPins(c *gin.Context)

	// OpenConversation creates or returns the conversation for a (company, topic)
	// POST /api/v1/conversations
	OpenConversation(c *gin.Context)

	// GetConversation retrieves one conversation with its message log
	// GET /api/v1/conversations/:legal_entity_no/:topic
	GetConversation(c *gin.Context)

	// DeleteConversation removes a conversation and its artifacts
	// DELETE /api/v1/conversations/:legal_entity_no/:topic
	DeleteConversation(c *gin.Context)

	// AppendMessage appends one message to a conversation log
	// POST /api/v1/conversations/:legal_entity_no/:topic/messages
	AppendMessage(c *gin.Context)

	// ListArtifacts returns all report sections for a (company, topic)
	// GET /api/v1/conversations/:legal_entity_no/:topic/artifacts
	ListArtifacts(c *gin.Context)

	// GetArtifact retrieves one report section
	// GET /api/v1/conversations/:legal_entity_no/:topic/artifacts/:section_key
	GetArtifact(c *gin.Context)

	// UpsertArtifact creates or advances one report section
	// PUT /api/v1/conversations/:legal_entity_no/:topic/artifacts/:section_key
	UpsertArtifact(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	matcher *search.Matcher
	store   store.Store
}

// NewHandler creates a new REST API handler
func NewHandler(matcher *search.Matcher, st store.Store) Handler {
	return &handler{
		matcher: matcher,
		store:   st,
	}
}

// Search resolves a company name query against the directory
func (h *handler) Search(c *gin.Context) {
	query := c.Query("q")
	includeEngName := c.Query("eng") == "1"
	fuzzy := c.Query("fuzzy") == "1"

	result, err := h.matcher.Search(c.Request.Context(), query, includeEngName, fuzzy)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuery) {
			respondSearchError(c, http.StatusBadRequest, domain.ErrInvalidQuery.Error())
			return
		}
		logger.Error(err, zap.String("query", query))
		respondSearchError(c, http.StatusInternalServerError, domain.ErrSearchUnavailable.Error())
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCompany retrieves one directory record with derived labels
func (h *handler) GetCompany(c *gin.Context) {
	id := c.Param("legal_entity_no")
	if id == "" {
		respondBadRequest(c, "Legal entity number is required")
		return
	}

	var (
		company *schema.Company
		err     error
	)
	if c.Query("by") == "registry_id" {
		company, err = h.store.GetCompanyByRegistryID(c.Request.Context(), id)
	} else {
		company, err = h.store.GetCompanyByLegalEntityNo(c.Request.Context(), id)
	}
	if err != nil {
		respondStorageUnavailable(c, err, "failed to look up company")
		return
	}
	if company == nil {
		respondNotFound(c, "Company not found")
		return
	}

	c.JSON(http.StatusOK, search.NewMatchedCompany(company))
}

// GetStats returns directory-wide counters
func (h *handler) GetStats(c *gin.Context) {
	stats, err := h.store.DirectoryStats(c.Request.Context())
	if err != nil {
		respondStorageUnavailable(c, err, "failed to compute directory stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// PinCompany bookmarks a company by legal entity number. The snapshot is
// taken from the directory server-side so a stale client cannot persist
// outdated fields.
func (h *handler) PinCompany(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	company, err := h.store.GetCompanyByLegalEntityNo(c.Request.Context(), req.LegalEntityNo)
	if err != nil {
		respondStorageUnavailable(c, err, "failed to look up company")
		return
	}
	if company == nil {
		respondNotFound(c, "Company not found")
		return
	}

	pin, err := h.store.PinCompany(c.Request.Context(), store.PinCompanyInput{
		RegistryID:      company.RegistryID,
		LegalEntityNo:   company.LegalEntityNo,
		Name:            company.Name,
		EngName:         company.EngName,
		Class:           company.Class,
		DataSource:      company.DataSource,
		Industry:        company.Industry,
		CEOName:         company.CEOName,
		RefreshPinnedAt: req.RefreshPinnedAt,
	})
	if err != nil {
		respondStorageUnavailable(c, err, "failed to pin company")
		return
	}

	c.JSON(http.StatusOK, newPinnedCompanyDTO(pin))
}

// UnpinCompany removes a bookmark
func (h *handler) UnpinCompany(c *gin.Context) {
	legalEntityNo := c.Param("legal_entity_no")
	if legalEntityNo == "" {
		respondBadRequest(c, "Legal entity number is required")
		return
	}

	removed, err := h.store.UnpinCompany(c.Request.Context(), legalEntityNo)
	if err != nil {
		respondStorageUnavailable(c, err, "failed to unpin company")
		return
	}

	// A miss is a normal outcome, not an error
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// ListPins returns all bookmarks, most recent first
func (h *handler) ListPins(c *gin.Context) {
	pins, err := h.store.ListPinnedCompanies(c.Request.Context())
	if err != nil {
		respondStorageUnavailable(c, err, "failed to list pinned companies")
		return
	}
	c.JSON(http.StatusOK, gin.H{"pins": newPinnedCompanyDTOs(pins)})
}

// OpenConversation creates or returns the conversation for a (company, topic)
func (h *handler) OpenConversation(c *gin.Context) {
	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if !domain.IsValidTopic(req.Topic) {
		respondValidationError(c, "unknown topic: "+string(req.Topic))
		return
	}

	input := store.OpenConversationInput{
		LegalEntityNo: req.LegalEntityNo,
		Topic:         req.Topic,
	}

	// Snapshot name and registry identifier when the company is known;
	// conversations for companies outside the directory are still allowed.
	company, err := h.store.GetCompanyByLegalEntityNo(c.Request.Context(), req.LegalEntityNo)
	if err != nil {
		respondStorageUnavailable(c, err, "failed to look up company")
		return
	}
	if company != nil {
		input.RegistryID = company.RegistryID
		input.CompanyName = company.Name
	}

	conv, err := h.store.OpenOrContinueConversation(c.Request.Context(), input)
	if err != nil {
		respondStorageUnavailable(c, err, "failed to open conversation")
		return
	}

	dto, err := newConversationDTO(conv)
	if err != nil {
		respondInternalError(c, err, "Failed to render conversation")
		return
	}
	c.JSON(http.StatusOK, dto)
}

// conversationKey extracts and validates the (company, topic) path pair
func conversationKey(c *gin.Context) (string, domain.Topic, bool) {
	legalEntityNo := c.Param("legal_entity_no")
	topic := domain.Topic(c.Param("topic"))
	if legalEntityNo == "" {
		respondBadRequest(c, "Legal entity number is required")
		return "", "", false
	}
	if !domain.IsValidTopic(topic) {
		respondValidationError(c, "unknown topic: "+string(topic))
		return "", "", false
	}
	return legalEntityNo, topic, true
}

// GetConversation retrieves one conversation with its message log
func (h *handler) GetConversation(c *gin.Context) {
	legalEntityNo, topic, ok := conversationKey(c)
	if !ok {
		return
	}

	conv, err := h.store.GetConversation(c.Request.Context(), legalEntityNo, topic)
	if err != nil {
		respondStorageUnavailable(c, err, "failed to get conversation")
		return
	}
	if conv == nil {
		respondNotFound(c, "Conversation not found")
		return
	}

	dto, err := newConversationDTO(conv)
	if err != nil {
		respondInternalError(c, err, "Failed to render conversation")
		return
	}
	c.JSON(http.StatusOK, dto)
}

// DeleteConversation removes a conversation and its artifacts
func (h *handler) DeleteConversation(c *gin.Context) {
	legalEntityNo, topic, ok := conversationKey(c)
	if !ok {
		return
	}

	err := h.store.DeleteConversation(c.Request.Context(), legalEntityNo, topic)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			respondNotFound(c, "Conversation not found")
			return
		}
		respondStorageUnavailable(c, err, "failed to delete conversation")
		return
	}

	c.Status(http.StatusNoContent)
}

// AppendMessage appends one message to a conversation log
func (h *handler) AppendMessage(c *gin.Context) {
	legalEntityNo, topic, ok := conversationKey(c)
	if !ok {
		return
	}

	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	conv, err := h.store.GetConversation(c.Request.Context(), legalEntityNo, topic)
	if err != nil {
		respondStorageUnavailable(c, err, "failed to get conversation")
		return
	}
	if conv == nil {
		respondNotFound(c, "Conversation not found")
		return
	}

	err = h.store.AppendMessage(c.Request.Context(), conv.ID, domain.Message{
		Role:    req.Role,
		Content: req.Content,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			respondNotFound(c, "Conversation not found")
			return
		}
		respondStorageUnavailable(c, err, "failed to append message")
		return
	}

	c.Status(http.StatusNoContent)
}

// ListArtifacts returns all report sections for a (company, topic)
func (h *handler) ListArtifacts(c *gin.Context) {
	legalEntityNo, topic, ok := conversationKey(c)
	if !ok {
		return
	}

	artifacts, err := h.store.GetArtifacts(c.Request.Context(), legalEntityNo, topic)
	if err != nil {
		respondStorageUnavailable(c, err, "failed to list artifacts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": newArtifactDTOs(artifacts)})
}

// GetArtifact retrieves one report section
func (h *handler) GetArtifact(c *gin.Context) {
	legalEntityNo, topic, ok := conversationKey(c)
	if !ok {
		return
	}
	sectionKey := c.Param("section_key")
	if sectionKey == "" {
		respondBadRequest(c, "Section key is required")
		return
	}

	artifact, err := h.store.GetArtifact(c.Request.Context(), legalEntityNo, topic, sectionKey)
	if err != nil {
		respondStorageUnavailable(c, err, "failed to get artifact")
		return
	}
	if artifact == nil {
		respondNotFound(c, "Artifact not found")
		return
	}
	c.JSON(http.StatusOK, newArtifactDTO(artifact))
}

// UpsertArtifact creates or advances one report section
func (h *handler) UpsertArtifact(c *gin.Context) {
	legalEntityNo, topic, ok := conversationKey(c)
	if !ok {
		return
	}
	sectionKey := c.Param("section_key")
	if sectionKey == "" {
		respondBadRequest(c, "Section key is required")
		return
	}

	var req upsertArtifactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if !domain.IsValidArtifactStatus(req.Status) {
		respondValidationError(c, "unknown status: "+string(req.Status))
		return
	}

	artifact, err := h.store.UpsertArtifact(c.Request.Context(), store.UpsertArtifactInput{
		LegalEntityNo: legalEntityNo,
		Topic:         topic,
		SectionKey:    sectionKey,
		Title:         req.Title,
		Content:       req.Content,
		Status:        req.Status,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStatusTransition) {
			respondConflict(c, err.Error())
			return
		}
		respondStorageUnavailable(c, err, "failed to upsert artifact")
		return
	}

	c.JSON(http.StatusOK, newArtifactDTO(artifact))
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
