package rest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wreporter/company-directory/internal/domain"
	"github.com/wreporter/company-directory/internal/store/schema"
)

// ConversationDTO is the wire shape of a conversation, with the message
// log decoded into typed entries.
type ConversationDTO struct {
	ID            string           `json:"id"`
	LegalEntityNo string           `json:"legal_entity_no"`
	Topic         domain.Topic     `json:"topic"`
	RegistryID    *string          `json:"registry_id"`
	CompanyName   string           `json:"company_name,omitempty"`
	Messages      []domain.Message `json:"messages"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func newConversationDTO(conv *schema.Conversation) (*ConversationDTO, error) {
	messages := []domain.Message{}
	if len(conv.Messages) > 0 {
		if err := json.Unmarshal(conv.Messages, &messages); err != nil {
			return nil, fmt.Errorf("failed to decode message log: %w", err)
		}
	}
	return &ConversationDTO{
		ID:            conv.ID,
		LegalEntityNo: conv.LegalEntityNo,
		Topic:         conv.Topic,
		RegistryID:    conv.RegistryID,
		CompanyName:   conv.CompanyName,
		Messages:      messages,
		CreatedAt:     conv.CreatedAt,
		UpdatedAt:     conv.UpdatedAt,
	}, nil
}

// ArtifactDTO is the wire shape of one report section.
type ArtifactDTO struct {
	ID            string                `json:"id"`
	LegalEntityNo string                `json:"legal_entity_no"`
	Topic         domain.Topic          `json:"topic"`
	SectionKey    string                `json:"section_key"`
	Title         string                `json:"title"`
	Content       string                `json:"content"`
	Status        domain.ArtifactStatus `json:"status"`
	Version       int                   `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func newArtifactDTO(artifact *schema.Artifact) *ArtifactDTO {
	return &ArtifactDTO{
		ID:            artifact.ID,
		LegalEntityNo: artifact.LegalEntityNo,
		Topic:         artifact.Topic,
		SectionKey:    artifact.SectionKey,
		Title:         artifact.Title,
		Content:       artifact.Content,
		Status:        artifact.Status,
		Version:       artifact.Version,
		CreatedAt:     artifact.CreatedAt,
		UpdatedAt:     artifact.UpdatedAt,
	}
}

func newArtifactDTOs(artifacts []*schema.Artifact) []*ArtifactDTO {
	dtos := make([]*ArtifactDTO, 0, len(artifacts))
	for _, artifact := range artifacts {
		dtos = append(dtos, newArtifactDTO(artifact))
	}
	return dtos
}

// PinnedCompanyDTO is the wire shape of one bookmark.
type PinnedCompanyDTO struct {
	RegistryID        *string             `json:"registry_id"`
	LegalEntityNo     string              `json:"legal_entity_no"`
	Name              string              `json:"name"`
	EngName           string              `json:"eng_name,omitempty"`
	Class             domain.CompanyClass `json:"class"`
	MarketLabel       string              `json:"market_label"`
	SourceLabel       string              `json:"source_label"`
	HasRegistryRecord bool                `json:"has_registry_record"`
	Industry          string              `json:"industry,omitempty"`
	CEOName           string              `json:"ceo_name,omitempty"`
	PinnedAt          time.Time           `json:"pinned_at"`
}

func newPinnedCompanyDTO(pin *schema.PinnedCompany) *PinnedCompanyDTO {
	return &PinnedCompanyDTO{
		RegistryID:        pin.RegistryID,
		LegalEntityNo:     pin.LegalEntityNo,
		Name:              pin.Name,
		EngName:           pin.EngName,
		Class:             pin.Class,
		MarketLabel:       pin.MarketLabel,
		SourceLabel:       pin.SourceLabel,
		HasRegistryRecord: pin.HasRegistryRecord,
		Industry:          pin.Industry,
		CEOName:           pin.CEOName,
		PinnedAt:          pin.PinnedAt,
	}
}

func newPinnedCompanyDTOs(pins []*schema.PinnedCompany) []*PinnedCompanyDTO {
	dtos := make([]*PinnedCompanyDTO, 0, len(pins))
	for _, pin := range pins {
		dtos = append(dtos, newPinnedCompanyDTO(pin))
	}
	return dtos
}

// pinRequest is the body of POST /api/v1/pins
type pinRequest struct {
	LegalEntityNo   string `json:"legal_entity_no" binding:"required"`
	RefreshPinnedAt bool   `json:"refresh_pinned_at"`
}

// openConversationRequest is the body of POST /api/v1/conversations
type openConversationRequest struct {
	LegalEntityNo string       `json:"legal_entity_no" binding:"required"`
	Topic         domain.Topic `json:"topic" binding:"required"`
}

// appendMessageRequest is the body of POST .../messages
type appendMessageRequest struct {
	Role    domain.MessageRole `json:"role" binding:"required"`
	Content string             `json:"content" binding:"required"`
}

// upsertArtifactRequest is the body of PUT .../artifacts/:section_key
type upsertArtifactRequest struct {
	Title   string                `json:"title"`
	Content string                `json:"content"`
	Status  domain.ArtifactStatus `json:"status" binding:"required"`
}
