package domain

import "time"

// CompanyClass is the exchange listing classification of a company.
// The single-letter codes come from the upstream registry feed; their
// lexicographic order is significant because search results are sorted
// by class descending, which puts listed companies ahead of unlisted ones.
type CompanyClass string

const (
	// ClassTierA is the top exchange tier.
	ClassTierA CompanyClass = "Y"
	// ClassTierB is the second exchange tier.
	ClassTierB CompanyClass = "K"
	// ClassTierC is the venture exchange tier.
	ClassTierC CompanyClass = "N"
	// ClassUnlisted covers everything without an exchange listing.
	ClassUnlisted CompanyClass = "E"
)

// IsValidCompanyClass checks if a class is one of the known listing codes.
func IsValidCompanyClass(class CompanyClass) bool {
	return class == ClassTierA ||
		class == ClassTierB ||
		class == ClassTierC ||
		class == ClassUnlisted
}

// DataSource identifies which upstream feed(s) contributed a company record.
type DataSource string

const (
	DataSourceRegistry    DataSource = "registry"
	DataSourceSupervisory DataSource = "supervisory"
	DataSourceBoth        DataSource = "both"
)

// Topic identifies a research conversation track for a company.
// Each (company, topic) pair owns exactly one conversation and one set of
// report sections.
type Topic string

const (
	TopicGeneral    Topic = "general"
	TopicFinance    Topic = "finance"
	TopicExecutives Topic = "executives"
)

// IsValidTopic checks if a topic is one of the supported tracks.
func IsValidTopic(topic Topic) bool {
	return topic == TopicGeneral || topic == TopicFinance || topic == TopicExecutives
}

// ArtifactStatus is the lifecycle state of a report section.
type ArtifactStatus string

const (
	// ArtifactStatusEmpty is a seeded section with no generated content yet.
	ArtifactStatusEmpty ArtifactStatus = "empty"
	// ArtifactStatusLoading means generation is in flight.
	ArtifactStatusLoading ArtifactStatus = "loading"
	// ArtifactStatusDone means content is present and versioned.
	ArtifactStatusDone ArtifactStatus = "done"
)

// IsValidArtifactStatus checks if a status is one of the lifecycle states.
func IsValidArtifactStatus(status ArtifactStatus) bool {
	return status == ArtifactStatusEmpty ||
		status == ArtifactStatusLoading ||
		status == ArtifactStatusDone
}

// CanTransitionArtifactStatus reports whether a stored section may move from
// one status to another. Done is only reachable through loading, and a
// section never returns to empty once it has left it; regeneration re-enters
// loading from done.
func CanTransitionArtifactStatus(from, to ArtifactStatus) bool {
	switch to {
	case ArtifactStatusLoading:
		return true
	case ArtifactStatusDone:
		return from == ArtifactStatusLoading
	case ArtifactStatusEmpty:
		return from == ArtifactStatusEmpty
	default:
		return false
	}
}

// Market labels derived from the listing class. The unlisted split uses
// registry-identifier presence as a proxy for audit status; upstream
// documents this as an approximation and we keep it as-is.
const (
	MarketLabelTierA             = "KOSPI-equivalent"
	MarketLabelTierB             = "KOSDAQ-equivalent"
	MarketLabelTierC             = "KONEX-equivalent"
	MarketLabelUnlistedAudited   = "unlisted-audited"
	MarketLabelUnlistedUnaudited = "unlisted-unaudited"
)

// MarketLabel derives the display label for a listing class. For unlisted
// companies the label depends on whether a registry identifier exists.
func MarketLabel(class CompanyClass, hasRegistryID bool) string {
	switch class {
	case ClassTierA:
		return MarketLabelTierA
	case ClassTierB:
		return MarketLabelTierB
	case ClassTierC:
		return MarketLabelTierC
	default:
		if hasRegistryID {
			return MarketLabelUnlistedAudited
		}
		return MarketLabelUnlistedUnaudited
	}
}

// sourceLabels maps provenance tags to display labels.
var sourceLabels = map[DataSource]string{
	DataSourceRegistry:    "REGISTRY",
	DataSourceSupervisory: "SUPERVISORY",
	DataSourceBoth:        "REGISTRY+SUPERVISORY",
}

// SourceLabel derives the display label for a provenance tag. Unmapped
// values pass through verbatim.
func SourceLabel(source DataSource) string {
	if label, ok := sourceLabels[source]; ok {
		return label
	}
	return string(source)
}

// MessageRole tags who produced a conversation message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one entry in a conversation log. The log is an append-only
// ordered sequence serialized as a JSONB array.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// ReportEventType is the type of an event published by the reporting
// workflow and consumed by the report bridge.
type ReportEventType string

const (
	// EventTypeSectionLoading marks a section as being generated.
	EventTypeSectionLoading ReportEventType = "section.loading"
	// EventTypeSectionDone delivers generated section content.
	EventTypeSectionDone ReportEventType = "section.done"
	// EventTypeMessageAppended appends a message to the conversation log.
	EventTypeMessageAppended ReportEventType = "message.appended"
)

// ReportEvent is the normalized event format the reporting workflow
// publishes to NATS as report sections stream in.
type ReportEvent struct {
	EventID       string          `json:"event_id"` // ULID assigned by the producer
	EventType     ReportEventType `json:"event_type"`
	LegalEntityNo string          `json:"legal_entity_no"`
	Topic         Topic           `json:"topic"`
	SectionKey    string          `json:"section_key,omitempty"`
	Title         string          `json:"title,omitempty"`
	Content       string          `json:"content,omitempty"`
	Message       *Message        `json:"message,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
