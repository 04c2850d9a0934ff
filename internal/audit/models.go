package audit

import (
	"time"

	change "civreg/internal/change/models"
	id "civreg/pkg/domain"
)

// EventAction names the engine decisions worth an audit trail.
type EventAction string

const (
	EventIdentityCreated  EventAction = "identity_created"
	EventIdentityUpdated  EventAction = "identity_updated"
	EventIdentityDeleted  EventAction = "identity_deleted"
	EventIdentityMerged   EventAction = "identity_merged"
	EventMergeCancelled   EventAction = "merge_cancelled"
	EventAttributeRefused EventAction = "attribute_refused"
	EventDecertified      EventAction = "attribute_decertified"
)

// Event captures one engine decision. Transport-agnostic so stores and the
// Kafka sink can fan out the same record.
type Event struct {
	Timestamp  time.Time            `json:"timestamp"`
	RequestID  string               `json:"request_id,omitempty"`
	ClientCode id.ClientCode        `json:"client_code"`
	CUID       id.CUID              `json:"cuid,omitempty"`
	Action     EventAction          `json:"action"`
	Status     change.OverallStatus `json:"status,omitempty"`
	Detail     string               `json:"detail,omitempty"`
}
