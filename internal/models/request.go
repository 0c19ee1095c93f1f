package models

// JobRequest is the inbound submission as handed over by the messaging
// platform glue. It becomes a Job only after admission.
type JobRequest struct {
	RequestID    string    `json:"request_id,omitempty" validate:"omitempty"`
	Requester    string    `json:"requester" validate:"required"`
	Conversation string    `json:"conversation" validate:"required"`
	Source       Source    `json:"source" validate:"required"`
	Operation    Operation `json:"operation" validate:"required"`
}
