package model

// InboundEmail is the inbound message shape handed to the ingestion pipeline.
// Sender, Subject and Body are attacker-influenceable and treated as
// untrusted until validated. MessageID may be empty, in which case
// deduplication is skipped.
type InboundEmail struct {
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	HTMLBody  string `json:"html_body,omitempty"`
}
