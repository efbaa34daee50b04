package models

// Requests for the regime HTTP endpoints. Defined in domain for consistency and reuse.

type RegimesRequest struct {
	From  string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To    string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
	Limit int    `query:"limit" json:"limit" default:"0" validate:"gte=0,lte=20000"`
	Order string `query:"order" json:"order" default:"asc" validate:"oneof=asc desc"`
}

type RunRequest struct {
	Force bool `query:"force" json:"force"`
}

// RunAccepted is returned when a refit request has been admitted.
type RunAccepted struct {
	Status   string `json:"status"`
	Queued   bool   `json:"queued"`
	Symbol   string `json:"symbol"`
	Dedupe   bool   `json:"dedupe,omitempty"`
	Throttle string `json:"throttle,omitempty"`
}
