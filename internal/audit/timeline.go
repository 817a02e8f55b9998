package audit

import "time"

// TimelineFilters narrows the audit trail. Empty fields match everything.
type TimelineFilters struct {
	Entity   string
	EntityID string
	Actor    string
	Action   string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// TimelineRow is one recorded workflow action.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	ActorID  string         `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PagingInfo holds simple offset paging metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
