package models

// PageResponse is one page of products served by the gateway.
type PageResponse struct {
	Query    QueryInfo `json:"query"`
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	PrevPage *int      `json:"prev_page,omitempty"`
	NextPage *int      `json:"next_page,omitempty"`
	Duration string    `json:"duration"`
}

type QueryInfo struct {
	Kind       string `json:"kind"`
	Search     string `json:"search,omitempty"`
	CategoryID int    `json:"category_id,omitempty"`
}

// LoadStateInfo mirrors one direction of a browse session's load state.
type LoadStateInfo struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SessionResponse is the observable state of a browse session.
type SessionResponse struct {
	ID        string        `json:"id"`
	Query     QueryInfo     `json:"query"`
	Products  []Product     `json:"products"`
	Count     int           `json:"count"`
	Refresh   LoadStateInfo `json:"refresh"`
	Prepend   LoadStateInfo `json:"prepend"`
	Append    LoadStateInfo `json:"append"`
	PrevPage  *int          `json:"prev_page,omitempty"`
	NextPage  *int          `json:"next_page,omitempty"`
	EndOfList bool          `json:"end_of_list"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
