package mmodel

// Pagination encapsulates a page request and, when embedded in a response,
// the page actually returned.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Page wraps a slice of items with pagination metadata for list responses.
type Page struct {
	Items any `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total,omitempty"`
}
