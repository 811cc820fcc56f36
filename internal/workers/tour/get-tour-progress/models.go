// internal/workers/tour/get-tour-progress/models.go
package gettourprogress

type Input struct {
	RequestID string `json:"requestId"`
	VisitorID string `json:"visitorId"`
}

// Output mirrors the visible progress of a request. Found is false once the entry has
// been evicted or when it belongs to another visitor.
type Output struct {
	Found        bool    `json:"found"`
	State        string  `json:"state,omitempty"`
	Progress     float64 `json:"progress"`
	Stage        string  `json:"stage"`
	HasError     bool    `json:"hasError"`
	ErrorMessage string  `json:"errorMessage"`
}
