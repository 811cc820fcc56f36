// internal/workers/tour/cancel-tour-generation/models.go
package canceltourgeneration

type Input struct {
	RequestID string `json:"requestId"`
	VisitorID string `json:"visitorId"`
}

// Output reports whether this call cancelled the generation. A request that already
// finished or is unknown yields cancelled=false with the reason.
type Output struct {
	Cancelled bool   `json:"cancelled"`
	Reason    string `json:"reason,omitempty"`
}
