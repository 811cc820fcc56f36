// internal/workers/tour/generate-tour/models.go
package generatetour

import "museum-tour-workers/internal/models"

type Input struct {
	RequestID   string                 `json:"requestId,omitempty"`
	VisitorID   string                 `json:"visitorId"`
	Preferences models.TourPreferences `json:"preferences"`
}

type Output struct {
	RequestID string       `json:"requestId"`
	Tour      *models.Tour `json:"tour"`
}
