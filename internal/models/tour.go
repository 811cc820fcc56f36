package models

import (
	"fmt"
	"time"
)

type TourStop struct {
	Sequence    int     `json:"sequence"`
	Artwork     Artwork `json:"artwork"`
	Description string  `json:"description,omitempty"`
}

type Tour struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Theme       Theme      `json:"theme"`
	MuseumID    int64      `json:"museumId"`
	VisitorID   string     `json:"visitorId"`
	Stops       []TourStop `json:"stops"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// TourName formats the default name for a tour generated on the given day.
func TourName(theme Theme, at time.Time) string {
	return fmt.Sprintf("%s Tour - %s", theme, at.Format("2006-01-02"))
}

// StopArtworks returns the artworks of the stops in sequence order.
func StopArtworks(stops []TourStop) []Artwork {
	out := make([]Artwork, 0, len(stops))
	for _, s := range stops {
		out = append(out, s.Artwork)
	}
	return out
}

// TourRequest is the input to a generation run.
type TourRequest struct {
	RequestID   string          `json:"requestId,omitempty"`
	VisitorID   string          `json:"visitorId"`
	Preferences TourPreferences `json:"preferences"`
}
