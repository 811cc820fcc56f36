package models

import (
	"strconv"
	"strings"
)

// UnknownArtist is the display name used when an artwork has no attributed artist.
const UnknownArtist = "Unknown Artist"

type Artist struct {
	Name        string   `json:"name"`
	Nationality string   `json:"nationality,omitempty"`
	BirthDate   string   `json:"birthDate,omitempty"`
	DeathDate   string   `json:"deathDate,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Known reports whether the artist carries a usable name.
func (a Artist) Known() bool {
	name := strings.TrimSpace(a.Name)
	return name != "" && !strings.EqualFold(name, UnknownArtist)
}

// DisplayName returns the name or the UnknownArtist sentinel.
func (a Artist) DisplayName() string {
	if !a.Known() {
		return UnknownArtist
	}
	return strings.TrimSpace(a.Name)
}

// Lifespan returns the parsed birth and death years when both are plain integers.
func (a Artist) Lifespan() (birth, death int, ok bool) {
	b, err := strconv.Atoi(strings.TrimSpace(a.BirthDate))
	if err != nil {
		return 0, 0, false
	}
	d, err := strconv.Atoi(strings.TrimSpace(a.DeathDate))
	if err != nil {
		return 0, 0, false
	}
	return b, d, true
}

// HasReasonableLifespan requires death after birth, at most 120 years apart, born in or after 1000.
func (a Artist) HasReasonableLifespan() bool {
	birth, death, ok := a.Lifespan()
	if !ok {
		return false
	}
	return death > birth && death-birth <= 120 && birth >= 1000
}

// Artwork is an immutable record read from the museum corpus. Blank string fields mean absent.
type Artwork struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Artist         Artist `json:"artist"`
	Culture        string `json:"culture,omitempty"`
	Medium         string `json:"medium,omitempty"`
	Country        string `json:"country,omitempty"`
	Region         string `json:"region,omitempty"`
	Classification string `json:"classification,omitempty"`
	CreationDate   string `json:"creationDate,omitempty"`
	GalleryNumber  string `json:"galleryNumber,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	ThumbnailURL   string `json:"thumbnailUrl,omitempty"`
	IsOnDisplay    bool   `json:"isOnDisplay"`
	MuseumID       int64  `json:"museumId"`
}

// HasImage reports whether either the primary image or the thumbnail is set.
func (a Artwork) HasImage() bool {
	return strings.TrimSpace(a.ImageURL) != "" || strings.TrimSpace(a.ThumbnailURL) != ""
}

// ArtworkIDs returns the ids of the given artworks in order.
func ArtworkIDs(artworks []Artwork) []int64 {
	ids := make([]int64, 0, len(artworks))
	for _, a := range artworks {
		ids = append(ids, a.ID)
	}
	return ids
}
