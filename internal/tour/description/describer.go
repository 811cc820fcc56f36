// Package description produces tour and stop texts. Without a configured service it
// falls back to deterministic templates.
package description

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"museum-tour-workers/internal/common/config"
	commonhttp "museum-tour-workers/internal/common/http"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/models"
	"museum-tour-workers/internal/tour/dates"
)

type Describer interface {
	DescribeTour(ctx context.Context, artworks []models.Artwork, theme models.Theme) (string, error)
	// DescribeStop describes stops[index] in the context of its neighbours.
	DescribeStop(ctx context.Context, stops []models.TourStop, index int, theme models.Theme) (string, error)
}

// New returns a ServiceDescriber when cfg.BaseURL is set, otherwise a TemplateDescriber.
func New(cfg config.DescriptionConfig, log logger.Logger) Describer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		log.Info("No description service configured, using templates", nil)
		return NewTemplateDescriber()
	}

	opts := []commonhttp.Option{commonhttp.WithMaxRetries(cfg.MaxRetries)}
	if cfg.APIKey != "" {
		opts = append(opts, commonhttp.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	client := commonhttp.NewClient(time.Duration(cfg.Timeout)*time.Millisecond, opts...)
	return NewServiceDescriber(client, cfg.BaseURL, cfg.MaxTokens, log)
}

// TemplateDescriber builds texts from artwork fields only.
type TemplateDescriber struct{}

func NewTemplateDescriber() *TemplateDescriber {
	return &TemplateDescriber{}
}

func (d *TemplateDescriber) DescribeTour(_ context.Context, artworks []models.Artwork, theme models.Theme) (string, error) {
	titles := make([]string, 0, len(artworks))
	for _, a := range artworks {
		titles = append(titles, displayTitle(a))
	}
	text := fmt.Sprintf("A tour with the %s theme featuring: %s", themeLabel(theme), strings.Join(titles, ", "))
	if theme == models.ThemeChronological {
		if first, last, ok := yearSpan(artworks); ok {
			text += fmt.Sprintf(". Spans %s to %s", formatYear(first), formatYear(last))
		}
	}
	return text, nil
}

// yearSpan returns the earliest and latest parseable creation years.
func yearSpan(artworks []models.Artwork) (first, last int, ok bool) {
	years := make([]int, 0, len(artworks))
	for _, a := range artworks {
		if y, parsed := dates.TryExtractYear(a.CreationDate); parsed {
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		return 0, 0, false
	}
	slices.SortFunc(years, func(a, b int) int { return dates.CompareYears(a, b, true) })
	return years[0], years[len(years)-1], true
}

func formatYear(year int) string {
	if year < 0 {
		return fmt.Sprintf("%d B.C.", -year)
	}
	return fmt.Sprintf("A.D. %d", year)
}

func (d *TemplateDescriber) DescribeStop(_ context.Context, stops []models.TourStop, index int, _ models.Theme) (string, error) {
	if index < 0 || index >= len(stops) {
		return "", fmt.Errorf("stop index %d out of range for %d stops", index, len(stops))
	}
	a := stops[index].Artwork

	var b strings.Builder
	fmt.Fprintf(&b, "Stop %d of %d: %s by %s", index+1, len(stops), displayTitle(a), a.Artist.DisplayName())
	if a.CreationDate != "" {
		fmt.Fprintf(&b, " (%s)", a.CreationDate)
	}
	b.WriteString(".")
	if a.GalleryNumber != "" {
		fmt.Fprintf(&b, " Located in gallery %s.", a.GalleryNumber)
	}
	return b.String(), nil
}

func displayTitle(a models.Artwork) string {
	if t := strings.TrimSpace(a.Title); t != "" {
		return t
	}
	return "Untitled"
}

// themeLabel turns ARTIST_FOCUSED into "artist focused".
func themeLabel(theme models.Theme) string {
	return strings.ToLower(strings.ReplaceAll(string(theme), "_", " "))
}
