package description

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"museum-tour-workers/internal/common/errors"
	commonhttp "museum-tour-workers/internal/common/http"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/models"
)

const (
	generatePath = "/api/ai/generate"

	truncatedNote   = " [Note: This description may be incomplete.]"
	unavailableText = "A detailed description is currently unavailable. " +
		"Please refer to the artwork details for more information."
)

// Poster is the part of the HTTP client the service describer uses.
type Poster interface {
	PostJSON(ctx context.Context, url string, in, out interface{}) error
}

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	System      string  `json:"system"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

// ServiceDescriber asks a text generation service for descriptions.
type ServiceDescriber struct {
	client    Poster
	url       string
	maxTokens int
	logger    logger.Logger
}

func NewServiceDescriber(client Poster, baseURL string, maxTokens int, log logger.Logger) *ServiceDescriber {
	return &ServiceDescriber{
		client:    client,
		url:       strings.TrimRight(baseURL, "/") + generatePath,
		maxTokens: maxTokens,
		logger:    log.WithFields(map[string]interface{}{"component": "describer"}),
	}
}

func (d *ServiceDescriber) DescribeTour(ctx context.Context, artworks []models.Artwork, theme models.Theme) (string, error) {
	return d.generate(ctx, BuildTourPrompt(artworks, theme))
}

func (d *ServiceDescriber) DescribeStop(ctx context.Context, stops []models.TourStop, index int, theme models.Theme) (string, error) {
	if index < 0 || index >= len(stops) {
		return "", errors.NewDescriptionFailedError(fmt.Errorf("stop index %d out of range for %d stops", index, len(stops)))
	}
	text, err := d.generate(ctx, BuildStopPrompt(stops, index, theme))
	if err != nil {
		return "", err
	}
	return CleanupFormatting(text), nil
}

func (d *ServiceDescriber) generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Prompt:      prompt,
		System:      "You are an expert museum curator and art historian.",
		MaxTokens:   d.maxTokens,
		Temperature: 0.7,
	}

	var resp generateResponse
	if err := d.client.PostJSON(ctx, d.url, req, &resp); err != nil {
		if stderrors.Is(err, context.Canceled) {
			return "", err
		}
		var statusErr *commonhttp.StatusError
		if stderrors.As(err, &statusErr) {
			d.logger.Warn("Description service rejected request", map[string]interface{}{
				"status":    statusErr.StatusCode,
				"retryable": statusErr.Retryable(),
			})
		}
		return "", errors.NewDescriptionFailedError(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.NewDescriptionFailedError(stderrors.New("service returned empty text"))
	}

	switch resp.FinishReason {
	case "", "stop":
		return text, nil
	case "length":
		return text + truncatedNote, nil
	case "content_filter":
		d.logger.Warn("Description filtered by service", nil)
		return unavailableText, nil
	default:
		return "", errors.NewDescriptionFailedError(fmt.Errorf("unexpected finish reason %q", resp.FinishReason))
	}
}

// BuildTourPrompt asks for a titled tour introduction covering the given artworks.
func BuildTourPrompt(artworks []models.Artwork, theme models.Theme) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a museum tour description for a %s tour.\n", themeLabel(theme))
	b.WriteString("Start with a line \"TITLE: <title>\" naming the tour, then the description.\n")
	b.WriteString("Introduce the theme, explain how each artwork contributes to it and how the pieces connect.\n\n")
	b.WriteString("Artworks:\n")
	for _, a := range artworks {
		fmt.Fprintf(&b, "- %s by %s (%s)\n", displayTitle(a), a.Artist.DisplayName(), orUnknown(a.CreationDate))
	}
	return b.String()
}

// BuildStopPrompt describes one stop with its position and neighbours.
func BuildStopPrompt(stops []models.TourStop, index int, theme models.Theme) string {
	a := stops[index].Artwork

	var b strings.Builder
	fmt.Fprintf(&b, "Write a plain-text description of %q by %s for stop %d of %d in a %s museum tour.\n",
		displayTitle(a), a.Artist.DisplayName(), index+1, len(stops), themeLabel(theme))
	b.WriteString("Use third person, no markdown, under 250 words.\n\n")
	fmt.Fprintf(&b, "Date: %s\nMedium: %s\nCulture: %s\n",
		orUnknown(a.CreationDate), orUnknown(a.Medium), orUnknown(a.Culture))

	if index > 0 {
		prev := stops[index-1].Artwork
		fmt.Fprintf(&b, "\nPrevious stop: %s by %s (%s). Connect this piece to it.\n",
			displayTitle(prev), prev.Artist.DisplayName(), orUnknown(prev.CreationDate))
	}
	if index < len(stops)-1 {
		next := stops[index+1].Artwork
		fmt.Fprintf(&b, "\nNext stop: %s by %s (%s). Lead into it.\n",
			displayTitle(next), next.Artist.DisplayName(), orUnknown(next.CreationDate))
	}

	switch {
	case index == 0:
		b.WriteString("\nThis is the first stop: introduce the tour theme.\n")
	case index == len(stops)-1:
		b.WriteString("\nThis is the final stop: close the tour's narrative.\n")
	default:
		b.WriteString("\nThis is a middle stop: advance the tour's theme.\n")
	}
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

var (
	boldPattern      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern    = regexp.MustCompile(`\*(.+?)\*`)
	headerPattern    = regexp.MustCompile(`#+\s+`)
	bulletPattern    = regexp.MustCompile(`(?m)^[ \t]*-[ \t]+`)
	numberedPattern  = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	blankRunsPattern = regexp.MustCompile(`\n{3,}`)
)

// CleanupFormatting strips markdown emphasis and headers, turns list markers into bullets
// and collapses runs of blank lines.
func CleanupFormatting(text string) string {
	text = boldPattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = headerPattern.ReplaceAllString(text, "")
	text = bulletPattern.ReplaceAllString(text, "• ")
	text = numberedPattern.ReplaceAllString(text, "• ")
	return blankRunsPattern.ReplaceAllString(text, "\n\n")
}
