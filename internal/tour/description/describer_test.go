package description

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"museum-tour-workers/internal/common/config"
	"museum-tour-workers/internal/common/errors"
	commonhttp "museum-tour-workers/internal/common/http"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func testStops() []models.TourStop {
	return []models.TourStop{
		{Sequence: 0, Artwork: models.Artwork{ID: 1, Title: "The Great Wave", Artist: models.Artist{Name: "Hokusai"}, CreationDate: "ca. 1831", GalleryNumber: "231"}},
		{Sequence: 1, Artwork: models.Artwork{ID: 2, Title: "", CreationDate: "Edo period"}},
		{Sequence: 2, Artwork: models.Artwork{ID: 3, Title: "Fine Wind, Clear Morning", Artist: models.Artist{Name: "Hokusai"}}},
	}
}

// newGenerateServer answers every request with resp and records the last request body.
func newGenerateServer(t *testing.T, status int, resp generateResponse) (*httptest.Server, *generateRequest) {
	t.Helper()
	var last generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, generatePath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&last))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func newTestService(t *testing.T, url string) *ServiceDescriber {
	client := commonhttp.NewClient(time.Second, commonhttp.WithBackoff(time.Millisecond))
	return NewServiceDescriber(client, url+"/", 400, logger.NewTestLogger(t))
}

// ==========================
// Template Describer Tests
// ==========================

func TestTemplateDescriber_Tour(t *testing.T) {
	d := NewTemplateDescriber()
	text, err := d.DescribeTour(context.Background(), models.StopArtworks(testStops()), models.ThemeArtistFocused)
	require.NoError(t, err)
	assert.Equal(t, "A tour with the artist focused theme featuring: The Great Wave, Untitled, Fine Wind, Clear Morning", text)
}

func TestTemplateDescriber_ChronologicalSpan(t *testing.T) {
	d := NewTemplateDescriber()
	artworks := []models.Artwork{
		{Title: "Wave", CreationDate: "ca. 1831"},
		{Title: "Mirror", CreationDate: "3rd century B.C."},
		{Title: "Screen", CreationDate: "Edo period"},
		{Title: "Vase", CreationDate: "15th century"},
	}

	text, err := d.DescribeTour(context.Background(), artworks, models.ThemeChronological)
	require.NoError(t, err)
	assert.Equal(t, "A tour with the chronological theme featuring: Wave, Mirror, Screen, Vase. Spans 250 B.C. to A.D. 1831", text)

	text, err = d.DescribeTour(context.Background(), artworks[2:3], models.ThemeChronological)
	require.NoError(t, err)
	assert.Equal(t, "A tour with the chronological theme featuring: Screen", text)
}

func TestTemplateDescriber_Stop(t *testing.T) {
	d := NewTemplateDescriber()
	stops := testStops()

	text, err := d.DescribeStop(context.Background(), stops, 0, models.ThemeCultural)
	require.NoError(t, err)
	assert.Equal(t, "Stop 1 of 3: The Great Wave by Hokusai (ca. 1831). Located in gallery 231.", text)

	text, err = d.DescribeStop(context.Background(), stops, 1, models.ThemeCultural)
	require.NoError(t, err)
	assert.Equal(t, "Stop 2 of 3: Untitled by Unknown Artist (Edo period).", text)

	_, err = d.DescribeStop(context.Background(), stops, 3, models.ThemeCultural)
	assert.Error(t, err)
}

func TestNew_SelectsImplementation(t *testing.T) {
	log := logger.NewTestLogger(t)

	_, ok := New(config.DescriptionConfig{}, log).(*TemplateDescriber)
	assert.True(t, ok)

	d, ok := New(config.DescriptionConfig{BaseURL: "http://describer:8080/", Timeout: 1000, MaxRetries: 2}, log).(*ServiceDescriber)
	require.True(t, ok)
	assert.Equal(t, "http://describer:8080/api/ai/generate", d.url)
}

// ==========================
// Service Describer Tests
// ==========================

func TestServiceDescriber_Tour(t *testing.T) {
	srv, last := newGenerateServer(t, http.StatusOK, generateResponse{Text: "  TITLE: Waves\nA journey.  ", FinishReason: "stop"})
	d := newTestService(t, srv.URL)

	text, err := d.DescribeTour(context.Background(), models.StopArtworks(testStops()), models.ThemeCultural)
	require.NoError(t, err)
	assert.Equal(t, "TITLE: Waves\nA journey.", text)

	assert.Equal(t, 400, last.MaxTokens)
	assert.Contains(t, last.Prompt, "cultural tour")
	assert.Contains(t, last.Prompt, "- The Great Wave by Hokusai (ca. 1831)")
	assert.Contains(t, last.Prompt, "- Untitled by Unknown Artist (Edo period)")
}

func TestServiceDescriber_FinishReasons(t *testing.T) {
	tests := []struct {
		name    string
		resp    generateResponse
		want    string
		wantErr bool
	}{
		{name: "truncated", resp: generateResponse{Text: "Partial", FinishReason: "length"}, want: "Partial" + truncatedNote},
		{name: "filtered", resp: generateResponse{Text: "x", FinishReason: "content_filter"}, want: unavailableText},
		{name: "unexpected", resp: generateResponse{Text: "x", FinishReason: "tool_calls"}, wantErr: true},
		{name: "empty text", resp: generateResponse{Text: "   ", FinishReason: "stop"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newGenerateServer(t, http.StatusOK, tt.resp)
			text, err := newTestService(t, srv.URL).DescribeTour(context.Background(), nil, models.ThemeCultural)
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeDescriptionFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestServiceDescriber_StatusError(t *testing.T) {
	srv, _ := newGenerateServer(t, http.StatusUnauthorized, generateResponse{})

	_, err := newTestService(t, srv.URL).DescribeTour(context.Background(), nil, models.ThemeCultural)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDescriptionFailed))
}

func TestServiceDescriber_StopCleansFormatting(t *testing.T) {
	srv, last := newGenerateServer(t, http.StatusOK, generateResponse{Text: "## Overview\n**Bold** and *soft*.\n\n\n\n- first\n2. second"})
	d := newTestService(t, srv.URL)

	text, err := d.DescribeStop(context.Background(), testStops(), 1, models.ThemeChronological)
	require.NoError(t, err)
	assert.Equal(t, "Overview\nBold and soft.\n\n• first\n• second", text)

	assert.Contains(t, last.Prompt, "stop 2 of 3")
	assert.Contains(t, last.Prompt, "Previous stop: The Great Wave")
	assert.Contains(t, last.Prompt, "Next stop: Fine Wind, Clear Morning")
	assert.Contains(t, last.Prompt, "middle stop")
}

func TestBuildStopPrompt_Positions(t *testing.T) {
	stops := testStops()

	first := BuildStopPrompt(stops, 0, models.ThemeCultural)
	assert.Contains(t, first, "first stop")
	assert.NotContains(t, first, "Previous stop")

	last := BuildStopPrompt(stops, 2, models.ThemeCultural)
	assert.Contains(t, last, "final stop")
	assert.NotContains(t, last, "Next stop")
}
