package corpus

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/models"
	"museum-tour-workers/internal/tour/candidates"
	"museum-tour-workers/internal/tour/dates"
)

// ==========================
// Test Helper Functions
// ==========================

type searchCapture struct {
	path  string
	query string
	body  map[string]interface{}
}

func setupSearchServer(t *testing.T, status int, response string) (*elasticsearch.Client, *searchCapture) {
	t.Helper()
	capture := &searchCapture{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capture.path = r.URL.Path
		capture.query = r.URL.RawQuery
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &capture.body)
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return client, capture
}

const searchHits = `{
  "took": 3,
  "hits": {
    "total": {"value": 2},
    "hits": [
      {"_source": {"id": 10, "title": "Water Lilies", "artist": {"name": "Monet"}, "museumId": 7,
                   "isOnDisplay": true, "culture": "French", "creationDate": "1906"}},
      {"_source": {"id": 11, "title": "Haystacks", "artist": {"name": "Monet"}, "museumId": 7,
                   "isOnDisplay": true, "culture": "French"}}
    ]
  }
}`

// ==========================
// Tests
// ==========================

func TestElasticsearchCorpus_Fetch(t *testing.T) {
	client, capture := setupSearchServer(t, http.StatusOK, searchHits)
	c := NewElasticsearchCorpus(client, "artworks", time.Second, logger.NewTestLogger(t))

	spec := candidates.Specification{
		MuseumID:  7,
		OnDisplay: true,
		Theme:     models.ThemeCultural,
		Preferences: &candidates.PreferenceFilter{
			Artists: []string{"Monet"},
			Period:  &dates.YearRange{Start: 1900, End: 1920},
		},
		Limit: 25,
	}

	got, err := c.FetchBySpecification(context.Background(), spec)
	require.NoError(t, err)

	// Haystacks has no creation date, so the period re-check drops it.
	assert.Equal(t, []int64{10}, models.ArtworkIDs(got))
	assert.Equal(t, "/artworks/_search", capture.path)
	assert.Contains(t, capture.query, "size=25")

	query := capture.body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filter := query["filter"].([]interface{})
	assert.Len(t, filter, 5)
	assert.NotContains(t, query, "must_not")
}

func TestElasticsearchCorpus_Errors(t *testing.T) {
	t.Run("missing index", func(t *testing.T) {
		client, _ := setupSearchServer(t, http.StatusNotFound, `{"error":{"type":"index_not_found_exception"}}`)
		c := NewElasticsearchCorpus(client, "artworks", time.Second, logger.NewTestLogger(t))

		_, err := c.FetchBySpecification(context.Background(), candidates.Specification{})
		assert.True(t, errors.HasCode(err, errors.ErrCodeIndexNotFound))
	})

	t.Run("server error", func(t *testing.T) {
		client, _ := setupSearchServer(t, http.StatusBadRequest, `{"error":{"type":"parsing_exception"}}`)
		c := NewElasticsearchCorpus(client, "artworks", time.Second, logger.NewTestLogger(t))

		_, err := c.FetchBySpecification(context.Background(), candidates.Specification{})
		assert.True(t, errors.HasCode(err, errors.ErrCodeCorpusQueryFailed))
	})

	t.Run("malformed body", func(t *testing.T) {
		client, _ := setupSearchServer(t, http.StatusOK, `{"hits":`)
		c := NewElasticsearchCorpus(client, "artworks", time.Second, logger.NewTestLogger(t))

		_, err := c.FetchBySpecification(context.Background(), candidates.Specification{})
		assert.True(t, errors.HasCode(err, errors.ErrCodeCorpusQueryFailed))
	})
}

func TestBuildSearchQuery(t *testing.T) {
	spec := candidates.Specification{
		RequireImage: true,
		IDs:          []int64{1},
		ExcludeIDs:   []int64{2, 3},
		Theme:        models.ThemeArtistFocused,
		Preferences: &candidates.PreferenceFilter{
			Cultures:  []string{"Maya"},
			Countries: []string{"Mexico"},
		},
	}

	body := BuildSearchQuery(spec)
	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})

	filter := boolQuery["filter"].([]interface{})
	// image, ids, birth date, nationality, origin
	assert.Len(t, filter, 5)

	origin := filter[4].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Len(t, origin["should"], 2)
	assert.Equal(t, 1, origin["minimum_should_match"])

	mustNot := boolQuery["must_not"].([]interface{})
	require.Len(t, mustNot, 1)
	assert.Equal(t, map[string]interface{}{"terms": map[string]interface{}{"id": []int64{2, 3}}}, mustNot[0])

	assert.Equal(t, []map[string]interface{}{{"id": "asc"}}, body["sort"])
}
