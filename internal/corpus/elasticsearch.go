package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/models"
	"museum-tour-workers/internal/tour/candidates"
)

const (
	BackendElasticsearch = "elasticsearch"

	// maxSearchSize caps unlimited specifications at the default index.max_result_window.
	maxSearchSize = 10000
)

// ElasticsearchCorpus translates specifications into a bool query over an index of
// artwork documents. Documents carry the artwork JSON plus a numeric creationYear.
type ElasticsearchCorpus struct {
	client  *elasticsearch.Client
	index   string
	timeout time.Duration
	logger  logger.Logger
}

func NewElasticsearchCorpus(client *elasticsearch.Client, index string, timeout time.Duration, log logger.Logger) *ElasticsearchCorpus {
	if index == "" {
		index = "artworks"
	}
	return &ElasticsearchCorpus{
		client:  client,
		index:   index,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"backend": BackendElasticsearch}),
	}
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Hits []struct {
			Source models.Artwork `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *ElasticsearchCorpus) FetchBySpecification(ctx context.Context, spec candidates.Specification) ([]models.Artwork, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(BuildSearchQuery(spec))
	if err != nil {
		return nil, errors.NewSearchQueryFailedError("fetch_by_specification", err)
	}

	size := spec.Limit
	if size <= 0 || size > maxSearchSize {
		size = maxSearchSize
	}

	req := esapi.SearchRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewSearchTimeoutError("fetch_by_specification")
		}
		if ctx.Err() == context.Canceled {
			return nil, ctx.Err()
		}
		return nil, errors.NewCorpusQueryFailedError(BackendElasticsearch, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, errors.NewIndexNotFoundError(c.index)
	}
	if res.IsError() {
		return nil, errors.NewCorpusQueryFailedError(BackendElasticsearch, fmt.Errorf("search failed: %s", res.String()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewCorpusQueryFailedError(BackendElasticsearch, err)
	}

	// Analyzed fields and missing creationYear values can widen the match, so every hit is
	// re-checked against the specification.
	artworks := make([]models.Artwork, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		if spec.Matches(hit.Source) {
			artworks = append(artworks, hit.Source)
		}
	}

	c.logger.Debug("Corpus search executed", map[string]interface{}{
		"index": c.index,
		"hits":  len(r.Hits.Hits),
		"kept":  len(artworks),
		"took":  r.Took,
	})
	return artworks, nil
}

// BuildSearchQuery returns the search body for a specification.
func BuildSearchQuery(spec candidates.Specification) map[string]interface{} {
	filter := []interface{}{}
	mustNot := []interface{}{}

	term := func(field string, value interface{}) map[string]interface{} {
		return map[string]interface{}{"term": map[string]interface{}{field: value}}
	}
	terms := func(field string, values interface{}) map[string]interface{} {
		return map[string]interface{}{"terms": map[string]interface{}{field: values}}
	}
	exists := func(field string) map[string]interface{} {
		return map[string]interface{}{"exists": map[string]interface{}{"field": field}}
	}
	anyOf := func(clauses ...interface{}) map[string]interface{} {
		return map[string]interface{}{"bool": map[string]interface{}{
			"should":               clauses,
			"minimum_should_match": 1,
		}}
	}

	if spec.MuseumID != 0 {
		filter = append(filter, term("museumId", spec.MuseumID))
	}
	if spec.OnDisplay {
		filter = append(filter, term("isOnDisplay", true))
	}
	if spec.RequireImage {
		filter = append(filter, anyOf(exists("imageUrl"), exists("thumbnailUrl")))
	}
	if len(spec.IDs) > 0 {
		filter = append(filter, terms("id", spec.IDs))
	}
	if len(spec.ExcludeIDs) > 0 {
		mustNot = append(mustNot, terms("id", spec.ExcludeIDs))
	}

	switch spec.Theme {
	case models.ThemeChronological:
		filter = append(filter, exists("creationDate"))
	case models.ThemeArtistFocused:
		filter = append(filter, exists("artist.birthDate"), exists("artist.nationality"))
	case models.ThemeCultural:
		filter = append(filter, exists("culture"))
	}

	if p := spec.Preferences; p != nil {
		if len(p.Artists) > 0 {
			filter = append(filter, terms("artist.name", p.Artists))
		}
		if len(p.Mediums) > 0 {
			filter = append(filter, terms("medium", p.Mediums))
		}
		if p.Period != nil {
			filter = append(filter, map[string]interface{}{
				"range": map[string]interface{}{
					"creationYear": map[string]interface{}{"gte": p.Period.Start, "lte": p.Period.End},
				},
			})
		}
		var origin []interface{}
		if len(p.Cultures) > 0 {
			origin = append(origin, terms("culture", p.Cultures))
		}
		if len(p.Countries) > 0 {
			origin = append(origin, terms("country", p.Countries))
		}
		if len(origin) > 0 {
			filter = append(filter, anyOf(origin...))
		}
	}

	boolQuery := map[string]interface{}{
		"filter": filter,
	}
	if len(mustNot) > 0 {
		boolQuery["must_not"] = mustNot
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
		"sort": []map[string]interface{}{{"id": "asc"}},
	}
}
