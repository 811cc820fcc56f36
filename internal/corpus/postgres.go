// Package corpus implements the artwork corpus backends behind candidates.Corpus.
package corpus

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/models"
	"museum-tour-workers/internal/tour/candidates"
)

const BackendPostgres = "postgres"

// pageHeadroom is the page size as a multiple of the requested limit. The period filter
// runs after the query.
const pageHeadroom = 4

//go:embed migrations/001_artworks.sql
var artworksSchema string

var artworkColumns = []string{
	"id", "museum_id", "title",
	"artist_name", "artist_nationality", "artist_birth_date", "artist_death_date", "artist_tags",
	"culture", "medium", "country", "region", "classification", "creation_date",
	"gallery_number", "image_url", "thumbnail_url", "is_on_display",
}

// PostgresCorpus translates specifications into parameterized SQL.
type PostgresCorpus struct {
	db      *sql.DB
	table   string
	timeout time.Duration
	logger  logger.Logger
}

func NewPostgresCorpus(db *sql.DB, table string, timeout time.Duration, log logger.Logger) *PostgresCorpus {
	if table == "" {
		table = "artworks"
	}
	return &PostgresCorpus{
		db:      db,
		table:   table,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"backend": BackendPostgres}),
	}
}

// Migrate creates the artworks table and its indexes.
func (c *PostgresCorpus) Migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, artworksSchema); err != nil {
		return errors.NewQueryExecutionFailedError("migrate", err)
	}
	return nil
}

// FetchBySpecification pages through matching rows in id order. Creation dates are free
// text, so the period filter is applied to each row with dates.ExtractYear semantics and
// paging continues until the limit is met or the table is exhausted.
func (c *PostgresCorpus) FetchBySpecification(ctx context.Context, spec candidates.Specification) ([]models.Artwork, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	pageSize := 0
	if spec.Limit > 0 {
		pageSize = spec.Limit * pageHeadroom
	}

	start := time.Now()
	artworks := make([]models.Artwork, 0)
	var after *int64
	scanned, pages := 0, 0
	for {
		query, args := c.buildQuery(spec, after, pageSize)
		page, err := c.fetchPage(ctx, query, args)
		if err != nil {
			return nil, err
		}
		pages++
		scanned += len(page)

		for _, a := range page {
			if !spec.Matches(a) {
				continue
			}
			artworks = append(artworks, a)
			if spec.Limit > 0 && len(artworks) == spec.Limit {
				break
			}
		}

		if pageSize == 0 || len(page) < pageSize || len(artworks) >= spec.Limit {
			break
		}
		last := page[len(page)-1].ID
		after = &last
	}

	c.logger.Debug("Corpus query executed", map[string]interface{}{
		"rows":            len(artworks),
		"scanned":         scanned,
		"pages":           pages,
		"executionTimeMs": time.Since(start).Milliseconds(),
	})
	return artworks, nil
}

func (c *PostgresCorpus) fetchPage(ctx context.Context, query string, args []interface{}) ([]models.Artwork, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.wrapError(ctx, err)
	}
	defer rows.Close()

	page := make([]models.Artwork, 0)
	for rows.Next() {
		a, err := scanArtwork(rows)
		if err != nil {
			return nil, errors.NewCorpusQueryFailedError(BackendPostgres, err)
		}
		page = append(page, a)
	}
	if err := rows.Err(); err != nil {
		return nil, c.wrapError(ctx, err)
	}
	return page, nil
}

func (c *PostgresCorpus) wrapError(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.NewQueryTimeoutError("fetch_by_specification")
	}
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	return errors.NewCorpusQueryFailedError(BackendPostgres, err)
}

// whereBuilder collects AND-ed clauses with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (w *whereBuilder) arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) add(clause string) {
	w.clauses = append(w.clauses, clause)
}

// buildQuery renders every specification clause except the period. after resumes paging
// past an id; limit 0 means unbounded.
func (c *PostgresCorpus) buildQuery(spec candidates.Specification, after *int64, limit int) (string, []interface{}) {
	w := &whereBuilder{}

	if spec.MuseumID != 0 {
		w.add("museum_id = " + w.arg(spec.MuseumID))
	}
	if spec.OnDisplay {
		w.add("is_on_display = TRUE")
	}
	if spec.RequireImage {
		w.add("(COALESCE(image_url, '') <> '' OR COALESCE(thumbnail_url, '') <> '')")
	}
	if len(spec.IDs) > 0 {
		w.add("id = ANY(" + w.arg(pq.Array(spec.IDs)) + ")")
	}
	if len(spec.ExcludeIDs) > 0 {
		w.add("NOT (id = ANY(" + w.arg(pq.Array(spec.ExcludeIDs)) + "))")
	}

	switch spec.Theme {
	case models.ThemeChronological:
		w.add("COALESCE(creation_date, '') <> ''")
	case models.ThemeArtistFocused:
		w.add("COALESCE(artist_birth_date, '') <> '' AND COALESCE(artist_nationality, '') <> ''")
	case models.ThemeCultural:
		w.add("COALESCE(culture, '') <> ''")
	}

	if p := spec.Preferences; p != nil {
		if len(p.Artists) > 0 {
			w.add("artist_name = ANY(" + w.arg(pq.Array(p.Artists)) + ")")
		}
		if len(p.Mediums) > 0 {
			w.add("medium = ANY(" + w.arg(pq.Array(p.Mediums)) + ")")
		}
		if p.Period != nil {
			w.add("COALESCE(creation_date, '') <> ''")
		}
		switch {
		case len(p.Cultures) > 0 && len(p.Countries) > 0:
			w.add(fmt.Sprintf("(culture = ANY(%s) OR country = ANY(%s))",
				w.arg(pq.Array(p.Cultures)), w.arg(pq.Array(p.Countries))))
		case len(p.Cultures) > 0:
			w.add("culture = ANY(" + w.arg(pq.Array(p.Cultures)) + ")")
		case len(p.Countries) > 0:
			w.add("country = ANY(" + w.arg(pq.Array(p.Countries)) + ")")
		}
	}

	if after != nil {
		w.add("id > " + w.arg(*after))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(artworkColumns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(pq.QuoteIdentifier(c.table))
	if len(w.clauses) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(w.clauses, " AND "))
	}
	b.WriteString(" ORDER BY id ASC")
	if limit > 0 {
		b.WriteString(" LIMIT " + w.arg(int64(limit)))
	}
	return b.String(), w.args
}

func scanArtwork(rows *sql.Rows) (models.Artwork, error) {
	var a models.Artwork
	var tags []string
	var artistName, nationality, birthDate, deathDate sql.NullString
	var culture, medium, country, region, classification sql.NullString
	var creationDate, gallery, imageURL, thumbnailURL sql.NullString

	err := rows.Scan(
		&a.ID, &a.MuseumID, &a.Title,
		&artistName, &nationality, &birthDate, &deathDate, pq.Array(&tags),
		&culture, &medium, &country, &region, &classification, &creationDate,
		&gallery, &imageURL, &thumbnailURL, &a.IsOnDisplay,
	)
	if err != nil {
		return models.Artwork{}, err
	}

	a.Artist = models.Artist{
		Name:        artistName.String,
		Nationality: nationality.String,
		BirthDate:   birthDate.String,
		DeathDate:   deathDate.String,
		Tags:        tags,
	}
	a.Culture = culture.String
	a.Medium = medium.String
	a.Country = country.String
	a.Region = region.String
	a.Classification = classification.String
	a.CreationDate = creationDate.String
	a.GalleryNumber = gallery.String
	a.ImageURL = imageURL.String
	a.ThumbnailURL = thumbnailURL.String
	return a, nil
}
