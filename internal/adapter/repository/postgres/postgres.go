// Package postgres implements the durable link store on top of PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErrCode
}

const linkColumns = `id, short_id, original_url, clicks, created_at, last_accessed, expires_at`

type linkDB struct {
	ID           int64        `db:"id"`
	ShortID      string       `db:"short_id"`
	OriginalURL  string       `db:"original_url"`
	Clicks       int64        `db:"clicks"`
	CreatedAt    time.Time    `db:"created_at"`
	LastAccessed sql.NullTime `db:"last_accessed"`
	ExpiresAt    time.Time    `db:"expires_at"`
}

func (l *linkDB) toEntity() *entity.ShortLink {
	link := &entity.ShortLink{
		ID:          l.ID,
		ShortID:     l.ShortID,
		OriginalURL: l.OriginalURL,
		Clicks:      l.Clicks,
		CreatedAt:   l.CreatedAt,
		ExpiresAt:   l.ExpiresAt,
	}

	if l.LastAccessed.Valid {
		lastAccessed := l.LastAccessed.Time
		link.LastAccessed = &lastAccessed
	}

	return link
}

// LinkRepository stores short links in the links table.
type LinkRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{
		db:  db,
		now: time.Now,
	}
}

// Save inserts a new link. A short id collision is reported as entity.ErrShortIDExists.
func (r *LinkRepository) Save(ctx context.Context, link *entity.ShortLink) (*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.Save"
	const query = `INSERT INTO links(short_id, original_url, expires_at) VALUES ($1, $2, $3) RETURNING ` + linkColumns

	var rec linkDB

	if err := r.db.GetContext(ctx, &rec, query, link.ShortID, link.OriginalURL, link.ExpiresAt); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortIDExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into links table: %w", op, err)
	}

	return rec.toEntity(), nil
}

// FindByShortID returns the link with the given short id. Expired links are reported as not found.
func (r *LinkRepository) FindByShortID(ctx context.Context, shortID string) (*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.FindByShortID"
	const query = `SELECT ` + linkColumns + ` FROM links WHERE short_id = $1 AND expires_at > $2`

	var rec linkDB

	if err := r.db.GetContext(ctx, &rec, query, shortID, r.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from links table: %w", op, err)
	}

	return rec.toEntity(), nil
}

// RecordClick atomically adds click.Count to the counter and sets the last access time.
// When click.ExtendUntil is set the expiration is moved forward, never backward.
func (r *LinkRepository) RecordClick(ctx context.Context, click entity.Click) error {
	const op = "adapter.repository.postgres.LinkRepository.RecordClick"
	const query = `UPDATE links
		SET clicks = clicks + $1,
			last_accessed = GREATEST(COALESCE(last_accessed, $2), $2),
			expires_at = GREATEST(expires_at, COALESCE($3, expires_at))
		WHERE short_id = $4`

	var extendUntil sql.NullTime
	if !click.ExtendUntil.IsZero() {
		extendUntil = sql.NullTime{Time: click.ExtendUntil, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, click.Count, click.At, extendUntil, click.ShortID)
	if err != nil {
		return fmt.Errorf("%s: failed to update links table row: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	return nil
}

// CountAll counts unexpired links. Like the other aggregates below it ignores expired
// links the sweep has not removed yet, so metrics match what FindByShortID serves.
func (r *LinkRepository) CountAll(ctx context.Context) (int64, error) {
	const op = "adapter.repository.postgres.LinkRepository.CountAll"
	const query = `SELECT COUNT(*) FROM links WHERE expires_at > $1`

	var count int64

	if err := r.db.GetContext(ctx, &count, query, r.now()); err != nil {
		return 0, fmt.Errorf("%s: failed to count links: %w", op, err)
	}

	return count, nil
}

func (r *LinkRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	const op = "adapter.repository.postgres.LinkRepository.CountCreatedSince"
	const query = `SELECT COUNT(*) FROM links WHERE created_at >= $1 AND expires_at > $2`

	var count int64

	if err := r.db.GetContext(ctx, &count, query, since, r.now()); err != nil {
		return 0, fmt.Errorf("%s: failed to count recent links: %w", op, err)
	}

	return count, nil
}

func (r *LinkRepository) SumClicks(ctx context.Context) (int64, error) {
	const op = "adapter.repository.postgres.LinkRepository.SumClicks"
	const query = `SELECT COALESCE(SUM(clicks), 0) FROM links WHERE expires_at > $1`

	var sum int64

	if err := r.db.GetContext(ctx, &sum, query, r.now()); err != nil {
		return 0, fmt.Errorf("%s: failed to sum clicks: %w", op, err)
	}

	return sum, nil
}

// TopByClicks returns up to n links ordered by click count, most clicked first.
func (r *LinkRepository) TopByClicks(ctx context.Context, n int) ([]*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.TopByClicks"
	const query = `SELECT ` + linkColumns + ` FROM links
		WHERE expires_at > $1
		ORDER BY clicks DESC, id ASC LIMIT $2`

	var recs []linkDB

	if err := r.db.SelectContext(ctx, &recs, query, r.now(), n); err != nil {
		return nil, fmt.Errorf("%s: failed to select top links: %w", op, err)
	}

	links := make([]*entity.ShortLink, 0, len(recs))
	for i := range recs {
		links = append(links, recs[i].toEntity())
	}

	return links, nil
}

// DeleteExpired removes links whose expiration is not after now and returns their short ids.
func (r *LinkRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	const op = "adapter.repository.postgres.LinkRepository.DeleteExpired"
	const query = `DELETE FROM links WHERE expires_at <= $1 RETURNING short_id`

	var shortIDs []string

	if err := r.db.SelectContext(ctx, &shortIDs, query, now); err != nil {
		return nil, fmt.Errorf("%s: failed to delete expired links: %w", op, err)
	}

	return shortIDs, nil
}

func (r *LinkRepository) Ping(ctx context.Context) error {
	const op = "adapter.repository.postgres.LinkRepository.Ping"

	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
