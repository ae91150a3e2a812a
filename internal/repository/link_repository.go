package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/linkregistry/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrCodeExists   = errors.New("short code already exists")
	ErrUnavailable  = errors.New("link store unavailable")
)

// SQLSTATE unique_violation
const uniqueViolationCode = "23505"

const linkColumns = `id, code, url, total_clicks, last_clicked_at, created_at, updated_at`

type LinkRepository interface {
	FindByCode(ctx context.Context, code string) (*models.Link, error)
	Create(ctx context.Context, code, url string) (*models.Link, error)
	IncrementClick(ctx context.Context, code string, at time.Time) (*models.Link, error)
	DeleteByCode(ctx context.Context, code string) error
	List(ctx context.Context) ([]models.Link, error)
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) FindByCode(ctx context.Context, code string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE code = $1`

	link, err := scanLink(r.db.Pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, unavailable("failed to get link", err)
	}

	return link, nil
}

// Create вставляет новую строку; конфликт по уникальному индексу code
// возвращается как ErrCodeExists, даже при конкурентных вставках
func (r *linkRepository) Create(ctx context.Context, code, url string) (*models.Link, error) {
	query := `
		INSERT INTO links (id, code, url, total_clicks, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)
		RETURNING ` + linkColumns

	now := time.Now().UTC()
	link, err := scanLink(r.db.Pool.QueryRow(ctx, query, uuid.NewString(), code, url, now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCodeExists
		}
		return nil, unavailable("failed to create link", err)
	}

	return link, nil
}

// IncrementClick атомарно увеличивает счётчик одним UPDATE, поэтому
// конкурентные инкременты одной строки сериализуются самой БД.
// Временные метки не откатываются назад, если клики пришли не по порядку.
func (r *linkRepository) IncrementClick(ctx context.Context, code string, at time.Time) (*models.Link, error) {
	query := `
		UPDATE links
		SET total_clicks    = total_clicks + 1,
		    last_clicked_at = GREATEST(COALESCE(last_clicked_at, $2), $2),
		    updated_at      = GREATEST(updated_at, $2)
		WHERE code = $1
		RETURNING ` + linkColumns

	link, err := scanLink(r.db.Pool.QueryRow(ctx, query, code, at.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, unavailable("failed to increment clicks", err)
	}

	return link, nil
}

func (r *linkRepository) DeleteByCode(ctx context.Context, code string) error {
	query := `DELETE FROM links WHERE code = $1`

	result, err := r.db.Pool.Exec(ctx, query, code)
	if err != nil {
		return unavailable("failed to delete link", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) List(ctx context.Context) ([]models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, unavailable("failed to list links", err)
	}
	defer rows.Close()

	links := []models.Link{}
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, unavailable("failed to scan link", err)
		}
		links = append(links, *link)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("error iterating links", err)
	}

	return links, nil
}

func scanLink(row pgx.Row) (*models.Link, error) {
	link := &models.Link{}
	err := row.Scan(
		&link.ID,
		&link.Code,
		&link.URL,
		&link.TotalClicks,
		&link.LastClickedAt,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return link, nil
}

// Проверка на уникальность
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
