package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"checkout/internal/core/domain"
	"checkout/internal/infra/storage"
)

// SaleRepo persists the sales journal in PostgreSQL.
type SaleRepo struct {
	db *DB
}

// NewSaleRepo creates a postgres-backed sales journal.
func NewSaleRepo(db *DB) *SaleRepo {
	return &SaleRepo{db: db}
}

type saleRow struct {
	ID            string          `db:"id"`
	Lines         []byte          `db:"lines"`
	Subtotal      decimal.Decimal `db:"subtotal"`
	Tax           decimal.Decimal `db:"tax"`
	Total         decimal.Decimal `db:"total"`
	PaymentMethod string          `db:"payment_method"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (r saleRow) toDomain() (*domain.Sale, error) {
	var lines []domain.CartLine
	if err := json.Unmarshal(r.Lines, &lines); err != nil {
		return nil, fmt.Errorf("decode sale lines: %w", err)
	}

	return &domain.Sale{
		ID:            r.ID,
		Lines:         lines,
		Subtotal:      r.Subtotal,
		Tax:           r.Tax,
		Total:         r.Total,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		CreatedAt:     r.CreatedAt,
	}, nil
}

func (r *SaleRepo) Save(ctx context.Context, sale *domain.Sale) error {
	lines, err := json.Marshal(sale.Lines)
	if err != nil {
		return fmt.Errorf("encode sale lines: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sales (id, lines, subtotal, tax, total, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		sale.ID, lines, sale.Subtotal, sale.Tax, sale.Total,
		string(sale.PaymentMethod), sale.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save sale: %w", err)
	}
	return nil
}

func (r *SaleRepo) GetByID(ctx context.Context, id string) (*domain.Sale, error) {
	var row saleRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, lines, subtotal, tax, total, payment_method, created_at
		FROM sales WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return row.toDomain()
}

func (r *SaleRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Sale, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []saleRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, lines, subtotal, tax, total, payment_method, created_at
		FROM sales ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	out := make([]*domain.Sale, 0, len(rows))
	for _, row := range rows {
		sale, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, nil
}
