package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cashback_backend/internal/claims/domain"
	"cashback_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const claimColumns = `
	id, identity, product_id, ordered, reviewed, label_destroyed, payout_collected, payout_confirmed,
	payout_phone, payout_bank, payout_amount, payout_amount_source, status, history, version, created_at, updated_at`

// Postgres stores claims in the claims table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a repository backed by pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (r *Postgres) CreateIfAbsent(ctx context.Context, claim domain.Claim) (domain.Claim, bool, error) {
	history, err := json.Marshal(claim.History)
	if err != nil {
		return domain.Claim{}, false, fmt.Errorf("encode history: %w", err)
	}

	// A concurrently cancelled row can make both the insert and the lookup miss; retry once.
	for attempt := 0; attempt < 2; attempt++ {
		row := r.pool.QueryRow(ctx, `
			INSERT INTO claims (id, identity, product_id, status, history, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (identity, product_id) WHERE status = 'active' DO NOTHING
			RETURNING `+claimColumns,
			claim.ID, claim.Identity, claim.ProductID, string(domain.StatusActive), history, claim.CreatedAt,
		)
		created, err := scanClaim(row)
		if err == nil {
			return created, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.Claim{}, false, apperr.Unavailable("insert claim", err)
		}

		row = r.pool.QueryRow(ctx, `SELECT `+claimColumns+`
			FROM claims
			WHERE identity = $1 AND product_id = $2 AND status = 'active'`,
			claim.Identity, claim.ProductID,
		)
		existing, err := scanClaim(row)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.Claim{}, false, apperr.Unavailable("load claim", err)
		}
	}
	return domain.Claim{}, false, apperr.Internal("claim creation raced with cancellation")
}

func (r *Postgres) GetByID(ctx context.Context, id uuid.UUID) (domain.Claim, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
	claim, err := scanClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Claim{}, apperr.NotFound("claim not found")
	}
	if err != nil {
		return domain.Claim{}, apperr.Unavailable("load claim", err)
	}
	return claim, nil
}

func (r *Postgres) ListByIdentity(ctx context.Context, identity string, statuses ...domain.Status) ([]domain.Claim, error) {
	filter := make([]string, 0, len(statuses))
	for _, s := range statuses {
		filter = append(filter, string(s))
	}

	rows, err := r.pool.Query(ctx, `SELECT `+claimColumns+`
		FROM claims
		WHERE identity = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY created_at ASC, seq ASC`,
		identity, filter,
	)
	if err != nil {
		return nil, apperr.Unavailable("list claims", err)
	}
	defer rows.Close()

	claims := make([]domain.Claim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, apperr.Unavailable("scan claim", err)
		}
		claims = append(claims, claim)
	}
	if rows.Err() != nil {
		return nil, apperr.Unavailable("list claims", rows.Err())
	}
	return claims, nil
}

func (r *Postgres) Update(ctx context.Context, id uuid.UUID, fn func(*domain.Claim) error) (domain.Claim, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Claim{}, apperr.Unavailable("begin claim update", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1 FOR UPDATE`, id)
	claim, err := scanClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Claim{}, apperr.NotFound("claim not found")
	}
	if err != nil {
		return domain.Claim{}, apperr.Unavailable("lock claim", err)
	}

	if err := fn(&claim); err != nil {
		return domain.Claim{}, err
	}

	history, err := json.Marshal(claim.History)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("encode history: %w", err)
	}
	claim.Version++
	claim.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `
		UPDATE claims SET
			ordered = $2, reviewed = $3, label_destroyed = $4, payout_collected = $5, payout_confirmed = $6,
			payout_phone = $7, payout_bank = $8, payout_amount = $9, payout_amount_source = $10,
			status = $11, history = $12, version = $13, updated_at = $14
		WHERE id = $1`,
		claim.ID, claim.Ordered, claim.Reviewed, claim.LabelDestroyed, claim.PayoutCollected, claim.PayoutConfirmed,
		claim.Payout.Phone, claim.Payout.Bank, claim.Payout.Amount, string(claim.Payout.AmountSource),
		string(claim.Status), history, claim.Version, claim.UpdatedAt,
	)
	if err != nil {
		return domain.Claim{}, apperr.Unavailable("update claim", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Claim{}, apperr.Unavailable("commit claim update", err)
	}
	return claim, nil
}

func scanClaim(row pgx.Row) (domain.Claim, error) {
	var (
		claim        domain.Claim
		status       string
		amountSource string
		history      []byte
	)
	err := row.Scan(
		&claim.ID,
		&claim.Identity,
		&claim.ProductID,
		&claim.Ordered,
		&claim.Reviewed,
		&claim.LabelDestroyed,
		&claim.PayoutCollected,
		&claim.PayoutConfirmed,
		&claim.Payout.Phone,
		&claim.Payout.Bank,
		&claim.Payout.Amount,
		&amountSource,
		&status,
		&history,
		&claim.Version,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return domain.Claim{}, err
	}
	claim.Status = domain.Status(status)
	claim.Payout.AmountSource = domain.AmountSource(amountSource)
	if len(history) > 0 {
		if err := json.Unmarshal(history, &claim.History); err != nil {
			return domain.Claim{}, fmt.Errorf("decode history: %w", err)
		}
	}
	return claim, nil
}

var _ Repository = (*Postgres)(nil)
