package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"civreg/internal/contract/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// Postgres persists service contracts. The contract row holds the window,
// capabilities, and credential hash; rights, requirements, and processus
// allow-lists live in child tables keyed by contract id.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Create(ctx context.Context, c *models.ServiceContract) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create contract: %w", err)
	}
	defer tx.Rollback(ctx)

	caps := make([]string, len(c.Capabilities))
	for i, capability := range c.Capabilities {
		caps[i] = string(capability)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO service_contracts
			(id, client_code, label, start_at, end_at, secret_hash, capabilities, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.ClientCode.String(), c.Label, c.Start, c.End, c.SecretHash, caps, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}

	for key, right := range c.Rights {
		_, err = tx.Exec(ctx, `
			INSERT INTO contract_rights
				(contract_id, attr_key, readable, writable, searchable, certifiable, mandatory)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, key.String(), right.Readable, right.Writable, right.Searchable, right.Certifiable, right.Mandatory,
		)
		if err != nil {
			return fmt.Errorf("insert contract right: %w", err)
		}
	}
	for key, level := range c.Requirements {
		_, err = tx.Exec(ctx, `
			INSERT INTO contract_requirements (contract_id, attr_key, min_level)
			VALUES ($1, $2, $3)`,
			c.ID, key.String(), level,
		)
		if err != nil {
			return fmt.Errorf("insert contract requirement: %w", err)
		}
	}
	for key, processus := range c.AllowedProcessus {
		for _, p := range processus {
			_, err = tx.Exec(ctx, `
				INSERT INTO contract_processus (contract_id, attr_key, processus)
				VALUES ($1, $2, $3)`,
				c.ID, key.String(), p.String(),
			)
			if err != nil {
				return fmt.Errorf("insert contract processus: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create contract: %w", err)
	}
	return nil
}

// FindActive loads the contract covering the request time.
func (s *Postgres) FindActive(ctx context.Context, clientCode id.ClientCode) (*models.ServiceContract, error) {
	now := requestcontext.Now(ctx)

	row := s.pool.QueryRow(ctx, `
		SELECT id, client_code, label, start_at, end_at, secret_hash, capabilities, created_at, updated_at
		FROM service_contracts
		WHERE client_code = $1 AND start_at <= $2 AND (end_at IS NULL OR end_at > $2)
		ORDER BY start_at DESC
		LIMIT 1`,
		clientCode.String(), now,
	)

	c, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active contract: %w", err)
	}

	if err := s.loadChildren(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Close sets the end date on an open contract, guaranteeing non-overlap with
// any successor that starts at or after end.
func (s *Postgres) Close(ctx context.Context, contractID uuid.UUID, end, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE service_contracts SET end_at = $2, updated_at = $3
		WHERE id = $1 AND end_at IS NULL`,
		contractID, end, now,
	)
	if err != nil {
		return fmt.Errorf("close contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func scanContract(row pgx.Row) (*models.ServiceContract, error) {
	var (
		c    models.ServiceContract
		code string
		caps []string
	)
	err := row.Scan(&c.ID, &code, &c.Label, &c.Start, &c.End, &c.SecretHash, &caps, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ClientCode = id.ClientCode(code)
	c.Capabilities = make([]models.Capability, len(caps))
	for i, capability := range caps {
		c.Capabilities[i] = models.Capability(capability)
	}
	c.Rights = map[id.AttrKey]models.AttributeRight{}
	c.Requirements = map[id.AttrKey]int{}
	c.AllowedProcessus = map[id.AttrKey][]id.ProcessusCode{}
	return &c, nil
}

func (s *Postgres) loadChildren(ctx context.Context, c *models.ServiceContract) error {
	rows, err := s.pool.Query(ctx, `
		SELECT attr_key, readable, writable, searchable, certifiable, mandatory
		FROM contract_rights WHERE contract_id = $1`, c.ID)
	if err != nil {
		return fmt.Errorf("load contract rights: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			right models.AttributeRight
		)
		if err := rows.Scan(&key, &right.Readable, &right.Writable, &right.Searchable, &right.Certifiable, &right.Mandatory); err != nil {
			return fmt.Errorf("scan contract right: %w", err)
		}
		right.Key = id.AttrKey(key)
		c.Rights[right.Key] = right
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate contract rights: %w", err)
	}

	reqRows, err := s.pool.Query(ctx, `
		SELECT attr_key, min_level FROM contract_requirements WHERE contract_id = $1`, c.ID)
	if err != nil {
		return fmt.Errorf("load contract requirements: %w", err)
	}
	defer reqRows.Close()
	for reqRows.Next() {
		var (
			key   string
			level int
		)
		if err := reqRows.Scan(&key, &level); err != nil {
			return fmt.Errorf("scan contract requirement: %w", err)
		}
		c.Requirements[id.AttrKey(key)] = level
	}
	if err := reqRows.Err(); err != nil {
		return fmt.Errorf("iterate contract requirements: %w", err)
	}

	procRows, err := s.pool.Query(ctx, `
		SELECT attr_key, processus FROM contract_processus WHERE contract_id = $1`, c.ID)
	if err != nil {
		return fmt.Errorf("load contract processus: %w", err)
	}
	defer procRows.Close()
	for procRows.Next() {
		var key, processus string
		if err := procRows.Scan(&key, &processus); err != nil {
			return fmt.Errorf("scan contract processus: %w", err)
		}
		k := id.AttrKey(key)
		c.AllowedProcessus[k] = append(c.AllowedProcessus[k], id.ProcessusCode(processus))
	}
	if err := procRows.Err(); err != nil {
		return fmt.Errorf("iterate contract processus: %w", err)
	}
	return nil
}
