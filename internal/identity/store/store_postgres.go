package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"civreg/internal/identity/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// Postgres persists identities. The identity row carries lifecycle state;
// attributes live one row per (cuid, key) and are replaced wholesale on each
// accepted write. Merge snapshots are stored as JSON documents since they are
// only ever read back whole.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Create(ctx context.Context, ident *models.Identity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create identity: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO identities
			(cuid, active, merged_into, merged_at, deleted_at, expires_at, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
		ON CONFLICT (cuid) DO NOTHING`,
		ident.CUID.String(), ident.Active, ident.MergedInto.String(),
		ident.MergedAt, ident.DeletedAt, ident.ExpiresAt, ident.CreatedAt, ident.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrConflict
	}

	if err := writeAttributes(ctx, tx, ident); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create identity: %w", err)
	}
	return nil
}

func (s *Postgres) FindByCUID(ctx context.Context, cuid id.CUID) (*models.Identity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT cuid, active, COALESCE(merged_into, ''), merged_at, deleted_at, expires_at, created_at, updated_at
		FROM identities WHERE cuid = $1`,
		cuid.String(),
	)

	var (
		ident      models.Identity
		cuidStr    string
		mergedInto string
	)
	err := row.Scan(&cuidStr, &ident.Active, &mergedInto, &ident.MergedAt,
		&ident.DeletedAt, &ident.ExpiresAt, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	ident.CUID = id.CUID(cuidStr)
	ident.MergedInto = id.CUID(mergedInto)

	ident.Attributes, err = s.loadAttributes(ctx, cuid)
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

func (s *Postgres) loadAttributes(ctx context.Context, cuid id.CUID) (models.AttributeSet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT attr_key, value, author, updated_at, cert_processus, cert_at, cert_expires, cert_level
		FROM identity_attributes WHERE cuid = $1`,
		cuid.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("load identity attributes: %w", err)
	}
	defer rows.Close()

	attrs := make(models.AttributeSet)
	for rows.Next() {
		var (
			key, value, author string
			updatedAt          time.Time
			processus          *string
			certifiedAt        *time.Time
			certExpires        *time.Time
			certLevel          *int
		)
		if err := rows.Scan(&key, &value, &author, &updatedAt, &processus, &certifiedAt, &certExpires, &certLevel); err != nil {
			return nil, fmt.Errorf("scan identity attribute: %w", err)
		}
		a := models.Attribute{
			Value:     value,
			Author:    id.ClientCode(author),
			UpdatedAt: updatedAt,
		}
		if processus != nil && certifiedAt != nil && certLevel != nil {
			a.Certification = &models.Certification{
				Processus:   id.ProcessusCode(*processus),
				CertifiedAt: *certifiedAt,
				ExpiresAt:   certExpires,
				Level:       *certLevel,
			}
		}
		attrs[id.AttrKey(key)] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity attributes: %w", err)
	}
	return attrs, nil
}

// Update replaces the identity row and its attribute rows in one transaction.
func (s *Postgres) Update(ctx context.Context, ident *models.Identity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update identity: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE identities
		SET active = $2, merged_into = NULLIF($3, ''), merged_at = $4,
		    deleted_at = $5, expires_at = $6, updated_at = $7
		WHERE cuid = $1`,
		ident.CUID.String(), ident.Active, ident.MergedInto.String(),
		ident.MergedAt, ident.DeletedAt, ident.ExpiresAt, ident.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM identity_attributes WHERE cuid = $1`, ident.CUID.String()); err != nil {
		return fmt.Errorf("clear identity attributes: %w", err)
	}
	if err := writeAttributes(ctx, tx, ident); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update identity: %w", err)
	}
	return nil
}

// FindCandidates blocks on exact value equality over the given keys and
// returns the full identities. Fuzzy rules rely on this pool plus the
// evaluator's normalization; recall beyond exact blocking is a search-index
// concern outside the engine.
func (s *Postgres) FindCandidates(ctx context.Context, attrs models.AttributeSet, keys []id.AttrKey) ([]*models.Identity, error) {
	keyStrs := make([]string, 0, len(keys))
	values := make([]string, 0, len(keys))
	for _, key := range keys {
		if a, ok := attrs[key]; ok && a.Value != "" {
			keyStrs = append(keyStrs, key.String())
			values = append(values, a.Value)
		}
	}
	if len(keyStrs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT a.cuid
		FROM identity_attributes a
		JOIN identities i ON i.cuid = a.cuid
		WHERE a.attr_key = ANY($1) AND a.value = ANY($2)
		  AND i.active AND i.merged_into IS NULL AND i.deleted_at IS NULL`,
		keyStrs, values,
	)
	if err != nil {
		return nil, fmt.Errorf("find duplicate candidates: %w", err)
	}
	defer rows.Close()

	var cuids []id.CUID
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan candidate cuid: %w", err)
		}
		cuids = append(cuids, id.CUID(c))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	out := make([]*models.Identity, 0, len(cuids))
	for _, c := range cuids {
		ident, err := s.FindByCUID(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, ident)
	}
	return out, nil
}

func (s *Postgres) SaveSnapshot(ctx context.Context, cuid id.CUID, attrs models.AttributeSet, takenAt time.Time) error {
	doc, err := json.Marshal(attrsToRows(cuid, attrs))
	if err != nil {
		return fmt.Errorf("encode merge snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO merge_snapshots (cuid, taken_at, attributes)
		VALUES ($1, $2, $3)
		ON CONFLICT (cuid) DO UPDATE SET taken_at = EXCLUDED.taken_at, attributes = EXCLUDED.attributes`,
		cuid.String(), takenAt, doc,
	)
	if err != nil {
		return fmt.Errorf("save merge snapshot: %w", err)
	}
	return nil
}

func (s *Postgres) LoadSnapshot(ctx context.Context, cuid id.CUID) (models.AttributeSet, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT attributes FROM merge_snapshots WHERE cuid = $1`, cuid.String(),
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load merge snapshot: %w", err)
	}

	var rows []attributeRow
	if err := json.Unmarshal(doc, &rows); err != nil {
		return nil, fmt.Errorf("decode merge snapshot: %w", err)
	}
	attrs := make(models.AttributeSet, len(rows))
	for _, r := range rows {
		attrs[id.AttrKey(r.Key)] = r.toAttribute()
	}
	return attrs, nil
}

func (s *Postgres) DeleteSnapshot(ctx context.Context, cuid id.CUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM merge_snapshots WHERE cuid = $1`, cuid.String()); err != nil {
		return fmt.Errorf("delete merge snapshot: %w", err)
	}
	return nil
}

type attributeRow struct {
	Key         string     `json:"key"`
	Value       string     `json:"value"`
	Author      string     `json:"author"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Processus   string     `json:"processus,omitempty"`
	CertifiedAt *time.Time `json:"certified_at,omitempty"`
	CertExpires *time.Time `json:"cert_expires,omitempty"`
	CertLevel   *int       `json:"cert_level,omitempty"`
}

func (r attributeRow) toAttribute() models.Attribute {
	a := models.Attribute{
		Value:     r.Value,
		Author:    id.ClientCode(r.Author),
		UpdatedAt: r.UpdatedAt,
	}
	if r.Processus != "" && r.CertifiedAt != nil && r.CertLevel != nil {
		a.Certification = &models.Certification{
			Processus:   id.ProcessusCode(r.Processus),
			CertifiedAt: *r.CertifiedAt,
			ExpiresAt:   r.CertExpires,
			Level:       *r.CertLevel,
		}
	}
	return a
}

func attrsToRows(_ id.CUID, attrs models.AttributeSet) []attributeRow {
	rows := make([]attributeRow, 0, len(attrs))
	for key, a := range attrs {
		row := attributeRow{
			Key:       key.String(),
			Value:     a.Value,
			Author:    a.Author.String(),
			UpdatedAt: a.UpdatedAt,
		}
		if cert := a.Certification; cert != nil {
			level := cert.Level
			certifiedAt := cert.CertifiedAt
			row.Processus = cert.Processus.String()
			row.CertifiedAt = &certifiedAt
			row.CertExpires = cert.ExpiresAt
			row.CertLevel = &level
		}
		rows = append(rows, row)
	}
	return rows
}

func writeAttributes(ctx context.Context, tx pgx.Tx, ident *models.Identity) error {
	for key, a := range ident.Attributes {
		var (
			processus   *string
			certifiedAt *time.Time
			certExpires *time.Time
			certLevel   *int
		)
		if cert := a.Certification; cert != nil {
			p := cert.Processus.String()
			at := cert.CertifiedAt
			level := cert.Level
			processus, certifiedAt, certExpires, certLevel = &p, &at, cert.ExpiresAt, &level
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO identity_attributes
				(cuid, attr_key, value, author, updated_at, cert_processus, cert_at, cert_expires, cert_level)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			ident.CUID.String(), key.String(), a.Value, a.Author.String(), a.UpdatedAt,
			processus, certifiedAt, certExpires, certLevel,
		)
		if err != nil {
			return fmt.Errorf("insert identity attribute: %w", err)
		}
	}
	return nil
}
