package refdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"civreg/internal/certification"
	"civreg/internal/duplicate"
	identity "civreg/internal/identity/models"
	"civreg/internal/pivot"
	id "civreg/pkg/domain"
)

// Postgres loads reference data from the configuration schema. Rows are
// administered out of band; the engine only reads.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) LoadLevels(ctx context.Context) ([]certification.ProcessusLevel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT processus, attr_key, level FROM certification_levels`)
	if err != nil {
		return nil, fmt.Errorf("load certification levels: %w", err)
	}
	defer rows.Close()

	var levels []certification.ProcessusLevel
	for rows.Next() {
		var (
			processus, key string
			level          int
		)
		if err := rows.Scan(&processus, &key, &level); err != nil {
			return nil, fmt.Errorf("scan certification level: %w", err)
		}
		levels = append(levels, certification.ProcessusLevel{
			Processus: id.ProcessusCode(processus),
			Key:       id.AttrKey(key),
			Level:     level,
		})
	}
	return levels, rows.Err()
}

func (s *Postgres) LoadKeyDefinitions(ctx context.Context) ([]identity.KeyDefinition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT attr_key, kind, pivot, certifiable, mandatory_on_create, pattern, enum_values, weight
		FROM attribute_keys`)
	if err != nil {
		return nil, fmt.Errorf("load attribute keys: %w", err)
	}
	defer rows.Close()

	var defs []identity.KeyDefinition
	for rows.Next() {
		var (
			key, kind string
			def       identity.KeyDefinition
			enum      []string
		)
		err := rows.Scan(&key, &kind, &def.Pivot, &def.Certifiable,
			&def.MandatoryOnCreate, &def.Pattern, &enum, &def.Weight)
		if err != nil {
			return nil, fmt.Errorf("scan attribute key: %w", err)
		}
		def.Key = id.AttrKey(key)
		def.Kind = identity.SemanticKind(kind)
		def.Enum = enum
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *Postgres) LoadRules(ctx context.Context) ([]duplicate.Rule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, priority, kind, min_matches, attr_keys
		FROM duplicate_rules ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load duplicate rules: %w", err)
	}
	defer rows.Close()

	var rules []duplicate.Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.Priority, &rule.Kind, &rule.MinMatches, &rule.Keys); err != nil {
			return nil, fmt.Errorf("scan duplicate rule: %w", err)
		}
		rules = append(rules, rule.toDomain())
	}
	return rules, rows.Err()
}

// Rule is the row shape of one duplicate rule.
type Rule struct {
	ID         string
	Priority   int
	Kind       string
	MinMatches int
	Keys       []string
}

func (r Rule) toDomain() duplicate.Rule {
	keys := make([]id.AttrKey, len(r.Keys))
	for i, k := range r.Keys {
		keys[i] = id.AttrKey(k)
	}
	return duplicate.Rule{
		ID:         r.ID,
		Priority:   r.Priority,
		Keys:       keys,
		Kind:       duplicate.MatchKind(r.Kind),
		MinMatches: r.MinMatches,
	}
}

func (s *Postgres) LoadPivotGroup(ctx context.Context) (pivot.Group, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT attr_key FROM pivot_group_keys ORDER BY position ASC`)
	if err != nil {
		return pivot.Group{}, fmt.Errorf("load pivot group: %w", err)
	}
	defer rows.Close()

	var group pivot.Group
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return pivot.Group{}, fmt.Errorf("scan pivot key: %w", err)
		}
		group.Keys = append(group.Keys, id.AttrKey(key))
	}
	if err := rows.Err(); err != nil {
		return pivot.Group{}, err
	}

	var (
		placeKey, countryKey string
		domestic             []string
	)
	err = s.pool.QueryRow(ctx, `
		SELECT place_key, country_key, domestic_codes
		FROM pivot_place_exemption LIMIT 1`,
	).Scan(&placeKey, &countryKey, &domestic)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// No exemption configured; the group minimum applies to every key.
	case err != nil:
		return pivot.Group{}, fmt.Errorf("load pivot exemption: %w", err)
	default:
		group.PlaceExemption = &pivot.PlaceExemption{
			PlaceKey:      id.AttrKey(placeKey),
			CountryKey:    id.AttrKey(countryKey),
			DomesticCodes: domestic,
		}
	}
	return group, nil
}
