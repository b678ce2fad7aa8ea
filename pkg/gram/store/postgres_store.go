package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eqiiyao/gramclass/pkg/gram/model"
)

// PostgresStore implements SectionStore on top of Postgres. Sections live
// in one table keyed by (entity, kind, basis); memberships in another.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and returns a Postgres-backed
// SectionStore implementation.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

func (ps *PostgresStore) Count(ctx context.Context, ent model.Entity, basis model.Basis) (float64, error) {
	if ps == nil || ps.DB == nil {
		return 0, nil
	}
	var count float64
	err := ps.DB.QueryRow(ctx, `
                SELECT count FROM gram_sections
                WHERE entity = $1 AND kind = $2 AND basis = $3
        `, ent.Name, int16(ent.Kind), string(basis)).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

func (ps *PostgresStore) SetCount(ctx context.Context, ent model.Entity, basis model.Basis, count float64) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	if count <= 0 {
		_, err := ps.DB.Exec(ctx, `
                        DELETE FROM gram_sections
                        WHERE entity = $1 AND kind = $2 AND basis = $3
                `, ent.Name, int16(ent.Kind), string(basis))
		return err
	}
	_, err := ps.DB.Exec(ctx, `
                INSERT INTO gram_sections (entity, kind, basis, count)
                VALUES ($1, $2, $3, $4)
                ON CONFLICT (entity, kind, basis) DO UPDATE SET count = EXCLUDED.count
        `, ent.Name, int16(ent.Kind), string(basis), count)
	return err
}

func (ps *PostgresStore) RightStars(ctx context.Context, ent model.Entity) ([]model.Section, error) {
	if ps == nil || ps.DB == nil {
		return nil, nil
	}
	rows, err := ps.DB.Query(ctx, `
                SELECT basis, count FROM gram_sections
                WHERE entity = $1 AND kind = $2
                ORDER BY basis
        `, ent.Name, int16(ent.Kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var secs []model.Section
	for rows.Next() {
		var basis string
		var count float64
		if err := rows.Scan(&basis, &count); err != nil {
			return nil, err
		}
		secs = append(secs, model.Section{Entity: ent, Basis: model.Basis(basis), Count: count})
	}
	return secs, rows.Err()
}

// PairedRightStars pushes the union co-iteration into SQL with a full
// outer join over the two supports.
func (ps *PostgresStore) PairedRightStars(ctx context.Context, left, right model.Entity) ([]model.SectionPair, error) {
	if ps == nil || ps.DB == nil {
		return nil, nil
	}
	rows, err := ps.DB.Query(ctx, `
                SELECT COALESCE(l.basis, r.basis) AS basis, l.count, r.count
                FROM (SELECT basis, count FROM gram_sections WHERE entity = $1 AND kind = $2) l
                FULL OUTER JOIN
                     (SELECT basis, count FROM gram_sections WHERE entity = $3 AND kind = $4) r
                ON l.basis = r.basis
                ORDER BY 1
        `, left.Name, int16(left.Kind), right.Name, int16(right.Kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pairs []model.SectionPair
	for rows.Next() {
		var basis string
		var lc, rc *float64
		if err := rows.Scan(&basis, &lc, &rc); err != nil {
			return nil, err
		}
		var pair model.SectionPair
		if lc != nil {
			pair.Left = &model.Section{Entity: left, Basis: model.Basis(basis), Count: *lc}
		}
		if rc != nil {
			pair.Right = &model.Section{Entity: right, Basis: model.Basis(basis), Count: *rc}
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}

func (ps *PostgresStore) RightWildcard(ctx context.Context, ent model.Entity) (model.Wildcard, error) {
	wc := model.Wildcard{Entity: ent}
	if ps == nil || ps.DB == nil {
		return wc, nil
	}
	err := ps.DB.QueryRow(ctx, `
                SELECT COALESCE(SUM(count), 0), COUNT(*) FROM gram_sections
                WHERE entity = $1 AND kind = $2
        `, ent.Name, int16(ent.Kind)).Scan(&wc.Total, &wc.Support)
	return wc, err
}

func (ps *PostgresStore) StoreMembership(ctx context.Context, word, class model.Entity) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	_, err := ps.DB.Exec(ctx, `
                INSERT INTO gram_memberships (word, class)
                VALUES ($1, $2)
                ON CONFLICT (word, class) DO NOTHING
        `, word.Name, class.Name)
	return err
}

func (ps *PostgresStore) Memberships(ctx context.Context, class model.Entity) ([]model.Entity, error) {
	return ps.entityColumn(ctx, `
                SELECT word FROM gram_memberships WHERE class = $1 ORDER BY word
        `, model.KindWord, class.Name)
}

func (ps *PostgresStore) MemberOf(ctx context.Context, word model.Entity) ([]model.Entity, error) {
	return ps.entityColumn(ctx, `
                SELECT class FROM gram_memberships WHERE word = $1 ORDER BY class
        `, model.KindClass, word.Name)
}

func (ps *PostgresStore) Words(ctx context.Context) ([]model.Entity, error) {
	return ps.entityColumn(ctx, `
                SELECT DISTINCT entity FROM gram_sections WHERE kind = $1 ORDER BY entity
        `, model.KindWord, int16(model.KindWord))
}

func (ps *PostgresStore) Classes(ctx context.Context) ([]model.Entity, error) {
	return ps.entityColumn(ctx, `
                SELECT DISTINCT class FROM gram_memberships ORDER BY class
        `, model.KindClass)
}

func (ps *PostgresStore) entityColumn(ctx context.Context, query string, kind model.Kind, args ...any) ([]model.Entity, error) {
	if ps == nil || ps.DB == nil {
		return nil, nil
	}
	rows, err := ps.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ents []model.Entity
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		ents = append(ents, model.Entity{Name: name, Kind: kind})
	}
	return ents, rows.Err()
}

// CreateSchema ensures the section and membership tables are available.
func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	if _, err := ps.DB.Exec(ctx, defaultPostgresSchema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close releases the underlying Postgres connection pool.
func (ps *PostgresStore) Close() error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	ps.DB.Close()
	return nil
}

var (
	_ SectionStore      = (*PostgresStore)(nil)
	_ SchemaInitializer = (*PostgresStore)(nil)
)

const defaultPostgresSchema = `
CREATE TABLE IF NOT EXISTS gram_sections (
    entity TEXT NOT NULL,
    kind SMALLINT NOT NULL,
    basis TEXT NOT NULL,
    count DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (entity, kind, basis)
);

CREATE INDEX IF NOT EXISTS gram_sections_entity_idx ON gram_sections (entity, kind);

CREATE TABLE IF NOT EXISTS gram_memberships (
    word TEXT NOT NULL,
    class TEXT NOT NULL,
    PRIMARY KEY (word, class)
);

CREATE INDEX IF NOT EXISTS gram_memberships_class_idx ON gram_memberships (class);
`
