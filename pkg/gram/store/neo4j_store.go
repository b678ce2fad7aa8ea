package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eqiiyao/gramclass/pkg/gram/model"
)

// Neo4jAccessMode controls whether a session is opened for read or write
// operations.
type Neo4jAccessMode string

const (
	// AccessModeWrite opens a session with write access.
	AccessModeWrite Neo4jAccessMode = "write"
	// AccessModeRead opens a session with read access.
	AccessModeRead Neo4jAccessMode = "read"
)

// Neo4jSessionConfig mirrors the minimal subset of Neo4j session
// configuration we require.
type Neo4jSessionConfig struct {
	AccessMode   Neo4jAccessMode
	DatabaseName string
}

// neo4jDriver abstracts the Neo4j driver capabilities used by the store.
// This allows tests to provide lightweight fakes without depending on the
// real driver package (which is guarded behind an optional build tag).
type neo4jDriver interface {
	NewSession(ctx context.Context, config Neo4jSessionConfig) (neo4jSession, error)
	Close(ctx context.Context) error
}

type neo4jSession interface {
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Close(ctx context.Context) error
}

type neo4jResult interface {
	Next(ctx context.Context) bool
	Record() neo4jRecord
	Err() error
	Close(ctx context.Context) error
}

type neo4jRecord interface {
	Get(key string) (any, bool)
}

// Neo4jStore composes an existing SectionStore with a Neo4j-backed
// membership graph. Section counts remain delegated to the base store,
// while word-to-class membership links are persisted as relationships.
type Neo4jStore struct {
	base     SectionStore
	driver   neo4jDriver
	database string
	nowFn    func() time.Time
}

var _ SectionStore = (*Neo4jStore)(nil)

// ErrNeo4jUnavailable is returned when graph operations are attempted
// without a configured driver.
var ErrNeo4jUnavailable = errors.New("neo4j driver not configured")

// NewNeo4jStore constructs a store that delegates section operations to
// base and uses the provided Neo4j driver for membership persistence.
func NewNeo4jStore(base SectionStore, driver neo4jDriver, database string) (*Neo4jStore, error) {
	if base == nil {
		return nil, errors.New("base section store is nil")
	}
	if driver == nil {
		return nil, errors.New("neo4j driver is nil")
	}
	return &Neo4jStore{base: base, driver: driver, database: database, nowFn: time.Now}, nil
}

func (s *Neo4jStore) now() time.Time {
	if s.nowFn != nil {
		return s.nowFn()
	}
	return time.Now()
}

// Count forwards the call to the underlying section store.
func (s *Neo4jStore) Count(ctx context.Context, ent model.Entity, basis model.Basis) (float64, error) {
	return s.base.Count(ctx, ent, basis)
}

// SetCount forwards the call to the underlying section store.
func (s *Neo4jStore) SetCount(ctx context.Context, ent model.Entity, basis model.Basis, count float64) error {
	return s.base.SetCount(ctx, ent, basis, count)
}

// RightStars forwards the call to the underlying section store.
func (s *Neo4jStore) RightStars(ctx context.Context, ent model.Entity) ([]model.Section, error) {
	return s.base.RightStars(ctx, ent)
}

// PairedRightStars forwards the call to the underlying section store.
func (s *Neo4jStore) PairedRightStars(ctx context.Context, left, right model.Entity) ([]model.SectionPair, error) {
	return s.base.PairedRightStars(ctx, left, right)
}

// RightWildcard forwards the call to the underlying section store.
func (s *Neo4jStore) RightWildcard(ctx context.Context, ent model.Entity) (model.Wildcard, error) {
	return s.base.RightWildcard(ctx, ent)
}

// Words forwards the call to the underlying section store.
func (s *Neo4jStore) Words(ctx context.Context) ([]model.Entity, error) {
	return s.base.Words(ctx)
}

// StoreMembership persists the link both in the base store and as a
// MEMBER_OF relationship in the graph.
func (s *Neo4jStore) StoreMembership(ctx context.Context, word, class model.Entity) error {
	if err := s.base.StoreMembership(ctx, word, class); err != nil {
		return err
	}
	if s.driver == nil {
		return ErrNeo4jUnavailable
	}
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	res, err := session.Run(ctx, `
                MERGE (w:Word {name: $word})
                MERGE (c:Class {name: $class})
                MERGE (w)-[r:MEMBER_OF]->(c)
                ON CREATE SET r.created_at = $created_at
        `, map[string]any{
		"word":       word.Name,
		"class":      class.Name,
		"created_at": s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("neo4j upsert membership: %w", err)
	}
	if res != nil {
		_ = res.Close(ctx)
	}
	return nil
}

// Memberships lists member words from the graph.
func (s *Neo4jStore) Memberships(ctx context.Context, class model.Entity) ([]model.Entity, error) {
	return s.nameColumn(ctx, `
                MATCH (w:Word)-[:MEMBER_OF]->(c:Class {name: $name})
                RETURN w.name AS name ORDER BY name
        `, class.Name, model.KindWord)
}

// MemberOf lists the classes a word belongs to from the graph.
func (s *Neo4jStore) MemberOf(ctx context.Context, word model.Entity) ([]model.Entity, error) {
	return s.nameColumn(ctx, `
                MATCH (w:Word {name: $name})-[:MEMBER_OF]->(c:Class)
                RETURN c.name AS name ORDER BY name
        `, word.Name, model.KindClass)
}

// Classes lists every class node with at least one member.
func (s *Neo4jStore) Classes(ctx context.Context) ([]model.Entity, error) {
	return s.nameColumn(ctx, `
                MATCH (:Word)-[:MEMBER_OF]->(c:Class)
                RETURN DISTINCT c.name AS name ORDER BY name
        `, "", model.KindClass)
}

func (s *Neo4jStore) nameColumn(ctx context.Context, query, name string, kind model.Kind) ([]model.Entity, error) {
	if s.driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeRead, DatabaseName: s.database})
	if err != nil {
		return nil, fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	params := map[string]any{}
	if name != "" {
		params["name"] = name
	}
	res, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("neo4j query: %w", err)
	}
	defer res.Close(ctx)
	var ents []model.Entity
	for res.Next(ctx) {
		rec := res.Record()
		if rec == nil {
			continue
		}
		if val, ok := rec.Get("name"); ok {
			if str, ok := val.(string); ok {
				ents = append(ents, model.Entity{Name: str, Kind: kind})
			}
		}
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return ents, nil
}

// CreateSchema delegates to the base store if it exposes
// SchemaInitializer and ensures the graph constraints are present.
func (s *Neo4jStore) CreateSchema(ctx context.Context) error {
	if initializer, ok := s.base.(SchemaInitializer); ok {
		if err := initializer.CreateSchema(ctx); err != nil {
			return err
		}
	}
	if s.driver == nil {
		return nil
	}
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	queries := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (w:Word) REQUIRE w.name IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (c:Class) REQUIRE c.name IS UNIQUE",
	}
	for _, query := range queries {
		res, runErr := session.Run(ctx, query, nil)
		if runErr != nil {
			return fmt.Errorf("neo4j schema query: %w", runErr)
		}
		if res != nil {
			_ = res.Close(ctx)
		}
	}
	return nil
}

// Close releases both the base store (when it implements Close) and the
// Neo4j driver.
func (s *Neo4jStore) Close() error {
	var errs []string
	if closer, ok := s.base.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if s.driver != nil {
		if err := s.driver.Close(context.Background()); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
