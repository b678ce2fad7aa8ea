// Package gramclass discovers latent grammatical classes from
// co-occurrence statistics. Words are sparse non-negative vectors over
// disjunct bases; the engine compares them by cosine similarity and
// agglomerates similar words into class entities, reprojecting the
// constituents so they stay orthogonal to the class they joined.
package gramclass

import (
	"github.com/eqiiyao/gramclass/pkg/cache"
	gramengine "github.com/eqiiyao/gramclass/pkg/gram/engine"
	"github.com/eqiiyao/gramclass/pkg/gram/merge"
	"github.com/eqiiyao/gramclass/pkg/gram/model"
	"github.com/eqiiyao/gramclass/pkg/gram/rank"
	"github.com/eqiiyao/gramclass/pkg/gram/similar"
	storepkg "github.com/eqiiyao/gramclass/pkg/gram/store"
)

// Type aliases preserving one import path for the public API.
type (
	Engine          = gramengine.Engine
	Options         = gramengine.Options
	Strategy        = gramengine.Strategy
	Metrics         = gramengine.Metrics
	MetricsSnapshot = gramengine.MetricsSnapshot

	Entity      = model.Entity
	Kind        = model.Kind
	Basis       = model.Basis
	Section     = model.Section
	SectionPair = model.SectionPair
	Wildcard    = model.Wildcard

	SectionStore      = storepkg.SectionStore
	SchemaInitializer = storepkg.SchemaInitializer
	InMemoryStore     = storepkg.InMemoryStore
	PostgresStore     = storepkg.PostgresStore
	MongoStore        = storepkg.MongoStore
	Neo4jStore        = storepkg.Neo4jStore

	SupportIndex = rank.Index
	Oracle       = similar.Oracle
	MergeResult  = merge.Result

	LRUCache = cache.LRUCache
)

const (
	KindWord  = model.KindWord
	KindClass = model.KindClass

	StrategyBlock      = gramengine.StrategyBlock
	StrategySingletons = gramengine.StrategySingletons
)

var (
	New            = gramengine.New
	DefaultOptions = gramengine.DefaultOptions

	Word    = model.Word
	Class   = model.Class
	ClassOf = model.ClassOf
	Cosine  = model.Cosine

	NewInMemoryStore = storepkg.NewInMemoryStore
	NewPostgresStore = storepkg.NewPostgresStore
	NewMongoStore    = storepkg.NewMongoStore
	NewNeo4jStore    = storepkg.NewNeo4jStore

	NewIndex    = rank.NewIndex
	NewOracle   = similar.NewOracle
	NewLRUCache = cache.NewLRUCache

	MergeOrtho    = merge.Ortho
	MergeSemantic = merge.Semantic

	ErrSelfMerge        = merge.ErrSelfMerge
	ErrClassConstituent = merge.ErrClassConstituent
)
