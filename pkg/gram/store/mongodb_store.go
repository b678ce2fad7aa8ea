package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/eqiiyao/gramclass/pkg/gram/model"
)

// MongoStore implements SectionStore over two collections: sections and
// memberships.
type MongoStore struct {
	client      *mongo.Client
	sections    *mongo.Collection
	memberships *mongo.Collection
}

const mongoCloseTimeout = 5 * time.Second

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(database)
	return &MongoStore{
		client:      client,
		sections:    db.Collection("sections"),
		memberships: db.Collection("memberships"),
	}, nil
}

func sectionFilter(ent model.Entity, basis model.Basis) bson.M {
	return bson.M{"entity": ent.Name, "kind": int32(ent.Kind), "basis": string(basis)}
}

func (ms *MongoStore) Count(ctx context.Context, ent model.Entity, basis model.Basis) (float64, error) {
	if ms == nil || ms.sections == nil {
		return 0, nil
	}
	var doc struct {
		Count float64 `bson:"count"`
	}
	err := ms.sections.FindOne(ctx, sectionFilter(ent, basis)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.Count, nil
}

func (ms *MongoStore) SetCount(ctx context.Context, ent model.Entity, basis model.Basis, count float64) error {
	if ms == nil || ms.sections == nil {
		return nil
	}
	if count <= 0 {
		_, err := ms.sections.DeleteOne(ctx, sectionFilter(ent, basis))
		return err
	}
	_, err := ms.sections.UpdateOne(ctx, sectionFilter(ent, basis),
		bson.M{"$set": bson.M{"count": count}},
		options.Update().SetUpsert(true))
	return err
}

func (ms *MongoStore) RightStars(ctx context.Context, ent model.Entity) ([]model.Section, error) {
	if ms == nil || ms.sections == nil {
		return nil, nil
	}
	cursor, err := ms.sections.Find(ctx,
		bson.M{"entity": ent.Name, "kind": int32(ent.Kind)},
		options.Find().SetSort(bson.D{{Key: "basis", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var secs []model.Section
	for cursor.Next(ctx) {
		var doc struct {
			Basis string  `bson:"basis"`
			Count float64 `bson:"count"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		secs = append(secs, model.Section{Entity: ent, Basis: model.Basis(doc.Basis), Count: doc.Count})
	}
	return secs, cursor.Err()
}

func (ms *MongoStore) PairedRightStars(ctx context.Context, left, right model.Entity) ([]model.SectionPair, error) {
	ls, err := ms.RightStars(ctx, left)
	if err != nil {
		return nil, err
	}
	rs, err := ms.RightStars(ctx, right)
	if err != nil {
		return nil, err
	}
	return pairSections(ls, rs), nil
}

func (ms *MongoStore) RightWildcard(ctx context.Context, ent model.Entity) (model.Wildcard, error) {
	wc := model.Wildcard{Entity: ent}
	if ms == nil || ms.sections == nil {
		return wc, nil
	}
	cursor, err := ms.sections.Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"entity": ent.Name, "kind": int32(ent.Kind)}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"total":   bson.M{"$sum": "$count"},
			"support": bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return wc, err
	}
	defer cursor.Close(ctx)
	if cursor.Next(ctx) {
		var doc struct {
			Total   float64 `bson:"total"`
			Support int     `bson:"support"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return wc, err
		}
		wc.Total = doc.Total
		wc.Support = doc.Support
	}
	return wc, cursor.Err()
}

func (ms *MongoStore) StoreMembership(ctx context.Context, word, class model.Entity) error {
	if ms == nil || ms.memberships == nil {
		return nil
	}
	filter := bson.M{"word": word.Name, "class": class.Name}
	_, err := ms.memberships.UpdateOne(ctx, filter,
		bson.M{"$setOnInsert": filter},
		options.Update().SetUpsert(true))
	return err
}

func (ms *MongoStore) Memberships(ctx context.Context, class model.Entity) ([]model.Entity, error) {
	return ms.membershipColumn(ctx, bson.M{"class": class.Name}, "word", model.KindWord)
}

func (ms *MongoStore) MemberOf(ctx context.Context, word model.Entity) ([]model.Entity, error) {
	return ms.membershipColumn(ctx, bson.M{"word": word.Name}, "class", model.KindClass)
}

func (ms *MongoStore) membershipColumn(ctx context.Context, filter bson.M, field string, kind model.Kind) ([]model.Entity, error) {
	if ms == nil || ms.memberships == nil {
		return nil, nil
	}
	cursor, err := ms.memberships.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: field, Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var ents []model.Entity
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		if name, ok := doc[field].(string); ok {
			ents = append(ents, model.Entity{Name: name, Kind: kind})
		}
	}
	return ents, cursor.Err()
}

func (ms *MongoStore) Words(ctx context.Context) ([]model.Entity, error) {
	if ms == nil || ms.sections == nil {
		return nil, nil
	}
	names, err := ms.sections.Distinct(ctx, "entity", bson.M{"kind": int32(model.KindWord)})
	if err != nil {
		return nil, err
	}
	ents := make([]model.Entity, 0, len(names))
	for _, n := range names {
		if name, ok := n.(string); ok {
			ents = append(ents, model.Word(name))
		}
	}
	return ents, nil
}

func (ms *MongoStore) Classes(ctx context.Context) ([]model.Entity, error) {
	if ms == nil || ms.memberships == nil {
		return nil, nil
	}
	names, err := ms.memberships.Distinct(ctx, "class", bson.M{})
	if err != nil {
		return nil, err
	}
	ents := make([]model.Entity, 0, len(names))
	for _, n := range names {
		if name, ok := n.(string); ok {
			ents = append(ents, model.Class(name))
		}
	}
	return ents, nil
}

// Close disconnects the underlying Mongo client.
func (ms *MongoStore) Close() error {
	if ms == nil || ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

var _ SectionStore = (*MongoStore)(nil)
