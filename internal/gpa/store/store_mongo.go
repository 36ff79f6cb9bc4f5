package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gpavault/internal/gpa/models"
	"gpavault/pkg/platform/sentinel"
	"gpavault/pkg/requestcontext"
)

// DefaultMongoCollection is the collection existing deployments write to.
const DefaultMongoCollection = "results"

// mongoRecord is the persisted document shape.
type mongoRecord struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	RegistrationNumber string             `bson:"registrationNumber"`
	Gpas               map[string]float64 `bson:"gpas"`
	CreatedAt          primitive.DateTime `bson:"createdAt,omitempty"`
	UpdatedAt          primitive.DateTime `bson:"updatedAt,omitempty"`
}

// MongoStore persists records in a MongoDB collection with a unique index on
// registrationNumber.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongo constructs a store over db.collection.
func NewMongo(client *mongo.Client, database, collection string) *MongoStore {
	if collection == "" {
		collection = DefaultMongoCollection
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}
}

// EnsureIndexes creates the unique index on registrationNumber.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "registrationNumber", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("registrationNumber_unique"),
	})
	if err != nil {
		return fmt.Errorf("create registrationNumber index: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, registrationNumber string) (*models.Record, error) {
	var doc mongoRecord
	err := s.collection.FindOne(ctx, bson.M{"registrationNumber": registrationNumber}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find gpa record: %w", err)
	}
	return doc.toModel(), nil
}

// MergeGpas sets each supplied semester as its own dotted path, so the
// update is a single atomic merge-patch on the server.
func (s *MongoStore) MergeGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	now := primitive.NewDateTimeFromTime(requestcontext.Now(ctx))
	set := bson.M{"updatedAt": now}
	for semester, gpa := range gpas {
		set["gpas."+semester] = gpa
	}
	setOnInsert := bson.M{"createdAt": now}
	if len(gpas) == 0 {
		setOnInsert["gpas"] = bson.M{}
	}
	return s.upsert(ctx, registrationNumber, bson.M{"$set": set, "$setOnInsert": setOnInsert})
}

func (s *MongoStore) ReplaceGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	now := primitive.NewDateTimeFromTime(requestcontext.Now(ctx))
	if gpas == nil {
		gpas = map[string]float64{}
	}
	return s.upsert(ctx, registrationNumber, bson.M{
		"$set":         bson.M{"gpas": gpas, "updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	})
}

func (s *MongoStore) upsert(ctx context.Context, registrationNumber string, update bson.M) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"registrationNumber": registrationNumber},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("upsert gpa record: %w", errors.Join(sentinel.ErrConflict, err))
		}
		return fmt.Errorf("upsert gpa record: %w", err)
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (d *mongoRecord) toModel() *models.Record {
	gpas := d.Gpas
	if gpas == nil {
		gpas = map[string]float64{}
	}
	r := &models.Record{
		RegistrationNumber: d.RegistrationNumber,
		Gpas:               gpas,
	}
	if d.CreatedAt != 0 {
		r.CreatedAt = d.CreatedAt.Time().UTC()
	}
	if d.UpdatedAt != 0 {
		r.UpdatedAt = d.UpdatedAt.Time().UTC()
	}
	return r
}
