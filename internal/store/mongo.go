package store

import (
	"context"
	"time"

	"github.com/docsense/docsense/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo initializes the database connection and verifies it with a
// ping.
func ConnectMongo(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client.Database(dbName), nil
}

// MongoStores bundles the collection-backed store implementations.
type MongoStores struct {
	Users     *MongoUserStore
	Roles     *MongoRoleStore
	Documents *MongoDocumentStore
	Requests  *MongoRequestStore
}

// NewMongoStores wires the stores over db.
func NewMongoStores(db *mongo.Database) *MongoStores {
	return &MongoStores{
		Users:     &MongoUserStore{col: db.Collection("users")},
		Roles:     &MongoRoleStore{col: db.Collection("roles")},
		Documents: &MongoDocumentStore{col: db.Collection("documents")},
		Requests:  &MongoRequestStore{col: db.Collection("download_requests")},
	}
}

// EnsureIndexes creates the indexes the invariants depend on. The partial
// unique index on download_requests is what makes concurrent createRequest
// calls yield exactly one winner, and the sparse unique token index is the
// authority on token uniqueness. Requires MongoDB 5.0+ for $in inside
// partialFilterExpression.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection("roles").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = db.Collection("documents").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "object_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "uploaded_by", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection("download_requests").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "document", Value: 1}, {Key: "requested_by", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{
				"status": bson.M{"$in": bson.A{models.RequestPending, models.RequestApproved}},
			}),
		},
		{
			Keys:    bson.D{{Key: "download_token", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}
