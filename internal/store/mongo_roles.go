package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/docsense/docsense/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRoleStore struct {
	col *mongo.Collection
}

func (s *MongoRoleStore) Insert(ctx context.Context, r *models.Role) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, r)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoRoleStore) ByID(ctx context.Context, id primitive.ObjectID) (*models.Role, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// ByName matches case-insensitively; role names are stored uppercase but
// callers may pass any casing.
func (s *MongoRoleStore) ByName(ctx context.Context, name string) (*models.Role, error) {
	pattern := "^" + regexp.QuoteMeta(name) + "$"
	return s.findOne(ctx, bson.M{"name": primitive.Regex{Pattern: pattern, Options: "i"}})
}

func (s *MongoRoleStore) findOne(ctx context.Context, filter bson.M) (*models.Role, error) {
	var r models.Role
	err := s.col.FindOne(ctx, filter).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoRoleStore) Update(ctx context.Context, r *models.Role) error {
	r.UpdatedAt = time.Now().UTC()
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": r.ID}, r)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoRoleStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoRoleStore) All(ctx context.Context) ([]models.Role, error) {
	return s.findMany(ctx, bson.M{})
}

func (s *MongoRoleStore) Active(ctx context.Context) ([]models.Role, error) {
	return s.findMany(ctx, bson.M{"is_active": true})
}

func (s *MongoRoleStore) findMany(ctx context.Context, filter bson.M) ([]models.Role, error) {
	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "display_name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var roles []models.Role
	if err := cursor.All(ctx, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}
