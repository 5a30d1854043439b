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

type MongoDocumentStore struct {
	col *mongo.Collection
}

func (s *MongoDocumentStore) Insert(ctx context.Context, d *models.Document) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoDocumentStore) ByID(ctx context.Context, id primitive.ObjectID) (*models.Document, error) {
	var d models.Document
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *MongoDocumentStore) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	count, err := s.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	return count > 0, err
}

func buildDocumentFilter(q DocumentQuery) bson.M {
	filter := bson.M{}
	if q.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"content": pattern},
			bson.M{"tags": pattern},
		}
	}
	if q.FileType != "" {
		filter["file_type"] = q.FileType
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Owner != nil {
		visibility := bson.A{
			bson.M{"uploaded_by": *q.Owner},
			bson.M{"is_public": true},
		}
		if existing, ok := filter["$or"]; ok {
			// Both a search clause and a visibility clause are present; they
			// must hold together.
			filter = bson.M{"$and": bson.A{
				bson.M{"$or": existing},
				bson.M{"$or": visibility},
			}}
			if q.FileType != "" {
				filter["file_type"] = q.FileType
			}
			if q.Status != "" {
				filter["status"] = q.Status
			}
		} else {
			filter["$or"] = visibility
		}
	}
	return filter
}

func (s *MongoDocumentStore) Find(ctx context.Context, q DocumentQuery) ([]models.Document, int64, error) {
	filter := buildDocumentFilter(q)

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	order := 1
	if q.SortDesc {
		order = -1
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortBy, Value: order}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (s *MongoDocumentStore) Stats(ctx context.Context, owner *primitive.ObjectID) (DocumentStats, error) {
	match := bson.M{}
	if owner != nil {
		match["$or"] = bson.A{
			bson.M{"uploaded_by": *owner},
			bson.M{"is_public": true},
		}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":            nil,
			"totalDocuments": bson.M{"$sum": 1},
			"totalSize":      bson.M{"$sum": "$file_size"},
			"fileTypes":      bson.M{"$addToSet": "$file_type"},
		}}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return DocumentStats{}, err
	}
	defer cursor.Close(ctx)

	var results []DocumentStats
	if err := cursor.All(ctx, &results); err != nil {
		return DocumentStats{}, err
	}
	if len(results) == 0 {
		return DocumentStats{FileTypes: []string{}}, nil
	}
	return results[0], nil
}

func (s *MongoDocumentStore) ByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.col.Find(ctx, bson.M{"uploaded_by": owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *MongoDocumentStore) TouchLastAccessed(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"last_accessed": now, "updated_at": now},
	})
	return err
}

func (s *MongoDocumentStore) IncrementDownloadCount(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{"download_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

func (s *MongoDocumentStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
