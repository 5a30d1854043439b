package store

import (
	"context"
	"errors"
	"time"

	"github.com/docsense/docsense/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRequestStore struct {
	col *mongo.Collection
}

// Insert relies on the partial unique index over (document, requested_by)
// filtered to active statuses: the losing side of a concurrent create gets a
// duplicate-key error, never a second active row.
func (s *MongoRequestStore) Insert(ctx context.Context, r *models.DownloadRequest) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, r)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateActive
	}
	return err
}

func (s *MongoRequestStore) ByID(ctx context.Context, id primitive.ObjectID) (*models.DownloadRequest, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoRequestStore) ByToken(ctx context.Context, token string) (*models.DownloadRequest, error) {
	return s.findOne(ctx, bson.M{"download_token": token})
}

func (s *MongoRequestStore) findOne(ctx context.Context, filter bson.M) (*models.DownloadRequest, error) {
	var r models.DownloadRequest
	err := s.col.FindOne(ctx, filter).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoRequestStore) Latest(ctx context.Context, docID, userID primitive.ObjectID) (*models.DownloadRequest, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var r models.DownloadRequest
	err := s.col.FindOne(ctx, bson.M{"document": docID, "requested_by": userID}, opts).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoRequestStore) Find(ctx context.Context, q RequestQuery) ([]models.DownloadRequest, int64, error) {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = q.Status
	}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var requests []models.DownloadRequest
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// Approve performs the pending->approved transition as one conditional
// FindOneAndUpdate: when two admins race, exactly one matches the pending
// filter and the other observes ErrNotPending.
func (s *MongoRequestStore) Approve(ctx context.Context, id primitive.ObjectID, p ApproveParams) (*models.DownloadRequest, error) {
	filter := bson.M{"_id": id, "status": models.RequestPending}
	update := bson.M{"$set": bson.M{
		"status":           models.RequestApproved,
		"approved_by":      p.AdminID,
		"approved_at":      p.ApprovedAt,
		"max_downloads":    p.MaxDownloads,
		"download_token":   p.Token,
		"token_expires_at": p.TokenExpiresAt,
		"updated_at":       p.ApprovedAt,
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var r models.DownloadRequest
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&r)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicateToken
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.classifyNotPending(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoRequestStore) Reject(ctx context.Context, id primitive.ObjectID, reason string, rejectedAt time.Time) (*models.DownloadRequest, error) {
	filter := bson.M{"_id": id, "status": models.RequestPending}
	update := bson.M{"$set": bson.M{
		"status":           models.RequestRejected,
		"rejected_at":      rejectedAt,
		"rejection_reason": reason,
		"updated_at":       rejectedAt,
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var r models.DownloadRequest
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.classifyNotPending(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoRequestStore) classifyNotPending(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.ByID(ctx, id); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return ErrNotPending
}

// Consume is the read-validate-increment-maybe-expire sequence as a single
// conditional update: only an approved, unexpired, under-limit row matches,
// so two racing downloads of a maxDownloads=1 token cannot both succeed. The
// follow-up status flip is conditioned on the exhausted count, making it
// idempotent under races.
func (s *MongoRequestStore) Consume(ctx context.Context, token string, now time.Time) (*models.DownloadRequest, error) {
	filter := bson.M{
		"download_token": token,
		"status":         models.RequestApproved,
		"$expr":          bson.M{"$lt": bson.A{"$download_count", "$max_downloads"}},
		"$or": bson.A{
			bson.M{"token_expires_at": bson.M{"$exists": false}},
			bson.M{"token_expires_at": nil},
			bson.M{"token_expires_at": bson.M{"$gte": now}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"download_count": 1},
		"$set": bson.M{"downloaded_at": now, "updated_at": now},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var r models.DownloadRequest
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotConsumable
	}
	if err != nil {
		return nil, err
	}

	if r.Exhausted() {
		_, err = s.col.UpdateOne(ctx,
			bson.M{
				"_id":    r.ID,
				"status": models.RequestApproved,
				"$expr":  bson.M{"$gte": bson.A{"$download_count", "$max_downloads"}},
			},
			bson.M{"$set": bson.M{"status": models.RequestExpired, "updated_at": now}},
		)
		if err != nil {
			return nil, err
		}
		r.Status = models.RequestExpired
	}
	return &r, nil
}

func (s *MongoRequestStore) DeleteForDocument(ctx context.Context, docID primitive.ObjectID) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"document": docID})
	return err
}
