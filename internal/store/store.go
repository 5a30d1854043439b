// Package store defines the persistence contracts for users, roles, documents
// and the download-request ledger, with MongoDB-backed and in-memory
// implementations. The ledger's state transitions are expressed as conditional
// updates so that concurrent callers race inside the store, never in service
// code.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/docsense/docsense/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")

	// ErrDuplicateActive signals an existing pending or approved request for
	// the same (document, requester) pair.
	ErrDuplicateActive = errors.New("store: active request already exists")

	// ErrDuplicateToken signals a download-token collision on approval.
	ErrDuplicateToken = errors.New("store: download token already in use")

	// ErrNotPending signals a decide transition attempted on a request that is
	// no longer pending.
	ErrNotPending = errors.New("store: request is not pending")

	// ErrNotConsumable signals a token consumption that matched no valid row;
	// the caller refetches to classify the reason.
	ErrNotConsumable = errors.New("store: token not consumable")
)

type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	ByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByRefreshToken(ctx context.Context, token string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	All(ctx context.Context) ([]models.User, error)
	Pending(ctx context.Context) ([]models.User, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}

type RoleStore interface {
	Insert(ctx context.Context, r *models.Role) error
	ByID(ctx context.Context, id primitive.ObjectID) (*models.Role, error)
	ByName(ctx context.Context, name string) (*models.Role, error)
	Update(ctx context.Context, r *models.Role) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	All(ctx context.Context) ([]models.Role, error)
	Active(ctx context.Context) ([]models.Role, error)
}

// DocumentQuery narrows and pages a document listing.
type DocumentQuery struct {
	Search   string
	FileType string
	Status   models.DocumentStatus
	// Owner restricts results to documents owned by this user or public ones.
	// Nil means no visibility restriction (admin listing).
	Owner    *primitive.ObjectID
	Page     int
	Limit    int
	SortBy   string
	SortDesc bool
}

// DocumentStats aggregates the visible corpus for the dashboard.
type DocumentStats struct {
	TotalDocuments int64    `bson:"totalDocuments" json:"totalDocuments"`
	TotalSize      int64    `bson:"totalSize" json:"totalSize"`
	FileTypes      []string `bson:"fileTypes" json:"fileTypes"`
}

type DocumentStore interface {
	Insert(ctx context.Context, d *models.Document) error
	ByID(ctx context.Context, id primitive.ObjectID) (*models.Document, error)
	Exists(ctx context.Context, id primitive.ObjectID) (bool, error)
	Find(ctx context.Context, q DocumentQuery) ([]models.Document, int64, error)
	Stats(ctx context.Context, owner *primitive.ObjectID) (DocumentStats, error)
	ByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Document, error)
	TouchLastAccessed(ctx context.Context, id primitive.ObjectID) error
	IncrementDownloadCount(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// RequestQuery pages the admin listing of download requests.
type RequestQuery struct {
	Status models.RequestStatus
	Page   int
	Limit  int
}

// ApproveParams carries the approval transition payload. Timestamps are
// supplied by the caller so the service layer owns the clock.
type ApproveParams struct {
	AdminID        primitive.ObjectID
	Token          string
	MaxDownloads   int
	ApprovedAt     time.Time
	TokenExpiresAt time.Time
}

type RequestStore interface {
	// Insert persists a new pending request. Fails with ErrDuplicateActive
	// when an active request already exists for the same document and
	// requester; the check-and-insert is atomic.
	Insert(ctx context.Context, r *models.DownloadRequest) error

	ByID(ctx context.Context, id primitive.ObjectID) (*models.DownloadRequest, error)
	ByToken(ctx context.Context, token string) (*models.DownloadRequest, error)

	// Latest returns the most recently created request for the pair,
	// regardless of status, or ErrNotFound.
	Latest(ctx context.Context, docID, userID primitive.ObjectID) (*models.DownloadRequest, error)

	Find(ctx context.Context, q RequestQuery) ([]models.DownloadRequest, int64, error)

	// Approve transitions a pending request to approved in a single
	// conditional update. Fails with ErrNotPending when the request was
	// already decided, ErrDuplicateToken on a token collision, ErrNotFound
	// when no such request exists.
	Approve(ctx context.Context, id primitive.ObjectID, p ApproveParams) (*models.DownloadRequest, error)

	// Reject transitions a pending request to rejected under the same
	// conditions as Approve.
	Reject(ctx context.Context, id primitive.ObjectID, reason string, rejectedAt time.Time) (*models.DownloadRequest, error)

	// Consume atomically increments the download count of the approved,
	// unexpired (relative to now), under-limit request holding token, flipping
	// status to expired when the increment exhausts the allowance. Returns the
	// updated request, or ErrNotConsumable when no row qualifies.
	Consume(ctx context.Context, token string, now time.Time) (*models.DownloadRequest, error)

	DeleteForDocument(ctx context.Context, docID primitive.ObjectID) error
}
