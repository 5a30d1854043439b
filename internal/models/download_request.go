package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestStatus is the stored lifecycle state of a download request. The set
// is closed: transitions go pending -> approved|rejected, and approved ->
// expired once the download allowance is used up. Wall-clock expiry of an
// approved token does NOT rewrite the stored status; validity is always
// derived through IsValid.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestExpired  RequestStatus = "expired"
)

// Active reports whether the status still awaits or permits resolution. At
// most one active request may exist per (document, requester) pair.
func (s RequestStatus) Active() bool {
	return s == RequestPending || s == RequestApproved
}

// Pending-request and issued-token lifetimes.
const (
	RequestTTL = 7 * 24 * time.Hour
	TokenTTL   = 24 * time.Hour
)

type DownloadRequest struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID    primitive.ObjectID `bson:"document" json:"document_id"`
	RequestedBy   primitive.ObjectID `bson:"requested_by" json:"requested_by"`
	Status        RequestStatus      `bson:"status" json:"status"`
	RequestReason string             `bson:"request_reason" json:"request_reason"`

	ApprovedBy *primitive.ObjectID `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
	ApprovedAt *time.Time          `bson:"approved_at,omitempty" json:"approved_at,omitempty"`

	RejectedAt      *time.Time `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`
	RejectionReason string     `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`

	// DownloadToken is set exactly once, at approval.
	DownloadToken string `bson:"download_token,omitempty" json:"-"`

	// RequestExpiresAt bounds how long a pending request stays actionable;
	// TokenExpiresAt bounds the issued token. The original schema overloaded a
	// single timestamp for both, which made the stored value ambiguous.
	RequestExpiresAt *time.Time `bson:"request_expires_at,omitempty" json:"request_expires_at,omitempty"`
	TokenExpiresAt   *time.Time `bson:"token_expires_at,omitempty" json:"token_expires_at,omitempty"`

	DownloadedAt  *time.Time `bson:"downloaded_at,omitempty" json:"downloaded_at,omitempty"`
	DownloadCount int        `bson:"download_count" json:"download_count"`
	MaxDownloads  int        `bson:"max_downloads" json:"max_downloads"`

	IPAddress string    `bson:"ip_address,omitempty" json:"-"`
	UserAgent string    `bson:"user_agent,omitempty" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsValid reports whether the request grants a download at the given instant.
// It is a pure predicate over the stored fields; it never mutates status.
func (r *DownloadRequest) IsValid(now time.Time) bool {
	if r.Status != RequestApproved {
		return false
	}
	if r.TokenExpiresAt != nil && now.After(*r.TokenExpiresAt) {
		return false
	}
	return r.DownloadCount < r.MaxDownloads
}

// Exhausted reports whether the download allowance is used up.
func (r *DownloadRequest) Exhausted() bool {
	return r.DownloadCount >= r.MaxDownloads
}
