package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/models"
	"github.com/docsense/docsense/internal/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DecideAction selects the admin's resolution of a pending request.
type DecideAction string

const (
	ActionApprove DecideAction = "approve"
	ActionReject  DecideAction = "reject"
)

// tokenAttempts bounds retries when a freshly generated token collides with a
// stored one. The store's unique index is the authority; a collision of
// 32 random bytes is already vanishingly unlikely.
const tokenAttempts = 3

// DownloadService owns the download-request ledger and the tokens it issues:
// request creation, status queries, admin decisions, and token-gated
// consumption.
type DownloadService struct {
	requests  store.RequestStore
	documents store.DocumentStore
	now       func() time.Time
}

func NewDownloadService(requests store.RequestStore, documents store.DocumentStore) *DownloadService {
	return &DownloadService{
		requests:  requests,
		documents: documents,
		now:       time.Now,
	}
}

// WithClock swaps the time source. Tests use this to pin expiry behavior.
func (s *DownloadService) WithClock(now func() time.Time) *DownloadService {
	s.now = now
	return s
}

func generateDownloadToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate download token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateRequest opens a pending request for the given document. At most one
// active request may exist per (document, requester) pair; the store enforces
// this atomically.
func (s *DownloadService) CreateRequest(ctx context.Context, docID, userID primitive.ObjectID, reason, ip, userAgent string) (*models.DownloadRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, httperr.Validation("Download reason is required")
	}

	exists, err := s.documents.Exists(ctx, docID)
	if err != nil {
		return nil, httperr.Internal("failed to look up document", err)
	}
	if !exists {
		return nil, httperr.NotFound("Document not found")
	}

	now := s.now().UTC()
	requestExpires := now.Add(models.RequestTTL)
	req := &models.DownloadRequest{
		DocumentID:       docID,
		RequestedBy:      userID,
		Status:           models.RequestPending,
		RequestReason:    reason,
		RequestExpiresAt: &requestExpires,
		MaxDownloads:     1,
		IPAddress:        ip,
		UserAgent:        userAgent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.requests.Insert(ctx, req); err != nil {
		if errors.Is(err, store.ErrDuplicateActive) {
			return nil, httperr.Conflict("You already have a pending or approved download request for this document")
		}
		return nil, httperr.Internal("failed to create download request", err)
	}
	return req, nil
}

// DownloadStatus is the requester-facing view of their latest request.
// "none" is synthesized when no request exists; it is never stored.
type DownloadStatus struct {
	Status          string `json:"status"`
	DownloadToken   string `json:"downloadToken,omitempty"`
	DownloadCount   int    `json:"downloadCount"`
	MaxDownloads    int    `json:"maxDownloads"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

// Status reports the most recent request for the pair. A time-expired token
// still reads as "approved" here; only an actual download attempt reports
// expiry. That mismatch is inherited behavior, pinned by tests.
func (s *DownloadService) Status(ctx context.Context, docID, userID primitive.ObjectID) (*DownloadStatus, error) {
	req, err := s.requests.Latest(ctx, docID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &DownloadStatus{Status: "none"}, nil
	}
	if err != nil {
		return nil, httperr.Internal("failed to look up download request", err)
	}
	return &DownloadStatus{
		Status:          string(req.Status),
		DownloadToken:   req.DownloadToken,
		DownloadCount:   req.DownloadCount,
		MaxDownloads:    req.MaxDownloads,
		RejectionReason: req.RejectionReason,
	}, nil
}

// Decide resolves a pending request exactly once. Approval issues a fresh
// token valid for 24 hours and fixes the download allowance; rejection
// records the reason. A second decision of any kind fails.
func (s *DownloadService) Decide(ctx context.Context, requestID, adminID primitive.ObjectID, action DecideAction, maxDownloads int, reason string) (*models.DownloadRequest, error) {
	switch action {
	case ActionApprove:
		return s.approve(ctx, requestID, adminID, maxDownloads)
	case ActionReject:
		if strings.TrimSpace(reason) == "" {
			reason = "No reason provided"
		}
		req, err := s.requests.Reject(ctx, requestID, reason, s.now().UTC())
		if err != nil {
			return nil, decideError(err)
		}
		return req, nil
	default:
		return nil, httperr.Validation("Action must be approve or reject")
	}
}

func (s *DownloadService) approve(ctx context.Context, requestID, adminID primitive.ObjectID, maxDownloads int) (*models.DownloadRequest, error) {
	if maxDownloads < 1 {
		maxDownloads = 1
	}

	var lastErr error
	for i := 0; i < tokenAttempts; i++ {
		token, err := generateDownloadToken()
		if err != nil {
			return nil, httperr.Internal("failed to generate download token", err)
		}

		now := s.now().UTC()
		req, err := s.requests.Approve(ctx, requestID, store.ApproveParams{
			AdminID:        adminID,
			Token:          token,
			MaxDownloads:   maxDownloads,
			ApprovedAt:     now,
			TokenExpiresAt: now.Add(models.TokenTTL),
		})
		if errors.Is(err, store.ErrDuplicateToken) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, decideError(err)
		}
		return req, nil
	}
	return nil, httperr.Internal("failed to issue a unique download token", lastErr)
}

func decideError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return httperr.NotFound("Download request not found")
	case errors.Is(err, store.ErrNotPending):
		return httperr.InvalidState("Request has already been processed")
	default:
		return httperr.Internal("failed to process download request", err)
	}
}

// ValidateAndConsume redeems one unit of the token's allowance and returns
// the request and its document. The increment and the possible flip to
// expired happen atomically in the store, so a maxDownloads=1 token cannot be
// redeemed twice by racing callers. The aggregate document counter is bumped
// after the fact; it is a statistic, not an invariant.
func (s *DownloadService) ValidateAndConsume(ctx context.Context, token string) (*models.DownloadRequest, *models.Document, error) {
	if token == "" {
		return nil, nil, httperr.Validation("Download token required")
	}

	now := s.now().UTC()
	req, err := s.requests.Consume(ctx, token, now)
	if errors.Is(err, store.ErrNotConsumable) {
		return nil, nil, s.classifyConsumeFailure(ctx, token, now)
	}
	if err != nil {
		return nil, nil, httperr.Internal("failed to consume download token", err)
	}

	doc, err := s.documents.ByID(ctx, req.DocumentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, httperr.NotFound("File not found on server")
	}
	if err != nil {
		return nil, nil, httperr.Internal("failed to load document", err)
	}

	if err := s.documents.IncrementDownloadCount(ctx, doc.ID); err != nil {
		return nil, nil, httperr.Internal("failed to update download count", err)
	}
	doc.DownloadCount++

	return req, doc, nil
}

// classifyConsumeFailure distinguishes a bad token from a stale one so the
// client can explain why the download stopped working.
func (s *DownloadService) classifyConsumeFailure(ctx context.Context, token string, now time.Time) error {
	req, err := s.requests.ByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return httperr.NotFound("Invalid download token")
	}
	if err != nil {
		return httperr.Internal("failed to look up download token", err)
	}
	if req.Status == models.RequestApproved && req.TokenExpiresAt != nil && now.After(*req.TokenExpiresAt) {
		return httperr.Expired("Download token has expired")
	}
	return httperr.LimitExceeded("Download limit exceeded")
}

// ListRequests pages the ledger for the admin review screen. An empty or
// "all" status returns every request.
func (s *DownloadService) ListRequests(ctx context.Context, status string, page, limit int) ([]models.DownloadRequest, int64, error) {
	q := store.RequestQuery{Page: page, Limit: limit}
	if status != "" && status != "all" {
		switch models.RequestStatus(status) {
		case models.RequestPending, models.RequestApproved, models.RequestRejected, models.RequestExpired:
			q.Status = models.RequestStatus(status)
		default:
			return nil, 0, httperr.Validation("Invalid request status filter")
		}
	}

	requests, total, err := s.requests.Find(ctx, q)
	if err != nil {
		return nil, 0, httperr.Internal("failed to list download requests", err)
	}
	return requests, total, nil
}

// DeleteForDocument removes all ledger entries bound to a deleted document.
func (s *DownloadService) DeleteForDocument(ctx context.Context, docID primitive.ObjectID) error {
	if err := s.requests.DeleteForDocument(ctx, docID); err != nil {
		return httperr.Internal("failed to delete download requests", err)
	}
	return nil
}
