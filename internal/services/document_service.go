package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/docsense/docsense/internal/authz"
	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/models"
	"github.com/docsense/docsense/internal/storage"
	"github.com/docsense/docsense/internal/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxUploadSize caps document uploads at 50MB.
const MaxUploadSize = 50 << 20

var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"text/plain": true,
	"image/jpeg": true,
	"image/png":  true,
}

// DocumentService owns document metadata and the bytes behind it. Access
// decisions are delegated to the authz gate.
type DocumentService struct {
	documents store.DocumentStore
	requests  store.RequestStore
	objects   storage.ObjectStore
	now       func() time.Time
}

func NewDocumentService(documents store.DocumentStore, requests store.RequestStore, objects storage.ObjectStore) *DocumentService {
	return &DocumentService{
		documents: documents,
		requests:  requests,
		objects:   objects,
		now:       time.Now,
	}
}

// UploadInput carries a validated multipart upload.
type UploadInput struct {
	Title    string
	Filename string
	MimeType string
	Data     []byte
	Tags     []string
	IsPublic bool
	Owner    primitive.ObjectID
}

// Upload stores the bytes and the metadata record. The object write and the
// metadata insert run concurrently; a failed insert removes the orphaned
// object.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*models.Document, error) {
	if len(in.Data) == 0 {
		return nil, httperr.Validation("No file uploaded")
	}
	if len(in.Data) > MaxUploadSize {
		return nil, httperr.Validation("File exceeds the 50MB size limit")
	}
	if !allowedMimeTypes[in.MimeType] {
		return nil, httperr.Validation("Invalid file type. Only PDF, DOC, DOCX, XLS, XLSX, PPT, PPTX, TXT, JPG, PNG files are allowed.")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.Filename
	}

	now := s.now().UTC()
	doc := &models.Document{
		ID:           primitive.NewObjectID(),
		Title:        title,
		OriginalName: in.Filename,
		ObjectKey:    fmt.Sprintf("%s_%s", uuid.NewString(), in.Filename),
		FileType:     strings.ToLower(strings.TrimPrefix(filepath.Ext(in.Filename), ".")),
		MimeType:     in.MimeType,
		FileSize:     int64(len(in.Data)),
		Content:      extractTextContent(in.Data, in.MimeType),
		UploadedBy:   in.Owner,
		Status:       models.DocumentProcessed,
		IsPublic:     in.IsPublic,
		Tags:         cleanTags(in.Tags),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	putErr := make(chan error, 1)
	insertErr := make(chan error, 1)

	go func() {
		putErr <- s.objects.Put(ctx, doc.ObjectKey, bytes.NewReader(in.Data), doc.FileSize, doc.MimeType)
	}()
	go func() {
		insertErr <- s.documents.Insert(ctx, doc)
	}()

	pErr, iErr := <-putErr, <-insertErr
	if pErr != nil {
		return nil, httperr.Internal("failed to store file", pErr)
	}
	if iErr != nil {
		// Metadata failed; the stored object is orphaned, clean it up.
		go s.objects.Remove(context.Background(), doc.ObjectKey)
		return nil, httperr.Internal("failed to save document metadata", iErr)
	}
	return doc, nil
}

// extractTextContent pulls indexable text from the upload. Only plain text is
// extracted; binary formats are stored without a content index.
func extractTextContent(data []byte, mimeType string) string {
	if mimeType == "text/plain" {
		return string(data)
	}
	return ""
}

func cleanTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ListQuery mirrors the document listing query string.
type ListQuery struct {
	Search    string
	FileType  string
	Status    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Pagination describes a page of results.
type Pagination struct {
	CurrentPage    int   `json:"currentPage"`
	TotalPages     int   `json:"totalPages"`
	TotalDocuments int64 `json:"totalDocuments"`
	HasNext        bool  `json:"hasNext"`
	HasPrev        bool  `json:"hasPrev"`
}

// List returns the documents visible to the caller. Non-admins see their own
// and public documents only.
func (s *DocumentService) List(ctx context.Context, q ListQuery, callerID primitive.ObjectID, callerRole string) ([]models.Document, Pagination, store.DocumentStats, error) {
	sq := store.DocumentQuery{
		Search:   q.Search,
		Page:     q.Page,
		Limit:    q.Limit,
		SortBy:   q.SortBy,
		SortDesc: q.SortOrder != "asc",
	}
	if q.FileType != "" && q.FileType != "all" {
		sq.FileType = strings.ToLower(q.FileType)
	}
	if q.Status != "" && q.Status != "all" {
		sq.Status = models.DocumentStatus(q.Status)
	}

	var owner *primitive.ObjectID
	if !authz.IsAdmin(callerRole) {
		owner = &callerID
		sq.Owner = &callerID
	}

	docs, total, err := s.documents.Find(ctx, sq)
	if err != nil {
		return nil, Pagination{}, store.DocumentStats{}, httperr.Internal("failed to list documents", err)
	}

	stats, err := s.documents.Stats(ctx, owner)
	if err != nil {
		return nil, Pagination{}, store.DocumentStats{}, httperr.Internal("failed to aggregate documents", err)
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	pagination := Pagination{
		CurrentPage:    page,
		TotalPages:     totalPages,
		TotalDocuments: total,
		HasNext:        page < totalPages,
		HasPrev:        page > 1,
	}
	return docs, pagination, stats, nil
}

// Get fetches a document the caller may view and touches its last-accessed
// timestamp.
func (s *DocumentService) Get(ctx context.Context, id, callerID primitive.ObjectID, callerRole string) (*models.Document, error) {
	doc, err := s.getDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanView(doc, callerID, callerRole) {
		return nil, httperr.Forbidden("Access denied")
	}
	if err := s.documents.TouchLastAccessed(ctx, id); err != nil {
		return nil, httperr.Internal("failed to update document", err)
	}
	return doc, nil
}

// View streams the document bytes for inline display, subject to the view
// predicate.
func (s *DocumentService) View(ctx context.Context, id, callerID primitive.ObjectID, callerRole string) (*models.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, id, callerID, callerRole)
	if err != nil {
		return nil, nil, err
	}
	stream, err := s.objects.Get(ctx, doc.ObjectKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, httperr.NotFound("File not found on server")
	}
	if err != nil {
		return nil, nil, httperr.Internal("failed to open file", err)
	}
	return doc, stream, nil
}

// Stream opens the document bytes without an access check; callers must have
// already authorized the read (token-gated downloads).
func (s *DocumentService) Stream(ctx context.Context, doc *models.Document) (io.ReadCloser, error) {
	stream, err := s.objects.Get(ctx, doc.ObjectKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, httperr.NotFound("File not found on server")
	}
	if err != nil {
		return nil, httperr.Internal("failed to open file", err)
	}
	return stream, nil
}

// Delete removes the document, its bytes, and every related download
// request. Only the owner or an admin may delete.
func (s *DocumentService) Delete(ctx context.Context, id, callerID primitive.ObjectID, callerRole string) error {
	doc, err := s.getDocument(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanDeleteDocument(doc, callerID, callerRole) {
		return httperr.Forbidden("Access denied")
	}

	if err := s.objects.Remove(ctx, doc.ObjectKey); err != nil {
		return httperr.Internal("failed to delete file", err)
	}
	if err := s.documents.Delete(ctx, id); err != nil {
		return httperr.Internal("failed to delete document", err)
	}
	if err := s.requests.DeleteForDocument(ctx, id); err != nil {
		return httperr.Internal("failed to delete download requests", err)
	}
	return nil
}

// MyDocuments lists the caller's own uploads.
func (s *DocumentService) MyDocuments(ctx context.Context, callerID primitive.ObjectID) ([]models.Document, error) {
	docs, err := s.documents.ByOwner(ctx, callerID)
	if err != nil {
		return nil, httperr.Internal("failed to list documents", err)
	}
	return docs, nil
}

func (s *DocumentService) getDocument(ctx context.Context, id primitive.ObjectID) (*models.Document, error) {
	doc, err := s.documents.ByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, httperr.NotFound("Document not found")
	}
	if err != nil {
		return nil, httperr.Internal("failed to look up document", err)
	}
	return doc, nil
}
