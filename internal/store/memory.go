package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docsense/docsense/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory-backed stores implementing the same contracts as the Mongo ones,
// including the conditional-transition semantics. A single mutex per store
// stands in for the document-level atomicity MongoDB provides.

type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[primitive.ObjectID]models.User)}
}

func (s *MemoryUserStore) Insert(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryUserStore) ByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryUserStore) ByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) ByRefreshToken(_ context.Context, token string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		for _, t := range u.RefreshTokens {
			if t == token {
				u := u
				return &u, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryUserStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryUserStore) All(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sortUsersByCreated(users)
	return users, nil
}

func (s *MemoryUserStore) Pending(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []models.User
	for _, u := range s.users {
		if !u.IsApproved && !u.IsRejected {
			users = append(users, u)
		}
	}
	sortUsersByCreated(users)
	return users, nil
}

func (s *MemoryUserStore) CountByRole(_ context.Context, role string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, u := range s.users {
		if strings.EqualFold(u.Role, role) {
			count++
		}
	}
	return count, nil
}

func sortUsersByCreated(users []models.User) {
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
}

type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[primitive.ObjectID]models.Role
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[primitive.ObjectID]models.Role)}
}

func (s *MemoryRoleStore) Insert(_ context.Context, r *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if strings.EqualFold(existing.Name, r.Name) {
			return ErrDuplicate
		}
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	s.roles[r.ID] = *r
	return nil
}

func (s *MemoryRoleStore) ByID(_ context.Context, id primitive.ObjectID) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryRoleStore) ByName(_ context.Context, name string) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if strings.EqualFold(r.Name, name) {
			r := r
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryRoleStore) Update(_ context.Context, r *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID]; !ok {
		return ErrNotFound
	}
	r.UpdatedAt = time.Now().UTC()
	s.roles[r.ID] = *r
	return nil
}

func (s *MemoryRoleStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return ErrNotFound
	}
	delete(s.roles, id)
	return nil
}

func (s *MemoryRoleStore) All(_ context.Context) ([]models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]models.Role, 0, len(s.roles))
	for _, r := range s.roles {
		roles = append(roles, r)
	}
	sortRoles(roles)
	return roles, nil
}

func (s *MemoryRoleStore) Active(_ context.Context) ([]models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roles []models.Role
	for _, r := range s.roles {
		if r.IsActive {
			roles = append(roles, r)
		}
	}
	sortRoles(roles)
	return roles, nil
}

func sortRoles(roles []models.Role) {
	sort.Slice(roles, func(i, j int) bool {
		return roles[i].DisplayName < roles[j].DisplayName
	})
}

type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[primitive.ObjectID]models.Document
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[primitive.ObjectID]models.Document)}
}

func (s *MemoryDocumentStore) Insert(_ context.Context, d *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.docs {
		if existing.ObjectKey == d.ObjectKey {
			return ErrDuplicate
		}
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	s.docs[d.ID] = *d
	return nil
}

func (s *MemoryDocumentStore) ByID(_ context.Context, id primitive.ObjectID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryDocumentStore) Exists(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id]
	return ok, nil
}

func (s *MemoryDocumentStore) visible(d models.Document, q DocumentQuery) bool {
	if q.Owner != nil && !d.IsPublic && d.UploadedBy != *q.Owner {
		return false
	}
	if q.FileType != "" && d.FileType != q.FileType {
		return false
	}
	if q.Status != "" && d.Status != q.Status {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(d.Title), needle) &&
			!strings.Contains(strings.ToLower(d.Content), needle) &&
			!containsTag(d.Tags, needle) {
			return false
		}
	}
	return true
}

func containsTag(tags []string, needle string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

func (s *MemoryDocumentStore) Find(_ context.Context, q DocumentQuery) ([]models.Document, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Document
	for _, d := range s.docs {
		if s.visible(d, q) {
			matched = append(matched, d)
		}
	}
	desc := q.SortDesc
	sort.Slice(matched, func(i, j int) bool {
		if desc {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryDocumentStore) Stats(_ context.Context, owner *primitive.ObjectID) (DocumentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := DocumentStats{FileTypes: []string{}}
	seen := map[string]bool{}
	for _, d := range s.docs {
		if owner != nil && !d.IsPublic && d.UploadedBy != *owner {
			continue
		}
		stats.TotalDocuments++
		stats.TotalSize += d.FileSize
		if !seen[d.FileType] {
			seen[d.FileType] = true
			stats.FileTypes = append(stats.FileTypes, d.FileType)
		}
	}
	sort.Strings(stats.FileTypes)
	return stats, nil
}

func (s *MemoryDocumentStore) ByOwner(_ context.Context, owner primitive.ObjectID) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []models.Document
	for _, d := range s.docs {
		if d.UploadedBy == owner {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *MemoryDocumentStore) TouchLastAccessed(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	d.LastAccessed = &now
	d.UpdatedAt = now
	s.docs[id] = d
	return nil
}

func (s *MemoryDocumentStore) IncrementDownloadCount(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	d.DownloadCount++
	d.UpdatedAt = time.Now().UTC()
	s.docs[id] = d
	return nil
}

func (s *MemoryDocumentStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

type MemoryRequestStore struct {
	mu       sync.Mutex
	requests map[primitive.ObjectID]models.DownloadRequest
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[primitive.ObjectID]models.DownloadRequest)}
}

func (s *MemoryRequestStore) Insert(_ context.Context, r *models.DownloadRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.DocumentID == r.DocumentID &&
			existing.RequestedBy == r.RequestedBy &&
			existing.Status.Active() {
			return ErrDuplicateActive
		}
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	s.requests[r.ID] = *r
	return nil
}

func (s *MemoryRequestStore) ByID(_ context.Context, id primitive.ObjectID) (*models.DownloadRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryRequestStore) ByToken(_ context.Context, token string) (*models.DownloadRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byTokenLocked(token)
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryRequestStore) byTokenLocked(token string) (models.DownloadRequest, bool) {
	if token == "" {
		return models.DownloadRequest{}, false
	}
	for _, r := range s.requests {
		if r.DownloadToken == token {
			return r, true
		}
	}
	return models.DownloadRequest{}, false
}

func (s *MemoryRequestStore) Latest(_ context.Context, docID, userID primitive.ObjectID) (*models.DownloadRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.DownloadRequest
	for _, r := range s.requests {
		if r.DocumentID != docID || r.RequestedBy != userID {
			continue
		}
		r := r
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = &r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (s *MemoryRequestStore) Find(_ context.Context, q RequestQuery) ([]models.DownloadRequest, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.DownloadRequest
	for _, r := range s.requests {
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryRequestStore) Approve(_ context.Context, id primitive.ObjectID, p ApproveParams) (*models.DownloadRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != models.RequestPending {
		return nil, ErrNotPending
	}
	if _, taken := s.byTokenLocked(p.Token); taken {
		return nil, ErrDuplicateToken
	}

	approvedAt := p.ApprovedAt
	tokenExpires := p.TokenExpiresAt
	r.Status = models.RequestApproved
	r.ApprovedBy = &p.AdminID
	r.ApprovedAt = &approvedAt
	r.MaxDownloads = p.MaxDownloads
	r.DownloadToken = p.Token
	r.TokenExpiresAt = &tokenExpires
	r.UpdatedAt = approvedAt
	s.requests[id] = r
	return &r, nil
}

func (s *MemoryRequestStore) Reject(_ context.Context, id primitive.ObjectID, reason string, rejectedAt time.Time) (*models.DownloadRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != models.RequestPending {
		return nil, ErrNotPending
	}

	r.Status = models.RequestRejected
	r.RejectedAt = &rejectedAt
	r.RejectionReason = reason
	r.UpdatedAt = rejectedAt
	s.requests[id] = r
	return &r, nil
}

func (s *MemoryRequestStore) Consume(_ context.Context, token string, now time.Time) (*models.DownloadRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byTokenLocked(token)
	if !ok || !r.IsValid(now) {
		return nil, ErrNotConsumable
	}

	r.DownloadCount++
	r.DownloadedAt = &now
	r.UpdatedAt = now
	if r.Exhausted() {
		r.Status = models.RequestExpired
	}
	s.requests[r.ID] = r
	return &r, nil
}

func (s *MemoryRequestStore) DeleteForDocument(_ context.Context, docID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.requests {
		if r.DocumentID == docID {
			delete(s.requests, id)
		}
	}
	return nil
}
