package services

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/dbx"
	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/models"
	"github.com/dmitrijs2005/bucketvault/internal/server/repositories/buckets"
	"github.com/dmitrijs2005/bucketvault/internal/server/repositories/users"
	"github.com/dmitrijs2005/bucketvault/internal/server/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- relational store fakes ---

type memStore struct {
	mu      sync.Mutex
	users   map[string]*models.User
	buckets []*models.Bucket
	clock   time.Time
	errs    map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users: map[string]*models.User{},
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		errs:  map[string]error{},
	}
}

func (s *memStore) addUser(limit int) string {
	id := uuid.NewString()
	s.users[id] = &models.User{ID: id, Email: id + "@example.com", Name: "user", BucketLimit: limit, CreatedAt: s.clock}
	return id
}

func (s *memStore) userBuckets(userID string) []*models.Bucket {
	var out []*models.Bucket
	for _, b := range s.buckets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out
}

func (s *memStore) defaults(userID string) int {
	n := 0
	for _, b := range s.userBuckets(userID) {
		if b.IsDefault {
			n++
		}
	}
	return n
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.errs["users.Create"]; err != nil {
		return nil, err
	}
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return nil, common.ErrEmailTaken
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = r.s.clock
	r.s.users[u.ID] = u
	return u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) LockForUpdate(_ context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return u.BucketLimit, nil
	}
	return 0, common.ErrorNotFound
}

func (r memUsers) SetBucketLimit(_ context.Context, email string, limit int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			u.BucketLimit = limit
			return nil
		}
	}
	return common.ErrorNotFound
}

type memBuckets struct{ s *memStore }

func (r memBuckets) List(_ context.Context, userID string) ([]*models.Bucket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.s.userBuckets(userID)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r memBuckets) Create(_ context.Context, b *models.Bucket) (*models.Bucket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.userBuckets(b.UserID) {
		if existing.BucketName == b.BucketName {
			return nil, &common.DuplicateBucketError{BucketName: b.BucketName}
		}
	}
	r.s.clock = r.s.clock.Add(time.Minute)
	b.ID = uuid.NewString()
	b.CreatedAt = r.s.clock
	r.s.buckets = append(r.s.buckets, b)
	return b, nil
}

func (r memBuckets) GetByID(_ context.Context, userID, id string) (*models.Bucket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.userBuckets(userID) {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memBuckets) FindActive(_ context.Context, userID string) (*models.Bucket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := r.s.userBuckets(userID)
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].IsDefault != list[j].IsDefault {
			return list[i].IsDefault
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list[0], nil
}

func (r memBuckets) Count(_ context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.errs["buckets.Count"]; err != nil {
		return 0, err
	}
	return len(r.s.userBuckets(userID)), nil
}

func (r memBuckets) ExistsByName(_ context.Context, userID, bucketName string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.userBuckets(userID) {
		if b.BucketName == bucketName {
			return true, nil
		}
	}
	return false, nil
}

func (r memBuckets) ClearDefaults(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.userBuckets(userID) {
		b.IsDefault = false
	}
	return nil
}

func (r memBuckets) SetDefault(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.userBuckets(userID) {
		if b.ID == id {
			b.IsDefault = true
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r memBuckets) Delete(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, b := range r.s.buckets {
		if b.UserID == userID && b.ID == id {
			r.s.buckets = append(r.s.buckets[:i], r.s.buckets[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r memBuckets) ListSecrets(context.Context) ([]models.SecretRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.SecretRecord, 0, len(r.s.buckets))
	for _, b := range r.s.buckets {
		out = append(out, models.SecretRecord{ID: b.ID, EncryptedSecretKey: b.EncryptedSecretKey})
	}
	return out, nil
}

func (r memBuckets) UpdateSecret(_ context.Context, id, encrypted string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.buckets {
		if b.ID == id {
			b.EncryptedSecretKey = encrypted
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return memUsers{m.s} }
func (m *fakeRepoManager) Buckets(dbx.DBTX) buckets.Repository          { return memBuckets{m.s} }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- storage fakes ---

type fakeObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// fakeBackend is an in-memory bucket with real delimiter semantics.
type fakeBackend struct {
	mu        sync.Mutex
	objects   map[string]fakeObject
	truncate  bool
	lastList  storage.ListInput
	err       error
	presigned map[string]time.Duration
}

func newFakeBackend(keys ...string) *fakeBackend {
	b := &fakeBackend{objects: map[string]fakeObject{}, presigned: map[string]time.Duration{}}
	for _, k := range keys {
		b.objects[k] = fakeObject{data: []byte(k), modified: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	}
	return b
}

func (b *fakeBackend) List(_ context.Context, in storage.ListInput) (*storage.Listing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastList = in
	if b.err != nil {
		return nil, b.err
	}

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &storage.Listing{Truncated: b.truncate}
	seen := map[string]bool{}
	for _, k := range keys {
		if !strings.HasPrefix(k, in.Prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, in.Prefix)
		if in.Delimiter != "" {
			if i := strings.Index(rest, in.Delimiter); i >= 0 {
				cp := in.Prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, cp)
				}
				continue
			}
		}
		o := b.objects[k]
		out.Objects = append(out.Objects, storage.Object{Key: k, Size: int64(len(o.data)), LastModified: o.modified})
	}
	return out, nil
}

func (b *fakeBackend) Head(_ context.Context, key string) (*storage.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[key]
	if !ok {
		return nil, common.ErrObjectNotFound
	}
	return &storage.ObjectInfo{Key: key, ContentType: o.contentType, ContentLength: int64(len(o.data))}, nil
}

func (b *fakeBackend) Get(_ context.Context, key string) (*storage.ObjectReader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[key]
	if !ok {
		return nil, common.ErrObjectNotFound
	}
	return &storage.ObjectReader{Body: io.NopCloser(bytes.NewReader(o.data)), ContentType: o.contentType, ContentLength: int64(len(o.data))}, nil
}

func (b *fakeBackend) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.objects[key] = fakeObject{data: data, contentType: contentType, modified: time.Now()}
	return nil
}

func (b *fakeBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *fakeBackend) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presigned[key] = ttl
	return "https://signed.example/" + key, nil
}

type fakeConnector struct {
	backend *fakeBackend
	opened  []storage.Credentials
	err     error
}

func (c *fakeConnector) Open(_ context.Context, creds storage.Credentials) (storage.Backend, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.opened = append(c.opened, creds)
	return c.backend, nil
}
