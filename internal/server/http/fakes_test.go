package http

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/auth"
	"github.com/dmitrijs2005/bucketvault/internal/server/metrics"
	"github.com/dmitrijs2005/bucketvault/internal/server/models"
	"github.com/dmitrijs2005/bucketvault/internal/server/services"
	"github.com/dmitrijs2005/bucketvault/internal/server/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type fakeUsers struct {
	register func(ctx context.Context, name, email, password string) (*models.User, error)
	login    func(ctx context.Context, email, password string) (*services.LoginResult, error)
	profile  func(ctx context.Context, userID string) (*models.Profile, error)
}

func (f *fakeUsers) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	return f.register(ctx, name, email, password)
}

func (f *fakeUsers) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	return f.login(ctx, email, password)
}

func (f *fakeUsers) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	return f.profile(ctx, userID)
}

type fakeBuckets struct {
	list       func(ctx context.Context, userID string) ([]models.BucketSummary, error)
	add        func(ctx context.Context, userID string, in models.NewBucket) (*models.BucketSummary, error)
	setDefault func(ctx context.Context, userID, bucketID string) error
	remove     func(ctx context.Context, userID, bucketID string) error
}

func (f *fakeBuckets) List(ctx context.Context, userID string) ([]models.BucketSummary, error) {
	return f.list(ctx, userID)
}

func (f *fakeBuckets) Add(ctx context.Context, userID string, in models.NewBucket) (*models.BucketSummary, error) {
	return f.add(ctx, userID, in)
}

func (f *fakeBuckets) SetDefault(ctx context.Context, userID, bucketID string) error {
	return f.setDefault(ctx, userID, bucketID)
}

func (f *fakeBuckets) Remove(ctx context.Context, userID, bucketID string) error {
	return f.remove(ctx, userID, bucketID)
}

type fakeFiles struct {
	list         func(ctx context.Context, userID, bucketID, folder string, filter services.Filter) ([]models.ObjectEntry, error)
	createFolder func(ctx context.Context, userID, bucketID, parentPath, name string) (string, error)
	share        func(ctx context.Context, userID, bucketID, key string, ttl time.Duration) (*models.ShareGrant, error)
	download     func(ctx context.Context, userID, bucketID, key string) (*services.Download, error)
	upload       func(ctx context.Context, userID, bucketID, folder, fileName string, body io.Reader, size int64, contentType string) (*models.ObjectEntry, error)
	delete       func(ctx context.Context, userID, bucketID, key string) error
	test         func(ctx context.Context, creds storage.Credentials) error
}

func (f *fakeFiles) List(ctx context.Context, userID, bucketID, folder string, filter services.Filter) ([]models.ObjectEntry, error) {
	return f.list(ctx, userID, bucketID, folder, filter)
}

func (f *fakeFiles) CreateFolder(ctx context.Context, userID, bucketID, parentPath, name string) (string, error) {
	return f.createFolder(ctx, userID, bucketID, parentPath, name)
}

func (f *fakeFiles) Share(ctx context.Context, userID, bucketID, key string, ttl time.Duration) (*models.ShareGrant, error) {
	return f.share(ctx, userID, bucketID, key, ttl)
}

func (f *fakeFiles) Download(ctx context.Context, userID, bucketID, key string) (*services.Download, error) {
	return f.download(ctx, userID, bucketID, key)
}

func (f *fakeFiles) Upload(ctx context.Context, userID, bucketID, folder, fileName string, body io.Reader, size int64, contentType string) (*models.ObjectEntry, error) {
	return f.upload(ctx, userID, bucketID, folder, fileName, body, size, contentType)
}

func (f *fakeFiles) Delete(ctx context.Context, userID, bucketID, key string) error {
	return f.delete(ctx, userID, bucketID, key)
}

func (f *fakeFiles) TestConnection(ctx context.Context, creds storage.Credentials) error {
	return f.test(ctx, creds)
}

const (
	testSecret = "jwt-secret"
	testUserID = "6f1c1b8e-5c7a-4f0e-9a55-0d6b8d3f2a11"
)

type testAPI struct {
	users    *fakeUsers
	buckets  *fakeBuckets
	files    *fakeFiles
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	router   http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	api := &testAPI{
		users:    &fakeUsers{},
		buckets:  &fakeBuckets{},
		files:    &fakeFiles{},
		registry: prometheus.NewRegistry(),
	}
	api.metrics = metrics.New(api.registry)

	h := NewHandler(api.users, api.buckets, api.files, 1<<20, nopLogger{})
	api.router = NewRouter(h, []byte(testSecret), api.metrics, api.registry, nopLogger{})
	return api
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(testUserID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}
