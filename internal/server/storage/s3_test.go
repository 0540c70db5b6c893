package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	listIn  *s3.ListObjectsV2Input
	listOut *s3.ListObjectsV2Output
	putIn   *s3.PutObjectInput
	putBody []byte
	headOut *s3.HeadObjectOutput
	getOut  *s3.GetObjectOutput
	delIn   *s3.DeleteObjectInput
	err     error
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listIn = in
	return f.listOut, f.err
}

func (f *fakeS3) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return f.headOut, f.err
}

func (f *fakeS3) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return f.getOut, f.err
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putIn = in
	if in.Body != nil {
		f.putBody, _ = io.ReadAll(in.Body)
	}
	return &s3.PutObjectOutput{}, f.err
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.delIn = in
	return &s3.DeleteObjectOutput{}, f.err
}

type fakePresigner struct {
	in      *s3.GetObjectInput
	expires time.Duration
	err     error
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.in = in
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	f.expires = o.Expires
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + aws.ToString(in.Key), Method: http.MethodGet}, nil
}

func newTestBackend(t *testing.T, api *fakeS3, p *fakePresigner) (*s3Backend, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	return newS3Backend(api, p, "my-bucket", m, logging.Nop()), m
}

func TestList_MapsOutput(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	api := &fakeS3{listOut: &s3.ListObjectsV2Output{
		CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("docs/sub/")}},
		Contents: []types.Object{
			{Key: aws.String("docs/"), Size: aws.Int64(0), LastModified: &now},
			{Key: aws.String("docs/a.txt"), Size: aws.Int64(12), LastModified: &now},
		},
		IsTruncated: aws.Bool(true),
	}}
	b, m := newTestBackend(t, api, nil)

	got, err := b.List(context.Background(), ListInput{Prefix: "docs/", Delimiter: "/", MaxKeys: 1000})
	require.NoError(t, err)

	assert.Equal(t, &Listing{
		CommonPrefixes: []string{"docs/sub/"},
		Objects: []Object{
			{Key: "docs/", Size: 0, LastModified: now},
			{Key: "docs/a.txt", Size: 12, LastModified: now},
		},
		Truncated: true,
	}, got)

	assert.Equal(t, "my-bucket", aws.ToString(api.listIn.Bucket))
	assert.Equal(t, "docs/", aws.ToString(api.listIn.Prefix))
	assert.Equal(t, "/", aws.ToString(api.listIn.Delimiter))
	assert.Equal(t, int32(1000), aws.ToInt32(api.listIn.MaxKeys))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageRequests.WithLabelValues(opList, metrics.StatusOK)))
}

func TestList_RootOmitsPrefix(t *testing.T) {
	api := &fakeS3{listOut: &s3.ListObjectsV2Output{}}
	b, _ := newTestBackend(t, api, nil)

	got, err := b.List(context.Background(), ListInput{Delimiter: "/"})
	require.NoError(t, err)
	assert.Empty(t, got.Objects)
	assert.Nil(t, api.listIn.Prefix)
	assert.Nil(t, api.listIn.MaxKeys)
}

func TestList_UpstreamError(t *testing.T) {
	api := &fakeS3{err: &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}}
	b, m := newTestBackend(t, api, nil)

	_, err := b.List(context.Background(), ListInput{})

	var up *common.UpstreamStorageError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, opList, up.Op)
	assert.Contains(t, err.Error(), "Access Denied")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageRequests.WithLabelValues(opList, metrics.StatusError)))
}

func TestHead(t *testing.T) {
	api := &fakeS3{headOut: &s3.HeadObjectOutput{ContentType: aws.String("text/plain"), ContentLength: aws.Int64(5)}}
	b, _ := newTestBackend(t, api, nil)

	info, err := b.Head(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", info.Key)
	assert.Equal(t, "text/plain", info.ContentType)
	assert.Equal(t, int64(5), info.ContentLength)
}

func TestGet_RecordsDownload(t *testing.T) {
	api := &fakeS3{getOut: &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader("hello")),
		ContentType:   aws.String("text/plain"),
		ContentLength: aws.Int64(5),
	}}
	b, m := newTestBackend(t, api, nil)

	r, err := b.Get(context.Background(), "a.txt")
	require.NoError(t, err)
	defer r.Body.Close()

	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.BytesDownloaded))
}

func TestPut_ZeroByteMarker(t *testing.T) {
	api := &fakeS3{}
	b, m := newTestBackend(t, api, nil)

	err := b.Put(context.Background(), "docs/new/", bytes.NewReader(nil), 0, "application/x-directory")
	require.NoError(t, err)

	assert.Equal(t, "docs/new/", aws.ToString(api.putIn.Key))
	assert.Equal(t, int64(0), aws.ToInt64(api.putIn.ContentLength))
	assert.Equal(t, "application/x-directory", aws.ToString(api.putIn.ContentType))
	assert.Empty(t, api.putBody)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BytesUploaded))
}

func TestPut_RecordsUpload(t *testing.T) {
	api := &fakeS3{}
	b, m := newTestBackend(t, api, nil)

	require.NoError(t, b.Put(context.Background(), "a.bin", strings.NewReader("abc"), 3, ""))
	assert.Nil(t, api.putIn.ContentType)
	assert.Equal(t, []byte("abc"), api.putBody)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BytesUploaded))
}

func TestDelete(t *testing.T) {
	api := &fakeS3{}
	b, _ := newTestBackend(t, api, nil)

	require.NoError(t, b.Delete(context.Background(), "docs/a.txt"))
	assert.Equal(t, "docs/a.txt", aws.ToString(api.delIn.Key))
	assert.Equal(t, "my-bucket", aws.ToString(api.delIn.Bucket))
}

func TestPresignGet(t *testing.T) {
	p := &fakePresigner{}
	b, m := newTestBackend(t, &fakeS3{}, p)

	url, err := b.PresignGet(context.Background(), "docs/a.txt", 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/docs/a.txt", url)
	assert.Equal(t, 2*time.Hour, p.expires)
	assert.Equal(t, "my-bucket", aws.ToString(p.in.Bucket))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageRequests.WithLabelValues(opPresign, metrics.StatusOK)))
}

func TestPresignGet_Error(t *testing.T) {
	b, _ := newTestBackend(t, &fakeS3{}, &fakePresigner{err: errors.New("sign-fail")})

	_, err := b.PresignGet(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, common.ErrUpstreamStorage)
}

func notFoundResponse() error {
	return &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusNotFound}},
		Err:      errors.New("not found"),
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		err      error
		notFound bool
	}{
		{"typed NoSuchKey", opGet, &types.NoSuchKey{}, true},
		{"typed NotFound", opHead, &types.NotFound{}, true},
		{"generic NoSuchKey", opGet, &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"NoSuchBucket", opGet, &smithy.GenericAPIError{Code: "NoSuchBucket"}, false},
		{"bare 404 on head", opHead, notFoundResponse(), true},
		{"bare 404 on list", opList, notFoundResponse(), false},
		{"access denied", opPut, &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"network", opGet, errors.New("dial tcp: i/o timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.op, tt.err)
			if tt.notFound {
				assert.ErrorIs(t, err, common.ErrObjectNotFound)
				return
			}
			assert.ErrorIs(t, err, common.ErrUpstreamStorage)
			assert.NotErrorIs(t, err, common.ErrObjectNotFound)
		})
	}
}

func TestHead_NotFoundMetric(t *testing.T) {
	b, m := newTestBackend(t, &fakeS3{err: &types.NotFound{}}, nil)

	_, err := b.Head(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrObjectNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageRequests.WithLabelValues(opHead, metrics.StatusNotFound)))
}

func TestS3Connector_Open(t *testing.T) {
	origLoad, origClient := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origClient
	})

	var loadOpts config.LoadOptions
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&loadOpts))
		}
		return aws.Config{Region: loadOpts.Region, Credentials: loadOpts.Credentials}, nil
	}

	var s3Opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&s3Opts)
		}
		return s3.NewFromConfig(cfg, optFns...)
	}

	c := NewS3Connector("http://minio:9000", true, nil, logging.Nop())
	backend, err := c.Open(context.Background(), Credentials{
		AccessKeyID: "AKIA", SecretKey: "shh", Region: "eu-central-1", BucketName: "photos",
	})
	require.NoError(t, err)
	require.NotNil(t, backend)

	assert.Equal(t, "eu-central-1", loadOpts.Region)
	creds, err := loadOpts.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIA", creds.AccessKeyID)
	assert.Equal(t, "shh", creds.SecretAccessKey)
	require.NotNil(t, loadOpts.Retryer)
	assert.IsType(t, aws.NopRetryer{}, loadOpts.Retryer())

	assert.Equal(t, "http://minio:9000", aws.ToString(s3Opts.BaseEndpoint))
	assert.True(t, s3Opts.UsePathStyle)
	assert.Equal(t, aws.RequestChecksumCalculationWhenRequired, s3Opts.RequestChecksumCalculation)

	assert.Equal(t, "photos", backend.(*s3Backend).bucket)
}

func TestS3Connector_OpenConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad profile")
	}

	_, err := NewS3Connector("", false, nil, logging.Nop()).Open(context.Background(), Credentials{})
	assert.ErrorIs(t, err, common.ErrUpstreamStorage)
}
