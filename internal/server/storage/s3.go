package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/metrics"
)

const (
	opList    = "list"
	opHead    = "head"
	opGet     = "get"
	opPut     = "put"
	opDelete  = "delete"
	opPresign = "presign"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Connector opens aws-sdk-go-v2 sessions. BaseEndpoint and UsePathStyle
// apply to every session and exist for S3-compatible providers.
type S3Connector struct {
	BaseEndpoint string
	UsePathStyle bool

	metrics *metrics.Metrics
	logger  logging.Logger
}

func NewS3Connector(baseEndpoint string, usePathStyle bool, m *metrics.Metrics, logger logging.Logger) *S3Connector {
	return &S3Connector{
		BaseEndpoint: baseEndpoint,
		UsePathStyle: usePathStyle,
		metrics:      m,
		logger:       logger,
	}
}

// Open builds a client from static credentials with SDK retries disabled.
func (c *S3Connector) Open(ctx context.Context, creds Credentials) (Backend, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(creds.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretKey,
			"",
		)),
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, &common.UpstreamStorageError{Op: "configure", Err: err}
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
		o.UsePathStyle = c.UsePathStyle
	})

	return newS3Backend(client, newS3PresignClient(client), creds.BucketName, c.metrics, c.logger), nil
}

type s3Backend struct {
	client    s3API
	presigner presignAPI
	bucket    string
	metrics   *metrics.Metrics
	logger    logging.Logger
}

func newS3Backend(client s3API, presigner presignAPI, bucket string, m *metrics.Metrics, logger logging.Logger) *s3Backend {
	return &s3Backend{client: client, presigner: presigner, bucket: bucket, metrics: m, logger: logger}
}

func (b *s3Backend) List(ctx context.Context, in ListInput) (_ *Listing, err error) {
	defer b.observe(ctx, opList, time.Now(), &err)

	req := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	}
	if in.Prefix != "" {
		req.Prefix = aws.String(in.Prefix)
	}
	if in.Delimiter != "" {
		req.Delimiter = aws.String(in.Delimiter)
	}
	if in.MaxKeys > 0 {
		req.MaxKeys = aws.Int32(in.MaxKeys)
	}

	out, err := b.client.ListObjectsV2(ctx, req)
	if err != nil {
		return nil, classify(opList, err)
	}

	listing := &Listing{
		CommonPrefixes: make([]string, 0, len(out.CommonPrefixes)),
		Objects:        make([]Object, 0, len(out.Contents)),
		Truncated:      aws.ToBool(out.IsTruncated),
	}
	for _, p := range out.CommonPrefixes {
		listing.CommonPrefixes = append(listing.CommonPrefixes, aws.ToString(p.Prefix))
	}
	for _, o := range out.Contents {
		listing.Objects = append(listing.Objects, Object{
			Key:          aws.ToString(o.Key),
			Size:         aws.ToInt64(o.Size),
			LastModified: aws.ToTime(o.LastModified),
		})
	}

	return listing, nil
}

func (b *s3Backend) Head(ctx context.Context, key string) (_ *ObjectInfo, err error) {
	defer b.observe(ctx, opHead, time.Now(), &err)

	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(opHead, err)
	}

	return &ObjectInfo{
		Key:           key,
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
		LastModified:  aws.ToTime(out.LastModified),
	}, nil
}

func (b *s3Backend) Get(ctx context.Context, key string) (_ *ObjectReader, err error) {
	defer b.observe(ctx, opGet, time.Now(), &err)

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(opGet, err)
	}

	size := aws.ToInt64(out.ContentLength)
	b.metrics.RecordDownload(size)

	return &ObjectReader{
		Body:          out.Body,
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: size,
	}, nil
}

func (b *s3Backend) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (err error) {
	defer b.observe(ctx, opPut, time.Now(), &err)

	in := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err = b.client.PutObject(ctx, in); err != nil {
		return classify(opPut, err)
	}

	b.metrics.RecordUpload(size)
	return nil
}

func (b *s3Backend) Delete(ctx context.Context, key string) (err error) {
	defer b.observe(ctx, opDelete, time.Now(), &err)

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify(opDelete, err)
	}
	return nil
}

// PresignGet signs a GET for key locally. It does not contact the backend.
func (b *s3Backend) PresignGet(ctx context.Context, key string, ttl time.Duration) (_ string, err error) {
	defer b.observe(ctx, opPresign, time.Now(), &err)

	req, err := b.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", &common.UpstreamStorageError{Op: opPresign, Err: err}
	}

	return req.URL, nil
}

func (b *s3Backend) observe(ctx context.Context, op string, start time.Time, errp *error) {
	status := metrics.StatusOK
	switch err := *errp; {
	case err == nil:
	case errors.Is(err, common.ErrObjectNotFound):
		status = metrics.StatusNotFound
	default:
		status = metrics.StatusError
		if b.logger != nil {
			b.logger.Warn(ctx, "storage call failed", "op", op, "bucket", b.bucket, "error", err)
		}
	}
	b.metrics.RecordStorage(op, status, time.Since(start))
}

// classify maps an SDK error to the storage error taxonomy. A missing key
// becomes common.ErrObjectNotFound; a missing bucket is an upstream failure.
func classify(op string, err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return common.ErrObjectNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return common.ErrObjectNotFound
		case "NoSuchBucket":
			return &common.UpstreamStorageError{Op: op, Err: err}
		}
	}

	var respErr *smithyhttp.ResponseError
	if op != opList && errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return common.ErrObjectNotFound
	}

	return &common.UpstreamStorageError{Op: op, Err: err}
}
