package detailstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config configures the S3-backed detail store. It works against AWS S3
// and S3-compatible stores via a custom endpoint.
type S3Config struct {
	Bucket string
	Prefix string

	Region   string
	Endpoint string
	Profile  string

	// ForcePathStyle uses path-style addressing; required by most
	// S3-compatible stores.
	ForcePathStyle bool

	// Explicit credentials. When empty the SDK's default chain applies.
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("s3 detail store bucket is required")
	}
	return nil
}

// S3Store stores detail documents as JSON objects under
// <prefix>/<execution_id>/{operations,results,error}.json.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds an S3 client from the config, using the SDK's default
// credential chain unless explicit credentials are provided.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *S3Store) key(id, name string) string {
	if s.prefix == "" {
		return path.Join(id, name)
	}
	return path.Join(s.prefix, id, name)
}

func (s *S3Store) WriteOperations(ctx context.Context, id string, ops []Entry) error {
	return s.putJSON(ctx, id, operationsFile, ops)
}

func (s *S3Store) WriteResults(ctx context.Context, id string, results []ResultEntry) error {
	return s.putJSON(ctx, id, resultsFile, results)
}

func (s *S3Store) WriteError(ctx context.Context, id string, message string) error {
	return s.putJSON(ctx, id, errorFile, errorDoc{Error: message})
}

func (s *S3Store) putJSON(ctx context.Context, id, name string, v any) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("execution id is required")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id, name)),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put details object: %w", err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, id string) (*Document, error) {
	var doc Document
	found := 0

	ok, err := s.getJSON(ctx, id, operationsFile, &doc.Operations)
	if err != nil {
		return nil, err
	}
	if ok {
		found++
	}
	ok, err = s.getJSON(ctx, id, resultsFile, &doc.Results)
	if err != nil {
		return nil, err
	}
	if ok {
		found++
	}
	var failure errorDoc
	ok, err = s.getJSON(ctx, id, errorFile, &failure)
	if err != nil {
		return nil, err
	}
	if ok {
		found++
		doc.Error = failure.Error
	}

	if found == 0 {
		return nil, ErrNotFound
	}
	return &doc, nil
}

// getJSON decodes one object into v, reporting whether the object existed.
func (s *S3Store) getJSON(ctx context.Context, id, name string, v any) (bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id, name)),
	})
	if err != nil {
		if isMissingKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("get details object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return false, fmt.Errorf("read details object: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("execution id is required")
	}
	objects := []types.ObjectIdentifier{
		{Key: aws.String(s.key(id, operationsFile))},
		{Key: aws.String(s.key(id, resultsFile))},
		{Key: aws.String(s.key(id, errorFile))},
	}
	_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("delete details objects: %w", err)
	}
	return nil
}

// isMissingKey reports whether err means the object does not exist. Typed
// errors come from AWS proper; S3-compatible stores often only surface a
// smithy error code.
func isMissingKey(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
