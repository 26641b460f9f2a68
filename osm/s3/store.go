// Package s3 provides an S3-compatible storage backend for osm.
//
// The adapter works against AWS S3, MinIO, LocalStack, Cloudflare R2, and
// other S3-compatible object stores. Objects are laid out as
// prefix/bucket/dataset/partition/key@vN, mirroring the filesystem backend,
// so a namespace can be reconstructed purely from key listings.
//
// Writes use PutObject with If-None-Match so a version, once written, is
// never overwritten. Backends without conditional-write support lose that
// guarantee; single-writer deployments are unaffected.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/angelini/osm/osm"
)

// API defines the subset of the S3 client interface used by the store.
// This enables testing with mock implementations.
type API interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name. Required.
	Bucket string

	// Prefix is an optional key prefix for all operations. A trailing slash
	// is added if missing.
	Prefix string
}

// Store implements osm.Store against an S3-compatible backend.
type Store struct {
	client API
	bucket string
	prefix string
}

// New creates an S3 store with the given client and configuration.
//
// The client must be pre-configured with credentials, region, and endpoint.
// Use github.com/aws/aws-sdk-go-v2/config to load configuration.
//
// Example:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	store, err := s3store.New(client, s3store.Config{Bucket: "my-bucket"})
func New(client API, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Store{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

var _ osm.Store = (*Store)(nil)

// objectKey maps one object version onto its backend key.
func (s *Store) objectKey(path osm.ObjectPath, version osm.Version) (string, error) {
	parts := []string{
		path.Partition.Dataset.Bucket,
		path.Partition.Dataset.Name,
		path.Partition.Partition,
		path.Key,
	}
	for _, part := range parts {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, "/\\") {
			return "", fmt.Errorf("%w: %q", osm.ErrInvalidPath, part)
		}
	}
	return fmt.Sprintf("%s%s/%s/%s/%s@v%d",
		s.prefix, parts[0], parts[1], parts[2], parts[3], version), nil
}

// Read returns the payload of one object version.
// Returns ErrNotFound if the version does not exist.
func (s *Store) Read(ctx context.Context, path osm.ObjectPath, version osm.Version) ([]byte, error) {
	key, err := s.objectKey(path, version)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s@%s", osm.ErrNotFound, path, version)
		}
		return nil, fmt.Errorf("s3: get object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: reading body: %w", err)
	}
	return data, nil
}

// Write stores the payload of a new object version.
// Returns ErrVersionExists if the version was already written.
func (s *Store) Write(ctx context.Context, path osm.ObjectPath, version osm.Version, data []byte) error {
	key, err := s.objectKey(path, version)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			code := apiErr.ErrorCode()
			if code == "PreconditionFailed" || code == "412" {
				return fmt.Errorf("%w: %s@%s", osm.ErrVersionExists, path, version)
			}
		}
		return fmt.Errorf("s3: put object: %w", err)
	}
	return nil
}

// Delete removes one object version.
// Returns ErrNotFound if the version does not exist. S3 DeleteObject is
// silently idempotent, so existence is checked first.
func (s *Store) Delete(ctx context.Context, path osm.ObjectPath, version osm.Version) error {
	key, err := s.objectKey(path, version)
	if err != nil {
		return err
	}

	if _, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s@%s", osm.ErrNotFound, path, version)
		}
		return fmt.Errorf("s3: head object: %w", err)
	}

	if _, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3: delete object: %w", err)
	}
	return nil
}

// ListDatasets enumerates every dataset held under the store prefix.
func (s *Store) ListDatasets(ctx context.Context) ([]osm.DatasetPath, error) {
	buckets, err := s.listCommonPrefixes(ctx, s.prefix)
	if err != nil {
		return nil, err
	}

	var out []osm.DatasetPath
	for _, bucket := range buckets {
		names, err := s.listCommonPrefixes(ctx, s.prefix+bucket+"/")
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			out = append(out, osm.DatasetPath{Bucket: bucket, Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// ListPartitions enumerates a dataset's partition keys.
func (s *Store) ListPartitions(ctx context.Context, path osm.DatasetPath) ([]string, error) {
	prefix := fmt.Sprintf("%s%s/%s/", s.prefix, path.Bucket, path.Name)
	partitions, err := s.listCommonPrefixes(ctx, prefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(partitions)
	return partitions, nil
}

// ListObjects enumerates every object version under a partition.
func (s *Store) ListObjects(ctx context.Context, path osm.PartitionPath) ([]osm.ObjectEntry, error) {
	prefix := fmt.Sprintf("%s%s/%s/%s/",
		s.prefix, path.Dataset.Bucket, path.Dataset.Name, path.Partition)

	var out []osm.ObjectEntry
	var continuationToken *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: list objects: %w", err)
		}

		for _, obj := range resp.Contents {
			if obj.Key == nil {
				continue
			}
			name := strings.TrimPrefix(*obj.Key, prefix)
			if strings.Contains(name, "/") {
				continue
			}
			key, version, ok := splitVersionedName(name)
			if !ok {
				continue
			}
			out = append(out, osm.ObjectEntry{
				Key:       key,
				Version:   version,
				SizeBytes: aws.ToInt64(obj.Size),
			})
		}

		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		continuationToken = resp.NextContinuationToken
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// listCommonPrefixes returns the child "directory" names directly under a
// prefix, via delimiter-scoped listings with full pagination.
func (s *Store) listCommonPrefixes(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	var continuationToken *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: list objects: %w", err)
		}

		for _, cp := range resp.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			name := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/")
			if name != "" {
				out = append(out, name)
			}
		}

		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		continuationToken = resp.NextContinuationToken
	}
	return out, nil
}

// splitVersionedName splits "key@vN" into its object key and version.
func splitVersionedName(name string) (string, osm.Version, bool) {
	idx := strings.LastIndex(name, "@v")
	if idx <= 0 {
		return "", 0, false
	}
	var n int64
	if _, err := fmt.Sscanf(name[idx+2:], "%d", &n); err != nil || n < 1 {
		return "", 0, false
	}
	return name[:idx], osm.Version(n), true
}

// isNotFound checks if an error indicates the object was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

// MockS3Client is a test double for API.
type MockS3Client struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// Call counters for test assertions
	PutObjectCalls    int
	DeleteObjectCalls int
}

// NewMockS3Client creates a new mock S3 client for testing.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{objects: make(map[string][]byte)}
}

// PutObject implements API.PutObject for testing.
func (m *MockS3Client) PutObject(_ context.Context, params *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutObjectCalls++

	// Handle If-None-Match: "*" (conditional write for immutability)
	if aws.ToString(params.IfNoneMatch) == "*" {
		if _, exists := m.objects[key]; exists {
			return nil, &smithyAPIError{code: "PreconditionFailed", message: "object already exists"}
		}
	}

	m.objects[key] = data
	return &awss3.PutObjectOutput{}, nil
}

// GetObject implements API.GetObject for testing.
func (m *MockS3Client) GetObject(_ context.Context, params *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)

	m.mu.RLock()
	data, exists := m.objects[key]
	m.mu.RUnlock()

	if !exists {
		return nil, &types.NoSuchKey{}
	}

	return &awss3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// HeadObject implements API.HeadObject for testing.
func (m *MockS3Client) HeadObject(_ context.Context, params *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	key := aws.ToString(params.Key)

	m.mu.RLock()
	_, exists := m.objects[key]
	m.mu.RUnlock()

	if !exists {
		return nil, &types.NoSuchKey{}
	}

	return &awss3.HeadObjectOutput{}, nil
}

// DeleteObject implements API.DeleteObject for testing.
func (m *MockS3Client) DeleteObject(_ context.Context, params *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	key := aws.ToString(params.Key)

	m.mu.Lock()
	m.DeleteObjectCalls++
	delete(m.objects, key)
	m.mu.Unlock()

	return &awss3.DeleteObjectOutput{}, nil
}

// ListObjectsV2 implements API.ListObjectsV2 for testing.
func (m *MockS3Client) ListObjectsV2(_ context.Context, params *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var contents []types.Object
	prefixSet := make(map[string]struct{})
	for key, data := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if delimiter != "" {
			rest := key[len(prefix):]
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				prefixSet[prefix+rest[:idx+1]] = struct{}{}
				continue
			}
		}
		k := key
		contents = append(contents, types.Object{
			Key:  &k,
			Size: aws.Int64(int64(len(data))),
		})
	}

	var commonPrefixes []types.CommonPrefix
	for p := range prefixSet {
		cp := p
		commonPrefixes = append(commonPrefixes, types.CommonPrefix{Prefix: &cp})
	}

	return &awss3.ListObjectsV2Output{
		Contents:       contents,
		CommonPrefixes: commonPrefixes,
		IsTruncated:    aws.Bool(false),
	}, nil
}

// smithyAPIError implements smithy.APIError for testing.
type smithyAPIError struct {
	code    string
	message string
}

func (e *smithyAPIError) Error() string {
	return e.message
}

func (e *smithyAPIError) ErrorCode() string {
	return e.code
}

func (e *smithyAPIError) ErrorMessage() string {
	return e.message
}

func (e *smithyAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}
