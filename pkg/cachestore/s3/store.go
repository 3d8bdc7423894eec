package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	"github.com/3leaps/gridrun/pkg/cachestore"
)

// Store implements cachestore.Store backed by an S3 bucket.
//
// Entry layout mirrors the local store: every file of an entry becomes one
// object under "<prefix><key>/<relative path>". Entries for different keys
// never overlap, so concurrent matrix jobs do not contend.
type Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	limiter *rate.Limiter
}

// New creates an S3 cache store with the given configuration.
//
// The store uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &cachestore.StoreError{Op: "New", Backend: "s3", Err: err}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Store{
		client:  s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:  cfg.Bucket,
		prefix:  normalizePrefix(cfg.Prefix),
		limiter: limiter,
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	// Only apply explicit region if set; let SDK resolve from env/profile.
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for long-term credentials)
		)
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	awsCfg.Region = resolveRegion(cfg.Region, cfg.Endpoint, awsCfg.Region)

	return awsCfg, nil
}

// entryPrefix returns the object key prefix for a cache entry.
func (s *Store) entryPrefix(key string) string {
	return s.prefix + key + "/"
}

// Prime restores the entry for key into dest.
func (s *Store) Prime(ctx context.Context, key, dest string) error {
	prefix := s.entryPrefix(key)
	found := false

	var token *string
	for {
		if err := s.wait(ctx); err != nil {
			return s.wrapError("Prime", key, err)
		}

		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return s.wrapError("Prime", key, err)
		}

		for _, obj := range out.Contents {
			found = true
			rel := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if rel == "" {
				continue
			}
			if err := s.download(ctx, aws.ToString(obj.Key), filepath.Join(dest, filepath.FromSlash(rel))); err != nil {
				return s.wrapError("Prime", key, err)
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	if !found {
		return &cachestore.StoreError{Op: "Prime", Backend: "s3", Key: key, Err: cachestore.ErrCacheMiss}
	}
	return nil
}

// Save persists src as the entry for key.
//
// Every local file is uploaded, then remote objects with no local
// counterpart are deleted so the persisted entry mirrors the pruned
// directory exactly.
func (s *Store) Save(ctx context.Context, key, src string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return s.wrapError("Save", key, err)
	}

	prefix := s.entryPrefix(key)
	local := make(map[string]struct{})

	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		local[rel] = struct{}{}
		return s.upload(ctx, p, prefix+rel)
	})
	if err != nil {
		return s.wrapError("Save", key, err)
	}

	if err := s.deleteStale(ctx, prefix, local); err != nil {
		return s.wrapError("Save", key, err)
	}
	return nil
}

// Close releases resources. The SDK client holds no closable state.
func (s *Store) Close() error {
	return nil
}

func (s *Store) download(ctx context.Context, objectKey, dest string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return err
	}
	defer func() { _ = out.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *Store) upload(ctx context.Context, localPath, objectKey string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   f,
	})
	return err
}

// deleteStale removes remote objects under prefix with no local counterpart.
func (s *Store) deleteStale(ctx context.Context, prefix string, local map[string]struct{}) error {
	var token *string
	for {
		if err := s.wait(ctx); err != nil {
			return err
		}

		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return err
		}

		for _, obj := range out.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if _, ok := local[rel]; ok {
				continue
			}
			if err := s.wait(ctx); err != nil {
				return err
			}
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return err
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return nil
}

func (s *Store) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// wrapError maps SDK errors onto the cachestore sentinels.
func (s *Store) wrapError(op, key string, err error) error {
	wrapped := &cachestore.StoreError{Op: op, Backend: "s3", Key: key, Err: err}

	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &noSuchKey):
		wrapped.Err = cachestore.ErrCacheMiss
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = fmt.Errorf("%w: bucket %s", cachestore.ErrStoreUnavailable, s.bucket)
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			wrapped.Err = cachestore.ErrCacheMiss
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = cachestore.ErrAccessDenied
		case "NoSuchBucket", "ServiceUnavailable", "InternalError", "SlowDown":
			wrapped.Err = cachestore.ErrStoreUnavailable
		}
	}
	return wrapped
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return strings.TrimPrefix(path.Clean(p)+"/", "./")
}

// Compile-time check that Store implements cachestore.Store.
var _ cachestore.Store = (*Store)(nil)
