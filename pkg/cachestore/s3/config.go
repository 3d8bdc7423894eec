// Package s3 implements the cache store for AWS S3 and S3-compatible storage.
package s3

import "strings"

// Config configures an S3 cache store.
//
// Authentication priority (AWS SDK v2 default chain):
//  1. Explicit AccessKeyID/SecretAccessKey (if provided)
//  2. Environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
//  3. Shared credentials file (~/.aws/credentials)
//  4. Shared config file (~/.aws/config) with profile
//  5. EC2 instance metadata / ECS task role / EKS IRSA
//
// For S3-compatible stores (Wasabi, MinIO, DigitalOcean Spaces), set
// Endpoint and typically ForcePathStyle.
type Config struct {
	// Bucket is the cache bucket name (required).
	Bucket string

	// Prefix is prepended to every cache object key, e.g. "gridrun-cache/".
	Prefix string

	// Region is the AWS region.
	// For AWS S3: defaults to us-east-1 if not specified via config or
	// environment. For S3-compatible (when Endpoint is set): no default.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	// Leave empty for AWS S3.
	Endpoint string

	// Profile is the AWS profile name to use from shared config.
	Profile string

	// AccessKeyID is an explicit access key. If set, SecretAccessKey must
	// also be set. Takes precedence over the default credential chain.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key. Required if AccessKeyID
	// is set.
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs (bucket in path, not
	// subdomain). Required for most S3-compatible stores.
	ForcePathStyle bool

	// RequestsPerSecond caps List/Get/Put/Delete calls during prime and
	// save walks. Zero means unlimited.
	RequestsPerSecond float64
}

// DefaultAWSRegion is the fallback region for AWS S3 when not specified.
const DefaultAWSRegion = "us-east-1"

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}

	// If one explicit credential is set, both must be set
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "s3 cache config: " + e.Field + ": " + e.Message
}

// resolveRegion applies the region defaulting rules.
//
// Custom endpoints get no default region; plain AWS falls back to
// us-east-1 when neither config nor environment resolved one.
func resolveRegion(configured, endpoint, resolved string) string {
	if configured != "" {
		return configured
	}
	if resolved != "" {
		return resolved
	}
	if strings.TrimSpace(endpoint) != "" {
		return resolved
	}
	return DefaultAWSRegion
}
