package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"docstore-go/internal/config"
	"docstore-go/internal/docs"
)

// s3API is the subset of *s3.Client the vault uses. The upload methods come
// from manager.UploadAPIClient so large blobs go up as multipart uploads.
type s3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Vault stores archives in an S3 bucket using the same layout as
// FileSystemVault, below an optional key prefix:
//
//	<prefix>/blobs/<key>
//	<prefix>/catalogs/<instanceID>.db
//	<prefix>/catalogs/<instanceID>.version
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   s3API
	uploader *manager.Uploader
}

// NewS3Vault creates an S3 vault from config. The region, endpoint and static
// credentials are optional; anything unset falls back to the AWS defaults.
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3VaultWithClient(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, client), nil
}

func newS3VaultWithClient(name, bucket, prefix string, client s3API) *S3Vault {
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

func (v *S3Vault) objectKey(parts ...string) string {
	if v.prefix != "" {
		parts = append([]string{v.prefix}, parts...)
	}
	return path.Join(parts...)
}

func (v *S3Vault) blobKey(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return v.objectKey("blobs", key), nil
}

// PutBlob stores a blob under key. Storing an existing key only consumes r.
func (v *S3Vault) PutBlob(key string, r io.Reader, size int64) error {
	objKey, err := v.blobKey(key)
	if err != nil {
		return err
	}
	ctx := context.Background()

	exists, err := v.exists(ctx, objKey)
	if err != nil {
		return err
	}
	if exists {
		return drain(r, size)
	}
	return v.upload(ctx, objKey, r, size)
}

// GetBlob writes the blob stored under key to w.
func (v *S3Vault) GetBlob(key string, w io.Writer) error {
	objKey, err := v.blobKey(key)
	if err != nil {
		return err
	}
	return v.download(context.Background(), objKey, w, "blob "+key)
}

// PutCatalog stores the catalog snapshot of an instance, then its version.
func (v *S3Vault) PutCatalog(instanceID string, r io.Reader, size int64, version int64) error {
	ctx := context.Background()
	if err := v.upload(ctx, v.objectKey("catalogs", instanceID+".db"), r, size); err != nil {
		return err
	}
	versionData := strings.NewReader(strconv.FormatInt(version, 10))
	return v.upload(ctx, v.objectKey("catalogs", instanceID+".version"), versionData, versionData.Size())
}

// GetCatalog writes the catalog snapshot of an instance to w.
func (v *S3Vault) GetCatalog(instanceID string, w io.Writer) error {
	return v.download(context.Background(), v.objectKey("catalogs", instanceID+".db"), w, "catalog for instance "+instanceID)
}

// CatalogVersion returns the stored catalog version, or 0 if none exists.
func (v *S3Vault) CatalogVersion(instanceID string) (int64, error) {
	var sb strings.Builder
	err := v.download(context.Background(), v.objectKey("catalogs", instanceID+".version"), &sb, "catalog version")
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	version, err := strconv.ParseInt(strings.TrimSpace(sb.String()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup() error {
	_, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{Bucket: aws.String(v.bucket)})
	if err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

// countingReader counts the bytes handed to the uploader.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (v *S3Vault) upload(ctx context.Context, key string, r io.Reader, size int64) error {
	cr := &countingReader{r: r}
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
		Body:   cr,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	if cr.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, cr.n)
	}
	return nil
}

func (v *S3Vault) download(ctx context.Context, key string, w io.Writer, what string) error {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return nil
}

func (v *S3Vault) exists(ctx context.Context, key string) (bool, error) {
	_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking %s: %w", key, err)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// Compile-time check that S3Vault implements docs.Vault interface
var _ docs.Vault = (*S3Vault)(nil)
