package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mbhd-go/internal/config"
	"mbhd-go/internal/mbhd"
)

const s3OperationTimeout = 5 * time.Minute

// s3Client is the subset of the S3 API used by S3Target.
type s3Client interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type s3Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Target stores cloud backups as objects under a key prefix in an S3 bucket.
type S3Target struct {
	name     string
	bucket   string
	prefix   string
	client   s3Client
	uploader s3Uploader
}

// NewS3Target builds a target from the s3_* fields of cfg. Static credentials
// are used when both keys are set; otherwise the default AWS chain applies.
func NewS3Target(ctx context.Context, cfg config.CloudConfig) (*S3Target, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 target requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return newS3Target("s3", cfg.S3Bucket, cfg.S3Prefix, client, manager.NewUploader(client)), nil
}

func newS3Target(name, bucket, prefix string, client s3Client, uploader s3Uploader) *S3Target {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Target{
		name:     name,
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: uploader,
	}
}

func (t *S3Target) Name() string { return t.name }

func (t *S3Target) Location(name string) string {
	return "s3://" + t.bucket + "/" + t.key(name)
}

func (t *S3Target) key(name string) string {
	return t.prefix + name
}

func (t *S3Target) Put(name string, r io.Reader, size int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s3OperationTimeout)
	defer cancel()

	cr := &countingReader{r: r}
	_, err := t.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key(name)),
		Body:   cr,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	if cr.n != size {
		// The object is incomplete; remove it so it is never listed as a backup.
		if delErr := t.Delete(name); delErr != nil {
			err = delErr
		}
		return errors.Join(fmt.Errorf("size mismatch: expected %d bytes, got %d", size, cr.n), err)
	}
	return nil
}

func (t *S3Target) Get(name string, w io.Writer) error {
	if err := checkName(name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s3OperationTimeout)
	defer cancel()

	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key(name)),
	})
	if err != nil {
		return fmt.Errorf("downloading %s: %w", name, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	return nil
}

// List returns the objects directly under the prefix.
func (t *S3Target) List() ([]*mbhd.TargetEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s3OperationTimeout)
	defer cancel()

	var out []*mbhd.TargetEntry
	p := s3.NewListObjectsV2Paginator(t.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(t.bucket),
		Prefix: aws.String(t.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", t.bucket, t.prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), t.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			out = append(out, &mbhd.TargetEntry{Name: name, Size: aws.ToInt64(obj.Size)})
		}
	}
	return out, nil
}

func (t *S3Target) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s3OperationTimeout)
	defer cancel()

	_, err := t.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key(name)),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (t *S3Target) ValidateSetup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := t.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(t.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", t.bucket, err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ mbhd.Target = (*S3Target)(nil)
