// Package aws defines functions used to interact with the AWS API
package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"bitwise74/gallery-api/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
)

const (
	// DefaultMultipartThreshold is the size above which uploads go through
	// the multipart uploader
	DefaultMultipartThreshold = 12 << 20
	cacheControl              = "public, max-age=31536000"
	// S3 accepts at most 1000 keys per DeleteObjects call
	deleteBatchSize = 1000
)

// Config holds everything needed to reach a bucket. Endpoint is only set
// for S3 compatible providers (R2, MinIO) and switches to path-style
// addressing.
type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	// PublicURL is the base of the links handed to clients. Defaults to the
	// bucket's own URL.
	PublicURL string
}

// S3Client stores media objects in a single bucket
type S3Client struct {
	C      *s3.Client
	Bucket *string

	uploader           *manager.Uploader
	publicURL          string
	MultipartThreshold int64
}

// NewS3 builds a client from the storage.* config keys
func NewS3(ctx context.Context) (*S3Client, error) {
	return New(ctx, Config{
		Bucket:          viper.GetString("storage.bucket"),
		Region:          viper.GetString("storage.region"),
		AccessKeyID:     viper.GetString("storage.access_key_id"),
		SecretAccessKey: viper.GetString("storage.secret_access_key"),
		Endpoint:        viper.GetString("storage.endpoint"),
		PublicURL:       viper.GetString("storage.public_url"),
	})
}

// New connects to the bucket described by c and makes sure it exists.
// optFns are applied to the underlying s3 client options last.
func New(ctx context.Context, c Config, optFns ...func(*s3.Options)) (*S3Client, error) {
	if c.Bucket == "" {
		return nil, errors.New("storage bucket is not set")
	}

	if c.Region == "" {
		c.Region = "auto"
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKeyID,
			c.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config, %w", err)
	}

	opts := []func(*s3.Options){func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	}}

	client := s3.NewFromConfig(cfg, append(opts, optFns...)...)
	bucket := aws.String(c.Bucket)

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", c.Bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	publicURL := c.PublicURL
	if publicURL == "" {
		publicURL = defaultPublicURL(c)
	}

	return &S3Client{
		C:                  client,
		Bucket:             bucket,
		uploader:           manager.NewUploader(client),
		publicURL:          strings.TrimSuffix(publicURL, "/"),
		MultipartThreshold: DefaultMultipartThreshold,
	}, nil
}

func defaultPublicURL(c Config) string {
	if c.Endpoint != "" {
		return strings.TrimSuffix(c.Endpoint, "/") + "/" + c.Bucket
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
}

// ObjectURL returns the public link of key
func (s *S3Client) ObjectURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}

	return s.publicURL + "/" + strings.Join(parts, "/")
}

func (s *S3Client) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*service.StoredObject, error) {
	input := &s3.PutObjectInput{
		Bucket:       s.Bucket,
		Key:          aws.String(key),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	}

	if size > s.MultipartThreshold {
		input.Body = body

		if _, err := s.uploader.Upload(ctx, input); err != nil {
			return nil, fmt.Errorf("failed to upload object, %w", err)
		}
	} else {
		// the sdk needs a seekable body to sign single part uploads
		if _, ok := body.(io.ReadSeeker); !ok {
			data, err := io.ReadAll(body)
			if err != nil {
				return nil, fmt.Errorf("failed to read object body, %w", err)
			}

			body = bytes.NewReader(data)
			size = int64(len(data))
		}

		input.Body = body
		input.ContentLength = aws.Int64(size)

		if _, err := s.C.PutObject(ctx, input); err != nil {
			return nil, fmt.Errorf("failed to put object, %w", err)
		}
	}

	return &service.StoredObject{
		Key: key,
		URL: s.ObjectURL(key),
	}, nil
}

func (s *S3Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.C.GetObject(ctx, &s3.GetObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object, %w", err)
	}

	return out.Body, nil
}

func (s *S3Client) Delete(ctx context.Context, key string) error {
	_, err := s.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object, %w", err)
	}

	return nil
}

func (s *S3Client) List(ctx context.Context, prefix string) ([]service.ObjectInfo, error) {
	p := s3.NewListObjectsV2Paginator(s.C, &s3.ListObjectsV2Input{
		Bucket: s.Bucket,
		Prefix: aws.String(prefix),
	})

	var out []service.ObjectInfo
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects, %w", err)
		}

		for _, obj := range page.Contents {
			out = append(out, service.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return out, nil
}

func (s *S3Client) DeleteMany(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := s.C.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: s.Bucket,
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects, %w", err)
		}

		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("failed to delete %d objects, first: %s %s", len(out.Errors), aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}

	return nil
}

var _ service.ObjectStore = (*S3Client)(nil)
