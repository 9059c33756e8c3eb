package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver stores JSON documents and returns a reference to them.
type Archiver interface {
	PutJSON(ctx context.Context, key string, v any) (string, error)
}

type Options struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Archiver struct {
	s3     objectAPI
	bucket string
}

// NewS3 builds an archiver from static credentials when given, otherwise from
// the default AWS credential chain. A custom endpoint (MinIO) switches to
// path-style addressing.
func NewS3(ctx context.Context, opts Options) (*S3Archiver, error) {
	if opts.Bucket == "" {
		return nil, errors.New("archive bucket is not set")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			endpoint := opts.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "http://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archiver{s3: client, bucket: opts.Bucket}, nil
}

func (a *S3Archiver) PutJSON(ctx context.Context, key string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	_, err = a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// GetJSON decodes the object behind an s3://bucket/key reference into v.
func (a *S3Archiver) GetJSON(ctx context.Context, ref string, v any) error {
	bucket, key, err := parseRef(ref)
	if err != nil {
		return err
	}
	out, err := a.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("get %s: %w", ref, err)
	}
	defer out.Body.Close()
	if err := json.NewDecoder(out.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", ref, err)
	}
	return nil
}

func parseRef(ref string) (string, string, error) {
	const p = "s3://"
	if !strings.HasPrefix(ref, p) {
		return "", "", fmt.Errorf("bad s3 ref (missing s3://): %q", ref)
	}
	s := strings.TrimPrefix(ref, p)
	slash := strings.IndexByte(s, '/')
	if slash <= 0 || slash == len(s)-1 {
		return "", "", fmt.Errorf("bad s3 ref (need bucket/key): %q", ref)
	}
	return s[:slash], s[slash+1:], nil
}

// RecalcRunKey is where a recalculation summary is archived.
func RecalcRunKey(runID string) string {
	return "recalc-runs/" + runID + ".json"
}
