package blob

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// PresignExpiry is how long an upload ticket stays valid.
const PresignExpiry = 15 * time.Minute

type S3Config struct {
	Region        string
	AccessKey     string
	SecretKey     string
	Endpoint      string
	Bucket        string
	PublicBaseURL string
	PathStyle     bool
}

// S3Presigner issues presigned PUT URLs into a fixed bucket.
type S3Presigner struct {
	cfg S3Config
	now func() time.Time
}

func NewS3Presigner(cfg S3Config) *S3Presigner {
	return &S3Presigner{cfg: cfg, now: time.Now}
}

// StorageKey returns a fresh object key for a file named name, dated by t.
func StorageKey(t time.Time, name string) string {
	ext := strings.ToLower(path.Ext(name))
	return fmt.Sprintf("books/%d/%d/%d/%v%s", t.Year(), t.Month(), t.Day(), uuid.New(), ext)
}

// PublicURL is the address an uploaded object is served from.
func (p *S3Presigner) PublicURL(key string) string {
	base := p.cfg.PublicBaseURL
	if base == "" {
		base = p.cfg.Endpoint
	}
	return strings.TrimRight(base, "/") + "/" + p.cfg.Bucket + "/" + key
}

func (p *S3Presigner) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(p.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			p.cfg.AccessKey,
			p.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if p.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(p.cfg.Endpoint)
		}
		o.UsePathStyle = p.cfg.PathStyle
	})

	return newS3PresignClient(client), nil
}

// Presign returns a ticket for uploading a file named name. The content
// type is part of the signature, so the PUT must send the same header.
func (p *S3Presigner) Presign(ctx context.Context, name, contentType string) (Ticket, error) {
	pc, err := p.presignClient(ctx)
	if err != nil {
		return Ticket{}, err
	}

	now := p.now()
	key := StorageKey(now, name)
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(pc, ctx, in, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return Ticket{}, err
	}

	return Ticket{
		Key:       key,
		UploadURL: req.URL,
		PublicURL: p.PublicURL(key),
		ExpiresAt: now.Add(PresignExpiry),
	}, nil
}
