package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"editorial-desk/config"
	"editorial-desk/models"
)

// Archiver stores audit log entries before they are deleted.
type Archiver interface {
	Archive(ctx context.Context, entries []models.AuditLog) (string, error)
}

// ObjectPutter is the part of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes gzipped JSON-lines batches to an S3-compatible bucket.
type S3Archiver struct {
	client   ObjectPutter
	bucket   string
	endpoint string
	now      func() time.Time
}

// NewS3Client creates an S3 client for the configured S3-compatible endpoint.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.ArchiveS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.ArchiveS3Key, cfg.ArchiveS3Secret, "")),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.ArchiveS3URL)
		o.UsePathStyle = true
	}), nil
}

// NewS3Archiver creates an archiver writing into bucket.
func NewS3Archiver(client ObjectPutter, bucket, endpoint string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, endpoint: endpoint, now: time.Now}
}

// Archive uploads the entries as one object and returns its link.
func (a *S3Archiver) Archive(ctx context.Context, entries []models.AuditLog) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	data, err := EncodeAuditArchive(entries)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("audit-logs/audit-%s-%s.jsonl.gz",
		a.now().UTC().Format("2006-01-02T15-04-05Z"), entries[0].ID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(data),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("upload audit archive %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", a.endpoint, a.bucket, key), nil
}

// EncodeAuditArchive renders entries as gzip-compressed JSON lines.
func EncodeAuditArchive(entries []models.AuditLog) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return nil, fmt.Errorf("encode audit entry %s: %w", entries[i].ID, err)
		}
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
