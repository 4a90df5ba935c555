// Package services holds server-side jobs that run beside the gRPC
// endpoint: ciphertext backups of the record table to S3-compatible storage
// and the cron scheduler that triggers them.
package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
	sc "github.com/dmitrijs2005/gophledger/internal/server/config"
	"github.com/dmitrijs2005/gophledger/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

const backupContentType = "application/x-ndjson"

// BackupService dumps the record table to object storage. Records are
// written exactly as stored, so sealed fields stay sealed.
type BackupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
	now         func() time.Time
}

func NewBackupService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config, l logging.Logger) *BackupService {
	return &BackupService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		logger:      l.With("module", "backup"),
		now:         time.Now,
	}
}

// GetBackupStorageKey returns a unique object key under the day of d.
func GetBackupStorageKey(d time.Time) string {
	return fmt.Sprintf("backups/%d/%d/%d/%v.jsonl", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *BackupService) getS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, nil
}

// Backup writes every record as one JSON line and uploads the result. It
// returns the object key and the number of records written.
func (s *BackupService) Backup(ctx context.Context) (string, int, error) {

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0

	repo := s.repomanager.Records(s.db)
	err := repo.ListAll(ctx, func(r *models.Record) error {
		count++
		return enc.Encode(r)
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to read records: %w", err)
	}

	client, err := s.getS3Client(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("failed to configure storage: %w", err)
	}

	bucket := s.config.S3Bucket
	key := GetBackupStorageKey(s.now())

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(backupContentType),
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload backup: %w", err)
	}

	s.logger.Info(ctx, "Backup uploaded", "bucket", bucket, "key", key, "records", count)
	return key, count, nil
}
