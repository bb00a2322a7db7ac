// Package archive uploads finished sync session reports to S3-compatible
// object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/dmitrijs2005/offsync/internal/server/config"
	"github.com/dmitrijs2005/offsync/internal/server/models"
)

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

// Nop drops reports. Used when no bucket is configured.
type Nop struct{}

func (Nop) Archive(context.Context, *models.SyncSession) error { return nil }

// S3Archiver writes one JSON document per closed session.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver builds an S3 client from the server's static credentials and
// base endpoint.
func NewS3Archiver(ctx context.Context, cfg *sc.Config) (*S3Archiver, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Archiver{client: client, bucket: cfg.S3Bucket}, nil
}

// Report is the archived form of a session.
type Report struct {
	SessionID           string                `json:"session_id"`
	DeviceID            string                `json:"device_id"`
	Type                models.SessionType    `json:"type"`
	Status              models.SessionStatus  `json:"status"`
	InitiatedBy         string                `json:"initiated_by"`
	TotalOperations     int                   `json:"total_operations"`
	CompletedOperations int                   `json:"completed_operations"`
	FailedOperations    int                   `json:"failed_operations"`
	ConflictOperations  int                   `json:"conflict_operations"`
	SuccessRate         float64               `json:"success_rate"`
	Summary             models.SessionSummary `json:"summary"`
	StartedAt           time.Time             `json:"started_at"`
	CompletedAt         *time.Time            `json:"completed_at,omitempty"`
	NextSyncAt          *time.Time            `json:"next_sync_at,omitempty"`
}

func NewReport(s *models.SyncSession) Report {
	return Report{
		SessionID:           s.ID,
		DeviceID:            s.DeviceID,
		Type:                s.Type,
		Status:              s.Status,
		InitiatedBy:         s.InitiatedBy,
		TotalOperations:     s.TotalOperations,
		CompletedOperations: s.CompletedOperations,
		FailedOperations:    s.FailedOperations,
		ConflictOperations:  s.ConflictOperations,
		SuccessRate:         s.SuccessRate,
		Summary:             s.Summary,
		StartedAt:           s.StartedAt,
		CompletedAt:         s.CompletedAt,
		NextSyncAt:          s.NextSyncAt,
	}
}

// ReportKey places reports under sessions/<device>/<yyyy>/<mm>/<dd>/<id>.json,
// dated by session start.
func ReportKey(s *models.SyncSession) string {
	d := s.StartedAt.UTC()
	return fmt.Sprintf("sessions/%s/%04d/%02d/%02d/%s.json", s.DeviceID, d.Year(), int(d.Month()), d.Day(), s.ID)
}

func (a *S3Archiver) Archive(ctx context.Context, s *models.SyncSession) error {
	body, err := json.Marshal(NewReport(s))
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	key := ReportKey(s)
	_, err = putObject(a.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
