// Package export writes CSV reports to object storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Uploader stores an object and returns its location
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// S3Uploader uploads to a single bucket
type S3Uploader struct {
	bucket   string
	uploader *s3manager.Uploader
}

// NewS3Uploader creates an uploader using the default AWS credential chain
func NewS3Uploader(region, bucket string) (*S3Uploader, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &S3Uploader{
		bucket:   bucket,
		uploader: s3manager.NewUploader(sess),
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	out, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	logrus.WithFields(logrus.Fields{
		"bucket": u.bucket,
		"key":    key,
	}).Info("Export uploaded")
	return out.Location, nil
}

// Result describes a finished export
type Result struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Rows     int    `json:"rows"`
}

// Exporter renders rows as CSV and uploads them
type Exporter struct {
	uploader Uploader
	now      func() time.Time
}

func NewExporter(uploader Uploader) *Exporter {
	return &Exporter{uploader: uploader, now: time.Now}
}

// WriteCSV uploads header+rows under <kind>/<scope>/<timestamp>-<id>.csv
func (e *Exporter) WriteCSV(ctx context.Context, kind, scope string, header []string, rows [][]string) (*Result, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}

	if scope == "" {
		scope = "all"
	}
	key := fmt.Sprintf("%s/%s/%s-%s.csv", kind, scope, e.now().UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
	location, err := e.uploader.Upload(ctx, key, &buf, "text/csv")
	if err != nil {
		return nil, err
	}
	return &Result{Key: key, Location: location, Rows: len(rows)}, nil
}
