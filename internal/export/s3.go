package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"bearing-fault-sim/internal/models"
	"bearing-fault-sim/internal/trace"
)

// ErrNoBucket бакет не настроен
var ErrNoBucket = errors.New("s3 bucket is not configured")

// Config параметры выгрузки
type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// S3Exporter выгружает наборы данных в S3
type S3Exporter struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3Exporter создает клиент из стандартной цепочки учетных данных AWS
func NewS3Exporter(cfg Config) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewWithClient(s3.New(sess), cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient создает экспортер поверх готового клиента S3
func NewWithClient(client s3iface.S3API, bucket, prefix string) *S3Exporter {
	return &S3Exporter{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key ключ объекта для набора name
func (e *S3Exporter) Key(name string) string {
	name = strings.TrimSuffix(name, ".csv") + ".csv"
	if e.prefix == "" {
		return name
	}
	return path.Join(e.prefix, name)
}

// ExportRides пишет поездки в CSV и выгружает в s3://bucket/prefix/<name>.csv.
// Возвращает URI объекта.
func (e *S3Exporter) ExportRides(ctx context.Context, name string, rides []models.RideSample) (string, error) {
	var buf bytes.Buffer
	w, err := trace.NewDatasetWriter(&buf)
	if err != nil {
		return "", err
	}
	for _, r := range rides {
		if err := w.WriteRide(r); err != nil {
			return "", err
		}
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return e.Upload(ctx, name, buf.Bytes())
}

// Upload кладет готовый CSV
func (e *S3Exporter) Upload(ctx context.Context, name string, body []byte) (string, error) {
	key := e.Key(name)
	_, err := e.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", e.bucket, key), nil
}
