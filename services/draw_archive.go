package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/kendall-kelly/servicehub-api/config"
)

// DrawArchive keeps closed draw reports outside the database
type DrawArchive interface {
	StoreDrawReport(ctx context.Context, report *DrawReport) (string, error)
	ReportURL(ctx context.Context, key string) (string, error)
}

// drawReportKey is the object key of a period's report
func drawReportKey(year, month int) string {
	return fmt.Sprintf("raffle-draws/%04d/%02d.json", year, month)
}

// S3DrawArchive stores draw reports as JSON objects in an S3 bucket
type S3DrawArchive struct {
	client *s3.Client
	bucket string
}

// NewS3DrawArchive builds the S3 client from the application config
func NewS3DrawArchive(ctx context.Context, cfg *appConfig.Config) (*S3DrawArchive, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3DrawArchive{
		client: s3.NewFromConfig(awsConfig),
		bucket: cfg.AWSS3Bucket,
	}, nil
}

// StoreDrawReport uploads the report and returns its key
func (a *S3DrawArchive) StoreDrawReport(ctx context.Context, report *DrawReport) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode draw report: %w", err)
	}

	key := drawReportKey(report.Year, report.Month)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload draw report: %w", err)
	}

	return key, nil
}

// ReportURL returns a presigned download link valid for one hour
func (a *S3DrawArchive) ReportURL(ctx context.Context, key string) (string, error) {
	presignClient := s3.NewPresignClient(a.client)
	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = time.Hour
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return request.URL, nil
}
