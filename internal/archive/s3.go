package archive

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	crd "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Config struct {
	Bucket    string
	Region    string
	Prefix    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// ObjectPutter is the part of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver copies run outputs to a bucket under <prefix>/<run id>/.
type S3Archiver struct {
	client ObjectPutter
	cfg    Config
	log    *slog.Logger
}

func NewS3Archiver(ctx context.Context, cfg Config, log *slog.Logger) (*S3Archiver, error) {
	if log == nil {
		log = slog.Default()
	}

	opts := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsCfg.WithCredentialsProvider(crd.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsCfg.WithBaseEndpoint(cfg.Endpoint))
	}

	awsConfig, err := awsCfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	// Custom endpoints (LocalStack, MinIO) rarely support virtual hosted addressing.
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	})

	return NewS3ArchiverWithClient(client, cfg, log), nil
}

func NewS3ArchiverWithClient(client ObjectPutter, cfg Config, log *slog.Logger) *S3Archiver {
	if log == nil {
		log = slog.Default()
	}
	return &S3Archiver{
		client: client,
		cfg:    cfg,
		log:    log.With("component", "archive"),
	}
}

// Key returns the object key for a local file of the given run.
func (a *S3Archiver) Key(runID, file string) string {
	return path.Join(strings.Trim(a.cfg.Prefix, "/"), runID, filepath.Base(file))
}

// Upload puts every file and returns their s3:// URIs in the same order. It stops
// at the first failure.
func (a *S3Archiver) Upload(ctx context.Context, runID string, files ...string) ([]string, error) {
	uris := make([]string, 0, len(files))
	for _, file := range files {
		uri, err := a.put(ctx, runID, file)
		if err != nil {
			return uris, err
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

func (a *S3Archiver) put(ctx context.Context, runID, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	key := a.Key(runID, file)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3: %w", file, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", a.cfg.Bucket, key)
	a.log.Debug("file archived", "file", file, "uri", uri)
	return uri, nil
}

func contentType(file string) string {
	ext := strings.ToLower(filepath.Ext(file))
	if ext == ".xlsx" {
		return xlsxContentType
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
