package store

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
)

// S3StoreConfig configures an S3Store, in the shape of buildbeaver's S3BlobStoreConfig
// (server/services/blob/s3_store.go).
type S3StoreConfig struct {
	BucketName      string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store is the release-store Store backed by an S3 bucket; release is conceptually
// read-only for the core, so Put exists for completeness (seeding/administration tooling)
// rather than for use by the reuse oracle.
type S3Store struct {
	id       string
	s3       *s3.S3
	uploader *s3manager.Uploader
	config   S3StoreConfig
	log      logger.Log

	mu sync.RWMutex
}

func NewS3Store(id string, config S3StoreConfig, logFactory logger.LogFactory) (*S3Store, error) {
	if config.BucketName == "" {
		return nil, gerror.New(gerror.CodeValidation, "s3 store requires a bucket name")
	}
	log := logFactory("S3Store." + id)
	cfg := &aws.Config{}
	if config.Region != "" {
		cfg = cfg.WithRegion(config.Region)
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(config.AccessKeyID, config.SecretAccessKey, ""))
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeInternalInvariant, err, "create AWS session")
	}
	return &S3Store{
		id:       id,
		s3:       s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		config:   config,
		log:      log,
	}, nil
}

func (s *S3Store) ID() string { return s.id }

func (s *S3Store) RLock()   { s.mu.RLock() }
func (s *S3Store) RUnlock() { s.mu.RUnlock() }

func (s *S3Store) Get(ctx context.Context, name string) (models.ArtifactPath, bool, error) {
	return s.GetLocked(ctx, name)
}

// GetLocked assumes the caller already holds RLock; see Store.GetLocked. S3Store keeps no
// local index for RLock to protect (the bucket is the source of truth), so this does the same
// remote lookup as Get with no additional locking.
func (s *S3Store) GetLocked(ctx context.Context, name string) (models.ArtifactPath, bool, error) {
	_, err := s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.BucketName),
		Key:    aws.String(name),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return nil, false, nil
		}
		return nil, false, gerror.Wrap(gerror.CodeInternalInvariant, err, fmt.Sprintf("head object %s", name))
	}
	return artifactPath{name: name, storeID: s.id}, true, nil
}

func (s *S3Store) Put(ctx context.Context, name string, content io.Reader) (models.ArtifactPath, error) {
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Body:                 content,
		Bucket:               aws.String(s.config.BucketName),
		Key:                  aws.String(name),
		ContentType:          aws.String("application/octet-stream"),
		ServerSideEncryption: aws.String("AES256"),
	})
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeInternalInvariant, err, fmt.Sprintf("upload object %s", name))
	}
	s.log.WithField("bucket", s.config.BucketName).WithField("key", name).WithField("upload_id", out.UploadID).Debug("uploaded artifact")
	return artifactPath{name: name, storeID: s.id}, nil
}

func isNotFoundErr(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}
