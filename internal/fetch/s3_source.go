package fetch

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	minio "github.com/minio/minio-go"
)

// S3Source lee snapshots de un bucket S3-compatible con el mismo layout de
// keys que el CDN (prefijo opcional).
type S3Source struct {
	client  *minio.Client
	bucket  string
	prefix  string
	archive string
}

// S3Config configura una S3Source.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	Prefix    string
	Archive   string
}

// NewS3Source conecta con el endpoint. No hace requests hasta el primer uso.
func NewS3Source(cfg S3Config) (*S3Source, error) {
	c, err := minio.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Secure)
	if err != nil {
		return nil, fmt.Errorf("s3 source: %w", err)
	}
	return &S3Source{
		client:  c,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		archive: cfg.Archive,
	}, nil
}

func (s *S3Source) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return path.Join(s.prefix, k)
}

func (s *S3Source) Latest(ctx context.Context, dataset string) (string, error) {
	done := make(chan struct{})
	defer close(done)

	var b strings.Builder
	for obj := range s.client.ListObjectsV2(s.bucket, s.key("areas/"+dataset+"/"), true, done) {
		if obj.Err != nil {
			return "", obj.Err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		b.WriteString(strings.TrimPrefix(strings.TrimPrefix(obj.Key, s.prefix), "/"))
		b.WriteByte('\n')
	}
	return latestFromListing(strings.NewReader(b.String()), dataset, s.archive)
}

func (s *S3Source) Open(ctx context.Context, dataset, version string) (*Snapshot, error) {
	key := s.key(objectKey(dataset, version, s.archive))

	sum := ""
	if side, err := s.client.GetObjectWithContext(ctx, s.bucket, key+".sha256", minio.GetObjectOptions{}); err == nil {
		b, rerr := io.ReadAll(io.LimitReader(side, 4096))
		side.Close()
		if rerr == nil {
			sum = parseChecksum(b)
		} else if !s3NotFound(rerr) {
			return nil, rerr
		}
	}

	obj, err := s.client.GetObjectWithContext(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s3Err(err, key)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, s3Err(err, key)
	}
	return &Snapshot{Body: obj, Size: info.Size, Checksum: sum}, nil
}

func s3NotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

func s3Err(err error, key string) error {
	if s3NotFound(err) {
		return fmt.Errorf("%w: s3 %s", ErrNotFound, key)
	}
	return err
}
