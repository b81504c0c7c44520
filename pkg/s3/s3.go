package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/benmeehan/signage-agent/pkg/file"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Scheme is the URI scheme of media kept in object storage.
const Scheme = "s3"

var ErrNotConnected = errors.New("object storage is not connected")

// ObjectStorageClient fetches media objects from S3-compatible storage.
type ObjectStorageClient interface {
	Connect(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool) error
	DownloadObject(ctx context.Context, bucket, object, outputPath string) (int64, error)
}

// ObjectStorage holds the object storage client instance
type ObjectStorage struct {
	Conn    *minio.Client
	fileOps file.FileOperations
}

// NewObjectStorage initialization
func NewObjectStorage(fileOps file.FileOperations) *ObjectStorage {
	return &ObjectStorage{fileOps: fileOps}
}

// Connect establishes the object storage connection using client
func (o *ObjectStorage) Connect(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool) error {
	conn, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	// Check connection by listing buckets
	if _, err := conn.ListBuckets(ctx); err != nil {
		return fmt.Errorf("failed to establish minio connection: %w", err)
	}

	o.Conn = conn
	return nil
}

// DownloadObject streams bucket/object into outputPath.
func (o *ObjectStorage) DownloadObject(ctx context.Context, bucket, object, outputPath string) (int64, error) {
	if o.Conn == nil {
		return 0, ErrNotConnected
	}

	obj, err := o.Conn.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to get object %s/%s: %w", bucket, object, err)
	}
	defer obj.Close()

	n, err := o.fileOps.WriteFromReader(outputPath, obj)
	if err != nil {
		return 0, fmt.Errorf("failed to write object %s/%s to %s: %w", bucket, object, outputPath, err)
	}
	return n, nil
}

// ParseURI splits an s3://bucket/key URI.
func ParseURI(uri string) (bucket, object string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != Scheme {
		return "", "", fmt.Errorf("not an %s URI: %s", Scheme, uri)
	}

	object = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || object == "" {
		return "", "", fmt.Errorf("s3 URI must name a bucket and an object: %s", uri)
	}
	return u.Host, object, nil
}
