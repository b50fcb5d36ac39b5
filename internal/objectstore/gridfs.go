package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/npezzotti/go-dm/internal/errs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const bucketName = "chat_files"

type bucket interface {
	UploadFromStream(filename string, source io.Reader, opts ...*options.UploadOptions) (primitive.ObjectID, error)
	OpenDownloadStream(fileID interface{}) (*gridfs.DownloadStream, error)
}

// GridFSStore keeps files in a MongoDB GridFS bucket and serves them back
// through the HTTP API under baseURL.
type GridFSStore struct {
	client  *mongo.Client
	bucket  bucket
	baseURL string
}

func NewGridFSStore(ctx context.Context, uri, database, publicURL string) (*GridFSStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	b, err := gridfs.NewBucket(client.Database(database), options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("create gridfs bucket: %w", err)
	}

	return &GridFSStore{
		client:  client,
		bucket:  b,
		baseURL: publicURL,
	}, nil
}

func (s *GridFSStore) url(id string) string {
	return s.baseURL + "/api/files/" + id
}

func (s *GridFSStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, fmt.Errorf("%w: %w", errs.ErrUpload, err)
	}

	name = CanonicalName(name)
	opts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "content_type", Value: contentType},
		{Key: "uploaded_at", Value: time.Now().UTC()},
	})

	cr := &countingReader{r: r}
	id, err := s.bucket.UploadFromStream(name, cr, opts)
	if err != nil {
		return Object{}, fmt.Errorf("%w: %w", errs.ErrUpload, err)
	}

	return Object{
		Id:          id.Hex(),
		Url:         s.url(id.Hex()),
		Name:        name,
		ContentType: contentType,
		Size:        cr.n,
	}, nil
}

func (s *GridFSStore) Open(ctx context.Context, id string) (io.ReadCloser, Object, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, Object{}, fmt.Errorf("%w: invalid file id %q", errs.ErrNotFound, id)
	}

	stream, err := s.bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, Object{}, fmt.Errorf("%w: file %q", errs.ErrNotFound, id)
		}
		return nil, Object{}, fmt.Errorf("open download stream: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}

	f := stream.GetFile()
	obj := Object{
		Id:          id,
		Url:         s.url(id),
		Name:        f.Name,
		Size:        f.Length,
		ContentType: "application/octet-stream",
	}
	if len(f.Metadata) > 0 {
		if ct, ok := f.Metadata.Lookup("content_type").StringValueOK(); ok && ct != "" {
			obj.ContentType = ct
		}
	}

	return stream, obj, nil
}

func (s *GridFSStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
