package objectstore

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (Object, error) {
	args := m.Called(ctx, name, contentType, r)
	return args.Get(0).(Object), args.Error(1)
}

func (m *MockStore) Open(ctx context.Context, id string) (io.ReadCloser, Object, error) {
	args := m.Called(ctx, id)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Get(1).(Object), args.Error(2)
}
