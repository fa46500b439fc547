package minio

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
	"github.com/turtacn/molfilter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molfilter/pkg/errors"
)

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockObjectAPI) GetObjectReader(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucketName, objectName)
	if rc, ok := args.Get(0).(io.ReadCloser); ok {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockObjectAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

type ObjectStoreTestSuite struct {
	suite.Suite
	api   *MockObjectAPI
	store *ObjectStore
	ctx   context.Context
}

func (s *ObjectStoreTestSuite) SetupTest() {
	s.api = new(MockObjectAPI)
	s.store = NewObjectStore(NewClientWithAPI(s.api, Config{}, logging.NewNopLogger()))
	s.ctx = context.Background()
}

// capture makes PutObject drain its reader into buf.
func (s *ObjectStoreTestSuite) capture(bucket, key string, buf *bytes.Buffer, mu *sync.Mutex, err error) {
	s.api.On("PutObject", mock.Anything, bucket, key, mock.Anything, int64(-1), mock.Anything).
		Run(func(args mock.Arguments) {
			data, _ := io.ReadAll(args.Get(3).(io.Reader))
			mu.Lock()
			buf.Write(data)
			mu.Unlock()
		}).
		Return(minio.UploadInfo{Bucket: bucket, Key: key}, err).Once()
}

func (s *ObjectStoreTestSuite) TestOpen_Success() {
	s.api.On("StatObject", mock.Anything, "screens", "lib.smi", mock.Anything).
		Return(minio.ObjectInfo{Key: "lib.smi", Size: 12}, nil)
	s.api.On("GetObjectReader", mock.Anything, "screens", "lib.smi").
		Return(io.NopCloser(strings.NewReader("CCO ethanol\n")), nil)

	rc, err := s.store.Open(s.ctx, "screens", "lib.smi")
	s.Require().NoError(err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Equal("CCO ethanol\n", string(data))
	s.api.AssertExpectations(s.T())
}

func (s *ObjectStoreTestSuite) TestOpen_NotFound() {
	s.api.On("StatObject", mock.Anything, "screens", "missing.sdf", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."})

	_, err := s.store.Open(s.ctx, "screens", "missing.sdf")
	s.Require().Error(err)
	s.True(errors.IsCode(err, errors.CodeInputNotFound))
	s.Equal(errors.ExitInput, errors.ExitStatus(err))
	s.Contains(err.Error(), "s3://screens/missing.sdf")
	s.api.AssertNotCalled(s.T(), "GetObjectReader", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ObjectStoreTestSuite) TestOpen_StatFailure() {
	s.api.On("StatObject", mock.Anything, "screens", "lib.smi", mock.Anything).
		Return(minio.ObjectInfo{}, stderrors.New("connection refused"))

	_, err := s.store.Open(s.ctx, "screens", "lib.smi")
	s.True(errors.IsCode(err, errors.CodeInputUnreadable))
}

func (s *ObjectStoreTestSuite) TestCreate_Upload() {
	var (
		buf bytes.Buffer
		mu  sync.Mutex
	)
	s.api.On("BucketExists", mock.Anything, "results").Return(true, nil)
	s.capture("results", "hits.sdf", &buf, &mu, nil)

	w, err := s.store.Create(s.ctx, "results", "hits.sdf")
	s.Require().NoError(err)
	_, err = w.Write([]byte("record one\n"))
	s.Require().NoError(err)
	_, err = w.Write([]byte("record two\n"))
	s.Require().NoError(err)
	s.Require().NoError(w.Close())
	s.Require().NoError(w.Close(), "Close is idempotent")

	mu.Lock()
	defer mu.Unlock()
	s.Equal("record one\nrecord two\n", buf.String())
	s.api.AssertExpectations(s.T())
}

func (s *ObjectStoreTestSuite) TestCreate_MissingBucket() {
	s.api.On("BucketExists", mock.Anything, "nope").Return(false, nil)

	_, err := s.store.Create(s.ctx, "nope", "hits.sdf")
	s.Require().Error(err)
	s.True(errors.IsCode(err, errors.CodeOutputUnwritable))
	s.Equal(errors.ExitOutput, errors.ExitStatus(err))
}

func (s *ObjectStoreTestSuite) TestCreate_UploadFailure() {
	var (
		buf bytes.Buffer
		mu  sync.Mutex
	)
	s.api.On("BucketExists", mock.Anything, "results").Return(true, nil)
	s.capture("results", "hits.sdf", &buf, &mu, stderrors.New("access denied"))

	w, err := s.store.Create(s.ctx, "results", "hits.sdf")
	s.Require().NoError(err)
	_, _ = w.Write([]byte("record\n"))
	err = w.Close()
	s.Require().Error(err)
	s.True(errors.IsCode(err, errors.CodeOutputWriteFailed))
}

func (s *ObjectStoreTestSuite) TestChemioRoundTrip() {
	var (
		buf bytes.Buffer
		mu  sync.Mutex
	)
	s.api.On("BucketExists", mock.Anything, "results").Return(true, nil)
	s.capture("results", "hits.smi.gz", &buf, &mu, nil)

	w, err := chemio.Create(s.ctx, "s3://results/hits.smi.gz", chemio.CreateOptions{
		Compression: chemio.CompressionGzip,
		Store:       s.store,
	})
	s.Require().NoError(err)
	s.Require().NoError(w.Write(chemio.Record{Raw: []byte("c1ccccc1 benzene\n")}))
	s.Require().NoError(w.Close())

	mu.Lock()
	uploaded := append([]byte(nil), buf.Bytes()...)
	mu.Unlock()
	s.api.On("StatObject", mock.Anything, "results", "hits.smi.gz", mock.Anything).
		Return(minio.ObjectInfo{Size: int64(len(uploaded))}, nil)
	s.api.On("GetObjectReader", mock.Anything, "results", "hits.smi.gz").
		Return(io.NopCloser(bytes.NewReader(uploaded)), nil)

	r, err := chemio.Open(s.ctx, "s3://results/hits.smi.gz", chemio.OpenOptions{Store: s.store})
	s.Require().NoError(err)
	defer r.Close()
	rec, err := r.Next()
	s.Require().NoError(err)
	s.Equal("benzene", rec.Name)
	s.Equal(chemio.CompressionGzip, r.Compression())
}

func TestObjectStoreTestSuite(t *testing.T) {
	suite.Run(t, new(ObjectStoreTestSuite))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchBucket"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isNotFound(stderrors.New("boom")))
}
