package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in memory and answers like S3 for missing keys.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	headErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func TestStorage_InitCreatesEmptyCollectionOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := New(fake, "bucket", "users.json")

	_, err := s.Load(ctx)
	require.Error(t, err)

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Init(ctx))
	assert.Equal(t, 1, fake.puts)
	assert.Equal(t, "[]", string(fake.objects["users.json"]))
}

func TestStorage_InitPropagatesOtherErrors(t *testing.T) {
	fake := newFakeS3()
	fake.headErr = errors.New("access denied")
	s := New(fake, "bucket", "users.json")

	err := s.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Zero(t, fake.puts)
}

func TestStorage_RoundTripThroughRecordStore(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeS3(), "bucket", "users.json")
	store := database.NewRecordStore(s)
	require.NoError(t, store.Initialize(ctx))

	descriptors := []database.Descriptor{{0.1, 0.2}, {-1.5e-7, 42}}
	rec, err := store.Register(ctx, "Bob", descriptors)
	require.NoError(t, err)

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
	assert.Equal(t, descriptors, records[0].Descriptors)
	assert.True(t, rec.CreatedAt.Equal(records[0].CreatedAt))
}

func TestStorage_Describe(t *testing.T) {
	s := New(newFakeS3(), "faces", "data/users.json")
	assert.Equal(t, "s3://faces/data/users.json", s.Describe())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("boom")))
}
