package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	listed  []types.Object
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var out []types.Object
	for _, o := range f.listed {
		if strings.HasPrefix(aws.ToString(o.Key), aws.ToString(in.Prefix)) {
			out = append(out, o)
		}
	}
	return &s3.ListObjectsV2Output{Contents: out, IsTruncated: aws.Bool(false)}, nil
}

func TestWriterPutThenRead(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	w := &Writer{client: api, bucket: "exports"}
	r := &Reader{client: api, bucket: "exports"}

	require.NoError(t, w.Put(ctx, "exports/a.csv", strings.NewReader("symbol\nABC\n"), "text/csv"))
	assert.Equal(t, "text/csv", api.types["exports/a.csv"])

	ok, err := r.Exists(ctx, "exports/a.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	body, err := r.Get(ctx, "exports/a.csv")
	require.NoError(t, err)
	defer body.Close()
	b, _ := io.ReadAll(body)
	assert.Equal(t, "symbol\nABC\n", string(b))
}

func TestReaderMissingObject(t *testing.T) {
	ctx := context.Background()
	r := &Reader{client: newFakeS3(), bucket: "exports"}

	ok, err := r.Exists(ctx, "nope.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.Get(ctx, "nope.csv")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReaderListNewestFirst(t *testing.T) {
	api := newFakeS3()
	t0 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	api.listed = []types.Object{
		{Key: aws.String("exports/old.csv"), Size: aws.Int64(10), LastModified: aws.Time(t0)},
		{Key: aws.String("exports/new.csv"), Size: aws.Int64(20), LastModified: aws.Time(t0.Add(time.Hour))},
		{Key: aws.String("other/x.csv"), Size: aws.Int64(5), LastModified: aws.Time(t0)},
		{Key: aws.String("exports/"), Size: aws.Int64(0), LastModified: aws.Time(t0.Add(2 * time.Hour))},
	}

	infos, err := (&Reader{client: api, bucket: "exports"}).List(context.Background(), "exports/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "exports/new.csv", infos[0].Path)
	assert.Equal(t, int64(20), infos[0].Size)
	assert.Equal(t, "text/csv", infos[0].ContentType)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.False(t, isNotFound(errors.New("access denied")))
	assert.False(t, isNotFound(nil))
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("http://minio:9000", true))
}
