package artifacts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	t.Parallel()

	require.Equal(t, "raw/abc/abc_000.m4a", RawKey("abc", "/spool/abc/abc_000.m4a"))
	require.Equal(t, "transcripts/abc/abc_000.json", TranscriptKey("abc", "raw/abc/abc_000.m4a"))
	require.Equal(t, "abc", VideoIDFromKey("raw/abc/abc_000.m4a"))
	require.Equal(t, "", VideoIDFromKey("abc_000.m4a"))
}

func TestValidKey(t *testing.T) {
	t.Parallel()

	for _, k := range []string{"", "/abs/x", "raw/../etc/passwd", "raw//x", "raw/./x"} {
		require.Error(t, validKey(k), k)
	}
	require.NoError(t, validKey("raw/abc/abc_000.m4a"))
}

func TestLocal_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewLocal(t.TempDir())

	ok, err := s.Exists(ctx, "raw/v/a.m4a")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.Open(ctx, "raw/v/a.m4a")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "raw/v/a.m4a", strings.NewReader("audio"), "audio/mp4"))

	ok, err = s.Exists(ctx, "raw/v/a.m4a")
	require.NoError(t, err)
	require.True(t, ok)

	rc, err := s.Open(ctx, "raw/v/a.m4a")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "audio", string(b))

	entries, err := os.ReadDir(filepath.Join(s.Root, "raw", "v"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLocal_RejectsTraversal(t *testing.T) {
	t.Parallel()
	s := NewLocal(t.TempDir())
	require.Error(t, s.Put(context.Background(), "../escape", strings.NewReader("x"), ""))
}

func TestUploadDownload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewLocal(t.TempDir())

	src := filepath.Join(t.TempDir(), "v_001.m4a")
	require.NoError(t, os.WriteFile(src, []byte("segment bytes"), 0o644))

	key := RawKey("v", src)
	require.NoError(t, Upload(ctx, s, key, src))

	dest, err := Download(ctx, s, key, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "v_001.m4a", filepath.Base(dest))

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "segment bytes", string(b))
}

func TestDownload_Missing(t *testing.T) {
	t.Parallel()
	_, err := Download(context.Background(), NewLocal(t.TempDir()), "raw/v/none.m4a", t.TempDir())
	require.ErrorIs(t, err, ErrNotFound)
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = b
	f.types[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3_PrefixAndNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := newFakeS3()
	s := NewS3(api, "media", "scribe")

	require.NoError(t, s.Put(ctx, "raw/v/a.m4a", strings.NewReader("x"), "audio/mp4"))
	require.Contains(t, api.objects, "media/scribe/raw/v/a.m4a")
	require.Equal(t, "audio/mp4", api.types["media/scribe/raw/v/a.m4a"])

	ok, err := s.Exists(ctx, "raw/v/a.m4a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Exists(ctx, "raw/v/b.m4a")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.Open(ctx, "raw/v/b.m4a")
	require.True(t, errors.Is(err, ErrNotFound))

	rc, err := s.Open(ctx, "raw/v/a.m4a")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.Equal(t, "x", string(b))
}
