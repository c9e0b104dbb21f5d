package proofs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storefront-service/internal/config"
	"storefront-service/internal/orders"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var png = orders.PaymentProof{
	Filename:    "proof.png",
	ContentType: "image/png",
	Data:        []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00"),
}

func TestLocalStore_SaveLocateDelete(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	uri, err := s.Save(ctx, png)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, URIPrefix))
	assert.Equal(t, ".png", filepath.Ext(uri))

	loc, err := s.Locate(ctx, uri)
	require.NoError(t, err)
	assert.Empty(t, loc.URL)
	assert.Equal(t, root, filepath.Dir(loc.Path))
	data, err := os.ReadFile(loc.Path)
	require.NoError(t, err)
	assert.Equal(t, png.Data, data)

	other, err := s.Save(ctx, png)
	require.NoError(t, err)
	assert.NotEqual(t, uri, other)

	require.NoError(t, s.Delete(ctx, uri))
	_, err = os.Stat(loc.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoError(t, s.Delete(ctx, uri))

	_, err = s.Locate(ctx, uri)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_RejectsForeignURIs(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, uri := range []string{
		"s3://bucket/key.png",
		"/etc/passwd",
		URIPrefix,
		URIPrefix + "..",
		URIPrefix + "../x.png",
		URIPrefix + "nested/x.png",
	} {
		assert.ErrorIs(t, s.Delete(ctx, uri), ErrNotFound, uri)
		_, err := s.Locate(ctx, uri)
		assert.ErrorIs(t, err, ErrNotFound, uri)
	}
}

func TestNewLocalStore_RequiresRoot(t *testing.T) {
	_, err := NewLocalStore("")
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{
		Method: "GET",
		URL:    "https://" + aws.ToString(in.Bucket) + ".s3.example.com/" + aws.ToString(in.Key) + "?X-Amz-Signature=abc",
	}, nil
}

func TestS3Store_SaveLocateDelete(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	s := newS3Store(api, fakePresigner{}, "shop", "payment-proofs/")
	ctx := context.Background()

	uri, err := s.Save(ctx, png)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, URIPrefix))

	key := "shop/payment-proofs/" + strings.TrimPrefix(uri, URIPrefix)
	assert.Equal(t, png.Data, api.objects[key])
	assert.Equal(t, "image/png", api.types[key])

	loc, err := s.Locate(ctx, uri)
	require.NoError(t, err)
	assert.Empty(t, loc.Path)
	assert.Equal(t, "https://shop.s3.example.com/payment-proofs/"+strings.TrimPrefix(uri, URIPrefix)+"?X-Amz-Signature=abc", loc.URL)

	require.NoError(t, s.Delete(ctx, uri))
	assert.Empty(t, api.objects)

	assert.Error(t, s.Delete(ctx, "s3://shop/payment-proofs/x.png"))
	_, err = s.Locate(ctx, URIPrefix+"../x.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_PutFailure(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}, putErr: errors.New("access denied")}
	_, err := newS3Store(api, fakePresigner{}, "shop", "").Save(context.Background(), png)
	assert.ErrorContains(t, err, "access denied")
}

func TestNew_PicksLocalWithoutBucket(t *testing.T) {
	store, err := New(context.Background(), config.ProofConfig{LocalRoot: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)
}
