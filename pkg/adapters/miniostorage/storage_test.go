package miniostorage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/minio/minio-go/v7"

	"github.com/user/postergen/pkg/ports"
)

type fakeClient struct {
	objects map[string][]byte
	removed []string
	listErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}}
}

func (f *fakeClient) BucketExists(ctx context.Context, bucket string) (bool, error) { return true, nil }

func (f *fakeClient) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return nil
}

func (f *fakeClient) StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	if _, ok := f.objects[object]; ok {
		return minio.ObjectInfo{Key: object}, nil
	}
	return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
}

func (f *fakeClient) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[object] = data
	return minio.UploadInfo{Key: object, Size: size}, nil
}

func (f *fakeClient) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(f.objects)+1)
	if f.listErr != nil {
		ch <- minio.ObjectInfo{Err: f.listErr}
	} else if _, ok := f.objects[opts.Prefix+"a.png"]; ok {
		ch <- minio.ObjectInfo{Key: opts.Prefix + "a.png"}
	}
	close(ch)
	return ch
}

func (f *fakeClient) RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error {
	f.removed = append(f.removed, object)
	delete(f.objects, object)
	return nil
}

func TestStorage_UploadNoOverwrite(t *testing.T) {
	client := newFakeClient()
	s := NewWithClient(client, Options{Endpoint: "localhost:9000", Bucket: "template-assets"})
	ctx := context.Background()

	if err := s.Upload(ctx, "tpl/a.png", "image/png", []byte("one"), false); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if err := s.Upload(ctx, "tpl/a.png", "image/png", []byte("two"), false); !errors.Is(err, ports.ErrObjectExists) {
		t.Errorf("Upload() collision error = %v, want ErrObjectExists", err)
	}
	if string(client.objects["tpl/a.png"]) != "one" {
		t.Errorf("object overwritten: %q", client.objects["tpl/a.png"])
	}
	if err := s.Upload(ctx, "tpl/a.png", "image/png", []byte("three"), true); err != nil {
		t.Errorf("Upload(overwrite) error: %v", err)
	}
}

func TestStorage_PublicURL(t *testing.T) {
	tests := []struct {
		opts Options
		want string
	}{
		{Options{Endpoint: "localhost:9000", Bucket: "template-assets"}, "http://localhost:9000/template-assets/tpl/a.png"},
		{Options{Endpoint: "s3.example.org", Bucket: "b", UseSSL: true}, "https://s3.example.org/b/tpl/a.png"},
		{Options{PublicURL: "https://cdn.example.org/assets/"}, "https://cdn.example.org/assets/tpl/a.png"},
	}
	for _, tt := range tests {
		if got := NewWithClient(newFakeClient(), tt.opts).PublicURL("tpl/a.png"); got != tt.want {
			t.Errorf("PublicURL() = %q, want %q", got, tt.want)
		}
	}
}

func TestStorage_ListAndDelete(t *testing.T) {
	client := newFakeClient()
	client.objects["tpl/a.png"] = []byte("x")
	s := NewWithClient(client, Options{Bucket: "b"})

	paths, err := s.List(context.Background(), "tpl/")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"tpl/a.png"}, paths); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
	if err := s.Delete(context.Background(), paths...); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"tpl/a.png"}, client.removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}

	client.listErr = errors.New("access denied")
	if _, err := s.List(context.Background(), "tpl/"); err == nil {
		t.Error("List() error = nil")
	}
}
