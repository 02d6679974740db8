package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory bucket serving both the client and uploader roles.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	headErr   error
	pageSize  int
	listCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), pageSize: 1000}
}

func (f *fakeS3) Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &manager.UploadOutput{Key: in.Key}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(f.objects[k]))),
		})
	}
	return out, nil
}

func TestS3Target_PutGetDelete(t *testing.T) {
	fake := newFakeS3()
	target := newS3Target("cloud", "bucket", "backups", fake, fake)

	if err := target.Put("mbhd-x.zip.aes", strings.NewReader("sealed"), 6); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := fake.objects["backups/mbhd-x.zip.aes"]; !ok {
		t.Fatalf("object not stored under prefixed key; have %v", fake.objects)
	}

	var buf bytes.Buffer
	if err := target.Get("mbhd-x.zip.aes", &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if buf.String() != "sealed" {
		t.Errorf("Get() = %q, want %q", buf.String(), "sealed")
	}

	if err := target.Delete("mbhd-x.zip.aes"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := target.Get("mbhd-x.zip.aes", &buf); err == nil {
		t.Error("Get() after Delete should fail")
	}
}

func TestS3Target_PutSizeMismatch(t *testing.T) {
	fake := newFakeS3()
	target := newS3Target("cloud", "bucket", "", fake, fake)

	if err := target.Put("a.aes", strings.NewReader("abc"), 10); err == nil {
		t.Fatal("Put() with wrong size should fail")
	}
	if len(fake.objects) != 0 {
		t.Errorf("incomplete object left behind: %v", fake.objects)
	}
}

func TestS3Target_List(t *testing.T) {
	fake := newFakeS3()
	fake.pageSize = 2
	fake.objects["backups/a.aes"] = []byte("1")
	fake.objects["backups/b.aes"] = []byte("22")
	fake.objects["backups/c.aes"] = []byte("333")
	fake.objects["backups/nested/d.aes"] = []byte("4444")
	fake.objects["other/e.aes"] = []byte("55555")

	target := newS3Target("cloud", "bucket", "backups/", fake, fake)
	entries, err := target.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	got := make(map[string]int64)
	for _, e := range entries {
		got[e.Name] = e.Size
	}
	want := map[string]int64{"a.aes": 1, "b.aes": 2, "c.aes": 3}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for name, size := range want {
		if got[name] != size {
			t.Errorf("List()[%q] = %d, want %d", name, got[name], size)
		}
	}
	if fake.listCalls < 2 {
		t.Errorf("listCalls = %d, want pagination across at least 2 calls", fake.listCalls)
	}
}

func TestS3Target_ValidateSetup(t *testing.T) {
	fake := newFakeS3()
	target := newS3Target("cloud", "bucket", "", fake, fake)

	if err := target.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	fake.headErr = errors.New("forbidden")
	if err := target.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() should fail when the bucket is unreachable")
	}
}

func TestS3Target_Location(t *testing.T) {
	fake := newFakeS3()
	target := newS3Target("cloud", "bucket", "mbhd", fake, fake)
	if got, want := target.Location("x.zip.aes"), "s3://bucket/mbhd/x.zip.aes"; got != want {
		t.Errorf("Location() = %q, want %q", got, want)
	}
}
