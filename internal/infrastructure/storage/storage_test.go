package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
)

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{"minio:9000", "minio:9000", false, false},
		{"  minio:9000  ", "minio:9000", false, false},
		{"http://minio:9000", "minio:9000", false, false},
		{"https://s3.example.com", "s3.example.com", true, false},
		{"https://s3.example.com/", "s3.example.com", true, false},
		{"https://s3.example.com/bucket", "", false, true},
		{"http://", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, secure, err := normaliseEndpoint(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if host != tt.wantHost || secure != tt.wantSecure {
				t.Errorf("got (%q, %v), want (%q, %v)", host, secure, tt.wantHost, tt.wantSecure)
			}
		})
	}
}

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"transfer/rooms/ABC234/1700000000000__report.pdf", `attachment; filename=report.pdf`},
		{"transfer/rooms/ABC234/1700000000000__my file.txt", `attachment; filename="my file.txt"`},
		{"transfer/rooms/ABC234/1700000000000__a__b.txt", `attachment; filename=a__b.txt`},
		{"transfer/rooms/ABC234/plain.txt", `attachment; filename=plain.txt`},
	}

	for _, tt := range tests {
		if got := ContentDisposition(tt.key); got != tt.want {
			t.Errorf("ContentDisposition(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	return s
}

func TestLocalStoragePutListRemove(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	at := time.UnixMilli(1700000000000)
	keyA := domain.EncodeObjectKey(domain.DefaultRoomPrefix, "ABC234", at, "a b.txt")
	keyB := domain.EncodeObjectKey(domain.DefaultRoomPrefix, "ABC234", at.Add(time.Millisecond), "b.txt")
	other := domain.EncodeObjectKey(domain.DefaultRoomPrefix, "XYZ789", at, "c.txt")

	for _, key := range []string{keyA, keyB, other} {
		obj, err := s.Put(ctx, key, strings.NewReader("hello"), -1, "text/plain")
		if err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
		if obj.Size != 5 || obj.Key != key {
			t.Errorf("unexpected object %+v", obj)
		}
	}

	objs, err := s.List(ctx, domain.RoomPrefix(domain.DefaultRoomPrefix, "ABC234"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("expected 2 objects for the room, got %d", len(objs))
	}
	for _, o := range objs {
		if !strings.HasPrefix(o.URL, "http://localhost:8080/files/transfer/rooms/ABC234/") {
			t.Errorf("unexpected URL %q", o.URL)
		}
		if o.DownloadURL != o.URL+"?download=1" {
			t.Errorf("unexpected download URL %q", o.DownloadURL)
		}
	}

	all, err := s.List(ctx, domain.DefaultRoomPrefix)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 objects under the namespace, got %d", len(all))
	}

	for _, key := range []string{keyA, keyB} {
		if err := s.Remove(ctx, key); err != nil {
			t.Fatalf("Remove: %v", err)
		}
	}
	// idempotent
	if err := s.Remove(ctx, keyA); err != nil {
		t.Fatalf("second Remove: %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.BasePath(), "transfer", "rooms", "ABC234")); !os.IsNotExist(err) {
		t.Errorf("expected empty room directory to be removed, stat err = %v", err)
	}
}

func TestLocalStorageListMissingPrefix(t *testing.T) {
	s := newLocal(t)

	objs, err := s.List(context.Background(), "transfer/rooms/NOPE23/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objs) != 0 {
		t.Errorf("expected no objects, got %d", len(objs))
	}
}

func TestLocalStorageRejectsBadKeys(t *testing.T) {
	s := newLocal(t)

	for _, key := range []string{"../escape.txt", "transfer/../../x", "/abs/path", ""} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), 1, ""); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Put(%q) err = %v, want ErrInvalidInput", key, err)
		}
	}
}

func TestLocalStorageRejectsOversizedDeclaredSize(t *testing.T) {
	s := newLocal(t)

	_, err := s.Put(context.Background(), "transfer/rooms/ABC234/1__big.bin", strings.NewReader(""), domain.MaxFileSize+1, "")
	if !errors.Is(err, domain.ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestLocalStoragePresignUnsupported(t *testing.T) {
	s := newLocal(t)

	if _, err := s.PresignPut(context.Background(), "transfer/rooms/ABC234/1__a.txt"); !errors.Is(err, domain.ErrPresignUnsupported) {
		t.Fatalf("err = %v, want ErrPresignUnsupported", err)
	}
}
