package domain

import (
	"testing"
	"time"
)

func TestEncodeObjectKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	got := EncodeObjectKey(DefaultRoomPrefix, "ABC234", at, "dir/sub/report.pdf")
	want := "transfer/rooms/ABC234/1700000000123__dir_sub_report.pdf"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecodeObjectKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		ok       bool
		wantCode RoomCode
		wantName string
		wantMs   int64 // 0 means zero time
	}{
		{"plain", "transfer/rooms/ABC234/1700000000123__a.txt", true, "ABC234", "a.txt", 1700000000123},
		{"double underscore in name", "transfer/rooms/ABC234/1700000000123__my__file.txt", true, "ABC234", "my__file.txt", 1700000000123},
		{"no infix", "transfer/rooms/ABC234/legacy.txt", true, "ABC234", "legacy.txt", 0},
		{"empty name after infix", "transfer/rooms/ABC234/1700000000123__", true, "ABC234", "1700000000123__", 0},
		{"bad epoch", "transfer/rooms/ABC234/soon__a.txt", true, "ABC234", "a.txt", 0},
		{"other namespace", "other/ABC234/1__a.txt", false, "", "", 0},
		{"no file segment", "transfer/rooms/ABC234", false, "", "", 0},
		{"empty file segment", "transfer/rooms/ABC234/", false, "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeObjectKey(DefaultRoomPrefix, tt.key)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Code != tt.wantCode || got.Name != tt.wantName {
				t.Errorf("got (%q, %q), want (%q, %q)", got.Code, got.Name, tt.wantCode, tt.wantName)
			}
			if tt.wantMs == 0 {
				if !got.UploadedAt.IsZero() {
					t.Errorf("expected zero time, got %v", got.UploadedAt)
				}
			} else if got.UploadedAt.UnixMilli() != tt.wantMs {
				t.Errorf("uploadedAt = %d, want %d", got.UploadedAt.UnixMilli(), tt.wantMs)
			}
		})
	}
}

func TestObjectKeyRoundTrip(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	names := []string{"a.txt", "a b.txt", "x__y__z.bin", "nested/path/file.tar.gz", "日本語.txt"}

	for _, name := range names {
		key := EncodeObjectKey(DefaultRoomPrefix, "XYZ789", at, name)
		decoded, ok := DecodeObjectKey(DefaultRoomPrefix, key)
		if !ok {
			t.Fatalf("key %q did not decode", key)
		}
		if decoded.Name != SanitizeFilename(name) {
			t.Errorf("name %q decoded as %q", name, decoded.Name)
		}
		if !decoded.UploadedAt.Equal(at) {
			t.Errorf("time %v decoded as %v", at, decoded.UploadedAt)
		}
	}
}
