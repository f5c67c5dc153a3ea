package domain

import (
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultRoomPrefix is the namespace every room's objects live under.
	DefaultRoomPrefix = "transfer/rooms/"

	keyInfix = "__"
)

// RoomPrefix returns the listing prefix for one room, e.g. "transfer/rooms/ABC234/".
func RoomPrefix(roomPrefix string, code RoomCode) string {
	return roomPrefix + string(code) + "/"
}

// SanitizeFilename replaces path separators so a filename stays a single key segment.
func SanitizeFilename(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}

// EncodeObjectKey lays out <roomPrefix><code>/<epochMillis>__<sanitized name>.
func EncodeObjectKey(roomPrefix string, code RoomCode, uploadedAt time.Time, filename string) string {
	return RoomPrefix(roomPrefix, code) +
		strconv.FormatInt(uploadedAt.UnixMilli(), 10) +
		keyInfix +
		SanitizeFilename(filename)
}

// DecodedKey is what can be recovered from a stored object's key alone.
type DecodedKey struct {
	Code       RoomCode
	Name       string
	UploadedAt time.Time // zero when the key carries no parsable epoch
}

// DecodeObjectKey reverses EncodeObjectKey. Everything after the first "__" is the
// display name, so names that contain "__" survive intact.
func DecodeObjectKey(roomPrefix, key string) (DecodedKey, bool) {
	if !strings.HasPrefix(key, roomPrefix) {
		return DecodedKey{}, false
	}

	code, rest, found := strings.Cut(strings.TrimPrefix(key, roomPrefix), "/")
	if !found || code == "" || rest == "" {
		return DecodedKey{}, false
	}

	decoded := DecodedKey{Code: RoomCode(code)}

	stamp, name, found := strings.Cut(rest, keyInfix)
	if !found || name == "" {
		decoded.Name = rest
		return decoded, true
	}

	decoded.Name = name
	if millis, err := strconv.ParseInt(stamp, 10, 64); err == nil {
		decoded.UploadedAt = time.UnixMilli(millis)
	}

	return decoded, true
}

// keyEpoch returns the epoch infix of a key's last segment, or 0 without one.
func keyEpoch(key string) int64 {
	base := key[strings.LastIndex(key, "/")+1:]
	stamp, _, found := strings.Cut(base, keyInfix)
	if !found {
		return 0
	}
	millis, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return 0
	}
	return millis
}
