package storage

import (
	"fmt"
	"mime"
	"path"
	"strings"
)

// attachmentName recovers the client filename from a room object key, falling
// back to the last key segment for keys laid out some other way.
func attachmentName(key string) string {
	base := path.Base(key)
	if _, name, found := strings.Cut(base, "__"); found && name != "" {
		return name
	}
	return base
}

// ContentDisposition builds an attachment header carrying the original filename.
func ContentDisposition(key string) string {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": attachmentName(key)})
	if disposition == "" {
		return fmt.Sprintf("attachment; filename=%q", path.Base(key))
	}
	return disposition
}
