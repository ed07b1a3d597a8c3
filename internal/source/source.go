// Package source fetches chapter source documents from object storage.
package source

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("source document not found")

// ChapterKey builds the storage key a chapter PDF is uploaded under:
// pdfs/<board>/class_<n>/<subject>/chapter_<n>_<file>.
func ChapterKey(board string, classNumber int, subject string, chapterNumber int, filename string) string {
	return fmt.Sprintf("pdfs/%s/class_%d/%s/chapter_%d_%s",
		slug(board), classNumber, slug(subject), chapterNumber, filename)
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "_")
}

// normalizeKey strips a gs://bucket/ or s3://bucket/ prefix so stored refs from either form resolve.
func normalizeKey(ref string) string {
	ref = strings.TrimSpace(ref)
	for _, scheme := range []string{"gs://", "s3://"} {
		if strings.HasPrefix(ref, scheme) {
			rest := strings.TrimPrefix(ref, scheme)
			if i := strings.Index(rest, "/"); i >= 0 {
				return rest[i+1:]
			}
			return ""
		}
	}
	return strings.TrimPrefix(ref, "/")
}
