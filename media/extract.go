// Package media derives stable identifiers from shared post URLs and resolves
// which of the predictable media URLs for an identifier is actually fetchable.
package media

import (
	"regexp"
	"strings"
)

const shareBase = "https://grok.com/imagine/post/"

var (
	postIDPattern  = regexp.MustCompile(`post/([a-f0-9-]{36})`)
	mediaIDPattern = regexp.MustCompile(`/([a-f0-9-]{36})(?:_thumbnail)?\.(?:mp4|jpg|png)$`)
	mediaExt       = regexp.MustCompile(`\.(mp4|png|jpg)$`)
)

// ExtractID returns the 36-character token that follows "post/" in rawURL.
// A URL without that shape is a normal outcome and yields ok == false.
func ExtractID(rawURL string) (string, bool) {
	m := postIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ShareURL is the canonical public page of a creation.
func ShareURL(id string) string {
	return shareBase + id
}

// MediaID recovers the identifier from a stored media file URL such as
// ".../share-videos/<id>.mp4" or ".../<id>_thumbnail.jpg".
func MediaID(mediaURL string) (string, bool) {
	m := mediaIDPattern.FindStringSubmatch(stripQuery(mediaURL))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ThumbnailURL maps a stored video or image URL to its poster frame name.
// URLs already pointing at a thumbnail, or with an unknown extension, are returned unchanged.
func ThumbnailURL(stored string) string {
	clean := stripQuery(stored)
	if strings.HasSuffix(clean, "_thumbnail.jpg") || !mediaExt.MatchString(clean) {
		return stored
	}
	return mediaExt.ReplaceAllString(clean, "") + "_thumbnail.jpg"
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
