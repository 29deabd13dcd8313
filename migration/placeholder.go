package migration

import "strings"

// PlaceholderPrefix marks a post url that was detached mid-migration.
const PlaceholderPrefix = "TEMP_MIGRATE_"

const (
	placeholderSep = "|"
	// size of the posts.url column
	maxStoredURL = 768
	// compact payloads keep only the part of the url ExtractID reads
	compactPayloadPrefix = "post/"
)

// Placeholder builds the detached url for a post: the prefix, the old id and
// the real url it gave up. When that would not fit the url column the payload
// shrinks to "post/<target>". It can never equal a real url.
func Placeholder(oldID, sourceURL, target string) string {
	full := PlaceholderPrefix + oldID + placeholderSep + sourceURL
	if len(full) <= maxStoredURL {
		return full
	}
	return PlaceholderPrefix + oldID + placeholderSep + compactPayloadPrefix + target
}

// IsPlaceholder reports whether url carries the placeholder marker.
func IsPlaceholder(url string) bool {
	return strings.HasPrefix(url, PlaceholderPrefix)
}

// ParsePlaceholder splits a placeholder into the old id and its payload, which is
// either the real url or a compact "post/<target>". Markers without a payload
// yield an empty payload.
func ParsePlaceholder(url string) (oldID, payload string, ok bool) {
	if !IsPlaceholder(url) {
		return "", "", false
	}
	rest := strings.TrimPrefix(url, PlaceholderPrefix)
	oldID, payload, _ = strings.Cut(rest, placeholderSep)
	return oldID, payload, true
}

// isCompactPayload reports whether the real url was dropped from the placeholder.
func isCompactPayload(payload string) bool {
	return strings.HasPrefix(payload, compactPayloadPrefix)
}
