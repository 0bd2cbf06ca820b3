// Package resolver turns user supplied links into canonical media identifiers.
package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// URL templates for canonical links.
const (
	WatchURLTemplate    = "https://www.youtube.com/watch?v="
	PlaylistURLTemplate = "https://youtube.com/playlist?list="
)

var (
	// bareIDPattern is the only shape an identifier may take. It keeps ids
	// usable as file names inside the download directory.
	bareIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,}$`)

	supportedHostPattern = regexp.MustCompile(`(?:youtube\.com|youtu\.be)`)

	// pathIDPrefixes are path forms that carry the identifier as the next segment.
	pathIDPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}
)

// Resolve extracts the canonical identifier from raw. When isBareID is set
// the input is already an identifier and is only validated.
func Resolve(raw string, isBareID bool) (domain.MediaID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrInvalidLink
	}

	if isBareID {
		return validID(raw)
	}

	if id := queryValue(raw, "v"); id != "" {
		return validID(id)
	}
	if id := pathID(raw); id != "" {
		return domain.MediaID(id), nil
	}
	if id := queryValue(raw, "list"); id != "" {
		return validID(id)
	}
	return validID(raw)
}

// ResolvePlaylist extracts a playlist identifier. Bare identifiers are
// validated the same way Resolve does.
func ResolvePlaylist(raw string, isBareID bool) (domain.MediaID, error) {
	raw = strings.TrimSpace(raw)
	if isBareID || !strings.Contains(raw, "list=") {
		return Resolve(raw, true)
	}
	return validID(queryValue(raw, "list"))
}

func validID(s string) (domain.MediaID, error) {
	if !bareIDPattern.MatchString(s) {
		return "", domain.ErrInvalidLink
	}
	return domain.MediaID(s), nil
}

// CanonicalURL returns the watch link for id.
func CanonicalURL(id domain.MediaID) string {
	return WatchURLTemplate + id.String()
}

// PlaylistURL returns the playlist link for id.
func PlaylistURL(id domain.MediaID) string {
	return PlaylistURLTemplate + id.String()
}

// IsSupportedLink reports whether raw points at a supported provider.
func IsSupportedLink(raw string) bool {
	return supportedHostPattern.MatchString(raw)
}

// queryValue returns the value of key in raw, cut at the next '&' or '#'.
// It scans the raw text rather than parsing the URL so that mangled links
// such as "watch?feature=x&v=abc" still resolve.
func queryValue(raw, key string) string {
	marker := key + "="
	idx := -1
	for start := 0; start < len(raw); {
		i := strings.Index(raw[start:], marker)
		if i < 0 {
			break
		}
		i += start
		if i == 0 || raw[i-1] == '?' || raw[i-1] == '&' {
			idx = i
			break
		}
		start = i + len(marker)
	}
	if idx < 0 {
		return ""
	}

	value := raw[idx+len(marker):]
	if cut := strings.IndexAny(value, "&#"); cut >= 0 {
		value = value[:cut]
	}
	if unescaped, err := url.QueryUnescape(value); err == nil {
		value = unescaped
	}
	return strings.TrimSpace(value)
}

// pathID handles youtu.be/<id> and /shorts/<id> style links.
func pathID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if !strings.Contains(raw, "://") {
			u, err = url.Parse("https://" + raw)
		}
		if err != nil || u == nil || u.Host == "" {
			return ""
		}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host == "youtu.be" {
		return firstSegment(strings.TrimPrefix(u.Path, "/"))
	}
	if !supportedHostPattern.MatchString(host) {
		return ""
	}
	for _, prefix := range pathIDPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			return firstSegment(strings.TrimPrefix(u.Path, prefix))
		}
	}
	return ""
}

func firstSegment(p string) string {
	if i := strings.Index(p, "/"); i >= 0 {
		p = p[:i]
	}
	if !bareIDPattern.MatchString(p) {
		return ""
	}
	return p
}
