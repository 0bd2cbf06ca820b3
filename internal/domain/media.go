package domain

import "strings"

// MediaID is the canonical short identifier of a piece of remote media.
type MediaID string

// String returns the string representation of the MediaID.
func (id MediaID) String() string {
	return string(id)
}

// MediaKind selects between audio and video acquisition.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// webm is valid for both kinds, so a {id}.webm written for one kind is a
// cache hit for the other when no kind specific container exists.
var kindExtensions = map[MediaKind][]string{
	KindAudio: {"mp3", "m4a", "webm"},
	KindVideo: {"mp4", "webm", "mkv"},
}

// ParseMediaKind maps user input to a MediaKind. Anything that is not
// "video" is treated as audio.
func ParseMediaKind(s string) MediaKind {
	if strings.EqualFold(strings.TrimSpace(s), string(KindVideo)) {
		return KindVideo
	}
	return KindAudio
}

// Extensions returns the allowed cache extensions in probe priority order.
func (k MediaKind) Extensions() []string {
	exts := kindExtensions[k]
	out := make([]string, len(exts))
	copy(out, exts)
	return out
}

// DefaultExtension is the extension used when the remote side declares none.
func (k MediaKind) DefaultExtension() string {
	return kindExtensions[k][0]
}

// AllowsExtension reports whether ext belongs to the kind's extension set.
func (k MediaKind) AllowsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range kindExtensions[k] {
		if e == ext {
			return true
		}
	}
	return false
}

// Endpoint is the path segment the conversion API uses for this kind.
func (k MediaKind) Endpoint() string {
	if k == KindVideo {
		return "video"
	}
	return "song"
}

// IsValid reports whether k is a known kind.
func (k MediaKind) IsValid() bool {
	_, ok := kindExtensions[k]
	return ok
}

// MediaRequest is one caller's request for a playable file.
type MediaRequest struct {
	rawLink  string
	kind     MediaKind
	isBareID bool
}

// NewMediaRequest creates a MediaRequest. Unknown kinds fall back to audio.
func NewMediaRequest(rawLink string, kind MediaKind, isBareID bool) MediaRequest {
	if !kind.IsValid() {
		kind = KindAudio
	}
	return MediaRequest{
		rawLink:  rawLink,
		kind:     kind,
		isBareID: isBareID,
	}
}

// RawLink returns the link or identifier as supplied by the caller.
func (r MediaRequest) RawLink() string { return r.rawLink }

// Kind returns the requested media kind.
func (r MediaRequest) Kind() MediaKind { return r.kind }

// IsBareID reports whether RawLink is already a canonical identifier.
func (r MediaRequest) IsBareID() bool { return r.isBareID }

// RemoteStatus is the job status reported by the conversion API.
type RemoteStatus string

const (
	RemoteQueued      RemoteStatus = "queued"
	RemoteDownloading RemoteStatus = "downloading"
	RemoteProcessing  RemoteStatus = "processing"
	RemoteDone        RemoteStatus = "done"
)

// InProgress reports whether the job may still complete.
func (s RemoteStatus) InProgress() bool {
	return s == RemoteQueued || s == RemoteDownloading || s == RemoteProcessing
}

// RemoteLocation is where a finished conversion can be fetched from.
type RemoteLocation struct {
	URL    string
	Format string
}

// Strategy names the acquisition path that produced a result.
type Strategy string

const (
	StrategyNone     Strategy = "none"
	StrategyCache    Strategy = "cache"
	StrategyRemote   Strategy = "remote"
	StrategyFallback Strategy = "fallback"
)

// DownloadResult is the terminal outcome of an acquisition. Path is either a
// local file or, for the video fallback, a directly playable URL.
type DownloadResult struct {
	ID       MediaID
	Path     string
	OK       bool
	Strategy Strategy
	// Err is the last strategy failure, kept for logs and history only.
	Err error
}

// Failed builds an unsuccessful result.
func Failed(id MediaID, err error) DownloadResult {
	return DownloadResult{
		ID:       id,
		Strategy: StrategyNone,
		Err:      err,
	}
}

// Message returns the path on success and the uniform failure text otherwise.
func (r DownloadResult) Message() string {
	if r.OK {
		return r.Path
	}
	return FailureMessage
}
