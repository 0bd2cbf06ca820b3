package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidLink is returned when no media identifier can be extracted from a link.
	ErrInvalidLink = errors.New("invalid media link")

	// ErrRemoteUnavailable is returned when the conversion API cannot be reached
	// or answers with something that is not a job status.
	ErrRemoteUnavailable = errors.New("remote conversion service unavailable")

	// ErrRemoteRejected is returned when the conversion API reports a terminal
	// status other than done.
	ErrRemoteRejected = errors.New("remote conversion rejected")

	// ErrRemoteTimeout is returned when the poll budget runs out before the job is done.
	ErrRemoteTimeout = errors.New("remote conversion timed out")

	// ErrFetchFailed is returned when the converted media cannot be streamed to disk.
	ErrFetchFailed = errors.New("media fetch failed")

	// ErrNoCookies is returned when the cookie directory holds no usable cookie file.
	ErrNoCookies = errors.New("no cookie files available")

	// ErrExtractionFailed is returned when the local extraction tool produced no location.
	ErrExtractionFailed = errors.New("local extraction failed")

	// ErrLowDiskSpace is returned when the download directory is below the free space floor.
	ErrLowDiskSpace = errors.New("insufficient free space in download directory")

	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoJobs is returned when there are no jobs to process.
	ErrNoJobs = errors.New("no jobs available")
)

// FailureMessage is the single message shown to callers when every strategy failed.
const FailureMessage = "media download failed"

// MediaError wraps an error with media context.
type MediaError struct {
	ID  MediaID
	Op  string
	Err error
}

func (e *MediaError) Error() string {
	if e.ID != "" {
		return e.Op + " [" + e.ID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// NewMediaError creates a new MediaError.
func NewMediaError(id MediaID, op string, err error) *MediaError {
	return &MediaError{
		ID:  id,
		Op:  op,
		Err: err,
	}
}

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidLink, "invalid_link"},
	{ErrRemoteUnavailable, "remote_unavailable"},
	{ErrRemoteRejected, "remote_rejected"},
	{ErrRemoteTimeout, "remote_timeout"},
	{ErrFetchFailed, "fetch_failed"},
	{ErrNoCookies, "no_cookies"},
	{ErrExtractionFailed, "extraction_failed"},
	{ErrLowDiskSpace, "low_disk_space"},
}

// ErrorKind returns a short, stable name for the failure class of err.
// It returns "" for nil and "unknown" for errors outside the taxonomy.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "unknown"
}
