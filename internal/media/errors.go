package media

import "errors"

// Pipeline error sentinels. Stage code wraps these with %w so callers can
// classify failures with errors.Is across the async completion boundary.
var (
	// ErrNoVideoTrack means the source has no decodable video stream.
	ErrNoVideoTrack = errors.New("no video track")

	// ErrEncodeFailed means the encode session failed or produced a
	// truncated output file.
	ErrEncodeFailed = errors.New("encode failed")

	// ErrDetectionUnavailable means a blur pass was requested but no face
	// detector is configured.
	ErrDetectionUnavailable = errors.New("face detection unavailable")

	// ErrTimeout means a bounded wait elapsed before the work finished.
	ErrTimeout = errors.New("processing timed out")
)
