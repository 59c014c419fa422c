package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBatchSpent is returned when a batch command is reused after execute.
	ErrBatchSpent = errors.New("batch command already executed")
	// ErrNoActiveDownload is returned by cancel when no session is in flight.
	ErrNoActiveDownload = errors.New("no active download")
	// ErrRegionNotFound is returned when a region id does not resolve.
	ErrRegionNotFound = errors.New("offline region not found")
	// ErrIndexOutOfRange is returned when a catalog index is outside the last listing.
	ErrIndexOutOfRange = errors.New("region index out of range")
)

// DecodeError reports malformed wire input.
type DecodeError struct {
	Key    string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Key == "" {
		return "decode: " + e.Reason
	}
	return fmt.Sprintf("decode %q: %s", e.Key, e.Reason)
}

// InvalidPropertyError reports a property value rejected during apply.
type InvalidPropertyError struct {
	Kind  OverlayKind
	Field string
	Err   error
}

func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("invalid %s property %q: %v", e.Kind, e.Field, e.Err)
}

func (e *InvalidPropertyError) Unwrap() error { return e.Err }

// UnknownOverlayError reports an operation on an id with no registered overlay.
type UnknownOverlayError struct {
	Kind OverlayKind
	ID   string
}

func (e *UnknownOverlayError) Error() string {
	return fmt.Sprintf("unknown %s overlay %q", e.Kind, e.ID)
}

// StaleHandleError reports an operation on a removed controller.
type StaleHandleError struct {
	Kind OverlayKind
	ID   string
}

func (e *StaleHandleError) Error() string {
	return fmt.Sprintf("%s overlay %q was removed", e.Kind, e.ID)
}

// BatchSizeMismatchError reports a surface that returned a different number
// of handles than it was given options.
type BatchSizeMismatchError struct {
	Kind      OverlayKind
	Submitted int
	Returned  int
}

func (e *BatchSizeMismatchError) Error() string {
	return fmt.Sprintf("%s batch: submitted %d overlays, surface returned %d", e.Kind, e.Submitted, e.Returned)
}

// TileLimitExceededError reports a tile limit outside (0, MaxTileCountLimit].
type TileLimitExceededError struct {
	Limit int64
}

func (e *TileLimitExceededError) Error() string {
	return fmt.Sprintf("tile limit %d outside (0, %d]", e.Limit, MaxTileCountLimit)
}

// CreateRegionError wraps a failure of the offline store to create a region.
type CreateRegionError struct {
	Err error
}

func (e *CreateRegionError) Error() string { return "create offline region: " + e.Err.Error() }

func (e *CreateRegionError) Unwrap() error { return e.Err }

// DownloadObserverError is an error reported by the store while downloading.
type DownloadObserverError struct {
	Reason  string
	Message string
}

func (e *DownloadObserverError) Error() string {
	return fmt.Sprintf("download error (%s): %s", e.Reason, e.Message)
}

// TileCountLimitExceededError reports that a region needs more tiles than
// the store's limit permits.
type TileCountLimitExceededError struct {
	Limit int64
}

func (e *TileCountLimitExceededError) Error() string {
	return fmt.Sprintf("tile count limit %d exceeded", e.Limit)
}
