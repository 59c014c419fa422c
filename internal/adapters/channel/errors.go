package channel

import (
	"errors"
	"fmt"

	"github.com/samirrijal/mapsync/internal/core/domain"
)

// Wire error codes.
const (
	CodeOK                = "ok"
	CodeDecode            = "decode_error"
	CodeInvalidProperty   = "invalid_property"
	CodeUnknownOverlay    = "unknown_overlay"
	CodeStaleHandle       = "stale_handle"
	CodeBatchSizeMismatch = "batch_size_mismatch"
	CodeTileLimitExceeded = "tile_limit_exceeded"
	CodeCreateRegion      = "create_region_error"
	CodeRegionNotFound    = "region_not_found"
	CodeIndexOutOfRange   = "index_out_of_range"
	CodeNoActiveDownload  = "no_active_download"
	CodeUnknownMethod     = "unknown_method"
	CodeInternal          = "internal_error"
)

// UnknownMethodError reports a method name with no handler.
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown method %q", e.Method)
}

func errUnknownMethod(method string) error { return &UnknownMethodError{Method: method} }

// Code maps an error onto its wire code.
func Code(err error) string {
	var (
		decodeErr   *domain.DecodeError
		propErr     *domain.InvalidPropertyError
		unknownErr  *domain.UnknownOverlayError
		staleErr    *domain.StaleHandleError
		mismatchErr *domain.BatchSizeMismatchError
		limitErr    *domain.TileLimitExceededError
		createErr   *domain.CreateRegionError
		methodErr   *UnknownMethodError
	)
	switch {
	case err == nil:
		return CodeOK
	case errors.As(err, &methodErr):
		return CodeUnknownMethod
	case errors.As(err, &propErr):
		return CodeInvalidProperty
	case errors.As(err, &createErr):
		return CodeCreateRegion
	case errors.As(err, &decodeErr):
		return CodeDecode
	case errors.As(err, &unknownErr):
		return CodeUnknownOverlay
	case errors.As(err, &staleErr):
		return CodeStaleHandle
	case errors.As(err, &mismatchErr):
		return CodeBatchSizeMismatch
	case errors.As(err, &limitErr):
		return CodeTileLimitExceeded
	case errors.Is(err, domain.ErrRegionNotFound):
		return CodeRegionNotFound
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return CodeIndexOutOfRange
	case errors.Is(err, domain.ErrNoActiveDownload):
		return CodeNoActiveDownload
	default:
		return CodeInternal
	}
}
