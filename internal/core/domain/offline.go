package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// MaxTileCountLimit is the largest tile count limit the offline store accepts.
const MaxTileCountLimit = 6000

// MetadataIDKey is the metadata key that carries the caller-assigned
// logical region id.
const MetadataIDKey = "id"

// OfflineRegionDefinition describes the tile pyramid of one offline region.
type OfflineRegionDefinition struct {
	StyleURL   string  `json:"mapStyleUrl"`
	Bounds     Bounds  `json:"bounds"`
	MinZoom    float64 `json:"minZoom"`
	MaxZoom    float64 `json:"maxZoom"`
	PixelRatio float64 `json:"pixelRatio"`
}

// Validate checks zoom range, bounds and pixel ratio.
func (d OfflineRegionDefinition) Validate() error {
	var errs []string
	if strings.TrimSpace(d.StyleURL) == "" {
		errs = append(errs, "mapStyleUrl is required")
	}
	if math.IsNaN(d.MinZoom) || math.IsNaN(d.MaxZoom) || d.MinZoom < 0 {
		errs = append(errs, "zoom levels must be non-negative numbers")
	}
	if d.MinZoom > d.MaxZoom {
		errs = append(errs, fmt.Sprintf("minZoom %.2f exceeds maxZoom %.2f", d.MinZoom, d.MaxZoom))
	}
	if d.PixelRatio <= 0 {
		errs = append(errs, "pixelRatio must be positive")
	}
	if d.Bounds.MinLat < -90 || d.Bounds.MaxLat > 90 {
		errs = append(errs, "latitude out of range")
	}
	if len(errs) > 0 {
		return &DecodeError{Key: "definition", Reason: strings.Join(errs, "; ")}
	}
	return nil
}

// CameraTarget frames the whole region: bounds center at the minimum zoom.
func (d OfflineRegionDefinition) CameraTarget() CameraTarget {
	return CameraTarget{Center: d.Bounds.Center(), Zoom: d.MinZoom, StyleURL: d.StyleURL}
}

// EncodeMetadata injects the logical id into the caller's metadata bag and
// serializes it for the offline store.
func EncodeMetadata(id string, meta map[string]any) ([]byte, error) {
	if id == "" {
		return nil, &DecodeError{Key: MetadataIDKey, Reason: "logical region id is empty"}
	}
	bag := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		bag[k] = v
	}
	bag[MetadataIDKey] = id
	return json.Marshal(bag)
}

// DecodeMetadata extracts the logical id and the remaining metadata from a
// stored blob. A blob without a non-empty string id is rejected.
func DecodeMetadata(blob []byte) (string, map[string]any, error) {
	var bag map[string]any
	if err := json.Unmarshal(blob, &bag); err != nil {
		return "", nil, &DecodeError{Key: "metadata", Reason: err.Error()}
	}
	raw, ok := bag[MetadataIDKey]
	if !ok {
		return "", nil, &DecodeError{Key: MetadataIDKey, Reason: "missing"}
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", nil, &DecodeError{Key: MetadataIDKey, Reason: "not a non-empty string"}
	}
	delete(bag, MetadataIDKey)
	return id, bag, nil
}

// DownloadRequest is a decoded offline download command. An empty ID is
// replaced by a generated one.
type DownloadRequest struct {
	ID         string
	Definition OfflineRegionDefinition
	Metadata   map[string]any
}

// OfflineRegionData is the logical view of a persisted region.
type OfflineRegionData struct {
	ID         string                  `json:"id"`
	StoreID    int64                   `json:"storeId"`
	Definition OfflineRegionDefinition `json:"definition"`
	Metadata   map[string]any          `json:"metadata"`
}

// DownloadState is the lifecycle state of one download session.
type DownloadState int

const (
	DownloadCreated DownloadState = iota
	DownloadActive
	DownloadComplete
	DownloadErrored
	DownloadCancelled
)

func (s DownloadState) String() string {
	switch s {
	case DownloadCreated:
		return "created"
	case DownloadActive:
		return "active"
	case DownloadComplete:
		return "complete"
	case DownloadErrored:
		return "errored"
	case DownloadCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are allowed.
func (s DownloadState) Terminal() bool {
	return s == DownloadComplete || s == DownloadErrored || s == DownloadCancelled
}

// RegionStatus is a progress report from the offline store.
// RequiredResourceCount is negative while the total is not yet known.
type RegionStatus struct {
	CompletedResourceCount int64
	RequiredResourceCount  int64
	CompletedResourceSize  int64
	Complete               bool
}

// Percent converts the counters into a download percentage in [0, 100].
func (s RegionStatus) Percent() float64 {
	if s.RequiredResourceCount <= 0 {
		return 0
	}
	p := 100 * float64(s.CompletedResourceCount) / float64(s.RequiredResourceCount)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// DownloadStatus is the status tag of an event stream message.
type DownloadStatus string

const (
	StatusStart    DownloadStatus = "start"
	StatusProgress DownloadStatus = "progress"
	StatusSuccess  DownloadStatus = "success"
	StatusError    DownloadStatus = "error"
)

// Error codes carried by error events.
const (
	CodeDownloadError           = "Downloading error"
	CodeTileCountLimitExceeded  = "mapboxTileCountLimitExceeded"
	CodeInvalidRegionDefinition = "mapboxInvalidRegionDefinition"
)

// DownloadEvent is one event stream message.
type DownloadEvent struct {
	Status   DownloadStatus `json:"status"`
	Progress *float64       `json:"progress,omitempty"`
	Message  string         `json:"message,omitempty"`
	Code     string         `json:"code,omitempty"`
	RegionID string         `json:"id,omitempty"`
}

// StartEvent builds the event emitted when a download begins.
func StartEvent(regionID string) DownloadEvent {
	return DownloadEvent{Status: StatusStart, RegionID: regionID}
}

// ProgressEvent builds a progress event.
func ProgressEvent(regionID string, percent float64) DownloadEvent {
	return DownloadEvent{Status: StatusProgress, Progress: &percent, RegionID: regionID}
}

// SuccessEvent builds the event emitted on completion.
func SuccessEvent(regionID string) DownloadEvent {
	return DownloadEvent{Status: StatusSuccess, RegionID: regionID}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(regionID, code, message string) DownloadEvent {
	return DownloadEvent{Status: StatusError, Code: code, Message: message, RegionID: regionID}
}
