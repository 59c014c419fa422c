package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys set by the command channel.
const (
	AttrMethod      = attribute.Key("mapsync.command.method")
	AttrResult      = attribute.Key("mapsync.command.result")
	AttrOverlayKind = attribute.Key("mapsync.overlay.kind")
	AttrRegion      = attribute.Key("mapsync.offline.region")
)
