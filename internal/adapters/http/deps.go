package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mapsync/internal/adapters/channel"
	"github.com/samirrijal/mapsync/internal/adapters/headless"
	"github.com/samirrijal/mapsync/internal/adapters/postgres"
	"github.com/samirrijal/mapsync/internal/adapters/valkey"
	"github.com/samirrijal/mapsync/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Dispatcher *channel.Dispatcher
	Overlays   *usecases.AnnotationService
	Offline    *usecases.OfflineService
	Catalog    *usecases.CatalogService
	Stream     *usecases.EventStream

	// Surface is set when the daemon runs its own headless map; it enables
	// the tap endpoint.
	Surface *headless.Surface

	// SpecPath overrides DefaultSpecPath for /docs.
	SpecPath string

	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache
}
