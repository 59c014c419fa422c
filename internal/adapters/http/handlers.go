package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/mapsync/internal/core/codec"
	"github.com/samirrijal/mapsync/internal/core/domain"
)

const defaultTapTolerance = 4.0

// CommandHandler runs one command channel method. The request body is the
// argument map; an empty body means no arguments.
func CommandHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := c.Params("method")
		reply := deps.Dispatcher.DispatchJSON(c.UserContext(), method, c.Body())
		if !reply.OK() {
			return errCommand(c, reply.Error)
		}
		return c.JSON(fiber.Map{"result": reply.Result})
	}
}

// ListRegionsHandler returns the offline region catalog. It reads the
// cached listing and never moves the index snapshot used by commands.
func ListRegionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := deps.Catalog.Cached(c.UserContext())
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("list regions", "error", err)
			return errInternal(c, err.Error())
		}

		pg, lo, hi := paginate(c, len(list), 50, 200)
		list = list[lo:hi]

		page := make([]map[string]any, len(list))
		for i, r := range list {
			page[i] = codec.EncodeRegion(r)
		}

		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// ListSessionsHandler returns the download sessions still in flight.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sessions":   deps.Offline.Sessions(),
			"tile_limit": deps.Offline.TileLimit(),
			"subscribed": deps.Stream.Attached(),
		})
	}
}

// OverlayFeaturesHandler renders every overlay of one kind as a GeoJSON
// FeatureCollection. Feature properties are the overlay's options without
// the geometry.
func OverlayFeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, ok := domain.ParseOverlayKind(c.Params("kind"))
		if !ok {
			return errNotFound(c, "unknown overlay kind: "+c.Params("kind"))
		}
		fc, err := overlayFeatures(deps, kind)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if err := c.JSON(fc); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return nil
	}
}

func overlayFeatures(deps *Dependencies, kind domain.OverlayKind) (*geojson.FeatureCollection, error) {
	schema, _ := domain.SchemaFor(kind)
	geomKey := schema.Geometry().Name

	ids, err := deps.Overlays.IDs(kind)
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, id := range ids {
		opts, err := deps.Overlays.Options(kind, id)
		var unknown *domain.UnknownOverlayError
		if errors.As(err, &unknown) {
			continue // removed since IDs was taken
		}
		if err != nil {
			return nil, err
		}
		g, ok := opts.Geometry()
		if !ok {
			continue
		}
		f := geojson.NewFeature(g)
		f.ID = id
		props := codec.EncodeOptions(opts)
		delete(props, geomKey)
		props["kind"] = string(kind)
		f.Properties = props
		fc.Append(f)
	}
	return fc, nil
}

type tapRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Tolerance float64  `json:"tolerance"`
}

// TapHandler simulates a tap on the headless map surface. Hits on kinds
// that consume taps are reported to the tap listener.
func TapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Surface == nil {
			return errNotFound(c, "no headless map surface")
		}
		var req tapRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Latitude == nil || req.Longitude == nil {
			return errBadRequest(c, "latitude and longitude are required")
		}
		if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
			return errBadRequest(c, "coordinates out of range")
		}
		tol := req.Tolerance
		if tol <= 0 {
			tol = defaultTapTolerance
		}
		return c.JSON(deps.Surface.Tap(orb.Point{*req.Longitude, *req.Latitude}, tol))
	}
}
