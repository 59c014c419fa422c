package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/mapsync/internal/core/codec"
	"github.com/samirrijal/mapsync/internal/core/domain"
)

// jsonText renders a value as a JSON string; graphql-go has no map scalar.
func jsonText(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// buildSchema creates the read-only GraphQL schema over the engine state.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"minLat": &graphql.Field{Type: graphql.Float},
			"minLon": &graphql.Field{Type: graphql.Float},
			"maxLat": &graphql.Field{Type: graphql.Float},
			"maxLon": &graphql.Field{Type: graphql.Float},
		},
	})

	overlayType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Overlay",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.String},
			"kind": &graphql.Field{Type: graphql.String},
			"options": &graphql.Field{
				Type:        graphql.String,
				Description: "Overlay options as JSON",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return jsonText(p.Source.(domain.OverlaySummary).Options)
				},
			},
		},
	})

	regionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Region",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"storeId":     &graphql.Field{Type: graphql.Int},
			"mapStyleUrl": &graphql.Field{Type: graphql.String},
			"minZoom":     &graphql.Field{Type: graphql.Float},
			"maxZoom":     &graphql.Field{Type: graphql.Float},
			"pixelRatio":  &graphql.Field{Type: graphql.Float},
			"bounds":      &graphql.Field{Type: boundsType},
			"metadata":    &graphql.Field{Type: graphql.String, Description: "Region metadata as JSON"},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"storeId":  &graphql.Field{Type: graphql.Int},
			"state":    &graphql.Field{Type: graphql.String},
			"progress": &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"overlays": &graphql.Field{
				Type:        graphql.NewList(overlayType),
				Description: "Registered overlays of one kind, in creation order",
				Args: graphql.FieldConfigArgument{
					"kind": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					kind, ok := domain.ParseOverlayKind(p.Args["kind"].(string))
					if !ok {
						return nil, &domain.DecodeError{Key: "kind", Reason: "unknown overlay kind"}
					}
					return deps.Overlays.List(kind, codec.EncodeOptions)
				},
			},
			"regions": &graphql.Field{
				Type:        graphql.NewList(regionType),
				Description: "Offline regions in the store",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					list, err := deps.Catalog.Cached(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(list))
					for _, r := range list {
						meta, err := jsonText(r.Metadata)
						if err != nil {
							return nil, err
						}
						d := r.Definition
						out = append(out, map[string]interface{}{
							"id":          r.ID,
							"storeId":     r.StoreID,
							"mapStyleUrl": d.StyleURL,
							"minZoom":     d.MinZoom,
							"maxZoom":     d.MaxZoom,
							"pixelRatio":  d.PixelRatio,
							"bounds": map[string]interface{}{
								"minLat": d.Bounds.MinLat,
								"minLon": d.Bounds.MinLon,
								"maxLat": d.Bounds.MaxLat,
								"maxLon": d.Bounds.MaxLon,
							},
							"metadata": meta,
						})
					}
					return out, nil
				},
			},
			"sessions": &graphql.Field{
				Type:        graphql.NewList(sessionType),
				Description: "Download sessions still in flight",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var out []map[string]interface{}
					for _, s := range deps.Offline.Sessions() {
						out = append(out, map[string]interface{}{
							"id":       s.RegionID,
							"storeId":  s.StoreID,
							"state":    s.StateTag,
							"progress": s.Progress,
						})
					}
					return out, nil
				},
			},
			"tileLimit": &graphql.Field{
				Type:        graphql.Int,
				Description: "Current tile count limit",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Offline.TileLimit(), nil
				},
			},
			"methods": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Command channel methods",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Dispatcher.Methods(), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
