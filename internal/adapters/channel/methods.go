package channel

import (
	"context"
	"fmt"

	"github.com/samirrijal/mapsync/internal/core/codec"
	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/usecases"
)

// overlay.create {kind, options:[{...}, ...]} -> [id, ...]
func (d *Dispatcher) overlayCreate(ctx context.Context, a codec.Args) (any, error) {
	kind, err := a.Kind("kind")
	if err != nil {
		return nil, err
	}
	raw, err := a.List("options")
	if err != nil {
		return nil, err
	}
	opts := make([]domain.OverlayOptions, len(raw))
	for i, item := range raw {
		key := fmt.Sprintf("options[%d]", i)
		m, err := codec.ToMap(key, item)
		if err != nil {
			return nil, err
		}
		if opts[i], err = codec.DecodeOptions(kind, m); err != nil {
			return nil, err
		}
	}
	return d.overlays.Create(ctx, kind, opts)
}

// overlay.remove {kind, ids:[...]}
func (d *Dispatcher) overlayRemove(ctx context.Context, a codec.Args) (any, error) {
	kind, err := a.Kind("kind")
	if err != nil {
		return nil, err
	}
	ids, err := a.StringList("ids")
	if err != nil {
		return nil, err
	}
	return nil, d.overlays.Remove(ctx, kind, ids)
}

// overlay.update {kind, id, options:{...}}
func (d *Dispatcher) overlayUpdate(ctx context.Context, a codec.Args) (any, error) {
	kind, err := a.Kind("kind")
	if err != nil {
		return nil, err
	}
	id, err := a.String("id")
	if err != nil {
		return nil, err
	}
	m, err := a.Map("options")
	if err != nil {
		return nil, err
	}
	delta, err := codec.DecodeOptions(kind, m)
	if err != nil {
		return nil, err
	}
	return nil, d.overlays.Update(ctx, kind, id, delta)
}

// overlay.geometry {kind, id} -> point | [point, ...] | [[point, ...], ...]
func (d *Dispatcher) overlayGeometry(ctx context.Context, a codec.Args) (any, error) {
	kind, err := a.Kind("kind")
	if err != nil {
		return nil, err
	}
	id, err := a.String("id")
	if err != nil {
		return nil, err
	}
	g, err := d.overlays.Geometry(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return codec.EncodeGeometry(g), nil
}

// overlay.list {kind} -> [{id, kind, options}, ...]
func (d *Dispatcher) overlayList(ctx context.Context, a codec.Args) (any, error) {
	kind, err := a.Kind("kind")
	if err != nil {
		return nil, err
	}
	return d.overlays.List(kind, codec.EncodeOptions)
}

// overlay.setConsumeTapEvents {kinds:[...]}
func (d *Dispatcher) overlaySetConsumeTapEvents(ctx context.Context, a codec.Args) (any, error) {
	names, err := a.StringList("kinds")
	if err != nil {
		return nil, err
	}
	kinds := make([]domain.OverlayKind, len(names))
	for i, n := range names {
		k, ok := domain.ParseOverlayKind(n)
		if !ok {
			return nil, &domain.DecodeError{Key: fmt.Sprintf("kinds[%d]", i), Reason: fmt.Sprintf("unknown overlay kind %q", n)}
		}
		kinds[i] = k
	}
	d.overlays.SetConsumeTapEvents(kinds)
	return nil, nil
}

// offline.download {id?, bounds, mapStyleUrl, minZoom, maxZoom, pixelRatio?, metadata?}
func (d *Dispatcher) offlineDownload(ctx context.Context, a codec.Args) (any, error) {
	req, err := codec.DecodeRegion(a, d.opts.DefaultPixelRatio)
	if err != nil {
		return nil, err
	}
	data, err := d.offline.Download(ctx, req)
	if err != nil {
		return nil, err
	}
	return codec.EncodeRegion(data), nil
}

// offline.list -> [summary, ...]
func (d *Dispatcher) offlineList(ctx context.Context, a codec.Args) (any, error) {
	list, err := d.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(list))
	for i, r := range list {
		out[i] = codec.EncodeRegion(r)
	}
	return out, nil
}

// offline.delete {index} | {id}
func (d *Dispatcher) offlineDelete(ctx context.Context, a codec.Args) (any, error) {
	ref, err := decodeRef(a)
	if err != nil {
		return nil, err
	}
	return nil, d.catalog.Delete(ctx, ref)
}

// offline.navigate {index} | {id} -> camera
func (d *Dispatcher) offlineNavigate(ctx context.Context, a codec.Args) (any, error) {
	ref, err := decodeRef(a)
	if err != nil {
		return nil, err
	}
	target, err := d.catalog.Navigate(ctx, ref)
	if err != nil {
		return nil, err
	}
	return codec.EncodeCamera(target), nil
}

// offline.cancel {id?}
func (d *Dispatcher) offlineCancel(ctx context.Context, a codec.Args) (any, error) {
	id, err := a.OptString("id", "")
	if err != nil {
		return nil, err
	}
	return nil, d.offline.Cancel(ctx, id)
}

// offline.setTileLimit {limit}
func (d *Dispatcher) offlineSetTileLimit(ctx context.Context, a codec.Args) (any, error) {
	limit, err := a.Int("limit")
	if err != nil {
		return nil, err
	}
	return nil, d.offline.SetTileLimit(limit)
}

// offline.updateMetadata {id, metadata} -> summary
func (d *Dispatcher) offlineUpdateMetadata(ctx context.Context, a codec.Args) (any, error) {
	id, err := a.String("id")
	if err != nil {
		return nil, err
	}
	meta, err := a.Map("metadata")
	if err != nil {
		return nil, err
	}
	data, err := d.catalog.UpdateMetadata(ctx, id, meta)
	if err != nil {
		return nil, err
	}
	return codec.EncodeRegion(data), nil
}

func decodeRef(a codec.Args) (usecases.RegionRef, error) {
	if a.Has("id") {
		id, err := a.String("id")
		if err != nil {
			return usecases.RegionRef{}, err
		}
		if id == "" {
			return usecases.RegionRef{}, &domain.DecodeError{Key: "id", Reason: "empty"}
		}
		return usecases.RegionRef{ID: id}, nil
	}
	idx, err := a.Int("index")
	if err != nil {
		return usecases.RegionRef{}, err
	}
	return usecases.RegionRef{Index: int(idx)}, nil
}
