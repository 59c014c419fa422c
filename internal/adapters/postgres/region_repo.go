package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

// RegionRepo implements ports.RegionRepository on the offline_regions table.
type RegionRepo struct {
	db *DB
}

func NewRegionRepo(db *DB) *RegionRepo {
	return &RegionRepo{db: db}
}

func (r *RegionRepo) Insert(ctx context.Context, def domain.OfflineRegionDefinition, metadata []byte) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO offline_regions
			(style_url, min_lat, min_lon, max_lat, max_lon, min_zoom, max_zoom, pixel_ratio, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, def.StyleURL, def.Bounds.MinLat, def.Bounds.MinLon, def.Bounds.MaxLat, def.Bounds.MaxLon,
		def.MinZoom, def.MaxZoom, def.PixelRatio, metadata).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert offline region: %w", err)
	}
	return id, nil
}

func (r *RegionRepo) List(ctx context.Context) ([]ports.StoredRegion, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, style_url, min_lat, min_lon, max_lat, max_lon, min_zoom, max_zoom, pixel_ratio, metadata, complete
		FROM offline_regions ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ports.StoredRegion, error) {
		var s ports.StoredRegion
		d := &s.Definition
		err := row.Scan(&s.ID, &d.StyleURL, &d.Bounds.MinLat, &d.Bounds.MinLon, &d.Bounds.MaxLat, &d.Bounds.MaxLon,
			&d.MinZoom, &d.MaxZoom, &d.PixelRatio, &s.Metadata, &s.Complete)
		return s, err
	})
}

func (r *RegionRepo) UpdateMetadata(ctx context.Context, id int64, metadata []byte) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE offline_regions SET metadata = $2, updated_at = now() WHERE id = $1
	`, id, metadata)
	return affected(tag.RowsAffected(), err, id)
}

func (r *RegionRepo) MarkComplete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE offline_regions SET complete = TRUE, updated_at = now() WHERE id = $1
	`, id)
	return affected(tag.RowsAffected(), err, id)
}

func (r *RegionRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM offline_regions WHERE id = $1`, id)
	return affected(tag.RowsAffected(), err, id)
}

func affected(n int64, err error, id int64) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: store id %d", domain.ErrRegionNotFound, id)
	}
	return nil
}

var _ ports.RegionRepository = (*RegionRepo)(nil)
