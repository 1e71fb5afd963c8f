package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ImageSizeStore caches the intrinsic size of fetched remote images
type ImageSizeStore struct {
	db *sql.DB
}

// NewImageSizeStore creates an image size store from a base store
func NewImageSizeStore(store *Store) *ImageSizeStore {
	if store == nil {
		return nil
	}
	return &ImageSizeStore{db: store.DB()}
}

// SaveImageSize upserts the size of url
func (is *ImageSizeStore) SaveImageSize(ctx context.Context, url string, width, height int) error {
	if is == nil || is.db == nil {
		return fmt.Errorf("image size store not initialized")
	}
	if strings.TrimSpace(url) == "" || width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size inputs")
	}
	_, err := is.db.ExecContext(ctx, `INSERT INTO image_sizes(url, width, height, updated_at)
VALUES(?,?,?,?)
ON CONFLICT(url) DO UPDATE SET width=excluded.width, height=excluded.height, updated_at=excluded.updated_at;
`, url, width, height, time.Now().Unix())
	return err
}

// LoadImageSize returns a cached size if present
func (is *ImageSizeStore) LoadImageSize(ctx context.Context, url string) (int, int, bool, error) {
	if is == nil || is.db == nil {
		return 0, 0, false, fmt.Errorf("image size store not initialized")
	}
	var w, h int
	err := is.db.QueryRowContext(ctx, `SELECT width, height FROM image_sizes WHERE url=?`, url).Scan(&w, &h)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	return w, h, true, nil
}

// PruneImageSizes removes entries older than maxAge
func (is *ImageSizeStore) PruneImageSizes(ctx context.Context, maxAge time.Duration) (int64, error) {
	if is == nil || is.db == nil {
		return 0, fmt.Errorf("image size store not initialized")
	}
	res, err := is.db.ExecContext(ctx, `DELETE FROM image_sizes WHERE updated_at < ?`, time.Now().Add(-maxAge).Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
