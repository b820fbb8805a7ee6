// Package export renders final assets into download variants and keeps a
// size-bounded cache of the results.
package export

import (
	"bytes"
	"container/list"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"brandkit/internal/blobstore"
	"brandkit/internal/brand"
	"brandkit/internal/logging"
	"brandkit/internal/media/ffmpeg"
	"brandkit/internal/services"
	"brandkit/internal/store"
)

// DefaultCacheMaxBytes bounds the variant cache when no limit is configured.
const DefaultCacheMaxBytes int64 = 2 << 30

// VariantStore persists variant rows.
type VariantStore interface {
	PutVariant(ctx context.Context, v brand.DownloadVariant) error
	TouchVariant(ctx context.Context, assetID, format, quality string, at time.Time) error
	DeleteVariant(ctx context.Context, assetID, format, quality string) error
	ListVariants(ctx context.Context) ([]store.VariantRecord, error)
}

// Blobs reads final assets and stores variants.
type Blobs interface {
	Path(ref string) (string, error)
	ReadAll(ref string) ([]byte, error)
	PutBytes(key string, data []byte) (blobstore.Object, error)
	PutFile(key, path string) (blobstore.Object, error)
	Exists(ref string) bool
	Delete(ref string) error
}

// Transcoder converts a video into another container and frame size.
type Transcoder interface {
	Transcode(ctx context.Context, input, output string, profile ffmpeg.Profile) error
}

type entry struct {
	key     string
	variant brand.DownloadVariant
}

// Exporter produces and caches download variants.
type Exporter struct {
	store      VariantStore
	blobs      Blobs
	transcoder Transcoder
	encode     ImageEncoder
	logger     *slog.Logger
	tempDir    string
	maxBytes   int64

	group singleflight.Group

	mu    sync.Mutex
	lru   *list.List
	index map[string]*list.Element
	total int64
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithTranscoder enables video exports.
func WithTranscoder(t Transcoder) Option {
	return func(e *Exporter) { e.transcoder = t }
}

// WithImageEncoder replaces EncodeImage.
func WithImageEncoder(enc ImageEncoder) Option {
	return func(e *Exporter) {
		if enc != nil {
			e.encode = enc
		}
	}
}

// WithCacheMaxBytes bounds the total size of cached variants.
func WithCacheMaxBytes(n int64) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithTempDir sets where video transcodes are staged.
func WithTempDir(dir string) Option {
	return func(e *Exporter) { e.tempDir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New constructs an exporter. Call Load to adopt variants cached by a
// previous run.
func New(st VariantStore, blobs Blobs, opts ...Option) *Exporter {
	e := &Exporter{
		store:    st,
		blobs:    blobs,
		encode:   EncodeImage,
		logger:   logging.NewNop(),
		maxBytes: DefaultCacheMaxBytes,
		lru:      list.New(),
		index:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "export")
	return e
}

func cacheKey(assetID string, format Format, quality Quality) string {
	return assetID + "/" + string(quality) + "." + string(format)
}

// VariantURL is the download path of a variant.
func VariantURL(assetID string, format Format, quality Quality) string {
	return fmt.Sprintf("/api/assets/%s/variants/%s/%s", assetID, format, quality)
}

// Load rebuilds the in-memory index from persisted rows. Rows whose blob has
// gone missing are dropped.
func (e *Exporter) Load(ctx context.Context) error {
	records, err := e.store.ListVariants(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rec := range records {
		if !e.blobs.Exists(rec.BlobRef) {
			if err := e.store.DeleteVariant(ctx, rec.AssetID, rec.Format, rec.Quality); err != nil {
				return err
			}
			continue
		}
		key := cacheKey(rec.AssetID, Format(rec.Format), Quality(rec.Quality))
		// Records arrive least recently used first.
		e.index[key] = e.lru.PushFront(&entry{key: key, variant: rec.DownloadVariant})
		e.total += rec.SizeBytes
	}
	e.evictLocked(ctx, "")
	return nil
}

// Export returns the (format, quality) variant of asset, rendering it on the
// first request. Concurrent misses for one key share a single render.
func (e *Exporter) Export(ctx context.Context, asset *brand.ContentAsset, format, quality string) (*brand.DownloadVariant, error) {
	if asset == nil {
		return nil, services.Wrap(services.ErrValidation, "export", "export", "asset is required", nil)
	}
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	q, err := ParseQuality(quality)
	if err != nil {
		return nil, err
	}
	if !Supports(asset.ContentType, f) {
		return nil, services.Wrap(services.ErrUnsupportedFormat, "export", "export",
			fmt.Sprintf("%s assets cannot be exported as %s", asset.ContentType, f), nil)
	}
	if f.IsVideo() && e.transcoder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "export", "video export requires ffmpeg", nil)
	}

	key := cacheKey(asset.ID, f, q)
	if v, ok := e.lookup(ctx, key); ok {
		return &v, nil
	}
	result, err, _ := e.group.Do(key, func() (any, error) {
		if v, ok := e.lookup(ctx, key); ok {
			return v, nil
		}
		return e.render(context.WithoutCancel(ctx), asset, f, q, key)
	})
	if err != nil {
		return nil, err
	}
	v := result.(brand.DownloadVariant)
	return &v, nil
}

// Lookup returns a cached variant without rendering.
func (e *Exporter) Lookup(ctx context.Context, assetID, format, quality string) (*brand.DownloadVariant, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	q, err := ParseQuality(quality)
	if err != nil {
		return nil, err
	}
	v, ok := e.lookup(ctx, cacheKey(assetID, f, q))
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "export", "lookup", "variant not cached; request a download first", nil)
	}
	return &v, nil
}

// CachedBytes reports the total size of cached variants.
func (e *Exporter) CachedBytes() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

func (e *Exporter) lookup(ctx context.Context, key string) (brand.DownloadVariant, bool) {
	e.mu.Lock()
	el, ok := e.index[key]
	if ok {
		e.lru.MoveToFront(el)
	}
	e.mu.Unlock()
	if !ok {
		return brand.DownloadVariant{}, false
	}
	v := el.Value.(*entry).variant
	if err := e.store.TouchVariant(ctx, v.AssetID, v.Format, v.Quality, time.Now()); err != nil {
		logging.WarnWithContext(e.logger, "failed to record variant access", "variant_touch_failed",
			logging.String("key", key),
			logging.String(logging.FieldImpact, "cache eviction order may be stale after restart"),
			logging.Error(err),
		)
	}
	return v, true
}

func (e *Exporter) render(ctx context.Context, asset *brand.ContentAsset, f Format, q Quality, key string) (brand.DownloadVariant, error) {
	started := time.Now()
	blobKey := "cache/" + asset.ID + "/" + string(q) + "." + string(f)

	var (
		obj blobstore.Object
		err error
	)
	if f.IsVideo() {
		obj, err = e.renderVideo(ctx, asset, f, q, blobKey)
	} else {
		obj, err = e.renderImage(asset, f, q, blobKey)
	}
	if err != nil {
		return brand.DownloadVariant{}, err
	}

	v := brand.DownloadVariant{
		AssetID:     asset.ID,
		Format:      string(f),
		Quality:     string(q),
		ContentType: f.ContentType(),
		SizeBytes:   obj.SizeBytes,
		SHA256:      obj.SHA256,
		BlobRef:     obj.Ref,
		URL:         VariantURL(asset.ID, f, q),
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.PutVariant(ctx, v); err != nil {
		_ = e.blobs.Delete(obj.Ref)
		return brand.DownloadVariant{}, err
	}

	e.mu.Lock()
	e.index[key] = e.lru.PushFront(&entry{key: key, variant: v})
	e.total += v.SizeBytes
	e.evictLocked(ctx, key)
	e.mu.Unlock()

	e.logger.Info("variant rendered",
		logging.String(logging.FieldEventType, "variant_rendered"),
		logging.String(logging.FieldAssetID, asset.ID),
		logging.String("format", v.Format),
		logging.String("quality", v.Quality),
		logging.Int64("size_bytes", v.SizeBytes),
		logging.Duration("elapsed", time.Since(started)),
	)
	return v, nil
}

func (e *Exporter) renderImage(asset *brand.ContentAsset, f Format, q Quality, blobKey string) (blobstore.Object, error) {
	data, err := e.blobs.ReadAll(asset.FinalRef)
	if err != nil {
		return blobstore.Object{}, fmt.Errorf("read final asset: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return blobstore.Object{}, fmt.Errorf("decode final asset: %w", err)
	}
	out, err := e.encode(img, f, q)
	if err != nil {
		return blobstore.Object{}, err
	}
	return e.blobs.PutBytes(blobKey, out)
}

func (e *Exporter) renderVideo(ctx context.Context, asset *brand.ContentAsset, f Format, q Quality, blobKey string) (blobstore.Object, error) {
	input, err := e.blobs.Path(asset.FinalRef)
	if err != nil {
		return blobstore.Object{}, err
	}
	dir, err := os.MkdirTemp(e.tempDir, "export-*")
	if err != nil {
		return blobstore.Object{}, fmt.Errorf("create export workspace: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	w, h := q.Scale(asset.Width, asset.Height, true)
	output := filepath.Join(dir, "variant."+string(f))
	if err := e.transcoder.Transcode(ctx, input, output, ffmpeg.Profile{Container: string(f), Width: w, Height: h}); err != nil {
		return blobstore.Object{}, err
	}
	return e.blobs.PutFile(blobKey, output)
}

// evictLocked drops least recently used variants until the cache fits.
// keep is never evicted.
func (e *Exporter) evictLocked(ctx context.Context, keep string) {
	for e.total > e.maxBytes {
		el := e.lru.Back()
		for el != nil && el.Value.(*entry).key == keep {
			el = el.Prev()
		}
		if el == nil {
			return
		}
		ent := el.Value.(*entry)
		e.lru.Remove(el)
		delete(e.index, ent.key)
		e.total -= ent.variant.SizeBytes

		v := ent.variant
		if err := e.blobs.Delete(v.BlobRef); err != nil {
			logging.WarnWithContext(e.logger, "failed to delete evicted variant", "variant_evict_failed",
				logging.String("key", ent.key),
				logging.String(logging.FieldImpact, "orphaned file left in cache"),
				logging.Error(err),
			)
		}
		if err := e.store.DeleteVariant(context.WithoutCancel(ctx), v.AssetID, v.Format, v.Quality); err != nil {
			logging.WarnWithContext(e.logger, "failed to delete evicted variant row", "variant_evict_failed",
				logging.String("key", ent.key),
				logging.Error(err),
			)
		}
		e.logger.Debug("variant evicted",
			logging.String("key", ent.key),
			logging.Int64("size_bytes", v.SizeBytes),
		)
	}
}
