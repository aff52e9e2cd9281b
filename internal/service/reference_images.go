package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/gallery-ai/critic/internal/imaging"
	"github.com/gallery-ai/critic/internal/observability"
	"github.com/gallery-ai/critic/pkg/cache"
)

const defaultReferenceLoadConcurrency = 4

// ImageSource reads raw reference artwork bytes by filename.
type ImageSource interface {
	Read(ctx context.Context, filename string) ([]byte, error)
}

// ReferenceImage is an optimized reference artwork ready to attach to a prompt.
type ReferenceImage struct {
	Filename string
	Image    imaging.Encoded
}

// ReferenceImagesParams configures ReferenceImages. CacheSize <= 0 disables caching;
// CacheMetrics may be nil.
type ReferenceImagesParams struct {
	Source       ImageSource
	Options      imaging.OptimizeOptions
	CacheSize    int
	CacheMetrics observability.CacheMetrics
	Concurrency  int
	Logger       *slog.Logger
}

// ReferenceImages loads and optimizes reference artworks concurrently.
type ReferenceImages struct {
	source      ImageSource
	opts        imaging.OptimizeOptions
	cache       *cache.LoaderCache[imaging.Encoded]
	concurrency int
	logger      *slog.Logger
}

// NewReferenceImages creates a ReferenceImages loader.
func NewReferenceImages(p ReferenceImagesParams) (*ReferenceImages, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = defaultReferenceLoadConcurrency
	}

	r := &ReferenceImages{
		source:      p.Source,
		opts:        p.Options,
		concurrency: concurrency,
		logger:      logger,
	}

	if p.CacheSize > 0 {
		var opts []cache.Option
		if p.CacheMetrics != nil {
			opts = append(opts, cache.WithObserver(observability.NamedCacheObserver{
				Metrics: p.CacheMetrics,
				Name:    observability.CacheReferenceImages,
			}))
		}

		c, err := cache.New[imaging.Encoded](p.CacheSize, r.load, opts...)
		if err != nil {
			return nil, fmt.Errorf("create reference image cache: %w", err)
		}

		r.cache = c
	}

	return r, nil
}

// Load returns the references that could be loaded, in the order of filenames.
// A reference that cannot be read or decoded is logged and omitted.
func (r *ReferenceImages) Load(ctx context.Context, filenames []string) []ReferenceImage {
	loaded := make([]*ReferenceImage, len(filenames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, name := range filenames {
		g.Go(func() error {
			img, err := r.get(gctx, name)
			if err != nil {
				r.logger.Warn("reference image omitted", "filename", name, "error", err)

				return nil
			}

			loaded[i] = &ReferenceImage{Filename: name, Image: img}

			return nil
		})
	}

	_ = g.Wait()

	out := make([]ReferenceImage, 0, len(filenames))
	for _, ref := range loaded {
		if ref != nil {
			out = append(out, *ref)
		}
	}

	return out
}

func (r *ReferenceImages) get(ctx context.Context, filename string) (imaging.Encoded, error) {
	if r.cache == nil {
		return r.load(ctx, filename)
	}

	return r.cache.Get(ctx, filename)
}

func (r *ReferenceImages) load(ctx context.Context, filename string) (imaging.Encoded, error) {
	data, err := r.source.Read(ctx, filename)
	if err != nil {
		return imaging.Encoded{}, err
	}

	img, err := imaging.Optimize(data, r.opts)
	if err != nil {
		return imaging.Encoded{}, fmt.Errorf("optimize %s: %w", filename, err)
	}

	return img, nil
}
