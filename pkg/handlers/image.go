//go:generate mockgen -package mock_handlers -source image.go -destination mock_handlers/mock_image.go

package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"git.quba.fr/qbarrand/image-cache-server/pkg/image"
	"git.quba.fr/qbarrand/image-cache-server/pkg/image/cache"
	"git.quba.fr/qbarrand/image-cache-server/pkg/logging"
)

const DefaultContentType = "image/jpeg"

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

type Loader interface {
	Load(ctx context.Context, key image.Key) ([]byte, error)
}

type ImageConfig struct {
	// LoadTimeout bounds each filesystem read. Zero means no limit.
	LoadTimeout time.Duration

	// DetectContentType derives Content-Type from the file extension, then from
	// the content itself, instead of always answering DefaultContentType.
	DetectContentType bool
}

// Image serves /image/{directory}/{filename}.
//
// Bytes come from the cache when possible. Otherwise they are read from the
// loader and, once the response is written, stored in the cache by a
// background goroutine that outlives the request.
type Image struct {
	cache  Cache
	config ImageConfig
	loader Loader
	logger logrus.FieldLogger

	m       sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewImage returns a handler reading from loader. A nil cache disables caching.
func NewImage(loader Loader, cache Cache, logger logrus.FieldLogger, config ImageConfig) *Image {
	return &Image{
		cache:  cache,
		config: config,
		loader: loader,
		logger: logger,
	}
}

func (i *Image) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, i.logger)

	key, err := keyFromVars(mux.Vars(r))
	if err != nil {
		log.Debug(err)
		http.Error(w, "Invalid access", http.StatusBadRequest)
		return
	}

	log = log.WithField("key", key.CacheKey())

	if i.cache == nil {
		log.Debug("Cache not used")
	} else if data, ok := i.fromCache(ctx, log, key); ok {
		i.write(w, log, key, data, true)
		return
	}

	data, err := i.load(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, image.ErrNotFound):
			log.Debug(err)
			http.NotFound(w, r)
		case errors.Is(err, context.Canceled):
			log.Info("Client went away while reading the image")
		default:
			log.WithError(err).Error("Could not read the image")
			w.WriteHeader(http.StatusInternalServerError)
		}

		return
	}

	i.write(w, log, key, data, false)

	if i.cache != nil {
		i.populate(ctx, log, key, data)
	}
}

// Wait blocks until every background cache write has finished.
func (i *Image) Wait() {
	i.pending.Wait()
}

// Close stops scheduling background cache writes, then waits for the pending
// ones. Requests still in flight are served but not cached.
func (i *Image) Close() {
	i.m.Lock()
	i.closed = true
	i.m.Unlock()

	i.pending.Wait()
}

// keyFromVars decodes the route variables, which the router matches escaped.
func keyFromVars(vars map[string]string) (image.Key, error) {
	directory, err := url.PathUnescape(vars["directory"])
	if err != nil {
		return image.Key{}, fmt.Errorf("%w: directory: %v", image.ErrInvalidSegment, err)
	}

	filename, err := url.PathUnescape(vars["filename"])
	if err != nil {
		return image.Key{}, fmt.Errorf("%w: filename: %v", image.ErrInvalidSegment, err)
	}

	return image.NewKey(directory, filename)
}

func (i *Image) fromCache(ctx context.Context, log logrus.FieldLogger, key image.Key) ([]byte, bool) {
	data, err := i.cache.Get(ctx, key.CacheKey())

	switch {
	case err == nil:
		return data, true
	case errors.Is(err, cache.ErrMiss):
		log.Debug("Image not found in the cache")
	default:
		log.WithError(err).Warn("Could not get the image from the cache")
	}

	return nil, false
}

func (i *Image) load(ctx context.Context, key image.Key) ([]byte, error) {
	if i.config.LoadTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, i.config.LoadTimeout)
		defer cancel()
	}

	return i.loader.Load(ctx, key)
}

// populate stores data in the cache without holding up the response. The write
// keeps the request's values but not its cancellation.
func (i *Image) populate(ctx context.Context, log logrus.FieldLogger, key image.Key, data []byte) {
	ctx = context.WithoutCancel(ctx)

	i.m.Lock()

	if i.closed {
		i.m.Unlock()
		log.Warn("Shutting down; not adding the image to the cache")
		return
	}

	i.pending.Add(1)
	i.m.Unlock()

	go func() {
		defer i.pending.Done()

		if err := i.cache.Set(ctx, key.CacheKey(), data); err != nil {
			log.WithError(err).Warn("Could not add the image to the cache")
			return
		}

		log.Debug("Added the image to the cache")
	}()
}

func (i *Image) write(w http.ResponseWriter, log logrus.FieldLogger, key image.Key, data []byte, cacheHit bool) {
	headers := w.Header()

	headers.Set("Content-Type", i.contentType(key, data))
	headers.Set("Content-Length", strconv.Itoa(len(data)))
	headers.Set("ETag", cache.ETag(data))

	if cacheHit {
		headers.Set("X-Cache", "HIT")
	} else {
		headers.Set("X-Cache", "MISS")
	}

	n, err := w.Write(data)
	if err != nil {
		log.WithError(err).Warn("Could not write the reply")
		return
	}

	log.WithFields(logging.ImageFields(key.CacheKey(), cacheHit)).
		Debugf("Wrote %s", humanize.Bytes(uint64(n)))
}

func (i *Image) contentType(key image.Key, data []byte) string {
	if !i.config.DetectContentType {
		return DefaultContentType
	}

	if t := mime.TypeByExtension(filepath.Ext(key.Filename())); t != "" {
		return t
	}

	return http.DetectContentType(data)
}
