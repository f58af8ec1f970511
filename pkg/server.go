package pkg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"git.quba.fr/qbarrand/image-cache-server/pkg/handlers"
	"git.quba.fr/qbarrand/image-cache-server/pkg/image"
	"git.quba.fr/qbarrand/image-cache-server/pkg/image/cache"
	"git.quba.fr/qbarrand/image-cache-server/pkg/logging"
)

const requestIDHeader = "X-Request-ID"

type Config struct {
	Addr string
	Dir  string

	// Cache.Address empty disables the cache.
	Cache cache.Config

	ReadTimeout       time.Duration
	ShutdownTimeout   time.Duration
	DetectContentType bool
}

// statusRecorder keeps a zero status when the handler wrote nothing, which
// happens when the client went away.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	if sr.status == 0 {
		sr.status = status
	}

	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}

	return sr.ResponseWriter.Write(b)
}

func Logger(logger logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			requestID := req.Header.Get(requestIDHeader)
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, requestID)

			entry := logger.WithFields(logging.RequestFields(requestID, req.Method, req.URL.String(), req.RemoteAddr))
			sr := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(sr, req.WithContext(logging.WithEntry(req.Context(), entry)))

			fields := logrus.Fields{
				"status":   sr.status,
				"duration": time.Since(start),
			}

			if sr.status == 0 {
				entry.WithFields(fields).Info("Request aborted before a response was written")
				return
			}

			entry.WithFields(fields).Info("Handled request")
		})
	}
}

func NewRouter(imageHandler http.Handler, logger logrus.FieldLogger) *mux.Router {
	// Segments are matched still escaped so that "..%2Fetc" reaches the
	// handler as one segment instead of being cleaned into a redirect.
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()

	r.Use(Logger(logger))

	r.Handle("/image/{directory}/{filename}", imageHandler).Methods(http.MethodGet)

	return r
}

// StartServer serves images from cfg.Dir until ctx is cancelled, then drains
// in-flight requests and pending cache writes.
func StartServer(ctx context.Context, cfg Config, logger logrus.FieldLogger) error {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("could not create the image directory: %w", err)
	}

	var imageCache handlers.Cache

	if cfg.Cache.Address == "" {
		logger.Warn("No cache address; serving every image from disk")
	} else {
		vc := cache.NewValkeyCache(cfg.Cache)
		defer vc.Close()

		if err := vc.Ping(ctx); err != nil {
			logger.WithError(err).Warn("Cache not reachable; serving from disk until it is")
		}

		imageCache = vc
	}

	imageHandler := handlers.NewImage(image.FsLoader(cfg.Dir), imageCache, logger, handlers.ImageConfig{
		LoadTimeout:       cfg.ReadTimeout,
		DetectContentType: cfg.DetectContentType,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(imageHandler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", cfg.Addr).Info("Starting the server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not serve on %s: %w", cfg.Addr, err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)

		// Handlers may still be running if the deadline passed; Close stops
		// them from scheduling new cache writes before waiting.
		imageHandler.Close()

		if err != nil {
			return fmt.Errorf("could not shut down cleanly: %w", err)
		}

		return nil
	})

	return g.Wait()
}
