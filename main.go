package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"git.quba.fr/qbarrand/image-cache-server/pkg"
	"git.quba.fr/qbarrand/image-cache-server/pkg/image/cache"
	"git.quba.fr/qbarrand/image-cache-server/pkg/logging"
)

func main() {
	// Values from .env never override the real environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Fatal("Could not load .env")
	}

	var (
		cfg    pkg.Config
		logCfg logging.Config
	)

	app := cli.NewApp()

	app.Name = "image-cache-server"
	app.Usage = "serve images from a directory through a Redis-compatible cache"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "addr",
			Usage:       "the address and port on which this server should listen",
			EnvVar:      "ADDR",
			Value:       "0.0.0.0:5000",
			Destination: &cfg.Addr,
		},
		cli.StringFlag{
			Name:        "dir",
			Usage:       "path to the served directory; created if missing",
			EnvVar:      "DIR",
			Value:       "images",
			Destination: &cfg.Dir,
		},
		cli.StringFlag{
			Name:        "cache-addr",
			Usage:       "address of the Redis-compatible cache; empty disables caching",
			EnvVar:      "CACHE_ADDR",
			Value:       "redis:6379",
			Destination: &cfg.Cache.Address,
		},
		cli.StringFlag{
			Name:        "cache-password",
			Usage:       "password of the cache",
			EnvVar:      "CACHE_PASSWORD",
			Destination: &cfg.Cache.Password,
		},
		cli.IntFlag{
			Name:        "cache-db",
			Usage:       "database number of the cache",
			EnvVar:      "CACHE_DB",
			Destination: &cfg.Cache.DB,
		},
		cli.StringFlag{
			Name:        "cache-prefix",
			Usage:       "prefix prepended to every cache key",
			EnvVar:      "CACHE_PREFIX",
			Destination: &cfg.Cache.KeyPrefix,
		},
		cli.DurationFlag{
			Name:        "cache-ttl",
			Usage:       "expiry of cache entries; 0 keeps them until the store evicts them",
			EnvVar:      "CACHE_TTL",
			Destination: &cfg.Cache.TTL,
		},
		cli.DurationFlag{
			Name:        "cache-timeout",
			Usage:       "timeout of each cache operation",
			EnvVar:      "CACHE_TIMEOUT",
			Value:       cache.DefaultTimeout,
			Destination: &cfg.Cache.Timeout,
		},
		cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "timeout of each file read",
			EnvVar:      "READ_TIMEOUT",
			Value:       5 * time.Second,
			Destination: &cfg.ReadTimeout,
		},
		cli.DurationFlag{
			Name:        "shutdown-timeout",
			Usage:       "time given to in-flight requests on shutdown",
			EnvVar:      "SHUTDOWN_TIMEOUT",
			Value:       15 * time.Second,
			Destination: &cfg.ShutdownTimeout,
		},
		cli.BoolFlag{
			Name:        "detect-content-type",
			Usage:       "derive Content-Type from the file instead of always sending image/jpeg",
			EnvVar:      "DETECT_CONTENT_TYPE",
			Destination: &cfg.DetectContentType,
		},
		cli.StringFlag{
			Name:        "log-level",
			Usage:       "one of trace, debug, info, warn, error",
			EnvVar:      "LOG_LEVEL",
			Value:       "info",
			Destination: &logCfg.Level,
		},
		cli.StringFlag{
			Name:        "log-format",
			Usage:       "text or json",
			EnvVar:      "LOG_FORMAT",
			Value:       "text",
			Destination: &logCfg.Format,
		},
		cli.StringFlag{
			Name:        "log-file",
			Usage:       "write logs to this rotated file instead of stdout",
			EnvVar:      "LOG_FILE",
			Destination: &logCfg.FilePath,
		},
		cli.IntFlag{
			Name:        "log-max-size",
			Usage:       "size in megabytes at which the log file is rotated",
			EnvVar:      "LOG_MAX_SIZE",
			Value:       100,
			Destination: &logCfg.MaxSizeMB,
		},
		cli.IntFlag{
			Name:        "log-max-backups",
			Usage:       "number of rotated log files to keep",
			EnvVar:      "LOG_MAX_BACKUPS",
			Value:       10,
			Destination: &logCfg.MaxBackups,
		},
		cli.BoolFlag{
			Name:        "log-compress",
			Usage:       "gzip rotated log files",
			EnvVar:      "LOG_COMPRESS",
			Destination: &logCfg.Compress,
		},
	}

	app.Action = func(_ *cli.Context) error {
		logger, err := logging.New(logCfg)
		if err != nil {
			return err
		}

		logger.WithFields(logrus.Fields{
			"dir":   cfg.Dir,
			"cache": cfg.Cache.Address,
		}).Info("Serving images")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return pkg.StartServer(ctx, cfg, logger)
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
