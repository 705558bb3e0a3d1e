package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/hupe1980/tripdb"
	"github.com/hupe1980/tripdb/blobstore"
	miniostore "github.com/hupe1980/tripdb/blobstore/minio"
	"github.com/hupe1980/tripdb/codec"
	s3store "github.com/hupe1980/tripdb/blobstore/s3"
	"github.com/hupe1980/tripdb/internal/compress"
	"github.com/hupe1980/tripdb/metric"
)

// app bundles the DB handle with the resources a command needs.
type app struct {
	cfg   *Config
	store blobstore.BlobStore
	db    *tripdb.DB
	reg   *prometheus.Registry
}

func newStore(ctx context.Context, cfg *Config) (blobstore.BlobStore, error) {
	switch cfg.Source {
	case "s3":
		var opts []s3store.Option
		if cfg.Region != "" {
			opts = append(opts, s3store.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Prefix != "" {
			opts = append(opts, s3store.WithPrefix(cfg.Prefix))
		}
		return s3store.New(ctx, cfg.Bucket, opts...)
	case "minio":
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: !cfg.Insecure,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return blobstore.NewLocalStore(cfg.Root), nil
	}
}

func newApp(ctx context.Context, cfg *Config) (*app, error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	level, err := cfg.level()
	if err != nil {
		return nil, err
	}
	logger := tripdb.NewTextLogger(level)
	if cfg.LogFormat == "json" {
		logger = tripdb.NewJSONLogger(level)
	}

	ct, err := compress.ParseType(cfg.Compression)
	if err != nil {
		return nil, err
	}

	c, _ := codec.ByName(cfg.Codec)

	a := &app{cfg: cfg, store: store}

	opts := []tripdb.Option{
		tripdb.WithDir(cfg.Dir),
		tripdb.WithLogger(logger),
		tripdb.WithWorkers(cfg.Workers),
		tripdb.WithCodec(c),
		tripdb.WithCompression(ct),
		tripdb.WithIOLimit(cfg.IOLimit),
	}
	if cfg.Metrics {
		a.reg = prometheus.NewRegistry()
		mc, err := metric.NewPrometheusCollector("tripdb", a.reg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tripdb.WithMetricsCollector(mc))
	}

	db, err := tripdb.Open(ctx, store, cfg.Dataset, opts...)
	if err != nil {
		return nil, err
	}
	a.db = db
	return a, nil
}

// Close closes the DB and dumps the metric registry when enabled.
func (a *app) Close() error {
	err := a.db.Close()
	if a.reg != nil {
		if derr := dumpMetrics(os.Stderr, a.reg); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

func dumpMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
