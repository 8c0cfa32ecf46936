// hnswbuild command: builds an HNSW graph over a vector set and writes
// the sealed link store to disk.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/vectorforge/hnswbuild/pkg/batch"
	"github.com/vectorforge/hnswbuild/pkg/config"
	"github.com/vectorforge/hnswbuild/pkg/hnsw"
	"github.com/vectorforge/hnswbuild/pkg/logging"
	"github.com/vectorforge/hnswbuild/pkg/metrics"
	"github.com/vectorforge/hnswbuild/pkg/scorer"
	"github.com/vectorforge/hnswbuild/pkg/streaming"
	"github.com/vectorforge/hnswbuild/pkg/version"
)

// Version can be overridden at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	configFile := flag.String("config", "", "Config file path (YAML)")
	in := flag.String("in", "", "Input vectors: raw little-endian float32 rows (omit to generate random vectors)")
	out := flag.String("out", "graph.hnsw", "Output path for the sealed link store")
	dim := flag.Int("dim", 16, "Vector dimension")
	n := flag.Int("n", 0, "Number of random vectors to generate when -in is not given")
	seed := flag.Int64("seed", 42, "Seed for random vectors and level sampling")
	m := flag.Int("m", 0, "Max out-degree above layer 0 (override config)")
	m0 := flag.Int("m0", 0, "Max out-degree on layer 0 (override config)")
	efConstruct := flag.Int("ef-construct", 0, "Beam width during construction (override config)")
	metricName := flag.String("metric", "", "Similarity metric: cosine or dot (override config)")
	logLevel := flag.String("log-level", "", "Log level (override config)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			logging.Error("load config: %v", err)
			os.Exit(1)
		}
	} else {
		cfg = config.DefaultConfig()
	}
	cfg.ApplyOverrides(config.CLIOverrides{
		M:           *m,
		M0:          *m0,
		EfConstruct: *efConstruct,
		Metric:      *metricName,
		LogLevel:    *logLevel,
	})

	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	}); err != nil {
		logging.Error("init logging: %v", err)
		os.Exit(1)
	}

	startVersion := Version
	if startVersion == "" || startVersion == "dev" {
		startVersion = version.Version
	}
	log := logging.WithField("component", "main")
	log.Info("hnswbuild v%s starting", startVersion)

	store, err := loadVectors(*in, *dim, *n, *seed)
	if err != nil {
		log.Error("load vectors: %v", err)
		os.Exit(1)
	}
	log.Info("loaded %d vectors of dimension %d", store.Count(), store.Dim())

	var metric scorer.Metric
	switch cfg.Build.Metric {
	case "dot":
		metric = scorer.DotMetric{}
	default:
		metric = scorer.CosineMetric{}
	}

	levels := sampleLevels(store.Count(), cfg.Build.M, *seed)
	builder := hnsw.New(levels, cfg.Build.M, cfg.Build.M0, cfg.Build.EfConstruct, cfg.Build.EntryPointsNum)
	log.Info("builder %s created (m=%d m0=%d ef_construct=%d)",
		builder.BuildID(), cfg.Build.M, cfg.Build.M0, cfg.Build.EfConstruct)

	ctx := context.Background()
	loader := hnsw.NewThrottledLoader(builder,
		float64(cfg.Ingest.RateLimit), cfg.Ingest.Burst,
		func(p batch.Point) hnsw.PointScorer {
			return scorer.New(store, metric, nil, p.Vector)
		})

	src := streaming.NewPointStream(ctx, 256)
	results := streaming.NewResultStream(ctx, 256)
	go func() {
		defer src.Close(nil)
		// Points are buffered through a batch processor and handed to the
		// stream one flush at a time, so a slow insertion loop backpressures
		// the producer in batch-sized steps rather than per point.
		proc := batch.NewBatchProcessor(cfg.Ingest.BatchSize, true, func(points []batch.Point) error {
			for _, p := range points {
				if err := src.Send(p); err != nil {
					return err
				}
			}
			return nil
		})
		for id := 0; id < store.Count(); id++ {
			p := batch.Point{ID: uint64(id), Vector: store.Get(uint64(id)), Level: levels[id]}
			if err := proc.Add(p); err != nil {
				log.Warn("ingest stopped: %v", err)
				return
			}
		}
		if err := proc.Flush(); err != nil {
			log.Warn("ingest stopped: %v", err)
		}
	}()
	go func() {
		defer results.Close()
		loader.Drain(ctx, src, results)
	}()

	var failed bool
	for {
		r, ok := results.Recv()
		if !ok {
			break
		}
		if r.Err != nil {
			log.Error("point %d: %v", r.PointID, r.Err)
			failed = true
		}
	}
	if failed {
		log.Error("build failed; discarding partial graph")
		os.Exit(1)
	}

	builder.Seal()
	if err := saveLinks(builder, *out); err != nil {
		log.Error("save %s: %v", *out, err)
		os.Exit(1)
	}

	snap := builder.Metrics().Snapshot()
	log.Info("wrote %s: %d insertions, %d beam expansions, %d reciprocal prunes",
		*out,
		snap.Counters[metrics.MetricInsertions],
		snap.Counters[metrics.MetricBeamExpansions],
		snap.Counters[metrics.MetricReciprocalPrunes])
}

// loadVectors reads raw float32 rows from path, or generates n random
// vectors from seed when path is empty.
func loadVectors(path string, dim, n int, seed int64) (*scorer.Store, error) {
	store := scorer.NewStore(dim)
	if path == "" {
		if n <= 0 {
			n = 1000
		}
		rng := rand.New(rand.NewSource(seed))
		for i := 0; i < n; i++ {
			v := make([]float32, dim)
			for j := range v {
				v[j] = rng.Float32()*2 - 1
			}
			if _, err := store.Add(v); err != nil {
				return nil, err
			}
		}
		return store, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for {
		v := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if _, err := store.Add(v); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// sampleLevels draws a top layer for each of n points from the
// geometric distribution with mean 1/ln(m), the standard HNSW level
// assignment.
func sampleLevels(n, m int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	mult := 1.0 / math.Log(float64(m))
	levels := make([]int, n)
	for i := range levels {
		levels[i] = int(-math.Log(1.0-rng.Float64()) * mult)
	}
	return levels
}

func saveLinks(b *hnsw.Builder, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.Links().Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
