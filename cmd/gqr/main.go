package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mislam5285/gqr/internal/eval"
	"github.com/mislam5285/gqr/internal/vecio"
	"github.com/mislam5285/gqr/pkg/config"
	"github.com/mislam5285/gqr/pkg/lsh"
	"github.com/mislam5285/gqr/pkg/observability"
	"github.com/mislam5285/gqr/pkg/prober"
	"github.com/mislam5285/gqr/pkg/scanner"
)

var (
	cfg         *config.Config
	metrics     *observability.Metrics
	metricsAddr string

	tables     int
	dims       int
	bits       int
	sampleSize int
	itqIters   int
	batchSize  int
	seed       int64
)

var rootCmd = &cobra.Command{
	Use:   "gqr",
	Short: "Train, populate, and query binary-quantization hash indexes",
	Long: `gqr builds locality-sensitive hash indexes over fvecs vector files.
Each index trains per-table PCA projections refined by iterative
quantization, hashes vectors to 64-bit bucket codes, and answers
queries through pluggable bucket probers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadFromEnv()
		applyFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger := observability.NewLogger(observability.ParseLogLevel(cfg.Log.Level), os.Stderr)
		observability.SetGlobalLogger(logger)
		metrics = observability.NewMetrics(nil)

		if metricsAddr != "" {
			go func() {
				http.Handle("/metrics", promhttp.Handler())
				if err := http.ListenAndServe(metricsAddr, nil); err != nil {
					observability.Errorf("metrics endpoint: %v", err)
				}
			}()
		}
		return nil
	},
}

// applyFlags overrides env-derived config with explicitly set flags.
func applyFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("tables") {
		cfg.Index.L = tables
	}
	if cmd.Flags().Changed("dims") {
		cfg.Index.D = dims
	}
	if cmd.Flags().Changed("bits") {
		cfg.Index.N = bits
	}
	if cmd.Flags().Changed("sample") {
		cfg.Index.S = sampleSize
	}
	if cmd.Flags().Changed("itq") {
		cfg.Index.I = itqIters
	}
	if cmd.Flags().Changed("batch") {
		cfg.Training.BatchSize = batchSize
	}
	if cmd.Flags().Changed("seed") {
		cfg.Training.Seed = seed
	}
}

var trainCmd = &cobra.Command{
	Use:   "train <dataset.fvecs> <index.out>",
	Short: "Train an index on a dataset and save it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := vecio.ReadFvecs(args[0])
		if err != nil {
			return fmt.Errorf("loading dataset: %w", err)
		}
		observability.Infof("loaded %d vectors of dimension %d", data.Len(), data.Dim())

		param := lsh.Parameter{
			M: cfg.Index.M,
			L: cfg.Index.L,
			D: data.Dim(),
			N: cfg.Index.N,
			S: cfg.Index.S,
			I: cfg.Index.I,
		}
		if param.S > data.Len() {
			param.S = data.Len()
		}

		idx := lsh.New()
		if err := idx.Reset(param); err != nil {
			return err
		}

		ctx := context.Background()
		start := time.Now()
		err = idx.TrainAll(ctx, data, lsh.TrainOptions{
			BatchSize: cfg.Training.BatchSize,
			Seed:      cfg.Training.Seed,
		})
		if err != nil {
			metrics.RecordTrainingError()
			return fmt.Errorf("training: %w", err)
		}
		metrics.RecordTraining(param.L, time.Since(start))

		if err := idx.SetMeanAndStd(ctx, data); err != nil {
			return fmt.Errorf("statistics: %w", err)
		}

		start = time.Now()
		hashed := 0
		err = idx.Hash(ctx, data, lsh.ProgressFunc(func() { hashed++ }))
		if err != nil {
			return fmt.Errorf("hashing: %w", err)
		}
		metrics.RecordHash(hashed, time.Since(start))

		for k := 0; k < param.L; k++ {
			metrics.UpdateTableStats(fmt.Sprintf("%d", k), idx.TableSize(k), idx.MaxBucketSize(k))
		}

		if err := idx.SaveFile(args[1]); err != nil {
			return fmt.Errorf("saving index: %w", err)
		}
		fmt.Printf("Trained %d tables over %d vectors, index saved to %s\n", param.L, data.Len(), args[1])
		return nil
	},
}

var (
	queryK      int
	queryQuota  int
	queryProber string
	maxRadius   int
	truthPath   string
)

var queryCmd = &cobra.Command{
	Use:   "query <index> <queries.fvecs> <dataset.fvecs>",
	Short: "Query an index and report recall",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx := lsh.New()
		if err := idx.LoadFile(args[0]); err != nil {
			return fmt.Errorf("loading index: %w", err)
		}

		queries, err := vecio.ReadFvecs(args[1])
		if err != nil {
			return fmt.Errorf("loading queries: %w", err)
		}
		data, err := vecio.ReadFvecs(args[2])
		if err != nil {
			return fmt.Errorf("loading dataset: %w", err)
		}

		var truth [][]uint32
		if truthPath != "" {
			rows, err := vecio.ReadIvecs(truthPath)
			if err != nil {
				return fmt.Errorf("loading ground truth: %w", err)
			}
			truth = make([][]uint32, len(rows))
			for i, row := range rows {
				ids := make([]uint32, len(row))
				for j, v := range row {
					ids[j] = uint32(v)
				}
				truth[i] = ids
			}
		} else {
			observability.Infof("no ground truth supplied, computing exact neighbors")
			truth = eval.GroundTruth(data, queries, queryK, scanner.Euclidean)
		}

		results := make([][]uint32, queries.Len())
		for q := 0; q < queries.Len(); q++ {
			query := queries.Row(q)
			scan := scanner.NewTopK(data, query, queryK, scanner.Euclidean)

			var pr lsh.Prober
			switch queryProber {
			case "expansion":
				pr, err = prober.NewQuantizationExpansion(idx, query, scan)
			default:
				pr, err = prober.NewHashLookup(idx, query, scan, maxRadius)
			}
			if err != nil {
				return fmt.Errorf("query %d: %w", q, err)
			}
			counted := &countingProber{Prober: pr}

			start := time.Now()
			if err := idx.TopK(query, counted, queryQuota); err != nil {
				return fmt.Errorf("query %d: %w", q, err)
			}
			metrics.RecordQuery(time.Since(start), counted.buckets, scan.Count())

			ids := make([]uint32, 0, queryK)
			for _, r := range scan.Results() {
				ids = append(ids, r.Row)
			}
			results[q] = ids
		}

		recall := eval.Recall(truth, results, queryK)
		metrics.RecordRecall(recall)
		fmt.Printf("Queries: %d  k: %d  quota: %d  prober: %s  recall@%d: %.4f\n",
			queries.Len(), queryK, queryQuota, queryProber, queryK, recall)
		return nil
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench <dataset.fvecs>",
	Short: "Sweep training batch sizes and report durations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := vecio.ReadFvecs(args[0])
		if err != nil {
			return fmt.Errorf("loading dataset: %w", err)
		}

		param := lsh.Parameter{
			M: cfg.Index.M,
			L: cfg.Index.L,
			D: data.Dim(),
			N: cfg.Index.N,
			S: cfg.Index.S,
			I: cfg.Index.I,
		}
		if param.S > data.Len() {
			param.S = data.Len()
		}

		seed := cfg.Training.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		for _, batch := range []int{1, 2, 4, 8, 16} {
			if batch > param.L {
				break
			}
			idx := lsh.New()
			if err := idx.Reset(param); err != nil {
				return err
			}
			start := time.Now()
			err := idx.TrainAll(context.Background(), data, lsh.TrainOptions{
				BatchSize: batch,
				Seed:      seed,
			})
			if err != nil {
				return fmt.Errorf("batch %d: %w", batch, err)
			}
			fmt.Printf("batch=%-3d tables=%d  %v\n", batch, param.L, time.Since(start))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().IntVar(&tables, "tables", 4, "number of hash tables (L)")
	rootCmd.PersistentFlags().IntVar(&dims, "dims", 128, "vector dimension (D)")
	rootCmd.PersistentFlags().IntVar(&bits, "bits", 16, "bits per bucket code (N)")
	rootCmd.PersistentFlags().IntVar(&sampleSize, "sample", 10000, "training sample size (S)")
	rootCmd.PersistentFlags().IntVar(&itqIters, "itq", 50, "ITQ refinement iterations (I)")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch", 4, "concurrent training workers per batch")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "training RNG seed (0 = ambient)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")

	queryCmd.Flags().IntVarP(&queryK, "k", "k", 10, "neighbors to return per query")
	queryCmd.Flags().IntVar(&queryQuota, "quota", 1000, "candidate quota per query")
	queryCmd.Flags().StringVar(&queryProber, "prober", "hashlookup", "bucket prober: hashlookup or expansion")
	queryCmd.Flags().IntVar(&maxRadius, "max-radius", -1, "hashlookup Hamming radius cap (-1 = unbounded)")
	queryCmd.Flags().StringVar(&truthPath, "ground-truth", "", "ivecs ground-truth file")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(benchCmd)
}

// countingProber counts the buckets handed to the index.
type countingProber struct {
	lsh.Prober
	buckets int
}

func (c *countingProber) NextBucket() (int, uint64) {
	c.buckets++
	return c.Prober.NextBucket()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
