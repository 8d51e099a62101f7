package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"bearing-fault-sim/internal/config"
	"bearing-fault-sim/internal/export"
	"bearing-fault-sim/internal/logger"
	"bearing-fault-sim/internal/models"
	"bearing-fault-sim/internal/monitor"
	"bearing-fault-sim/internal/simulator"
	"bearing-fault-sim/internal/store"
	"bearing-fault-sim/internal/trace"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "bearing-sim",
		Short:        "Synthetic bearing-fault vibration generator (CLI + API + scheduler)",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "path to YAML config (empty = defaults + env)")

	// при выводе CSV в stdout журнал пишется в stderr
	load := func(out string) (*config.Config, *logger.Logger, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, nil, err
		}
		if out == "-" {
			return cfg, logger.NewWithWriter(os.Stderr, cfg.LogLevel), nil
		}
		return cfg, logger.New(cfg.LogLevel), nil
	}

	// --- serve ---
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API, analyzer and ride scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load("")
			if err != nil {
				return err
			}
			ctx, stop := withSignals()
			defer stop()
			return serve(ctx, cfg, log)
		},
	})

	// --- simulate ---
	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate rides and write labeled CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			faultName, _ := cmd.Flags().GetString("fault")
			severity, _ := cmd.Flags().GetFloat64("severity")
			count, _ := cmd.Flags().GetInt("count")
			out, _ := cmd.Flags().GetString("out")
			cfg, log, err := load(out)
			if err != nil {
				return err
			}

			gen, err := newGenerator(cfg)
			if err != nil {
				return err
			}
			var force *models.FaultLabel
			if faultName != "" {
				l, err := models.ParseFaultLabel(faultName)
				if err != nil {
					return err
				}
				force = &l
			}

			rides := make([]models.RideSample, 0, count)
			sim := simulator.NewRideSimulator(gen)
			for i := 0; i < count; i++ {
				var ride models.RideSample
				switch {
				case force != nil && severity >= 0:
					ride, err = gen.Simulate(*force, severity)
				default:
					var res simulator.RideResult
					res, err = sim.RunRideCycle(force)
					ride = res.RideSample
				}
				if err != nil {
					return err
				}
				log.Info().Int64("ride_id", ride.RideID).Str("fault_type", ride.FaultType.String()).
					Float64("severity", ride.Severity).Msg("ride simulated")
				rides = append(rides, ride)
			}
			return writeDataset(out, rides)
		},
	}
	simulateCmd.Flags().String("fault", "", "force fault type (NORMAL, OUTER_RACE_FAULT, INNER_RACE_FAULT, BALL_FAULT, CAGE_FAULT)")
	simulateCmd.Flags().Float64("severity", -1, "fault severity (negative = random within the fault's range)")
	simulateCmd.Flags().Int("count", 1, "number of rides")
	simulateCmd.Flags().String("out", "-", "output CSV path (- = stdout)")
	root.AddCommand(simulateCmd)

	// --- generate ---
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a balanced labeled dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			perClass, _ := cmd.Flags().GetInt("per-class")
			out, _ := cmd.Flags().GetString("out")
			archive, _ := cmd.Flags().GetBool("archive")
			exportName, _ := cmd.Flags().GetString("export")
			cfg, log, err := load(out)
			if err != nil {
				return err
			}

			gen, err := newGenerator(cfg)
			if err != nil {
				return err
			}
			opts := monitor.Options{Log: log}
			if archive {
				st, err := openArchive(cfg.Storage.Path, gen)
				if err != nil {
					return err
				}
				defer st.Close()
				opts.Archive = st
			}
			if exportName != "" {
				exp, err := newExporter(cfg)
				if err != nil {
					return err
				}
				opts.Exporter = exp
			}

			ctx, stop := withSignals()
			defer stop()
			mon := monitor.New(simulator.NewRideSimulator(gen), nil, opts)
			res, err := mon.GenerateDataset(ctx, perClass, exportName)
			if err != nil {
				return err
			}
			if out == "" {
				return nil
			}
			return writeDataset(out, res.Samples)
		},
	}
	generateCmd.Flags().Int("per-class", 50, "rides per fault type")
	generateCmd.Flags().String("out", "data/fault_dataset.csv", "output CSV path (- = stdout, empty = none)")
	generateCmd.Flags().Bool("archive", false, "store rides in the bbolt archive")
	generateCmd.Flags().String("export", "", "upload the dataset to S3 under this name")
	root.AddCommand(generateCmd)

	// --- export ---
	exportCmd := &cobra.Command{
		Use:   "export NAME",
		Short: "Upload archived rides to S3",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load("")
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			st, err := openStore(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer st.Close()
			rides, err := st.List(limit)
			if err != nil {
				return err
			}
			if len(rides) == 0 {
				return fmt.Errorf("archive %s is empty", cfg.Storage.Path)
			}
			exp, err := newExporter(cfg)
			if err != nil {
				return err
			}
			ctx, stop := withSignals()
			defer stop()
			uri, err := exp.ExportRides(ctx, args[0], rides)
			if err != nil {
				return err
			}
			log.Info().Str("uri", uri).Int("rides", len(rides)).Msg("dataset exported")
			return nil
		},
	}
	exportCmd.Flags().Int("limit", 0, "export only the latest N rides (0 = all)")
	root.AddCommand(exportCmd)

	// --- version ---
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bearing-sim %s (%s)\n", version, commit)
		},
	})

	return root
}

// newGenerator загружает базовую запись и создает генератор
func newGenerator(cfg *config.Config) (*simulator.Generator, error) {
	baseline, err := trace.LoadFile(cfg.Simulation.BaselinePath)
	if err != nil {
		return nil, err
	}
	var rng *rand.Rand
	if seed := cfg.Simulation.Seed; seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return simulator.NewGenerator(baseline, cfg.Simulation.Bearing, rng)
}

func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return store.Open(path)
}

// openArchive открывает архив; нумерация поездок генератора продолжается после
// последней сохраненной поездки
func openArchive(path string, gen *simulator.Generator) (*store.Store, error) {
	st, err := openStore(path)
	if err != nil {
		return nil, err
	}
	last, err := st.MaxRideID()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	gen.StartAfter(last)
	return st, nil
}

func newExporter(cfg *config.Config) (*export.S3Exporter, error) {
	return export.NewS3Exporter(export.Config{
		Bucket:   cfg.S3.Bucket,
		Prefix:   cfg.S3.Prefix,
		Region:   cfg.S3.Region,
		Endpoint: cfg.S3.Endpoint,
	})
}

// writeDataset пишет поездки в CSV файл или stdout
func writeDataset(path string, rides []models.RideSample) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	dw, err := trace.NewDatasetWriter(w)
	if err != nil {
		return err
	}
	for _, r := range rides {
		if err := dw.WriteRide(r); err != nil {
			return err
		}
	}
	return dw.Flush()
}

func withSignals() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
