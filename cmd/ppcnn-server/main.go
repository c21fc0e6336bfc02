package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chorus-fhe/ppcnn/compiler"
	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/server"
	"github.com/chorus-fhe/ppcnn/worker"
)

func main() {
	cfg := server.DefaultConfig()
	var logDegree, level int

	cmd := &cobra.Command{
		Use:   "ppcnn-server",
		Short: "privacy-preserving CNN inference server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, logDegree, level)
		},
	}

	cmd.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "TCP port to listen on")
	cmd.Flags().IntVarP(&cfg.MaxConcurrentQueries, "max-queries", "q", cfg.MaxConcurrentQueries, "max concurrent queries")
	cmd.Flags().IntVarP(&cfg.MaxResults, "max-results", "r", cfg.MaxResults, "max held results")
	cmd.Flags().DurationVarP(&cfg.ResultLifetime, "lifetime", "l", cfg.ResultLifetime, "result lifetime before eviction")
	cmd.Flags().StringVar(&cfg.DatasetsRoot, "datasets", cfg.DatasetsRoot, "datasets/topology/weights root directory")
	cmd.Flags().IntVar(&logDegree, "log-degree", 13, "log2 of the CKKS-style polynomial ring degree")
	cmd.Flags().IntVar(&level, "level", 10, "multiplicative level budget")
	cmd.Flags().BoolVar(&cfg.FoldGlobalPool, "fold-global-pool", cfg.FoldGlobalPool,
		"always fold GlobalAveragePooling2D's divide-by-N into the next layer")

	cmd.AddCommand(newPrintPlanCommand())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newPrintPlanCommand builds the print-plan subcommand (SPEC_FULL.md's
// Network printStructure-equivalent): it resolves a dataset/model pair off
// disk, compiles it, and prints the resulting compiler.Plan instead of
// serving, mirroring the original's Network::printStructure debug output.
func newPrintPlanCommand() *cobra.Command {
	printCfg := server.DefaultConfig()
	var dataset, modelName string
	var logDegree, level int

	cmd := &cobra.Command{
		Use:   "print-plan",
		Short: "compile a dataset/model pair and print its operator plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPlan(printCfg, dataset, modelName, logDegree, level)
		},
	}

	cmd.Flags().StringVar(&printCfg.DatasetsRoot, "datasets", printCfg.DatasetsRoot, "datasets/topology/weights root directory")
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset name under --datasets")
	cmd.Flags().StringVar(&modelName, "model", "", "model name under the dataset directory")
	cmd.Flags().IntVar(&logDegree, "log-degree", 13, "log2 of the CKKS-style polynomial ring degree")
	cmd.Flags().IntVar(&level, "level", 10, "multiplicative level budget")
	cmd.Flags().BoolVar(&printCfg.FoldGlobalPool, "fold-global-pool", printCfg.FoldGlobalPool,
		"always fold GlobalAveragePooling2D's divide-by-N into the next layer")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func printPlan(cfg server.Config, dataset, modelName string, logDegree, level int) error {
	params := fhe.NewCKKSParameters(logDegree, level)
	engine := fhe.NewEngine(params)

	resolver := worker.FileResolver{Root: cfg.DatasetsRoot, Opts: cfg.Opts()}
	desc, weights, opts, err := resolver.Resolve(dataset, modelName)
	if err != nil {
		return fmt.Errorf("ppcnn-server print-plan: %w", err)
	}

	p, err := compiler.New(engine).Compile(desc, weights, opts)
	if err != nil {
		return fmt.Errorf("ppcnn-server print-plan: %w", err)
	}

	fmt.Print(p.String())
	return nil
}

func run(cfg server.Config, logDegree, level int) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	params := fhe.NewCKKSParameters(logDegree, level)
	engine := fhe.NewEngine(params)

	srv, err := server.New(cfg, engine, prometheus.DefaultRegisterer, log)
	if err != nil {
		return fmt.Errorf("ppcnn-server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("ppcnn-server starting")
	return srv.Serve(ctx, addr)
}
