package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chorus-fhe/ppcnn/client"
	"github.com/chorus-fhe/ppcnn/clientconfig"
	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/queue"
)

func main() {
	var (
		addr       string
		dataset    string
		model      string
		optLevel   int
		activation string
		configPath string
		inputPath  string
	)

	cmd := &cobra.Command{
		Use:   "ppcnn-client",
		Short: "privacy-preserving CNN inference client",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved := resolveActivation(activation, model)
			fmt.Fprintf(cmd.OutOrStdout(), "opt-level=%d activation=%s\n", optLevel, resolved)
			return run(addr, dataset, model, configPath, inputPath)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:11111", "server address")
	cmd.Flags().StringVarP(&dataset, "dataset", "D", "", "dataset name")
	cmd.Flags().StringVarP(&model, "model", "M", "", "model name")
	cmd.Flags().IntVarP(&optLevel, "opt-level", "O", 4, "compiler optimization level to print (0:None 1:FuseConvBN 2:OptActivation 3:OptPooling 4:All); not sent with the query")
	cmd.Flags().StringVarP(&activation, "activation", "A", "", "activation variant override to print (square, swish_rg4_deg4, swish_rg6_deg4); not sent with the query")
	cmd.Flags().StringVarP(&configPath, "config", "C", "", "client config filepath")
	cmd.Flags().StringVar(&inputPath, "input", "", "path to a JSON input tensor ({h,w,c,values})")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveActivation applies spec §6's default: an explicit flag wins;
// otherwise the activation variant is derived from the model name when it
// contains "CKKS-swish_rg4_deg4" or "CKKS-swish_rg6_deg4", and is "square"
// when it contains neither.
func resolveActivation(flagValue, modelName string) string {
	if flagValue != "" {
		return flagValue
	}
	switch {
	case strings.Contains(modelName, "CKKS-swish_rg4_deg4"):
		return "swish_rg4_deg4"
	case strings.Contains(modelName, "CKKS-swish_rg6_deg4"):
		return "swish_rg6_deg4"
	default:
		return "square"
	}
}

func run(addr, dataset, model, configPath, inputPath string) error {
	logDegree, level := 13, 10
	if configPath != "" {
		cfg, err := clientconfig.ParseFile(configPath)
		if err != nil {
			return fmt.Errorf("ppcnn-client: %w", err)
		}
		if cfg.Power != 0 {
			logDegree = cfg.Power
		}
		if cfg.Level != 0 {
			level = cfg.Level
		}
	}

	params := fhe.NewCKKSParameters(logDegree, level)
	engine := fhe.NewEngine(params)
	gen := fhe.NewKeyGenerator()

	keys, err := client.NewKeyContainer(gen, params)
	if err != nil {
		return fmt.Errorf("ppcnn-client: generate keys: %w", err)
	}

	c, err := client.Dial(context.Background(), addr, 0, 0, keys)
	if err != nil {
		return fmt.Errorf("ppcnn-client: %w", err)
	}
	defer c.Close()

	if err := c.RegisterKeys(); err != nil {
		return fmt.Errorf("ppcnn-client: register keys: %w", err)
	}

	input, h, w, ch, err := loadInput(inputPath)
	if err != nil {
		return fmt.Errorf("ppcnn-client: %w", err)
	}

	cts := make([]fhe.Ciphertext, len(input))
	for i, v := range input {
		pt, err := engine.EncodeScalar(v, engine.ScaleParam())
		if err != nil {
			return err
		}
		ct, err := engine.Encrypt(pt, keys.PublicKey())
		if err != nil {
			return err
		}
		cts[i] = ct
	}

	q := queue.Query{KeyID: keys.KeyID(), Dataset: dataset, Model: model, Input: cts, InH: h, InW: w, InC: ch}

	queryID, err := c.SendQuery(q)
	if err != nil {
		return fmt.Errorf("ppcnn-client: submit query: %w", err)
	}
	fmt.Printf("submitted query %d\n", queryID)

	done := make(chan struct{})
	client.Subscribe(c, queryID, func(id int64, success bool, outputs []fhe.Ciphertext, _ interface{}) {
		defer close(done)
		fmt.Printf("query %d: success=%v outputs=%d\n", id, success, len(outputs))
	}, nil)
	<-done
	return nil
}

func loadInput(path string) (values []float64, h, w, ch int, err error) {
	if path == "" {
		return nil, 0, 0, 0, fmt.Errorf("missing --input")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	var doc struct {
		H, W, C int
		Values  []float64
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, 0, 0, 0, err
	}
	return doc.Values, doc.H, doc.W, doc.C, nil
}
