package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/getcharzp/go-speech-hidden/config"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

// cli 各子命令共享的配置与日志
type cli struct {
	configPath string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
}

// load 读取配置并初始化日志, 在子命令执行前调用
func (c *cli) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)
	return nil
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:               "paraformer-hidden",
		Short:             "Export and check the Paraformer hidden-state ONNX graph",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.load,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to configuration file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newExportCmd(c),
		newTestCmd(c),
		newMaskCmd(c),
		newEncodeCmd(c),
	)
	return rootCmd
}

func newExportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the encoder hidden states of a Paraformer checkpoint to ONNX",
		Args:  cobra.NoArgs,
		RunE:  c.exportHandler,
	}
	cmd.Flags().String("model-dir", "", "Checkpoint directory with config.yaml, model.pb and am.mvn")
	cmd.Flags().String("output-dir", "", "Directory for the exported graph")
	cmd.Flags().Int("frames", 0, "Time length of the synthetic export input")
	return cmd
}

func newTestCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test [MODEL]",
		Short: "Load an exported graph and run a fixed-shape dummy inference",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.testHandler,
	}
	cmd.Flags().IntSlice("probe", nil, "Time lengths to probe besides the fixed one")
	return cmd
}

func newMaskCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mask",
		Short: "Print the padding mask for a batch of lengths",
		Args:  cobra.NoArgs,
		RunE:  c.maskHandler,
	}
	cmd.Flags().IntSlice("lengths", []int{10}, "Valid length of each batch item")
	cmd.Flags().Int("max-len", 0, "Mask width (defaults to the longest length)")
	cmd.Flags().Bool("valid", false, "Mark valid positions with 1 instead of padded ones")
	return cmd
}

func newEncodeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode WAV",
		Short: "Extract features from a 16kHz wav file and run the exported graph",
		Args:  cobra.ExactArgs(1),
		RunE:  c.encodeHandler,
	}
	cmd.Flags().String("model", "", "Exported graph (defaults to the export artifact)")
	cmd.Flags().Bool("restore-length", false, "Resample hidden states back to the utterance frame count")
	cmd.Flags().String("output", "", "Write hidden states as JSON to this file")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
