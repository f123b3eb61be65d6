package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Asteroidea-tn/astrocarver/encrypt"
	"github.com/Asteroidea-tn/astrocarver/pkg/astrolog"
)

// commandContext carries what every subcommand needs once the environment is read.
type commandContext struct {
	envFile   string
	cfg       *Config
	logCloser io.Closer
}

func (c *commandContext) load() error {
	if c.cfg != nil {
		return nil
	}
	var files []string
	if c.envFile != "" {
		files = append(files, c.envFile)
	}
	cfg, err := loadConfig(files...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.logCloser = astrolog.InitLogger(cfg.loggerConfig())
	return nil
}

func (c *commandContext) close() {
	if c.logCloser != nil {
		_ = c.logCloser.Close()
		c.logCloser = nil
	}
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "astrocarver <collector-url>",
		Short:         "Capture a camera frame and deliver it to a collector",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()

			p, err := newPipeline(ctx.cfg, args[0], nil)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.runOnce(cmd.Context()); err != nil {
				log.Error().Err(err).Str("url", args[0]).Msg("Run failed")
				return err
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", "", "Path to a .env file (default .env)")

	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newSealCommand(ctx))

	return rootCmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	opts := watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <collector-url>",
		Short: "Capture on an interval and keep delivering until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()

			if opts.Interval <= 0 {
				return errors.New("--interval must be positive")
			}
			if opts.RetryDelay <= 0 {
				return errors.New("--retry-delay must be positive")
			}

			p, err := newPipeline(ctx.cfg, args[0], nil)
			if err != nil {
				return err
			}
			defer p.Close()

			log.Info().
				Str("url", args[0]).
				Str("camera", ctx.cfg.Capture.ID).
				Dur("interval", opts.Interval).
				Msg("Watching camera")
			return p.watch(cmd.Context(), opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 5*time.Second, "Time between captures")
	cmd.Flags().DurationVar(&opts.RetryDelay, "retry-delay", 2*time.Second, "Wait before retrying a failed delivery")
	cmd.Flags().BoolVar(&opts.DropRejected, "drop-rejected", false, "Drop envelopes the collector rejects with a 4xx status")

	return cmd
}

func newSealCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seal <plaintext>",
		Short: "Encrypt a secret with ASTRO_SECRET_KEY for use in .env",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()

			svc, err := encrypt.NewServiceFromEnvKey(ctx.cfg.SecretKey)
			if err != nil {
				return fmt.Errorf("ASTRO_SECRET_KEY: %w", err)
			}
			sealed, err := svc.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}
