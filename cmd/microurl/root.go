package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MSSkowron/MicroURL/internal/app"
	"github.com/MSSkowron/MicroURL/internal/config"
	"github.com/MSSkowron/MicroURL/internal/dto"
	grpcserver "github.com/MSSkowron/MicroURL/internal/server/grpc"
	"github.com/MSSkowron/MicroURL/pkg/client"
)

const (
	defaultServerURL   = "http://localhost:8080"
	defaultGRPCAddress = "localhost:9090"
	requestTimeout     = 10 * time.Second
)

type options struct {
	configFile  string
	serverURL   string
	grpcAddress string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "microurl",
		Short:         "A registry of short word based links",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "env style config file (default: environment only)")
	rootCmd.PersistentFlags().StringVarP(&opts.serverURL, "server", "s", defaultServerURL, "base url of a running registry")
	rootCmd.PersistentFlags().StringVar(&opts.grpcAddress, "grpc", defaultGRPCAddress, "address of the registry gRPC health service")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newSweepCommand(opts),
		newShortenCommand(opts),
		newResolveCommand(opts),
		newListCommand(opts, "top", "List the public micros with the most hits", (*client.Client).Top),
		newListCommand(opts, "recent", "List the most recently registered public micros", (*client.Client).Recent),
		newHealthCommand(opts),
	)

	return rootCmd
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the registry servers and the expiry sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			return a.Run(ctx)
		},
	}
}

func newSweepCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired micros from the configured store once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			deleted, err := a.Registry().Sweep(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired micros\n", deleted)
			return err
		},
	}
}

func newShortenCommand(opts *options) *cobra.Command {
	var public bool

	cmd := &cobra.Command{
		Use:   "shorten <destination>",
		Short: "Register a destination and print its micro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient(opts.serverURL)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			code, err := c.Shorten(ctx, args[0], public)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
			return err
		},
	}

	cmd.Flags().BoolVarP(&public, "public", "p", false, "list the micro in the public rankings")

	return cmd
}

func newResolveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <micro>",
		Short: "Print the redirect target of a micro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient(opts.serverURL)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			target, err := c.Resolve(ctx, args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), target)
			return err
		},
	}
}

type listFunc func(c *client.Client, ctx context.Context, limit int) (dto.OrderedMicros, error)

func newListCommand(opts *options, use, short string, list listFunc) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client.NewClient(opts.serverURL)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			micros, err := list(c, ctx, limit)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(micros)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of micros (default: server default)")

	return cmd
}

func newHealthCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the serving status reported by the gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			status, err := client.CheckHealth(ctx, opts.grpcAddress, grpcserver.ServiceName)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), status)
			return err
		},
	}
}

func newApp(ctx context.Context, opts *options) (*app.App, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	return app.New(ctx, cfg)
}
