package main

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/bandroute/internal/config"
	"github.com/danielpatrickdp/bandroute/internal/transport"
)

// #region serve

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bandroute.v1.Router gRPC API",
	Long: `serve listens on [server] addr (or BANDROUTE_ADDR). With a store
configured it starts from the active snapshot and stored weights, and saves
the learned weights on shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	pipe, err := newPipeline(store)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	srv := grpc.NewServer()
	transport.Register(srv, transport.NewServer(pipe.Selector(), nil,
		transport.WithPipeline(pipe),
		transport.WithTimeout(time.Duration(cfg.Server.TimeoutSeconds)*time.Second),
		transport.WithLogger(logger)))

	ctx := cmd.Context()
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	logger.Info("serving", "addr", lis.Addr().String(), "store", cfg.Store.Path)
	if err := srv.Serve(lis); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	if store != nil {
		if err := persistRouter(store, pipe, pipe.Producer().Len(), nil); err != nil {
			return fmt.Errorf("save weights: %w", err)
		}
	}
	m := pipe.Metrics()
	logger.Info("stopped",
		"observations", pipe.Producer().Len(),
		"error_rate", m.ErrorRate,
		"transition_overhead", m.TransitionOverhead)
	return nil
}

// #endregion serve

// #region config

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print or write the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printJSON(cmd.OutOrStdout(), cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write the effective configuration to a TOML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(cfg, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// #endregion config
