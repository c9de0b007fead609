package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/ashureev/finboard/internal/probe"
)

func newHealthcheckCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "healthcheck [service]",
		Short: "Query the gRPC health service of a running server",
		Long:  "healthcheck asks the health service at --addr for the status of a backend (auth, chat) or, without an argument, of the server as a whole. It exits non-zero unless the status is SERVING.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := ""
			if len(args) == 1 {
				service = args[0]
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			status, err := probe.Check(ctx, addr, service)
			if err != nil {
				return err
			}
			if asJSON {
				out, err := protojson.Marshal(&healthpb.HealthCheckResponse{Status: status})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), status.String())
			}
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("service %q is %s", service, status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("PROBE_ADDR", "localhost:9090"), "address of the health service")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "time to wait for an answer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the health response as JSON")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
