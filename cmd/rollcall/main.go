package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rollcall/internal/client"
	"github.com/alfredjeanlab/rollcall/internal/ui"
)

var (
	httpURL    string
	grpcAddr   string
	authToken  string
	jsonOutput bool
	noColor    bool

	apiClient client.Client
)

func defaultHTTPURL() string {
	if s := os.Getenv("ROLLCALL_HTTP_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func defaultGRPCAddr() string {
	if s := os.Getenv("ROLLCALL_SERVER"); s != "" {
		return s
	}
	return "localhost:9090"
}

var rootCmd = &cobra.Command{
	Use:          "rollcall <command>",
	Short:        "Payment webhook registration and confirmation service",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		apiClient = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if apiClient != nil {
			apiClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&grpcAddr, "server", defaultGRPCAddr(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("ROLLCALL_AUTH_TOKEN"), "bearer token for the HTTP API")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "registrations", Title: "Registrations:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Registrations
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(signCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
