package main

import (
	"context"
	"os/signal"
	"syscall"

	"crowdwatch/internal/app"
	"crowdwatch/internal/config"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard web server",
	Long: `Run the dashboard web server together with the live camera loop.

The server stops gracefully on SIGINT or SIGTERM.

Example:
  crowdwatch serve
  crowdwatch serve --port 8080 --no-camera`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if noCamera, _ := cmd.Flags().GetBool("no-camera"); noCamera {
			cfg.CameraEnabled = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		application, err := app.NewApp(cfg)
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return application.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 5000, "Port to listen on (overrides PORT)")
	serveCmd.Flags().Bool("no-camera", false, "Do not open the live camera")
}
