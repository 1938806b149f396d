package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/focusgroup/focusbot/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveDigest, "digest", false, "Post the daily digest from this process (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost   string
	servePort   int
	serveDigest bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook and admin API server",
	Long: `Start the HTTP server that receives Telegram updates on
/webhook/telegram and serves the admin API under /api.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		d.Config.API.Host = serveHost
	}
	if servePort > 0 {
		d.Config.API.Port = servePort
	}
	if serveDigest {
		d.Config.Digest.Enabled = true
	}

	return d.Serve(context.Background())
}
