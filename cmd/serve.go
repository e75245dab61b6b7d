package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mkurti/postchat/internal"
	"github.com/mkurti/postchat/internal/proxy"
	"github.com/spf13/cobra"
)

var (
	serveListen   string
	serveUpstream string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the edge proxy",
	Long: `Run a small edge proxy in front of the analytics service. Requests to
/api/* are forwarded upstream with the configured bearer token attached,
so downstream callers never handle the credential themselves.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		upstream := serveUpstream
		if upstream == "" {
			upstream = cfg.APIBaseURL
		}

		handler, err := proxy.NewHandler(proxy.Options{
			Upstream: upstream,
			Tokens:   cfg.TokenSource(),
			Timeout:  cfg.Timeout(),
		})
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              serveListen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			internal.LogInfo("Edge proxy listening on %s, forwarding to %s", serveListen, upstream)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("proxy server failed: %w", err)
			}
			return nil
		case <-cmd.Context().Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("proxy shutdown failed: %w", err)
			}
			internal.LogInfo("Edge proxy stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8787", "Listen address")
	serveCmd.Flags().StringVar(&serveUpstream, "upstream", "", "Upstream service URL (defaults to configured api_url)")
}
