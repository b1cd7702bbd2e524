package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/cache"
	"github.com/splitlab/splitlab/internal/experiments"
	"github.com/splitlab/splitlab/internal/server"
	"github.com/splitlab/splitlab/internal/store"
	"github.com/splitlab/splitlab/internal/suggest"
)

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	var (
		port     int
		token    string
		cacheTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the splitlab HTTP server",
		Long: `Start the HTTP server exposing the experiment API.

Endpoints:
  GET  /health                     health check (public)
  POST /b                          impression/conversion beacon (public, CORS)
  *    /api/tests[...]             test CRUD and results (token required)
  POST /api/suggestions            AI variant suggestions (token required)

The API token is printed on startup unless provided via --token or
SPLITLAB_API_TOKEN.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				logger, err := newLogger()
				if err != nil {
					return fmt.Errorf("failed to build logger: %w", err)
				}
				defer logger.Sync()

				svc := experiments.NewService(s, cache.NewTTL(cacheTTL), logger)
				suggester := suggest.NewGenerator(
					os.Getenv("OPENAI_API_KEY"),
					os.Getenv("OPENAI_MODEL"),
					suggest.DefaultTimeout,
					logger,
				)

				srv := server.New(svc, suggester, s, port, token, logger)

				fmt.Printf("splitlab running on http://localhost:%d\n", port)
				fmt.Printf("API token: %s\n", srv.Token())
				fmt.Println("\nPress Ctrl+C to stop")

				return srv.Start()
			})
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", envInt("SPLITLAB_PORT", 8080), "port to listen on")
	cmd.Flags().StringVar(&token, "token", os.Getenv("SPLITLAB_API_TOKEN"), "API token (random if empty)")
	cmd.Flags().DurationVar(&cacheTTL, "cache-ttl", cache.DefaultTTL, "read cache entry lifetime (0 uses the default)")

	return cmd
}

func envInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}
