package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/asgdb/internal/client"
	"github.com/alfredjeanlab/asgdb/internal/config"
	"github.com/alfredjeanlab/asgdb/internal/engine"
	"github.com/alfredjeanlab/asgdb/internal/ui"
)

var (
	configPath string
	transport  string
	httpURL    string
	serverAddr string
	authToken  string
	jsonOutput bool

	cfg      *config.Config
	logger   *slog.Logger
	dbClient client.Client
)

func envOr(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// setupLogger installs a text logger on stderr; debug mode lowers the level.
func setupLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(l)
	return l
}

// loadConfig reads the config file and sets up logging. It runs for every
// command, including serve.
func loadConfig() error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = c
	logger = setupLogger(cfg.Debug.Enabled)
	if jsonOutput || !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	if authToken == "" {
		authToken = cfg.API.AuthToken
	}
	return nil
}

func openClient(ctx context.Context) (client.Client, error) {
	switch transport {
	case "local":
		e, err := engine.Open(ctx, cfg, engine.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if res := e.Setup(ctx); !res.OK {
			e.Shutdown(ctx)
			return nil, res.Err
		}
		return client.NewLocalClient(e), nil
	case "http":
		return client.NewHTTPClient(httpURL, authToken), nil
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr, authToken)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown transport %q (must be local, http or grpc)", transport)
}

// localEngine returns the engine behind a local transport. Commands that
// work on the database file itself need one.
func localEngine() (*engine.Engine, error) {
	lc, ok := dbClient.(*client.LocalClient)
	if !ok {
		return nil, fmt.Errorf("this command needs --transport local")
	}
	return lc.Engine(), nil
}

var rootCmd = &cobra.Command{
	Use:           "asgdb <command>",
	Short:         "Typed key/value and object storage for plugin data",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		c, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		dbClient = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(); err != nil {
				logger.Error("closing client", "err", err)
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("ASGDB_CONFIG"), "path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", envOr("ASGDB_TRANSPORT", "local"), "transport (local, http or grpc)")
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", envOr("ASGDB_HTTP_URL", "http://localhost:8080"), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", envOr("ASGDB_SERVER", "localhost:9090"), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer token (defaults to api.auth_token)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Values:"},
		&cobra.Group{ID: "objects", Title: "Objects and tags:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Values
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(playerCmd)

	// Objects and tags
	rootCmd.AddCommand(objectCmd)
	rootCmd.AddCommand(tagCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(backupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError("Error: "+err.Error()))
		os.Exit(1)
	}
}
