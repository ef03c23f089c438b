package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/faceauth"
	"github.com/kozaktomas/face-login/internal/facematch"
	"github.com/kozaktomas/face-login/internal/fingerprint"
	"github.com/kozaktomas/face-login/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Login web server.
The web server serves the capture page and the registration, login and
login history endpoints, plus a websocket for continuous login attempts.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT or 5000)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().Float64("threshold", 0, "Accept threshold (default from ACCEPT_THRESHOLD or 0.55)")
}

// resolveServeFlags applies command line overrides on top of the environment configuration.
func resolveServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if threshold := mustGetFloat64(cmd, "threshold"); threshold > 0 {
		cfg.Matcher.AcceptThreshold = threshold
	}
}

// initSimilarityIndex loads the persisted similarity index, or builds it from the store.
func initSimilarityIndex(ctx context.Context, identities database.IdentityReader, metric facematch.Metric, indexPath string) *facematch.Index {
	index := facematch.NewIndex(metric)

	snapshot, err := identities.LookupAll(ctx)
	if err != nil {
		fmt.Printf("Warning: failed to read identities for the similarity index: %v\n", err)
		return index
	}

	if indexPath != "" {
		fmt.Printf("Loading similarity index from %s...\n", indexPath)
		if err := index.Load(indexPath, snapshot); err != nil {
			if errors.Is(err, facematch.ErrStaleIndex) {
				fmt.Printf("Persisted similarity index is stale, rebuilding\n")
			} else {
				fmt.Printf("Warning: failed to load similarity index: %v\n", err)
			}
		}
	}
	index.Sync(snapshot)
	fmt.Printf("Similarity index ready with %d identities\n", index.Len())
	return index
}

func saveSimilarityIndex(index *facematch.Index, indexPath string) {
	if indexPath == "" {
		return
	}
	if err := index.Save(indexPath); err != nil {
		fmt.Printf("Warning: failed to save similarity index: %v\n", err)
	} else {
		fmt.Println("Similarity index saved to disk")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeFlags(cmd, cfg)

	metric, err := facematch.ParseMetric(cfg.Matcher.Metric)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	fmt.Printf("Using %s storage backend\n", st.backend)

	count, err := st.identities.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting identities: %w", err)
	}
	fmt.Printf("%d identities enrolled\n", count)

	index := initSimilarityIndex(ctx, st.identities, metric, cfg.Matcher.HNSWIndexPath)

	services := web.Services{
		Enroller: faceauth.NewEnroller(st.identities),
		Authenticator: faceauth.NewAuthenticator(st.identities, st.logins,
			faceauth.WithMatcher(facematch.NewMatcher(metric)),
			faceauth.WithThreshold(cfg.Matcher.AcceptThreshold),
		),
		Extractor:  fingerprint.NewFaceClient(cfg.Embedding.URL, cfg.Embedding.MaxSide),
		Identities: st.identities,
		Index:      index,
	}
	server := web.NewServer(cfg, services)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		saveSimilarityIndex(index, cfg.Matcher.HNSWIndexPath)

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Login on http://%s:%d (metric %s, threshold %.2f)\n",
		cfg.Web.Host, cfg.Web.Port, metric, services.Authenticator.Threshold())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
