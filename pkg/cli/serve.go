package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/cache"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/cli/config"
	httpctrl "github.com/0xhatsume/tg-agentic-rag-dash/pkg/controller/http"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/usecase"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var apiToken string
	var repoCfg config.Repository
	var llmCfg config.LLM
	var runtimeCfg config.Runtime
	var characterCfg config.Character

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("TGRAG_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "api-token",
			Usage:       "Bearer token required on the message API (empty disables auth)",
			Sources:     cli.EnvVars("TGRAG_API_TOKEN"),
			Destination: &apiToken,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, runtimeCfg.Flags()...)
	flags = append(flags, characterCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the HTTP message API",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			character, err := characterCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load character")
			}

			repo, err := repoCfg.Configure(ctx, runtimeCfg.Dimension())
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			llmClient, err := llmCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize LLM client")
			}

			cacheManager, err := cache.New(character.ID, repo.Cache(), cache.WithTTL(runtimeCfg.CacheTTL()))
			if err != nil {
				return goerr.Wrap(err, "failed to initialize cache")
			}

			rt, err := usecase.New(repo, llmClient, character, runtimeCfg.Dimension(),
				usecase.WithBreaker(runtimeCfg.Breaker()),
				usecase.WithCache(cacheManager),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize runtime")
			}
			defer rt.Close()

			var httpOpts []httpctrl.Options
			if apiToken != "" {
				httpOpts = append(httpOpts, httpctrl.WithAuthToken(apiToken))
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(rt, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server",
					"addr", addr,
					"character", character.Name,
					"auth", apiToken != "",
				)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
