package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/AustinJR6/wwjd-memory/pkg/adapter"
	"github.com/AustinJR6/wwjd-memory/pkg/server"
	"github.com/AustinJR6/wwjd-memory/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg             config
		addr            string
		firebaseProject string
		jwksURL         string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Usage:       "Listen address of the HTTP server",
			Value:       ":8080",
			Sources:     cli.EnvVars("WWJD_MEMORY_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "firebase-project",
			Usage:       "Firebase project ID that issues ID tokens. Defaults to --project",
			Sources:     cli.EnvVars("FIREBASE_PROJECT_ID"),
			Destination: &firebaseProject,
		},
		&cli.StringFlag{
			Name:        "firebase-jwks-url",
			Usage:       "JWKS endpoint of the token issuer. Defaults to Google's secure token keys",
			Sources:     cli.EnvVars("FIREBASE_JWKS_URL"),
			Destination: &jwksURL,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the memory endpoints over HTTP",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if firebaseProject == "" {
				firebaseProject = cfg.project
			}
			var authOpts []adapter.FirebaseAuthOption
			if jwksURL != "" {
				authOpts = append(authOpts, adapter.WithJWKSURL(jwksURL))
			}
			verifier, err := adapter.NewFirebaseAuth(ctx, firebaseProject, authOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create token verifier")
			}

			uc, closer, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closer()

			logging.From(ctx).Info("starting memory server",
				"addr", addr,
				"firebase_project", firebaseProject,
				"in_memory", cfg.inMemory,
			)
			return server.New(uc, verifier).ListenAndServe(ctx, addr)
		},
	}
}
