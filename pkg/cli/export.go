package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/AustinJR6/wwjd-memory/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func exportCommand() *cli.Command {
	var (
		cfg    config
		uid    string
		bucket string
		key    string
	)

	flags := []cli.Flag{
		uidFlag(&uid),
		&cli.StringFlag{
			Name:        "bucket",
			Aliases:     []string{"b"},
			Usage:       "Cloud Storage bucket to write the export to. Writes to stdout when empty",
			Sources:     cli.EnvVars("WWJD_MEMORY_EXPORT_BUCKET"),
			Destination: &bucket,
		},
		&cli.StringFlag{
			Name:        "key",
			Aliases:     []string{"k"},
			Usage:       "Object key in the bucket. Defaults to exports/<uid>/<timestamp>.jsonl",
			Destination: &key,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "export",
		Usage: "Export memories of a user as JSON lines",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			uc, closer, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closer()

			if bucket == "" {
				_, err := uc.ExportMemories(ctx, uid, c.Root().Writer)
				return err
			}

			if key == "" {
				key = fmt.Sprintf("exports/%s/%s.jsonl", uid, time.Now().UTC().Format("20060102T150405Z"))
			}

			storage, err := adapter.NewStorage(ctx, bucket)
			if err != nil {
				return goerr.Wrap(err, "failed to create storage")
			}

			// Canceling the writer context aborts the upload instead of committing a partial object
			wctx, cancel := context.WithCancel(ctx)
			defer cancel()

			w, err := storage.Put(wctx, key)
			if err != nil {
				return goerr.Wrap(err, "failed to open export object", goerr.V("key", key))
			}

			n, err := writeExport(w, cancel, func(w io.Writer) (int, error) {
				return uc.ExportMemories(ctx, uid, w)
			})
			if err != nil {
				return goerr.Wrap(err, "failed to export memories", goerr.V("bucket", bucket), goerr.V("key", key))
			}

			fmt.Fprintf(c.Root().Writer, "Exported %d memories to gs://%s/%s\n", n, bucket, key)
			return nil
		},
	}
}

// writeExport runs export against w and commits w only when export succeeds
func writeExport(w io.WriteCloser, abort func(), export func(io.Writer) (int, error)) (int, error) {
	n, err := export(w)
	if err != nil {
		abort()
		_ = w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, goerr.Wrap(err, "failed to commit export")
	}
	return n, nil
}
