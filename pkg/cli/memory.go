package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func uidFlag(uid *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "uid",
		Aliases:     []string{"u"},
		Usage:       "User ID to act for",
		Sources:     cli.EnvVars("WWJD_MEMORY_UID"),
		Destination: uid,
		Required:    true,
	}
}

// readText returns the positional arguments joined, or stdin when none are given
func readText(c *cli.Command) (string, error) {
	if c.Args().Len() > 0 {
		return strings.Join(c.Args().Slice(), " "), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read stdin")
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}

func ingestCommand() *cli.Command {
	var (
		cfg    config
		uid    string
		source string
	)

	flags := []cli.Flag{
		uidFlag(&uid),
		&cli.StringFlag{
			Name:        "source",
			Aliases:     []string{"s"},
			Usage:       "Origin label stored with each memory",
			Sources:     cli.EnvVars("WWJD_MEMORY_SOURCE"),
			Destination: &source,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "ingest",
		Usage:     "Extract and store memories from text",
		ArgsUsage: "[text]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			text, err := readText(c)
			if err != nil {
				return err
			}

			uc, closer, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closer()

			result, err := uc.ExtractMemoriesFromText(ctx, uid, text, source)
			if err != nil {
				return goerr.Wrap(err, "failed to ingest text")
			}

			fmt.Fprintf(c.Root().Writer, "Extracted %d candidates, wrote %d memories\n", result.Candidates, result.Written)
			for _, id := range result.IDs {
				fmt.Fprintf(c.Root().Writer, "  %s\n", id)
			}
			return nil
		},
	}
}

func contextCommand() *cli.Command {
	var (
		cfg config
		uid string
	)

	flags := []cli.Flag{uidFlag(&uid)}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "context",
		Usage:     "Print the prompt context bundle for a message",
		ArgsUsage: "[message]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			message, err := readText(c)
			if err != nil {
				return err
			}

			uc, closer, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closer()

			userContext, err := uc.PrepareUserContext(ctx, uid, message)
			if err != nil {
				return goerr.Wrap(err, "failed to prepare user context")
			}
			return printJSON(c.Root().Writer, userContext)
		},
	}
}

func reinforceCommand() *cli.Command {
	var (
		cfg config
		uid string
	)

	flags := []cli.Flag{uidFlag(&uid)}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "reinforce",
		Usage:     "Raise the decay score of memories",
		ArgsUsage: "<memory-id>...",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			if c.Args().Len() == 0 {
				return goerr.New("at least one memory ID is required")
			}

			uc, closer, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closer()

			n, err := uc.ReinforceMemories(ctx, uid, c.Args().Slice())
			if err != nil {
				return goerr.Wrap(err, "failed to reinforce memories")
			}

			fmt.Fprintf(c.Root().Writer, "Reinforced %d of %d memories\n", n, c.Args().Len())
			return nil
		},
	}
}

func pinCommand() *cli.Command {
	var (
		cfg   config
		uid   string
		unpin bool
	)

	flags := []cli.Flag{
		uidFlag(&uid),
		&cli.BoolFlag{
			Name:        "unpin",
			Usage:       "Clear the pinned flag instead of setting it",
			Destination: &unpin,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "pin",
		Usage:     "Pin or unpin a memory",
		ArgsUsage: "<memory-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			id := c.Args().First()
			if id == "" {
				return goerr.New("memory ID is required")
			}

			uc, closer, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closer()

			if err := uc.SetPinned(ctx, uid, id, !unpin); err != nil {
				return goerr.Wrap(err, "failed to update pinned flag", goerr.V("memory_id", id))
			}

			fmt.Fprintf(c.Root().Writer, "Memory %s pinned=%t\n", id, !unpin)
			return nil
		},
	}
}
