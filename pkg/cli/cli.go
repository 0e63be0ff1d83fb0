package cli

import (
	"context"

	"github.com/AustinJR6/wwjd-memory/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "wwjd-memory",
		Usage: "User memory retrieval and reinforcement engine",
		Commands: []*cli.Command{
			serveCommand(),
			ingestCommand(),
			contextCommand(),
			reinforceCommand(),
			pinCommand(),
			exportCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
