package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshdurbin/linkregistry/internal/transport/client"
)

const clientTimeout = 10 * time.Second

// withCommands runs fn against a client for the --server-url flag
func withCommands(cmd *cobra.Command, fn func(ctx context.Context, commands *client.Commands) error) error {
	serverURL, _ := cmd.Flags().GetString("server-url")
	commands := client.NewCommandsWithOutput(client.NewClient(serverURL), cmd.OutOrStdout())

	ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
	defer cancel()

	return fn(ctx, commands)
}

func runCreate(cmd *cobra.Command, args []string) error {
	var validity *int
	if cmd.Flags().Changed("validity") {
		v, _ := cmd.Flags().GetInt("validity")
		validity = &v
	}
	code, _ := cmd.Flags().GetString("code")

	return withCommands(cmd, func(ctx context.Context, c *client.Commands) error {
		return c.Create(ctx, args[0], validity, code)
	})
}

func runGet(cmd *cobra.Command, args []string) error {
	return withCommands(cmd, func(ctx context.Context, c *client.Commands) error {
		return c.Get(ctx, args[0])
	})
}

func runVisit(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	return withCommands(cmd, func(ctx context.Context, c *client.Commands) error {
		return c.Visit(ctx, args[0], source)
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withCommands(cmd, func(ctx context.Context, c *client.Commands) error {
		return c.Delete(ctx, args[0])
	})
}

func runList(cmd *cobra.Command, args []string) error {
	return withCommands(cmd, func(ctx context.Context, c *client.Commands) error {
		return c.List(ctx)
	})
}

func runClear(cmd *cobra.Command, args []string) error {
	return withCommands(cmd, func(ctx context.Context, c *client.Commands) error {
		return c.Clear(ctx)
	})
}

func runPurge(cmd *cobra.Command, args []string) error {
	return withCommands(cmd, func(ctx context.Context, c *client.Commands) error {
		return c.Purge(ctx)
	})
}

func runRefresh(cmd *cobra.Command, args []string) error {
	return withCommands(cmd, func(ctx context.Context, c *client.Commands) error {
		return c.Refresh(ctx)
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	return withCommands(cmd, func(ctx context.Context, c *client.Commands) error {
		return c.Stats(ctx)
	})
}

func runLogs(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("level")
	limit, _ := cmd.Flags().GetInt("limit")
	clearBuffer, _ := cmd.Flags().GetBool("clear")

	return withCommands(cmd, func(ctx context.Context, c *client.Commands) error {
		return c.Logs(ctx, level, limit, clearBuffer)
	})
}
