package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codeix/internal/debug"
	"github.com/standardbeagle/codeix/internal/mounttable"
	"github.com/standardbeagle/codeix/internal/query"
	"github.com/standardbeagle/codeix/internal/server"
	"github.com/standardbeagle/codeix/internal/version"
)

const (
	exitFailure     = 1
	exitInvalidArgs = 2
)

func main() {
	debug.Init()
	defer debug.Close()

	rootFlag := &cli.StringFlag{
		Name:    "root",
		Aliases: []string{"r"},
		Usage:   "Workspace root to index (default: CODEIX_ROOT or the current directory)",
	}

	app := &cli.App{
		Name:    "codeix",
		Usage:   "Portable structured code index for AI coding agents",
		Version: version.Version,
		Flags:   []cli.Flag{rootFlag},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "One-shot index build",
				Flags: []cli.Flag{rootFlag},
				Action: func(c *cli.Context) error {
					return runBuild(resolveRoot(c))
				},
			},
			{
				Name:  "serve",
				Usage: "Long-running index server on stdio",
				Flags: []cli.Flag{
					rootFlag,
					&cli.BoolFlag{
						Name:  "no-watch",
						Usage: "Disable the live file watcher",
					},
				},
				Action: func(c *cli.Context) error {
					return runServe(resolveRoot(c), !c.Bool("no-watch"))
				},
			},
		},
		// Bare invocation serves, matching agent launcher expectations.
		Action: func(c *cli.Context) error {
			if c.Args().Present() {
				return cli.Exit(fmt.Sprintf("unknown command %q", c.Args().First()), exitInvalidArgs)
			}
			return runServe(resolveRoot(c), true)
		},
		OnUsageError: func(c *cli.Context, err error, _ bool) error {
			return cli.Exit(err.Error(), exitInvalidArgs)
		},
	}

	if err := app.Run(os.Args); err != nil {
		if _, ok := err.(cli.ExitCoder); !ok {
			err = cli.Exit(err.Error(), exitFailure)
		}
		cli.HandleExitCoder(err)
	}
}

// resolveRoot applies flag > environment > working directory.
func resolveRoot(c *cli.Context) string {
	if root := c.String("root"); root != "" {
		return root
	}
	if root := os.Getenv("CODEIX_ROOT"); root != "" {
		return root
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func runBuild(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	table, err := mounttable.Open(abs, mounttable.Options{Watch: false})
	if err != nil {
		return err
	}

	flushErr := table.FlushAll()
	stats := table.Stats()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	closeErr := table.CloseAll(ctx)

	fmt.Println(summaryLine(stats.Indexed, stats.Skipped, stats.Failed))

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// summaryLine colours the build result unless NO_COLOR is set.
func summaryLine(indexed, skipped, failed int) string {
	line := fmt.Sprintf("indexed %d files, skipped %d, failed %d", indexed, skipped, failed)
	if os.Getenv("NO_COLOR") != "" {
		return line
	}
	if failed > 0 {
		return "\x1b[31m" + line + "\x1b[0m"
	}
	return "\x1b[32m" + line + "\x1b[0m"
}

func runServe(root string, watch bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	table, err := mounttable.Open(abs, mounttable.Options{Watch: watch})
	if err != nil {
		return err
	}

	svc, err := query.New(table)
	if err != nil {
		table.CloseAll(context.Background())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(svc)
	runErr := srv.Run(ctx)

	// Shutdown drains pending events and flushes the dirty sets; past
	// the grace window the sets persist best-effort on next run.
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	closeErr := table.CloseAll(closeCtx)

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return closeErr
}
