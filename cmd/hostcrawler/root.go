package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Exit statuses.
const (
	exitOK        = 0
	exitFatal     = 1
	exitNoRecords = 2
)

// errNoRecords marks a run that completed without producing any record.
var errNoRecords = errors.New("run produced no records")

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "hostcrawler",
		Short: "Collects host and licence details from rental listings.",
		Long: `hostcrawler opens each search results page listed in the targets file,
collects the listing links it shows, visits every listing in parallel browser
sessions and writes the host and licence details it finds to a CSV table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.AddCommand(newCrawlCmd(&cfgFile))
	return cmd
}

// Execute runs the CLI and maps the outcome to an exit status.
func Execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errNoRecords):
		fmt.Fprintln(stderr, err)
		return exitNoRecords
	default:
		fmt.Fprintf(stderr, "hostcrawler: %v\n", err)
		return exitFatal
	}
}
