package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phi.ai/agent-console/internal/app"
	"phi.ai/agent-console/internal/config"
	"phi.ai/agent-console/internal/logging"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

type rootOptions struct {
	userID  string
	seed    float64
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "phi",
		Short:         "Talk to the Phi prediction agent from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.userID, "user", "u", "", "user id (defaults to DEFAULT_USER_ID)")
	root.PersistentFlags().Float64Var(&opts.seed, "seed", -1, "pin the prediction seed for every turn")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newChatCommand(opts),
		newPersonaCommand(opts),
		newPredictionsCommand(opts),
		newVerifyCommand(),
		newHealthCommand(),
	)
	return root
}

// setup loads configuration and wires the components. Logs go to stderr
// and are quiet unless --verbose.
func setup(ctx context.Context, opts *rootOptions) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	level := "WARN"
	if opts != nil && opts.verbose {
		level = "DEBUG"
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, err
	}
	if opts != nil && opts.userID != "" {
		cfg.DefaultUserID = opts.userID
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup failed", zap.Error(err))
		return nil, err
	}
	return a, nil
}

func (o *rootOptions) pinnedSeed() *float64 {
	if o.seed < 0 {
		return nil
	}
	seed := o.seed
	return &seed
}
