// Package commander is the potability command line: it loads configuration,
// runs the pipeline and prints the results.
package commander

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"potability/internal/config"
)

// Version is set at build time with -ldflags "-X potability/internal/commander.Version=...".
var Version = "dev"

type rootOptions struct {
	cfgFile string
	debug   bool
	out     io.Writer
}

// NewRootCommand builds the command tree writing console output to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}

	root := &cobra.Command{
		Use:   "potability",
		Short: "Water potability analysis and model comparison",
		Long: `potability loads the water potability dataset, describes and cleans it,
then trains and compares decision tree, logistic regression, k-nearest
neighbours, support vector and random forest classifiers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./potability.yaml when present)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newRunCommand(opts),
		newDescribeCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

// Execute is the entry point called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		stop()
		os.Exit(1)
	}
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.cfgFile)
}

// logger writes to stderr so stdout carries only the report.
func (o *rootOptions) logger() (*zap.SugaredLogger, error) {
	var zc zap.Config
	if o.debug {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.DisableStacktrace = true
	}
	zc.OutputPaths = []string{"stderr"}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.Sugar(), nil
}
