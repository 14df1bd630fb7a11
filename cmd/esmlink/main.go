package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"runtime/trace"

	"github.com/spf13/cobra"

	"github.com/esmlink/esmlink/internal/exitcode"
	"github.com/esmlink/esmlink/internal/logger"
)

// Returned by commands whose problems were already printed by the log
var errReported = errors.New("errors were reported")

type globalFlags struct {
	logLevel   string
	color      string
	errorLimit int
	traceFile  string
	cpuprofile string

	stopProfiling []func()
}

func newRootCmd() (*cobra.Command, *globalFlags) {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "esmlink",
		Short:         "Generate import code for ES module graphs",
		Long:          "esmlink turns a linked module graph snapshot into the runtime code for its ES module imports",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return flags.startProfiling()
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log verbosity (debug|info|warning|error|silent)")
	rootCmd.PersistentFlags().StringVar(&flags.color, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().IntVar(&flags.errorLimit, "error-limit", -1, "maximum number of errors to show (0 means no limit)")
	rootCmd.PersistentFlags().StringVar(&flags.traceFile, "trace", "", "write a runtime trace to this file")
	rootCmd.PersistentFlags().StringVar(&flags.cpuprofile, "cpuprofile", "", "write a CPU profile to this file")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return exitcode.Set(err, exitcode.Usage)
	})

	rootCmd.AddCommand(newGenCmd(flags))
	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd, flags
}

func (flags *globalFlags) startProfiling() error {
	// To view a trace, use "go tool trace [file]"
	if flags.traceFile != "" {
		f, err := os.Create(flags.traceFile)
		if err != nil {
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to start trace: %w", err)
		}
		flags.stopProfiling = append(flags.stopProfiling, func() {
			trace.Stop()
			f.Close()
		})
	}

	// To view a CPU profile, use "go tool pprof [file]" or drop the file into
	// https://speedscope.app
	if flags.cpuprofile != "" {
		f, err := os.Create(flags.cpuprofile)
		if err != nil {
			flags.stop()
			return fmt.Errorf("failed to create cpuprofile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			flags.stop()
			return fmt.Errorf("failed to start cpuprofile: %w", err)
		}
		flags.stopProfiling = append(flags.stopProfiling, func() {
			pprof.StopCPUProfile()
			f.Close()
		})
	}
	return nil
}

func (flags *globalFlags) stop() {
	for i := len(flags.stopProfiling) - 1; i >= 0; i-- {
		flags.stopProfiling[i]()
	}
	flags.stopProfiling = nil
}

func run(ctx context.Context, osArgs []string) error {
	rootCmd, flags := newRootCmd()
	rootCmd.SetArgs(osArgs)

	// Profiles must also be flushed when the command fails
	err := rootCmd.ExecuteContext(ctx)
	flags.stop()
	if err != nil && !errors.Is(err, errReported) {
		logger.PrintErrorToStderr(osArgs, err.Error())
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:])
	stop()
	exitcode.Exit(err)
}
