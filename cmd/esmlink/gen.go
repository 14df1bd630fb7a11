package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/exitcode"
	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/pkg/api"
)

type genFlags struct {
	configFile  string
	envFiles    []string
	format      string
	out         string
	emitMsgpack string
	jobs        int
	pathinfo    bool
	moduleIDs   string
	asciiOnly   bool
	timings     bool
}

func newGenCmd(global *globalFlags) *cobra.Command {
	flags := &genFlags{}

	cmd := &cobra.Command{
		Use:   "gen <snapshot>",
		Short: "Generate the module map for a graph snapshot",
		Long: `Reads a module graph snapshot ("-" for stdin) and writes the runtime
helpers followed by one factory function per included module.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(cmd, global, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.configFile, "config", config.FileName, "settings file, ignored when the default one is missing")
	cmd.Flags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "files with ESMLINK_* variables to load")
	cmd.Flags().StringVar(&flags.format, "format", "", "snapshot format (toml|msgpack), defaults to the file extension")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "output file (defaults to stdout)")
	cmd.Flags().StringVar(&flags.emitMsgpack, "emit-msgpack", "", "also write the decoded snapshot as MessagePack to this file")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 0, "modules generated in parallel (0 means one per CPU)")
	cmd.Flags().BoolVar(&flags.pathinfo, "pathinfo", false, "annotate generated statements with comments")
	cmd.Flags().StringVar(&flags.moduleIDs, "module-ids", "named", "how modules are referenced (named|numeric)")
	cmd.Flags().BoolVar(&flags.asciiOnly, "ascii-only", false, "escape non-ASCII characters in module ids")
	cmd.Flags().BoolVar(&flags.timings, "timings", false, "print how long each phase took")
	return cmd
}

// Settings are applied in order: defaults, the settings file, the
// environment, then command line flags
func loadOptions(cmd *cobra.Command, global *globalFlags, flags *genFlags) (config.Options, error) {
	options := config.DefaultOptions()

	if cmd.Flags().Changed("config") {
		if err := config.LoadFile(flags.configFile, &options); err != nil {
			return options, err
		}
	} else if _, err := config.LoadFileIfExists(flags.configFile, &options); err != nil {
		return options, err
	}

	if err := config.LoadEnv(&options, flags.envFiles...); err != nil {
		return options, err
	}

	if global.logLevel != "" {
		level, ok := logger.ParseLogLevel(global.logLevel)
		if !ok {
			return options, exitcode.Set(fmt.Errorf("invalid --log-level %q", global.logLevel), exitcode.Usage)
		}
		options.LogLevel = level
	}
	if cmd.Flags().Changed("color") {
		stderrColor, ok := logger.ParseStderrColor(global.color)
		if !ok {
			return options, exitcode.Set(fmt.Errorf("invalid --color %q", global.color), exitcode.Usage)
		}
		options.Color = stderrColor
	}
	if global.errorLimit >= 0 {
		options.ErrorLimit = global.errorLimit
	}

	if cmd.Flags().Changed("jobs") {
		if flags.jobs < 0 {
			return options, exitcode.Set(fmt.Errorf("invalid --jobs %d", flags.jobs), exitcode.Usage)
		}
		options.Jobs = flags.jobs
	}
	if cmd.Flags().Changed("pathinfo") {
		options.Pathinfo = flags.pathinfo
	}
	if cmd.Flags().Changed("module-ids") {
		ids, ok := config.ParseModuleIDs(flags.moduleIDs)
		if !ok {
			return options, exitcode.Set(fmt.Errorf("invalid --module-ids %q", flags.moduleIDs), exitcode.Usage)
		}
		options.ModuleIDs = ids
	}
	if cmd.Flags().Changed("ascii-only") {
		options.ASCIIOnly = flags.asciiOnly
	}
	if cmd.Flags().Changed("timings") {
		options.Timings = flags.timings
	}
	return options, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func runGen(cmd *cobra.Command, global *globalFlags, flags *genFlags, path string) error {
	options, err := loadOptions(cmd, global, flags)
	if err != nil {
		return err
	}
	format, err := formatFlagOrPath(flags.format, "--format", path)
	if err != nil {
		return err
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	if flags.emitMsgpack != "" {
		if err := writeMsgpack(data, format, flags.emitMsgpack); err != nil {
			return err
		}
	}

	result := api.GenerateContext(cmd.Context(), data, apiOptions(&options, format))
	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			if msg.Internal {
				return exitcode.Set(errReported, exitcode.Internal)
			}
		}
		return errReported
	}

	if flags.out == "" {
		if _, err := io.WriteString(cmd.OutOrStdout(), result.Bundle); err != nil {
			return err
		}
	} else if err := os.WriteFile(flags.out, []byte(result.Bundle), 0o644); err != nil {
		return err
	}

	if options.LogLevel <= logger.LevelInfo {
		printSummary(cmd.ErrOrStderr(), options.Color, result)
	}
	return nil
}

func writeMsgpack(data []byte, format graph.Format, path string) error {
	snapshot, err := graph.DecodeSnapshot(data, format)
	if err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	encoded, err := snapshot.EncodeMsgpack()
	if err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0o644)
}

func apiOptions(options *config.Options, format graph.Format) api.GenerateOptions {
	result := api.GenerateOptions{
		ErrorLimit: options.ErrorLimit,
		Jobs:       options.Jobs,
		Pathinfo:   options.Pathinfo,
		ASCIIOnly:  options.ASCIIOnly,
		Timings:    options.Timings,
	}
	if options.ErrorLimit == 0 {
		result.ErrorLimit = -1
	}

	switch options.Color {
	case logger.ColorNever:
		result.Color = api.ColorNever
	case logger.ColorAlways:
		result.Color = api.ColorAlways
	default:
		result.Color = api.ColorIfTerminal
	}

	switch options.LogLevel {
	case logger.LevelDebug:
		result.LogLevel = api.LogLevelDebug
	case logger.LevelWarning:
		result.LogLevel = api.LogLevelWarning
	case logger.LevelError:
		result.LogLevel = api.LogLevelError
	case logger.LevelSilent:
		result.LogLevel = api.LogLevelSilent
	default:
		result.LogLevel = api.LogLevelInfo
	}

	if options.ModuleIDs == config.ModuleIDsNumeric {
		result.ModuleIDs = api.ModuleIDsNumeric
	}
	if format == graph.FormatMsgpack {
		result.Format = api.SnapshotMsgpack
	}
	return result
}

func printSummary(w io.Writer, stderrColor logger.StderrColor, result api.GenerateResult) {
	switch stderrColor {
	case logger.ColorNever:
		color.NoColor = true
	case logger.ColorAlways:
		color.NoColor = false
	}

	async := 0
	for _, module := range result.Modules {
		if module.Async {
			async++
		}
	}

	green := color.New(color.FgGreen, color.Bold)
	dim := color.New(color.Faint)
	green.Fprintf(w, "Generated %d %s", len(result.Modules), plural("module", len(result.Modules)))
	if async > 0 {
		dim.Fprintf(w, " (%d async)", async)
	}
	fmt.Fprintf(w, " using %d runtime %s\n", len(result.RuntimeRequirements), plural("helper", len(result.RuntimeRequirements)))
}

func plural(noun string, count int) string {
	if count == 1 {
		return noun
	}
	return noun + "s"
}
