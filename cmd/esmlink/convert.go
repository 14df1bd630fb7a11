package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/esmlink/esmlink/internal/exitcode"
	"github.com/esmlink/esmlink/internal/graph"
)

func newConvertCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a graph snapshot between TOML and MessagePack",
		Long: `Formats are taken from the file extensions unless --from or --to is
given. The snapshot is validated by building its graph before it is written.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputFormat, err := formatFlagOrPath(from, "--from", args[0])
			if err != nil {
				return err
			}
			outputFormat, err := formatFlagOrPath(to, "--to", args[1])
			if err != nil {
				return err
			}

			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			snapshot, err := graph.DecodeSnapshot(data, inputFormat)
			if err == nil {
				_, _, err = snapshot.Build()
			}
			if err != nil {
				return fmt.Errorf("invalid snapshot: %w", err)
			}

			encoded, err := snapshot.Encode(outputFormat)
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], encoded, 0o644)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "input format (toml|msgpack)")
	cmd.Flags().StringVar(&to, "to", "", "output format (toml|msgpack)")
	return cmd
}

func formatFlagOrPath(text string, flag string, path string) (graph.Format, error) {
	if text == "" {
		return graph.FormatFromPath(path), nil
	}
	format, ok := graph.ParseFormat(text)
	if !ok {
		return format, exitcode.Set(fmt.Errorf("invalid %s %q", flag, text), exitcode.Usage)
	}
	return format, nil
}
