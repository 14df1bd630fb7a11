package api

import (
	"context"
	"fmt"

	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/linker"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/runtime"
)

func validateColor(value StderrColor) logger.StderrColor {
	switch value {
	case ColorIfTerminal:
		return logger.ColorIfTerminal
	case ColorNever:
		return logger.ColorNever
	case ColorAlways:
		return logger.ColorAlways
	default:
		panic("Invalid color")
	}
}

func validateLogLevel(value LogLevel) logger.LogLevel {
	switch value {
	case LogLevelDebug:
		return logger.LevelDebug
	case LogLevelInfo:
		return logger.LevelInfo
	case LogLevelWarning:
		return logger.LevelWarning
	case LogLevelError:
		return logger.LevelError
	case LogLevelSilent:
		return logger.LevelSilent
	default:
		panic("Invalid log level")
	}
}

func validateFormat(value SnapshotFormat) graph.Format {
	switch value {
	case SnapshotTOML:
		return graph.FormatTOML
	case SnapshotMsgpack:
		return graph.FormatMsgpack
	default:
		panic("Invalid snapshot format")
	}
}

func validateModuleIDs(value ModuleIDs) config.ModuleIDs {
	switch value {
	case ModuleIDsNamed:
		return config.ModuleIDsNamed
	case ModuleIDsNumeric:
		return config.ModuleIDsNumeric
	default:
		panic("Invalid module ids")
	}
}

func validateOptions(options GenerateOptions) config.Options {
	result := config.DefaultOptions()
	result.Color = validateColor(options.Color)
	result.LogLevel = validateLogLevel(options.LogLevel)
	result.ModuleIDs = validateModuleIDs(options.ModuleIDs)
	result.Jobs = options.Jobs
	result.Pathinfo = options.Pathinfo
	result.ASCIIOnly = options.ASCIIOnly
	result.Timings = options.Timings
	if options.ErrorLimit > 0 {
		result.ErrorLimit = options.ErrorLimit
	} else if options.ErrorLimit < 0 {
		result.ErrorLimit = 0
	}
	return result
}

func convertLocationToPublic(loc *logger.MsgLocation) *Location {
	if loc == nil {
		return nil
	}
	return &Location{
		File:     loc.File,
		Line:     loc.Line,
		Column:   loc.Column,
		Length:   loc.Length,
		LineText: loc.LineText,
	}
}

func convertMessagesToPublic(kind logger.MsgKind, msgs []logger.Msg) []Message {
	var filtered []Message
	for _, msg := range msgs {
		isError := msg.Kind.IsError()
		if isError != kind.IsError() || (!isError && msg.Kind != kind) {
			continue
		}
		var notes []Note
		for _, note := range msg.Notes {
			notes = append(notes, Note{
				Text:     note.Text,
				Location: convertLocationToPublic(note.Location),
			})
		}
		filtered = append(filtered, Message{
			Text:     msg.Text,
			Location: convertLocationToPublic(msg.Location),
			Notes:    notes,
			Internal: msg.Kind == logger.InternalError,
		})
	}
	return filtered
}

func globalNames(globals runtime.Globals) []string {
	return globals.Names()
}

func generateImpl(ctx context.Context, snapshotData []byte, options GenerateOptions) GenerateResult {
	realOptions := validateOptions(options)
	var log logger.Log
	if options.LogLevel == LogLevelSilent {
		log = logger.NewDeferLog()
	} else {
		log = logger.NewStderrLog(realOptions.OutputOptions())
	}

	var timer *helpers.Timer
	if realOptions.Timings {
		timer = &helpers.Timer{}
	}

	result := GenerateResult{}
	timer.Begin("Load snapshot")
	snapshot, err := graph.DecodeSnapshot(snapshotData, validateFormat(options.Format))
	var g *graph.Graph
	var compilation *graph.Compilation
	if err == nil {
		g, compilation, err = snapshot.Build()
	}
	timer.End("Load snapshot")
	if err != nil {
		log.AddError(nil, logger.Range{}, fmt.Sprintf("Invalid snapshot: %s", err.Error()))
	} else {
		outputs, err := linker.Link(ctx, &realOptions, timer, log, g, compilation)
		if err != nil {
			log.AddError(nil, logger.Range{}, fmt.Sprintf("Code generation was interrupted: %s", err.Error()))
		} else {
			requirements := linker.RuntimeRequirements(outputs)
			result.RuntimeRequirements = globalNames(requirements)
			result.Runtime = runtime.Code(requirements)
			result.Bundle = linker.Bundle(&realOptions, outputs)
			for _, output := range outputs {
				result.Modules = append(result.Modules, Module{
					Name:                output.Name,
					Code:                output.Code,
					RuntimeRequirements: globalNames(output.RuntimeRequirements),
					Async:               output.IsAsync,
				})
			}
		}
	}

	timer.Log(log)
	msgs := log.Done()
	result.Errors = convertMessagesToPublic(logger.Error, msgs)
	result.Warnings = convertMessagesToPublic(logger.Warning, msgs)
	return result
}
