package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/esmlink/esmlink/internal/logger"
)

const FileName = "esmlink.toml"

type ModuleIDs uint8

const (
	// Modules are referenced by their readable name, e.g. "./src/a.js"
	ModuleIDsNamed ModuleIDs = iota

	// Modules are referenced by their numeric module id
	ModuleIDsNumeric
)

func (ids ModuleIDs) String() string {
	if ids == ModuleIDsNumeric {
		return "numeric"
	}
	return "named"
}

type Options struct {
	// The maximum number of modules generated in parallel. Zero means one per
	// available CPU.
	Jobs int

	ErrorLimit int
	LogLevel   logger.LogLevel
	Color      logger.StderrColor
	ModuleIDs  ModuleIDs

	// If true, generated statements are annotated with comments such as
	// "/* harmony import */" to make the output easier to follow
	Pathinfo bool

	// If true, non-ASCII characters in module ids are escaped
	ASCIIOnly bool

	Timings bool
}

func DefaultOptions() Options {
	return Options{
		ErrorLimit: 10,
		LogLevel:   logger.LevelInfo,
	}
}

func (options *Options) EffectiveJobs() int {
	if options.Jobs > 0 {
		return options.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

func (options *Options) OutputOptions() logger.OutputOptions {
	return logger.OutputOptions{
		IncludeSource: true,
		ErrorLimit:    options.ErrorLimit,
		Color:         options.Color,
		LogLevel:      options.LogLevel,
	}
}

// This is the on-disk form of "Options". Everything is optional so that a
// file only needs to mention the settings it changes.
type fileOptions struct {
	Jobs       *int    `toml:"jobs"`
	ErrorLimit *int    `toml:"error-limit"`
	LogLevel   *string `toml:"log-level"`
	Color      *string `toml:"color"`
	ModuleIDs  *string `toml:"module-ids"`
	Pathinfo   *bool   `toml:"pathinfo"`
	ASCIIOnly  *bool   `toml:"ascii-only"`
	Timings    *bool   `toml:"timings"`
}

// Reads settings from a TOML file on top of the given options
func LoadFile(path string, options *Options) error {
	var file fileOptions
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("%s: unknown settings: %s", path, strings.Join(keys, ", "))
	}
	if err := file.apply(options); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Like "LoadFile" but a missing file is not an error
func LoadFileIfExists(path string, options *Options) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, LoadFile(path, options)
}

func (file *fileOptions) apply(options *Options) error {
	if file.Jobs != nil {
		if *file.Jobs < 0 {
			return fmt.Errorf("invalid jobs %d", *file.Jobs)
		}
		options.Jobs = *file.Jobs
	}
	if file.ErrorLimit != nil {
		options.ErrorLimit = *file.ErrorLimit
	}
	if file.LogLevel != nil {
		level, ok := logger.ParseLogLevel(*file.LogLevel)
		if !ok {
			return fmt.Errorf("invalid log-level %q", *file.LogLevel)
		}
		options.LogLevel = level
	}
	if file.Color != nil {
		color, ok := logger.ParseStderrColor(*file.Color)
		if !ok {
			return fmt.Errorf("invalid color %q", *file.Color)
		}
		options.Color = color
	}
	if file.ModuleIDs != nil {
		ids, ok := ParseModuleIDs(*file.ModuleIDs)
		if !ok {
			return fmt.Errorf("invalid module-ids %q", *file.ModuleIDs)
		}
		options.ModuleIDs = ids
	}
	if file.Pathinfo != nil {
		options.Pathinfo = *file.Pathinfo
	}
	if file.ASCIIOnly != nil {
		options.ASCIIOnly = *file.ASCIIOnly
	}
	if file.Timings != nil {
		options.Timings = *file.Timings
	}
	return nil
}

func ParseModuleIDs(text string) (ModuleIDs, bool) {
	switch text {
	case "named":
		return ModuleIDsNamed, true
	case "numeric":
		return ModuleIDsNumeric, true
	}
	return ModuleIDsNamed, false
}

// Applies "ESMLINK_*" environment variables. Any ".env" files named here are
// loaded first; missing ".env" files are ignored. Variables that are already
// set in the process environment win over ".env" files.
func LoadEnv(options *Options, envFiles ...string) error {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", file, err)
		}
	}

	if text, ok := os.LookupEnv("ESMLINK_JOBS"); ok {
		jobs, err := strconv.Atoi(text)
		if err != nil || jobs < 0 {
			return fmt.Errorf("invalid ESMLINK_JOBS %q", text)
		}
		options.Jobs = jobs
	}
	if text, ok := os.LookupEnv("ESMLINK_PATHINFO"); ok {
		pathinfo, err := strconv.ParseBool(text)
		if err != nil {
			return fmt.Errorf("invalid ESMLINK_PATHINFO %q", text)
		}
		options.Pathinfo = pathinfo
	}
	if text, ok := os.LookupEnv("ESMLINK_LOG_LEVEL"); ok {
		level, ok := logger.ParseLogLevel(text)
		if !ok {
			return fmt.Errorf("invalid ESMLINK_LOG_LEVEL %q", text)
		}
		options.LogLevel = level
	}
	if text, ok := os.LookupEnv("ESMLINK_MODULE_IDS"); ok {
		ids, ok := ParseModuleIDs(text)
		if !ok {
			return fmt.Errorf("invalid ESMLINK_MODULE_IDS %q", text)
		}
		options.ModuleIDs = ids
	}
	return nil
}
