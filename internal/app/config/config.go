package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/TroyWilliams3687/email-to-markdown/internal/app/retriever"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/fsutil"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/units"
)

const (
	DefaultAbsentValue      = "None"
	DefaultFolderRetryLimit = 25
	DefaultFileRetryLimit   = 100
)

type Config struct {
	LogLevel          string `yaml:"log_level"`           // Logging level: debug, info, warn or error.
	Recursive         bool   `yaml:"recursive"`           // Whether to descend into subdirectories of the input.
	FullHeader        bool   `yaml:"full_header"`         // Whether to render non-canonical headers too.
	AbsentValue       string `yaml:"absent_value"`        // Text rendered for headers the source lacks.
	FilenamePlatform  string `yaml:"filename_platform"`   // Filename rules: auto, posix, windows or universal.
	FolderRetryLimit  int    `yaml:"folder_retry_limit"`  // Number of "(n)" variants tried for unique folders.
	FileRetryLimit    int    `yaml:"file_retry_limit"`    // Number of "(n)" variants tried for files.
	UniqueFolders     bool   `yaml:"unique_folders"`      // Whether each message gets its own folder instead of sharing one per subject.
	MaxAttachmentSize string `yaml:"max_attachment_size"` // Largest attachment written, e.g. "25MB". Zero means unlimited.
	MSGHTMLBody       string `yaml:"msg_html_body"`       // Handling of HTML-only .msg bodies: passthrough, markdown or text.
	Template          string `yaml:"template"`            // Optional path to a text/template replacing the default document layout.
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel:          "info",
		AbsentValue:       DefaultAbsentValue,
		FilenamePlatform:  string(fsutil.PlatformAuto),
		FolderRetryLimit:  DefaultFolderRetryLimit,
		FileRetryLimit:    DefaultFileRetryLimit,
		MaxAttachmentSize: "0",
		MSGHTMLBody:       string(retriever.HTMLPassthrough),
	}
}

// LoadConfig reads the YAML file at cfgFilepath on top of Default. Variables
// from envFilepath, when it exists, are loaded first so the file may refer
// to them as $VAR. An empty cfgFilepath yields the defaults.
func LoadConfig(cfgFilepath, envFilepath string) (Config, error) {
	cfg := Default()

	if envFilepath != "" {
		if _, err := os.Stat(envFilepath); err == nil {
			if err = godotenv.Load(envFilepath); err != nil {
				return cfg, fmt.Errorf("unable to load environment variables from file: %w", err)
			}
		}
	}

	if cfgFilepath == "" {
		return cfg, cfg.Validate()
	}

	//nolint:gosec
	fileBytes, err := os.ReadFile(cfgFilepath)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("configuration file at this cfgFilepath doesn't exist: %w", err)
		case errors.Is(err, os.ErrPermission):
			return cfg, fmt.Errorf("permission denied for accessing configuration file: %w", err)
		default:
			return cfg, fmt.Errorf("unexpected error during reading configuration file: %w", err)
		}
	}

	envExpanded := os.ExpandEnv(string(fileBytes))
	if err = yaml.Unmarshal([]byte(envExpanded), &cfg); err != nil {
		return cfg, fmt.Errorf("unable to unmarshal configuration file: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	var errs []error

	if c.FolderRetryLimit < 0 {
		errs = append(errs, fmt.Errorf("folder_retry_limit must not be negative, got %d", c.FolderRetryLimit))
	}
	if c.FileRetryLimit < 0 {
		errs = append(errs, fmt.Errorf("file_retry_limit must not be negative, got %d", c.FileRetryLimit))
	}
	if _, err := c.Platform(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.HTMLMode(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.MaxAttachmentBytes(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Platform returns the parsed filename_platform.
func (c Config) Platform() (fsutil.Platform, error) {
	return fsutil.ParsePlatform(c.FilenamePlatform)
}

// HTMLMode returns the parsed msg_html_body.
func (c Config) HTMLMode() (retriever.HTMLMode, error) {
	return retriever.ParseHTMLMode(c.MSGHTMLBody)
}

// MaxAttachmentBytes returns max_attachment_size in bytes, 0 meaning no limit.
func (c Config) MaxAttachmentBytes() (int64, error) {
	if c.MaxAttachmentSize == "" {
		return 0, nil
	}

	n, err := units.FromHumanSize(c.MaxAttachmentSize)
	if err != nil {
		return 0, fmt.Errorf("max_attachment_size: %w", err)
	}
	return n, nil
}
