// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package options defines the command-line flags of the pass-signing CLI.
//
// Flags that mirror a configuration key carry an annotation naming that key;
// BindConfig binds them to viper so a flag overrides the config file and the
// environment.
package options

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ConfigKeyAnnotation is the flag annotation holding the config key.
const ConfigKeyAnnotation = "pass-signing/config-key"

// DefaultTimeout specifies the default timeout duration for commands.
const DefaultTimeout = 5 * time.Minute

// ValidLogLevels lists the valid log level strings.
var ValidLogLevels = []string{"debug", "info", "warn", "error", "silent"}

// ValidLogFormats lists the valid log format strings.
var ValidLogFormats = []string{"console", "json"}

// FlagAdder is implemented by any flag group that can register itself to a cobra command.
type FlagAdder interface {
	AddFlags(cmd *cobra.Command)
}

// RootOptions defines flags and options for the root CLI command.
// These options are available globally across all subcommands.
type RootOptions struct {
	// ConfigFile overrides the config file search.
	ConfigFile string
	// OutputFile specifies a file path to redirect output to instead of stdout.
	OutputFile string
	LogLevel   string
	LogFormat  string
	// Timeout sets the maximum duration for command execution.
	Timeout time.Duration
	// MetricsFile receives a Prometheus textfile snapshot after each command.
	MetricsFile string
}

var _ FlagAdder = (*RootOptions)(nil)

// AddFlags registers the persistent root flags.
func (o *RootOptions) AddFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.StringVar(&o.ConfigFile, "config", "",
		"config file (default is ./pass-signing.yaml)")
	_ = cmd.MarkPersistentFlagFilename("config", "yaml", "yml")

	fs.StringVar(&o.OutputFile, "output-file", "",
		"write command output to a file")

	fs.StringVar(&o.LogLevel, "log-level", "info",
		"set the minimum log level (debug, info, warn, error, silent)")
	annotate(fs, "log-level", "log.level")

	fs.StringVar(&o.LogFormat, "log-format", "console",
		"set the log output format (console, json)")
	annotate(fs, "log-format", "log.format")

	fs.DurationVarP(&o.Timeout, "timeout", "t", DefaultTimeout,
		"timeout for commands")
	annotate(fs, "timeout", "timeout")

	fs.StringVar(&o.MetricsFile, "metrics-file", "",
		"write Prometheus metrics to this file on exit")
	annotate(fs, "metrics-file", "metrics.file")
}

// AddAllFlags is a helper function to register multiple flag groups at once.
func AddAllFlags(cmd *cobra.Command, flagGroups ...FlagAdder) {
	for _, fg := range flagGroups {
		fg.AddFlags(cmd)
	}
}

// BindConfig binds every annotated flag in fs to its config key in v.
func BindConfig(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[ConfigKeyAnnotation]
		if err != nil || len(keys) == 0 {
			return
		}
		err = v.BindPFlag(keys[0], f)
	})
	return err
}

func annotate(fs *pflag.FlagSet, flag, key string) {
	_ = fs.SetAnnotation(flag, ConfigKeyAnnotation, []string{key})
}
