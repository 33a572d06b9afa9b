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

// Package cli implements the pass-signing command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cobracompletefig "github.com/withfig/autocomplete-tools/integrations/cobra"
	"sigs.k8s.io/release-utils/version"

	"github.com/sigstore/pass-signing/cmd/pass-signing/cli/options"
	"github.com/sigstore/pass-signing/pkg/config"
	"github.com/sigstore/pass-signing/pkg/logging"
	"github.com/sigstore/pass-signing/pkg/metrics"
	"github.com/sigstore/pass-signing/pkg/tracing"
)

// shutdownTimeout bounds tracing flush on exit.
const shutdownTimeout = 5 * time.Second

// app holds the state shared by one command invocation.
type app struct {
	v    *viper.Viper
	root options.RootOptions

	cfg     *config.Config
	logger  *logging.ZapLogger
	metrics *metrics.Metrics

	out      *os.File
	stdout   *os.File
	shutdown func(context.Context) error
	once     sync.Once
	finErr   error
}

// New returns the root command.
func New() *cobra.Command {
	a := &app{v: viper.New(), metrics: metrics.New()}

	cmd := &cobra.Command{
		Use:   "pass-signing",
		Short: "Sign and verify pass bundles.",
		Long: `Sign and verify pass bundles.

A bundle is a directory, zip (.pkpass) or tar.gz of files. Signing writes a
manifest.json of per-file digests and a detached signature over it, made with
a certificate-backed key. Verification checks every file against the manifest
and the signature against configured trust anchors.`,
		DisableAutoGenTag:  true,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error { return a.finish() },
	}
	a.root.AddFlags(cmd)

	// Add sub-commands.
	cmd.AddCommand(a.signCommand())
	cmd.AddCommand(a.verifyCommand())
	cmd.AddCommand(version.WithFont("starwars"))
	cmd.AddCommand(cobracompletefig.CreateCompletionSpecCommand())
	return cmd
}

// setup loads configuration and builds the logger and tracer for the
// command being run.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := options.BindConfig(a.v, cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	config.Setup(a.v, a.root.ConfigFile)
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.root.OutputFile != "" {
		out, err := os.Create(a.root.OutputFile)
		if err != nil {
			return fmt.Errorf("error creating output file %s: %w", a.root.OutputFile, err)
		}
		a.out = out
		a.stdout = os.Stdout
		os.Stdout = out
		cmd.SetOut(out)
	}

	logger, err := logging.NewZap(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	if used := a.v.ConfigFileUsed(); used != "" {
		logger.Debug("Using config file %s", used)
	}

	shutdown, err := tracing.Init(cmd.Context(), tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

// run executes fn under the configured timeout. Cobra skips post-run hooks
// when RunE fails, so cleanup happens here as well.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context) error) error {
	ctx := cmd.Context()
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	err := fn(ctx)
	if err != nil {
		if ferr := a.finish(); ferr != nil {
			a.logger.Warn("cleanup failed: %v", ferr)
		}
	}
	return err
}

// finish flushes tracing, writes the metrics file and restores stdout. It
// runs once.
func (a *app) finish() error {
	a.once.Do(func() {
		var errs []error
		if a.shutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			errs = append(errs, a.shutdown(ctx))
			cancel()
		}
		if a.cfg != nil && a.cfg.Metrics.File != "" {
			errs = append(errs, a.metrics.WriteToTextfile(a.cfg.Metrics.File))
		}
		if a.logger != nil {
			// Sync on a terminal stderr reports EINVAL; nothing to act on.
			_ = a.logger.Sync()
		}
		if a.out != nil {
			errs = append(errs, a.out.Close())
			os.Stdout = a.stdout
		}
		a.finErr = errors.Join(errs...)
	})
	return a.finErr
}

// quiet reports whether status lines should be suppressed.
func (a *app) quiet() bool {
	return a.logger.GetLevel() >= logging.LevelSilent
}
