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

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigstore/pass-signing/cmd/pass-signing/cli/options"
	"github.com/sigstore/pass-signing/pkg/bundle"
	"github.com/sigstore/pass-signing/pkg/signing"
	"github.com/sigstore/pass-signing/pkg/tracing"
)

func (a *app) signCommand() *cobra.Command {
	o := &options.SignOptions{}

	long := `Sign the bundle at SOURCE and write the signed bundle to DESTINATION.

    SOURCE is a directory, zip or tar.gz. Every file except IGNORE_PATHS is
    digested into manifest.json, the manifest is signed and both are written
    next to the files in DESTINATION (as per --format, or inferred from the
    DESTINATION name: .pkpass and .zip give zip, .tar.gz and .tgz give
    tar.gz, anything else a directory).

    Credentials come from exactly one of:
      --key-dir DIR        DIR/<identifier>.key and DIR/<identifier>.crt
      --private-key KEY    with --signing-certificate and --certificate-chain
      --kms-key ARN        an AWS KMS key, with --signing-certificate

    A SOURCE that already holds manifest.json or signature is rejected unless
    --replace-existing is given.`

	cmd := &cobra.Command{
		Use:   "sign [OPTIONS] SOURCE DESTINATION",
		Short: "Sign a bundle.",
		Long:  long,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				return withExitCode(a.sign(ctx, cmd, args[0], args[1]))
			})
		},
	}

	o.AddFlags(cmd)
	return cmd
}

func (a *app) sign(ctx context.Context, cmd *cobra.Command, source, dest string) error {
	sc := a.cfg.Sign
	attrs := map[string]interface{}{
		"pass_signing.source":           source,
		"pass_signing.destination":      dest,
		"pass_signing.identifier":       sc.Identifier,
		"pass_signing.format":           sc.Format,
		"pass_signing.digest":           a.cfg.Hashing.Algorithm,
		"pass_signing.replace_existing": sc.ReplaceExisting,
	}
	return tracing.Run(ctx, "Sign", attrs, func(ctx context.Context) error {
		format, err := bundle.ParseFormat(sc.Format)
		if err != nil {
			return err
		}
		provider, err := keyProvider(ctx, sc)
		if err != nil {
			return err
		}

		signer, err := signing.NewPassSigner(signing.Options{
			Source:          source,
			Destination:     dest,
			Identifier:      sc.Identifier,
			Keys:            provider,
			Algorithm:       a.cfg.Hashing.Algorithm,
			Workers:         a.cfg.Hashing.Workers,
			ChunkSize:       a.cfg.Hashing.ChunkSize,
			Format:          format,
			IgnorePaths:     a.cfg.Hashing.IgnorePaths,
			AllowSymlinks:   a.cfg.Hashing.AllowSymlinks,
			ReplaceExisting: sc.ReplaceExisting,
			Overwrite:       sc.Overwrite,
			Logger:          a.logger,
			Metrics:         a.metrics,
		})
		if err != nil {
			return err
		}

		status, err := signer.Sign(ctx)
		if !a.quiet() {
			fmt.Fprintln(cmd.OutOrStdout(), status.Message)
		}
		return err
	})
}
