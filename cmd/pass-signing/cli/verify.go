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
	"github.com/sigstore/pass-signing/pkg/tracing"
	"github.com/sigstore/pass-signing/pkg/verify"
)

func (a *app) verifyCommand() *cobra.Command {
	o := &options.VerifyOptions{}

	long := `Verify the signed bundle at BUNDLE.

Every file is checked against manifest.json and the signature over
manifest.json is checked against the trust anchors given with
--trust-anchor. Both checks always run and every problem is reported; the
bundle verifies only when both pass.

The report goes to stdout as text, json or yaml (--output). The exit status
is 0 when the bundle verifies, 1 when it does not and 2 when verification
could not run.`

	cmd := &cobra.Command{
		Use:   "verify [OPTIONS] BUNDLE",
		Short: "Verify a signed bundle.",
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				return withExitCode(a.verify(ctx, cmd, args[0]))
			})
		},
	}

	o.AddFlags(cmd)
	return cmd
}

func (a *app) verify(ctx context.Context, cmd *cobra.Command, bundlePath string) error {
	vc := a.cfg.Verify
	attrs := map[string]interface{}{
		"pass_signing.bundle":        bundlePath,
		"pass_signing.trust_anchors": len(vc.TrustAnchors),
		"pass_signing.validity_at":   vc.ValidityAt,
		"pass_signing.ocsp":          vc.OCSP,
		"pass_signing.crls":          len(vc.CRLs),
	}
	return tracing.Run(ctx, "Verify", attrs, func(ctx context.Context) error {
		format, err := verify.ParseReportFormat(vc.Output)
		if err != nil {
			return err
		}
		anchors, policy, err := trustOptions(vc)
		if err != nil {
			return err
		}

		verifier, err := verify.NewPassVerifier(verify.Options{
			Bundle:       bundlePath,
			TrustAnchors: anchors,
			Policy:       policy,
			Algorithm:    a.cfg.Hashing.Algorithm,
			Workers:      a.cfg.Hashing.Workers,
			ChunkSize:    a.cfg.Hashing.ChunkSize,
			Logger:       a.logger,
			Metrics:      a.metrics,
		})
		if err != nil {
			return err
		}

		res, err := verifier.Verify(ctx)
		if werr := verify.WriteReport(cmd.OutOrStdout(), res, format); werr != nil {
			return fmt.Errorf("writing report: %w", werr)
		}
		return err
	})
}
