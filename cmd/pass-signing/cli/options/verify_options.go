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

package options

import (
	"github.com/spf13/cobra"
)

// VerifyOptions are the flags of the verify command.
type VerifyOptions struct {
	HashingFlags

	TrustAnchors  []string // --trust-anchor
	Intermediates []string // --intermediate
	CRLs          []string // --crl
	OCSP          bool     // --ocsp
	ValidityAt    string   // --validity-at
	Output        string   // --output
}

// AddFlags adds verify flags to the cobra command.
func (o *VerifyOptions) AddFlags(cmd *cobra.Command) {
	o.HashingFlags.AddFlags(cmd)

	fs := cmd.Flags()
	fs.StringSliceVar(&o.TrustAnchors, "trust-anchor", nil, "Root certificates the signer must chain to. [required]")
	annotate(fs, "trust-anchor", "verify.trust_anchors")
	fs.StringSliceVar(&o.Intermediates, "intermediate", nil, "Extra intermediate certificates.")
	annotate(fs, "intermediate", "verify.intermediates")
	fs.StringSliceVar(&o.CRLs, "crl", nil, "Revocation lists to check the signing certificate against.")
	annotate(fs, "crl", "verify.crls")
	fs.BoolVar(&o.OCSP, "ocsp", false, "Query the OCSP responder named in the signing certificate.")
	annotate(fs, "ocsp", "verify.ocsp")
	fs.StringVar(&o.ValidityAt, "validity-at", "now", "Check certificate validity at 'now' or at the recorded 'signing' time.")
	annotate(fs, "validity-at", "verify.validity_at")
	fs.StringVarP(&o.Output, "output", "o", "text", "Report format: text, json or yaml.")
	annotate(fs, "output", "verify.output")
}
