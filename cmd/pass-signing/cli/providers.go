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

	"github.com/sigstore/pass-signing/pkg/config"
	"github.com/sigstore/pass-signing/pkg/keys"
	"github.com/sigstore/pass-signing/pkg/signature"
)

// keyProvider builds the provider selected by the sign settings.
func keyProvider(ctx context.Context, sc config.SignConfig) (keys.KeyProvider, error) {
	src, err := sc.CredentialSource()
	if err != nil {
		return nil, err
	}
	switch src {
	case config.CredentialsKeyDir:
		return &keys.DirectoryKeyProvider{Dir: sc.KeyDir, Password: sc.Password}, nil
	case config.CredentialsFiles:
		return &keys.FileKeyProvider{
			KeyPath:         sc.PrivateKey,
			CertificatePath: sc.SigningCertificate,
			ChainPaths:      sc.CertificateChain,
			Password:        sc.Password,
		}, nil
	case config.CredentialsKMS:
		return keys.NewKMSKeyProvider(ctx, sc.KMSKey, sc.SigningCertificate, sc.CertificateChain)
	default:
		return nil, fmt.Errorf("unsupported credential source %d", src)
	}
}

// trustOptions builds the trust anchors and validation policy selected by
// the verify settings.
func trustOptions(vc config.VerifyConfig) (keys.TrustAnchorProvider, signature.Policy, error) {
	if len(vc.TrustAnchors) == 0 {
		return nil, signature.Policy{}, fmt.Errorf("at least one --trust-anchor is required")
	}
	validity, err := signature.ParseValidityTime(vc.ValidityAt)
	if err != nil {
		return nil, signature.Policy{}, err
	}
	policy := signature.Policy{ValidityTime: validity}

	var checkers signature.AllCheckers
	if len(vc.CRLs) > 0 {
		lists, err := signature.LoadCRLs(vc.CRLs...)
		if err != nil {
			return nil, signature.Policy{}, err
		}
		checkers = append(checkers, signature.NewCRLChecker(lists, nil))
	}
	if vc.OCSP {
		checkers = append(checkers, signature.NewOCSPChecker(nil, nil))
	}
	switch len(checkers) {
	case 0:
	case 1:
		policy.CheckRevocation = true
		policy.Revocation = checkers[0]
	default:
		policy.CheckRevocation = true
		policy.Revocation = checkers
	}

	anchors := keys.FileTrustAnchors{RootPaths: vc.TrustAnchors, IntermediatePaths: vc.Intermediates}
	return anchors, policy, nil
}
