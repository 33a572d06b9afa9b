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

package keys

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sigstore/sigstore/pkg/cryptoutils"

	"github.com/sigstore/pass-signing/pkg/signature"
	"github.com/sigstore/pass-signing/pkg/utils"
)

// LoadPrivateKey loads a PEM private key. PKCS#8, EC, RSA and encrypted
// sigstore keys are supported; password decrypts the latter.
func LoadPrivateKey(keyPath, password string) (crypto.Signer, error) {
	//nolint:gosec
	pemBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var passFunc cryptoutils.PassFunc
	if password != "" {
		passFunc = func(_ bool) ([]byte, error) {
			return []byte(password), nil
		}
	}

	privKey, err := cryptoutils.UnmarshalPEMToPrivateKey(pemBytes, passFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	signer, ok := privKey.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("private key does not implement crypto.Signer")
	}
	return signer, nil
}

// FileKeyProvider loads one key and chain from explicit paths. The
// identifier is ignored.
type FileKeyProvider struct {
	KeyPath         string
	CertificatePath string
	ChainPaths      []string
	Password        string
}

// Credentials implements KeyProvider.
func (p *FileKeyProvider) Credentials(ctx context.Context, _ string) (*Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := utils.ValidateFileExists("private key", p.KeyPath); err != nil {
		return nil, err
	}
	if err := utils.ValidateFileExists("signing certificate", p.CertificatePath); err != nil {
		return nil, err
	}
	if err := utils.ValidateMultiple("certificate chain", p.ChainPaths, utils.PathTypeFile); err != nil {
		return nil, err
	}

	signer, err := LoadPrivateKey(p.KeyPath, p.Password)
	if err != nil {
		return nil, err
	}
	chain, err := signature.LoadCertificates(append([]string{p.CertificatePath}, p.ChainPaths...)...)
	if err != nil {
		return nil, err
	}
	return &Credentials{Signer: signer, Chain: chain}, nil
}

// DirectoryKeyProvider resolves identifiers to files in a key directory:
//
//	<dir>/<identifier>.key        private key (PEM)
//	<dir>/<identifier>.crt|.pem   signing certificate, optionally followed by its chain
//	<dir>/<identifier>.chain.pem  optional intermediates
type DirectoryKeyProvider struct {
	Dir      string
	Password string
}

// Credentials implements KeyProvider.
func (p *DirectoryKeyProvider) Credentials(ctx context.Context, identifier string) (*Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validIdentifier(identifier); err != nil {
		return nil, err
	}
	if err := utils.ValidateFolderExists("key directory", p.Dir); err != nil {
		return nil, err
	}

	base := filepath.Join(p.Dir, identifier)
	signer, err := LoadPrivateKey(base+".key", p.Password)
	if err != nil {
		return nil, fmt.Errorf("identifier %q: %w", identifier, err)
	}

	certPath, err := firstExisting(base+".crt", base+".pem")
	if err != nil {
		return nil, fmt.Errorf("identifier %q: no signing certificate (%s.crt or %s.pem): %w", identifier, identifier, identifier, err)
	}
	paths := []string{certPath}
	if _, err := os.Stat(base + ".chain.pem"); err == nil {
		paths = append(paths, base+".chain.pem")
	}

	chain, err := signature.LoadCertificates(paths...)
	if err != nil {
		return nil, fmt.Errorf("identifier %q: %w", identifier, err)
	}
	return &Credentials{Signer: signer, Chain: chain}, nil
}

func validIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier is required")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("identifier %q must be a plain name", id)
	}
	return nil
}

func firstExisting(paths ...string) (string, error) {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fs.ErrNotExist
}

// FileTrustAnchors loads roots and intermediates from PEM or DER files.
type FileTrustAnchors struct {
	RootPaths         []string
	IntermediatePaths []string
}

// TrustAnchors implements TrustAnchorProvider.
func (f FileTrustAnchors) TrustAnchors(ctx context.Context) ([]*x509.Certificate, []*x509.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if len(f.RootPaths) == 0 {
		return nil, nil, fmt.Errorf("at least one trust anchor file is required")
	}
	if err := utils.ValidateMultiple("trust anchor", f.RootPaths, utils.PathTypeFile); err != nil {
		return nil, nil, err
	}
	if err := utils.ValidateMultiple("intermediate", f.IntermediatePaths, utils.PathTypeFile); err != nil {
		return nil, nil, err
	}

	roots, err := signature.LoadCertificates(f.RootPaths...)
	if err != nil {
		return nil, nil, err
	}
	intermediates, err := signature.LoadCertificates(f.IntermediatePaths...)
	if err != nil {
		return nil, nil, err
	}
	return roots, intermediates, nil
}
