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
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/sigstore/pass-signing/pkg/signature"
)

// kmsAPI is the subset of the KMS API used for signing. Extracted as an
// interface so tests run without AWS credentials.
type kmsAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// defaultKMSTimeout bounds a single remote signing call.
const defaultKMSTimeout = 30 * time.Second

// KMSKeyProvider signs with an AWS KMS asymmetric key. The certificate
// chain is loaded from files; its leaf must certify the KMS public key.
type KMSKeyProvider struct {
	client          kmsAPI
	keyID           string
	certificatePath string
	chainPaths      []string
	timeout         time.Duration

	mu     sync.Mutex
	signer *kmsSigner
}

// NewKMSKeyProvider loads the default AWS configuration (environment,
// shared config, instance role) and returns a provider for keyID.
func NewKMSKeyProvider(ctx context.Context, keyID, certificatePath string, chainPaths []string) (*KMSKeyProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newKMSKeyProvider(kms.NewFromConfig(cfg), keyID, certificatePath, chainPaths), nil
}

func newKMSKeyProvider(client kmsAPI, keyID, certificatePath string, chainPaths []string) *KMSKeyProvider {
	return &KMSKeyProvider{
		client:          client,
		keyID:           keyID,
		certificatePath: certificatePath,
		chainPaths:      append([]string(nil), chainPaths...),
		timeout:         defaultKMSTimeout,
	}
}

// Credentials implements KeyProvider. The identifier is ignored; the key is
// fixed at construction. Remote signing calls made through the returned
// signer are bound to ctx.
func (p *KMSKeyProvider) Credentials(ctx context.Context, _ string) (*Credentials, error) {
	base, err := p.loadSigner(ctx)
	if err != nil {
		return nil, err
	}
	chain, err := signature.LoadCertificates(append([]string{p.certificatePath}, p.chainPaths...)...)
	if err != nil {
		return nil, err
	}
	signer := *base
	signer.ctx = ctx
	return &Credentials{Signer: &signer, Chain: chain}, nil
}

func (p *KMSKeyProvider) loadSigner(ctx context.Context) (*kmsSigner, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signer != nil {
		return p.signer, nil
	}
	if p.keyID == "" {
		return nil, fmt.Errorf("KMS key ID is required")
	}

	out, err := p.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(p.keyID)})
	if err != nil {
		return nil, fmt.Errorf("kms get public key: %w", err)
	}
	if out.KeyUsage != kmstypes.KeyUsageTypeSignVerify {
		return nil, fmt.Errorf("kms key %s has KeyUsage=%s, expected SIGN_VERIFY", p.keyID, out.KeyUsage)
	}
	pub, err := x509.ParsePKIXPublicKey(out.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("parse kms public key DER: %w", err)
	}

	p.signer = &kmsSigner{client: p.client, keyID: p.keyID, pub: pub, timeout: p.timeout}
	return p.signer, nil
}

// kmsSigner is a crypto.Signer whose private key never leaves KMS.
type kmsSigner struct {
	// ctx bounds Sign, whose crypto.Signer signature carries no context.
	ctx     context.Context
	client  kmsAPI
	keyID   string
	pub     crypto.PublicKey
	timeout time.Duration
}

// Public implements crypto.Signer.
func (s *kmsSigner) Public() crypto.PublicKey {
	return s.pub
}

// Sign implements crypto.Signer. digest is sent as a precomputed digest.
func (s *kmsSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	alg, err := kmsAlgorithm(s.pub, opts)
	if err != nil {
		return nil, err
	}

	parent := s.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          digest,
		MessageType:      kmstypes.MessageTypeDigest,
		SigningAlgorithm: alg,
	})
	if err != nil {
		return nil, fmt.Errorf("kms sign: %w", err)
	}
	return out.Signature, nil
}

// kmsAlgorithm maps a key and signer options to the KMS signing algorithm.
func kmsAlgorithm(pub crypto.PublicKey, opts crypto.SignerOpts) (kmstypes.SigningAlgorithmSpec, error) {
	h := opts.HashFunc()
	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		switch h {
		case crypto.SHA256:
			return kmstypes.SigningAlgorithmSpecEcdsaSha256, nil
		case crypto.SHA384:
			return kmstypes.SigningAlgorithmSpecEcdsaSha384, nil
		case crypto.SHA512:
			return kmstypes.SigningAlgorithmSpecEcdsaSha512, nil
		}
		return "", fmt.Errorf("unsupported hash %v for ECDSA %s", h, key.Curve.Params().Name)
	case *rsa.PublicKey:
		_, pss := opts.(*rsa.PSSOptions)
		switch {
		case pss && h == crypto.SHA256:
			return kmstypes.SigningAlgorithmSpecRsassaPssSha256, nil
		case pss && h == crypto.SHA384:
			return kmstypes.SigningAlgorithmSpecRsassaPssSha384, nil
		case pss && h == crypto.SHA512:
			return kmstypes.SigningAlgorithmSpecRsassaPssSha512, nil
		case h == crypto.SHA256:
			return kmstypes.SigningAlgorithmSpecRsassaPkcs1V15Sha256, nil
		}
		return "", fmt.Errorf("unsupported hash %v for RSA", h)
	default:
		return "", fmt.Errorf("unsupported KMS key type: %T", pub)
	}
}
