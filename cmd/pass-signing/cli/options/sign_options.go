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

// SignOptions are the flags of the sign command.
type SignOptions struct {
	HashingFlags
	SourceFlags

	Identifier         string   // --identifier
	KeyDir             string   // --key-dir
	PrivateKey         string   // --private-key
	Password           string   // --password
	SigningCertificate string   // --signing-certificate
	CertificateChain   []string // --certificate-chain
	KMSKey             string   // --kms-key

	Format          string // --format
	ReplaceExisting bool   // --replace-existing
	Overwrite       bool   // --overwrite
}

// AddFlags adds sign flags to the cobra command.
func (o *SignOptions) AddFlags(cmd *cobra.Command) {
	AddAllFlags(cmd, &o.HashingFlags, &o.SourceFlags)

	fs := cmd.Flags()
	fs.StringVarP(&o.Identifier, "identifier", "i", "", "Credential identifier, e.g. pass.com.example.tickets.")
	annotate(fs, "identifier", "sign.identifier")
	fs.StringVar(&o.KeyDir, "key-dir", "", "Directory holding <identifier>.key and <identifier>.crt.")
	annotate(fs, "key-dir", "sign.key_dir")
	_ = cmd.MarkFlagDirname("key-dir")

	fs.StringVar(&o.PrivateKey, "private-key", "", "Path to the private key, as a PEM-encoded file.")
	annotate(fs, "private-key", "sign.private_key")
	fs.StringVar(&o.Password, "password", "", "Password for the key encryption, if any.")
	annotate(fs, "password", "sign.password")
	fs.StringVar(&o.SigningCertificate, "signing-certificate", "", "Path to the signing certificate.")
	annotate(fs, "signing-certificate", "sign.signing_certificate")
	fs.StringSliceVar(&o.CertificateChain, "certificate-chain", nil, "Intermediate certificates sent with the signature.")
	annotate(fs, "certificate-chain", "sign.certificate_chain")
	fs.StringVar(&o.KMSKey, "kms-key", "", "AWS KMS key ID or ARN to sign with.")
	annotate(fs, "kms-key", "sign.kms_key")

	cmd.MarkFlagsMutuallyExclusive("key-dir", "private-key", "kms-key")

	fs.StringVar(&o.Format, "format", "auto", "Output format: dir, zip or tar.gz. auto infers it from DESTINATION.")
	annotate(fs, "format", "sign.format")
	fs.BoolVar(&o.ReplaceExisting, "replace-existing", false, "Drop a manifest.json or signature already in the source.")
	annotate(fs, "replace-existing", "sign.replace_existing")
	fs.BoolVar(&o.Overwrite, "overwrite", false, "Replace an existing DESTINATION.")
	annotate(fs, "overwrite", "sign.overwrite")
}
