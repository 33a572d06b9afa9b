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

// Package config loads pass-signing settings from a YAML file and
// PASS_SIGNING_* environment variables. Command line flags are bound to the
// same keys by the CLI, so a flag, an environment variable and a file entry
// are interchangeable.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sigstore/pass-signing/pkg/bundle"
	"github.com/sigstore/pass-signing/pkg/hashing"
	"github.com/sigstore/pass-signing/pkg/logging"
	"github.com/sigstore/pass-signing/pkg/signature"
)

// EnvPrefix prefixes every environment variable, e.g.
// PASS_SIGNING_SIGN_KEY_DIR for sign.key_dir.
const EnvPrefix = "PASS_SIGNING"

// ConfigName is the file name searched for when no file is given.
const ConfigName = "pass-signing"

// Config is the complete configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Hashing HashingConfig `mapstructure:"hashing"`
	Sign    SignConfig    `mapstructure:"sign"`
	Verify  VerifyConfig  `mapstructure:"verify"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Timeout bounds a whole operation; zero disables it.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HashingConfig controls manifest construction.
type HashingConfig struct {
	Algorithm     string   `mapstructure:"algorithm"`
	Workers       int      `mapstructure:"workers"`
	ChunkSize     int      `mapstructure:"chunk_size"`
	IgnorePaths   []string `mapstructure:"ignore_paths"`
	AllowSymlinks bool     `mapstructure:"allow_symlinks"`
}

// SignConfig selects credentials and output.
type SignConfig struct {
	// Identifier names the credentials in KeyDir.
	Identifier string `mapstructure:"identifier"`
	KeyDir     string `mapstructure:"key_dir"`

	PrivateKey         string   `mapstructure:"private_key"`
	Password           string   `mapstructure:"password"`
	SigningCertificate string   `mapstructure:"signing_certificate"`
	CertificateChain   []string `mapstructure:"certificate_chain"`

	// KMSKey is an AWS KMS key ID or ARN.
	KMSKey string `mapstructure:"kms_key"`

	Format          string `mapstructure:"format"`
	ReplaceExisting bool   `mapstructure:"replace_existing"`
	Overwrite       bool   `mapstructure:"overwrite"`
}

// VerifyConfig selects trust anchors and report format.
type VerifyConfig struct {
	TrustAnchors  []string `mapstructure:"trust_anchors"`
	Intermediates []string `mapstructure:"intermediates"`
	CRLs          []string `mapstructure:"crls"`
	OCSP          bool     `mapstructure:"ocsp"`
	ValidityAt    string   `mapstructure:"validity_at"`
	Output        string   `mapstructure:"output"`
}

// TracingConfig enables OTLP export in otel builds.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// MetricsConfig names the textfile collector output.
type MetricsConfig struct {
	File string `mapstructure:"file"`
}

// Output formats for verify reports.
var outputFormats = []string{"text", "json", "yaml"}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Hashing: HashingConfig{
			Algorithm: hashing.DefaultAlgorithm,
			ChunkSize: hashing.DefaultChunkSize,
		},
		Sign:    SignConfig{Format: bundle.FormatAuto.String()},
		Verify:  VerifyConfig{ValidityAt: signature.ValidityNow.String(), Output: "text"},
		Tracing: TracingConfig{ServiceName: "pass-signing"},
		Timeout: 5 * time.Minute,
	}
}

// SetDefaults registers Default() with v so that Unmarshal sees every key
// and AutomaticEnv can resolve them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("hashing.algorithm", d.Hashing.Algorithm)
	v.SetDefault("hashing.workers", d.Hashing.Workers)
	v.SetDefault("hashing.chunk_size", d.Hashing.ChunkSize)
	v.SetDefault("hashing.ignore_paths", []string{})
	v.SetDefault("hashing.allow_symlinks", d.Hashing.AllowSymlinks)

	v.SetDefault("sign.identifier", "")
	v.SetDefault("sign.key_dir", "")
	v.SetDefault("sign.private_key", "")
	v.SetDefault("sign.password", "")
	v.SetDefault("sign.signing_certificate", "")
	v.SetDefault("sign.certificate_chain", []string{})
	v.SetDefault("sign.kms_key", "")
	v.SetDefault("sign.format", d.Sign.Format)
	v.SetDefault("sign.replace_existing", false)
	v.SetDefault("sign.overwrite", false)

	v.SetDefault("verify.trust_anchors", []string{})
	v.SetDefault("verify.intermediates", []string{})
	v.SetDefault("verify.crls", []string{})
	v.SetDefault("verify.ocsp", false)
	v.SetDefault("verify.validity_at", d.Verify.ValidityAt)
	v.SetDefault("verify.output", d.Verify.Output)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)

	v.SetDefault("metrics.file", "")
	v.SetDefault("timeout", d.Timeout)
}

// Setup prepares v: defaults, environment binding and the config file
// location. An empty file searches ./pass-signing.yaml and
// $XDG_CONFIG_HOME/pass-signing/pass-signing.yaml.
func Setup(v *viper.Viper, file string) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		return
	}
	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, ConfigName))
	}
}

// Load reads the config file, if any, and decodes v into a Config. A
// missing file is not an error; a malformed one is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that do not depend on the command being run.
func (c *Config) Validate() error {
	if _, err := logging.ParseLogLevelStrict(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "text":
	default:
		return fmt.Errorf("log.format must be 'json' or 'console', got %q", c.Log.Format)
	}
	if !hashing.IsSupported(c.Hashing.Algorithm) {
		return fmt.Errorf("hashing.algorithm %q is not supported (have %s)",
			c.Hashing.Algorithm, strings.Join(hashing.SupportedAlgorithms(), ", "))
	}
	if c.Hashing.Workers < 0 {
		return fmt.Errorf("hashing.workers must not be negative")
	}
	if c.Hashing.ChunkSize < 0 {
		return fmt.Errorf("hashing.chunk_size must not be negative")
	}
	if _, err := bundle.ParseFormat(c.Sign.Format); err != nil {
		return fmt.Errorf("sign.format: %w", err)
	}
	if _, err := signature.ParseValidityTime(c.Verify.ValidityAt); err != nil {
		return fmt.Errorf("verify.validity_at: %w", err)
	}
	if !slices.Contains(outputFormats, strings.ToLower(c.Verify.Output)) {
		return fmt.Errorf("verify.output must be one of %s, got %q", strings.Join(outputFormats, ", "), c.Verify.Output)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// CredentialSource names which key provider the sign settings select.
type CredentialSource int

const (
	CredentialsNone CredentialSource = iota
	CredentialsKeyDir
	CredentialsFiles
	CredentialsKMS
)

// CredentialSource returns the single configured key source. Configuring
// more than one is an error.
func (s SignConfig) CredentialSource() (CredentialSource, error) {
	var found []CredentialSource
	if s.KeyDir != "" {
		found = append(found, CredentialsKeyDir)
	}
	if s.PrivateKey != "" {
		found = append(found, CredentialsFiles)
	}
	if s.KMSKey != "" {
		found = append(found, CredentialsKMS)
	}
	switch len(found) {
	case 0:
		return CredentialsNone, fmt.Errorf("one of key_dir, private_key or kms_key is required")
	case 1:
	default:
		return CredentialsNone, fmt.Errorf("key_dir, private_key and kms_key are mutually exclusive")
	}

	switch found[0] {
	case CredentialsKeyDir:
		if s.Identifier == "" {
			return CredentialsNone, fmt.Errorf("identifier is required with key_dir")
		}
	case CredentialsFiles, CredentialsKMS:
		if s.SigningCertificate == "" {
			return CredentialsNone, fmt.Errorf("signing_certificate is required with private_key or kms_key")
		}
	}
	return found[0], nil
}
