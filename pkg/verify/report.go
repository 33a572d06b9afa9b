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

package verify

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ReportFormat selects how WriteReport renders a Result.
type ReportFormat string

const (
	ReportText ReportFormat = "text"
	ReportJSON ReportFormat = "json"
	ReportYAML ReportFormat = "yaml"
)

// ParseReportFormat accepts text, json or yaml. Empty means text.
func ParseReportFormat(s string) (ReportFormat, error) {
	switch f := ReportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return ReportText, nil
	case ReportText, ReportJSON, ReportYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q (expected text, json or yaml)", s)
	}
}

// WriteReport renders res to w.
func WriteReport(w io.Writer, res Result, format ReportFormat) error {
	switch format {
	case ReportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case ReportYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	case ReportText, "":
		return writeText(w, res)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeText(w io.Writer, res Result) error {
	var b strings.Builder
	status := "FAILED"
	if res.Verified {
		status = "OK"
	}
	fmt.Fprintf(&b, "Bundle:    %s\n", res.Bundle)
	if res.Format != "" {
		fmt.Fprintf(&b, "Format:    %s\n", res.Format)
	}
	fmt.Fprintf(&b, "Files:     %d\n", res.Entries)
	fmt.Fprintf(&b, "Status:    %s\n", status)

	sig := res.Signature
	if sig.Valid {
		fmt.Fprintf(&b, "Signature: valid (%s)\n", sig.SignerIdentity)
		if sig.Fingerprint != "" {
			fmt.Fprintf(&b, "  fingerprint: %s\n", sig.Fingerprint)
		}
		if sig.SignedAt != nil {
			fmt.Fprintf(&b, "  signed at:   %s\n", sig.SignedAt.UTC().Format(time.RFC3339))
		}
	} else {
		fmt.Fprintf(&b, "Signature: invalid\n")
		if sig.Reason != "" {
			fmt.Fprintf(&b, "  %s\n", sig.Reason)
		}
	}

	if len(res.Violations) == 0 {
		b.WriteString("Integrity: all files match the manifest\n")
	} else {
		fmt.Fprintf(&b, "Integrity: %d violation(s)\n", len(res.Violations))
		for _, v := range res.Violations {
			fmt.Fprintf(&b, "  %-28s %s: %s\n", v.Kind, v.Path, v.Reason)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
