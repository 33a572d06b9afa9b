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

package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	intoto "github.com/in-toto/attestation/go/v1"
	"google.golang.org/protobuf/encoding/protojson"
	structpb "google.golang.org/protobuf/types/known/structpb"
)

const (
	// InTotoJSONPayloadType is the DSSE payload type of the signed statement.
	InTotoJSONPayloadType = "application/vnd.in-toto+json"

	// InTotoStatementType is the in-toto statement version produced.
	InTotoStatementType = "https://in-toto.io/Statement/v1"

	// PredicateType identifies a signed bundle manifest.
	PredicateType = "https://sigstore.dev/pass-signing/manifest/v1"

	// BundleMediaType is the Sigstore bundle version written to signature files.
	BundleMediaType = "application/vnd.dev.sigstore.bundle.v0.3+json"

	// SubjectName is the statement subject naming the signed manifest.
	SubjectName = "manifest.json"
)

// newStatement binds manifestBytes to the statement subject by SHA-256.
func newStatement(manifestBytes []byte, digestAlgorithm string, signedAt time.Time) (*intoto.Statement, error) {
	sum := sha256.Sum256(manifestBytes)

	predicate, err := structpb.NewStruct(map[string]interface{}{
		"signedAt":        signedAt.UTC().Format(time.RFC3339),
		"digestAlgorithm": digestAlgorithm,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build predicate struct: %w", err)
	}

	return &intoto.Statement{
		Type: InTotoStatementType,
		Subject: []*intoto.ResourceDescriptor{{
			Name:   SubjectName,
			Digest: map[string]string{"sha256": hex.EncodeToString(sum[:])},
		}},
		PredicateType: PredicateType,
		Predicate:     predicate,
	}, nil
}

func marshalStatement(st *intoto.Statement) ([]byte, error) {
	opts := protojson.MarshalOptions{UseProtoNames: true}
	return opts.Marshal(st)
}

func unmarshalStatement(data []byte) (*intoto.Statement, error) {
	st := &intoto.Statement{}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal statement: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid statement: %w", err)
	}
	if st.GetType() != InTotoStatementType {
		return nil, fmt.Errorf("expected in-toto %s statement, but got %s", InTotoStatementType, st.GetType())
	}
	if st.GetPredicateType() != PredicateType {
		return nil, fmt.Errorf("expected predicate %s, but got %s", PredicateType, st.GetPredicateType())
	}
	return st, nil
}

// manifestSubjectDigest returns the hex SHA-256 recorded for the manifest.
func manifestSubjectDigest(st *intoto.Statement) (string, error) {
	for _, s := range st.GetSubject() {
		if s.GetName() != SubjectName {
			continue
		}
		if d, ok := s.GetDigest()["sha256"]; ok && d != "" {
			return d, nil
		}
		return "", fmt.Errorf("subject %s has no sha256 digest", SubjectName)
	}
	return "", fmt.Errorf("statement has no %s subject", SubjectName)
}

// predicateString reads a string field from the predicate, or "".
func predicateString(st *intoto.Statement, key string) string {
	v, ok := st.GetPredicate().GetFields()[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}
