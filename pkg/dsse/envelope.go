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

// Package dsse holds the single-signature DSSE envelope carried inside a
// signature blob and converts it to and from its protobuf form.
package dsse

import (
	"encoding/base64"
	"errors"
	"fmt"

	sslibdsse "github.com/secure-systems-lab/go-securesystemslib/dsse"
	protodsse "github.com/sigstore/protobuf-specs/gen/pb-go/dsse"
)

var b64 = base64.StdEncoding

// Envelope is a DSSE envelope. Payload and signatures stay base64-encoded as
// on the DSSE wire; the protobuf form holds raw bytes.
type Envelope struct {
	raw *sslibdsse.Envelope
}

// New returns an envelope with payload and one signature, no key ID.
func New(payloadType string, payload, sig []byte) *Envelope {
	return &Envelope{raw: &sslibdsse.Envelope{
		PayloadType: payloadType,
		Payload:     b64.EncodeToString(payload),
		Signatures:  []sslibdsse.Signature{{Sig: b64.EncodeToString(sig)}},
	}}
}

// FromProtobuf converts the protobuf envelope found in a bundle.
func FromProtobuf(pb *protodsse.Envelope) (*Envelope, error) {
	if pb == nil {
		return nil, errors.New("envelope is missing")
	}
	env := &sslibdsse.Envelope{
		PayloadType: pb.GetPayloadType(),
		Payload:     b64.EncodeToString(pb.GetPayload()),
	}
	for _, s := range pb.GetSignatures() {
		env.Signatures = append(env.Signatures, sslibdsse.Signature{
			KeyID: s.GetKeyid(),
			Sig:   b64.EncodeToString(s.GetSig()),
		})
	}
	return &Envelope{raw: env}, nil
}

// ToProtobuf returns the protobuf form.
func (e *Envelope) ToProtobuf() (*protodsse.Envelope, error) {
	payload, err := b64.DecodeString(e.raw.Payload)
	if err != nil {
		return nil, fmt.Errorf("payload is not base64: %w", err)
	}
	pb := &protodsse.Envelope{PayloadType: e.raw.PayloadType, Payload: payload}
	for i, s := range e.raw.Signatures {
		sig, err := b64.DecodeString(s.Sig)
		if err != nil {
			return nil, fmt.Errorf("signature %d is not base64: %w", i, err)
		}
		pb.Signatures = append(pb.Signatures, &protodsse.Signature{Keyid: s.KeyID, Sig: sig})
	}
	return pb, nil
}

// Open checks that the envelope carries payloadType and exactly one
// non-empty signature, and returns the decoded payload and signature.
func (e *Envelope) Open(payloadType string) (payload, sig []byte, err error) {
	switch n := len(e.raw.Signatures); {
	case n == 0:
		return nil, nil, errors.New("envelope has no signature")
	case n > 1:
		return nil, nil, fmt.Errorf("envelope has %d signatures, expected one", n)
	}
	if e.raw.PayloadType != payloadType {
		return nil, nil, fmt.Errorf("payload type is %q, expected %q", e.raw.PayloadType, payloadType)
	}
	if e.raw.Payload == "" {
		return nil, nil, errors.New("envelope payload is empty")
	}
	if e.raw.Signatures[0].Sig == "" {
		return nil, nil, errors.New("signature is empty")
	}

	if payload, err = b64.DecodeString(e.raw.Payload); err != nil {
		return nil, nil, fmt.Errorf("payload is not base64: %w", err)
	}
	if sig, err = b64.DecodeString(e.raw.Signatures[0].Sig); err != nil {
		return nil, nil, fmt.Errorf("signature is not base64: %w", err)
	}
	return payload, sig, nil
}

// PayloadType returns the DSSE payload type.
func (e *Envelope) PayloadType() string {
	return e.raw.PayloadType
}

// Raw returns the go-securesystemslib envelope.
func (e *Envelope) Raw() *sslibdsse.Envelope {
	return e.raw
}
