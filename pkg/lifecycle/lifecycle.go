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

// Package lifecycle tracks the phases of one sign or verify operation.
//
//	sign:   Idle -> Enumerating -> ManifestBuilt -> Signed   -> Packaged -> Terminal
//	verify: Idle -> Enumerating -> ManifestBuilt -> Verified -> Reported -> Terminal
//
// Any state may fail straight to Terminal. A Machine is owned by a single
// operation and is not safe for concurrent use.
package lifecycle

import (
	"fmt"

	"github.com/sigstore/pass-signing/pkg/logging"
	"github.com/sigstore/pass-signing/pkg/metrics"
)

// State is an orchestrator phase.
type State int

const (
	Idle State = iota
	Enumerating
	ManifestBuilt
	Signed
	Packaged
	Verified
	Reported
	Terminal
)

var stateNames = [...]string{
	Idle:          "Idle",
	Enumerating:   "Enumerating",
	ManifestBuilt: "ManifestBuilt",
	Signed:        "Signed",
	Packaged:      "Packaged",
	Verified:      "Verified",
	Reported:      "Reported",
	Terminal:      "Terminal",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Operation selects the transition graph.
type Operation int

const (
	OpSign Operation = iota
	OpVerify
)

func (o Operation) String() string {
	if o == OpSign {
		return "sign"
	}
	return "verify"
}

var graphs = map[Operation]map[State]State{
	OpSign: {
		Idle:          Enumerating,
		Enumerating:   ManifestBuilt,
		ManifestBuilt: Signed,
		Signed:        Packaged,
		Packaged:      Terminal,
	},
	OpVerify: {
		Idle:          Enumerating,
		Enumerating:   ManifestBuilt,
		ManifestBuilt: Verified,
		Verified:      Reported,
		Reported:      Terminal,
	},
}

// Machine enforces the transition graph of one operation.
type Machine struct {
	op      Operation
	state   State
	err     error
	history []State
	logger  logging.Logger
	metrics *metrics.Metrics
}

// New returns a machine in Idle. logger and m may be nil.
func New(op Operation, logger logging.Logger, m *metrics.Metrics) *Machine {
	return &Machine{
		op:      op,
		state:   Idle,
		history: []State{Idle},
		logger:  logging.EnsureLogger(logger).WithField("operation", op.String()),
		metrics: m,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// History returns every state entered, starting with Idle.
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

// Err returns the failure that terminated the machine, if any.
func (m *Machine) Err() error { return m.err }

// Failed reports whether the machine terminated through Fail.
func (m *Machine) Failed() bool { return m.err != nil }

// Advance moves to the next state. to must be the single successor of the
// current state in the operation's graph.
func (m *Machine) Advance(to State) error {
	next, ok := graphs[m.op][m.state]
	if !ok || next != to {
		return fmt.Errorf("invalid %s transition %s -> %s", m.op, m.state, to)
	}
	m.enter(to)
	return nil
}

// Fail records err and jumps to Terminal. Failing a terminated machine is a
// no-op, the first failure wins.
func (m *Machine) Fail(err error) {
	if m.state == Terminal {
		return
	}
	if err == nil {
		err = fmt.Errorf("%s failed in state %s", m.op, m.state)
	}
	m.err = err
	m.logger.Debug("%s failed in state %s: %v", m.op, m.state, err)
	m.enter(Terminal)
}

func (m *Machine) enter(to State) {
	from := m.state
	m.state = to
	m.history = append(m.history, to)
	m.logger.Debug("state %s -> %s", from, to)
	m.metrics.ObserveTransition(from.String(), to.String())
}
