// Copyright 2024 DriveFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vfs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Clock supplies the current time. Tests substitute a frozen clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// IDGenerator produces record ids. Each id is the hex SHA-256 digest of the
// instance id, the current time in nanoseconds, the caller and a counter that
// increases on every call, so ids stay unique under a frozen clock.
type IDGenerator struct {
	instanceID string
	counter    uint64
	clock      Clock
}

// NewIDGenerator creates a generator seeded with the drive instance id.
func NewIDGenerator(instanceID string, clock Clock) *IDGenerator {
	if clock == nil {
		clock = systemClock{}
	}
	return &IDGenerator{instanceID: instanceID, clock: clock}
}

// Next returns a fresh id and advances the counter.
func (g *IDGenerator) Next(caller Identity) string {
	g.counter++
	seed := fmt.Sprintf("%s-%d-%s-%d", g.instanceID, g.clock.Now().UnixNano(), caller, g.counter)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// Counter returns the number of ids issued so far.
func (g *IDGenerator) Counter() uint64 {
	return g.counter
}

// InstanceID returns the context id mixed into every digest.
func (g *IDGenerator) InstanceID() string {
	return g.instanceID
}
