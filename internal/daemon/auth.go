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

package daemon

import (
	"context"

	"drivefs/internal/vfs"
)

// Authenticator resolves the identity of the caller of an operation.
type Authenticator interface {
	VerifyCaller(ctx context.Context) (vfs.Identity, error)
}

// StaticAuthenticator reports the same identity for every call.
type StaticAuthenticator struct {
	Identity vfs.Identity
}

func (a StaticAuthenticator) VerifyCaller(context.Context) (vfs.Identity, error) {
	if a.Identity == "" {
		return vfs.AnonymousIdentity, nil
	}
	return a.Identity, nil
}

type identityKey struct{}

// WithIdentity returns a context carrying the caller identity.
func WithIdentity(ctx context.Context, id vfs.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (vfs.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(vfs.Identity)
	return id, ok
}

// ContextAuthenticator reads the caller from the context. Calls without an
// identity are anonymous.
type ContextAuthenticator struct{}

func (ContextAuthenticator) VerifyCaller(ctx context.Context) (vfs.Identity, error) {
	if id, ok := IdentityFrom(ctx); ok && id != "" {
		return id, nil
	}
	return vfs.AnonymousIdentity, nil
}
