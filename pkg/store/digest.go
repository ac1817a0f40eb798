// Copyright 2025 AUTHORS
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

package store

import (
	"io"
	"os"

	digest "github.com/opencontainers/go-digest"
)

// DigestResourceID hashes the bytes at path with the canonical algorithm and
// returns a resource id of the form "sha256:<hex>", suitable for use as a
// Resource.ID or File.ResourceID. The store itself treats resource ids as
// opaque; this helper exists for callers who want content addressing by a
// verifiable digest rather than a caller-chosen string.
func DigestResourceID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d, err := digest.FromReader(f)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// VerifyResourceID reports whether the bytes at path hash to resourceID,
// when resourceID is a well-formed digest string. Callers that mint
// resource ids via DigestResourceID can use this to detect local bit rot
// before trusting a cached Resource.path.
func VerifyResourceID(path, resourceID string) (bool, error) {
	d, err := digest.Parse(resourceID)
	if err != nil {
		return false, invalidInputf("resource id %q is not a valid digest: %v", resourceID, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	verifier := d.Verifier()
	if _, err := io.Copy(verifier, f); err != nil {
		return false, err
	}
	return verifier.Verified(), nil
}
