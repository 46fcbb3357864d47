//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package locator holds the identity records of streams, partitions and
// deltas. Every locator has a canonical serialization and a SHA-1 digest of
// it; two locators are equal iff their canonical forms are byte-identical.
package locator

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const DigestSize = sha1.Size

// Digest is the identity hash of a locator.
type Digest [DigestSize]byte

func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Locator is implemented by every locator kind.
type Locator interface {
	Canonical() []byte
	Digest() Digest
}

// Hash returns the identity digest of l.
func Hash(l Locator) Digest {
	return l.Digest()
}

// Equal reports whether a and b identify the same entity.
func Equal(a, b Locator) bool {
	return string(a.Canonical()) == string(b.Canonical())
}

func digestOf(in []byte) Digest {
	return Digest(sha1.Sum(in))
}

// nullable maps the empty string to a JSON null, so that absent and null
// optional fields canonicalize identically.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func mustMarshal(v interface{}) []byte {
	// only maps of strings, nil and string slices reach this point, which
	// json can always encode
	out, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("canonicalize locator: %v", err))
	}
	return out
}
