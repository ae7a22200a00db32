// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the single CBOR configuration used across the
// post office.
//
// CBOR is the internal wire format: ticket-request frames on the
// message queue, the director's status socket, the configuration
// digest and the compressed run archive all go through this package.
// Encoding is Core Deterministic (RFC 8949 §4.2), so the same value
// always yields the same bytes; the configuration digest depends on
// that.
//
// Types that are only ever CBOR carry `cbor` struct tags. Types that
// are also written as JSON (the run-state marker) carry `json` tags,
// which fxamacker/cbor falls back to.
package codec
