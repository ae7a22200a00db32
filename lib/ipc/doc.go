// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc bundles the resources every participant attaches to.
//
// The director creates one Handles value with Create and destroys it
// with Destroy; the ticket issuer, operators and users receive it at
// spawn time and never create or remove anything themselves. The With*
// helpers take a lock, hand the matching shm view to a callback and
// release the lock on return, so a callback cannot leak a view past
// its critical section.
package ipc
