// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shm is the shared state of the post office: service counters
// and the operators seated at them, the request arena, one ring queue
// of slot indices per service, statistics and the process table.
//
// Nothing in a Region is reachable without proof of holding the lock
// that protects it. Each accessor takes a *sem.Guard and panics if the
// guard is for a different lock, so a locking mistake fails loudly in
// tests instead of racing quietly in production.
//
// Slot fields are protected by the lock of the slot's service once the
// slot has been handed to the issuer. Before that, between Allocate
// and the message send, the slot belongs to the user who allocated it.
package shm
