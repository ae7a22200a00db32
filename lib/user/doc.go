// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package user runs the customers of the post office.
//
// Each day a user decides whether to go, picks a service, travels to
// the office and asks the issuer for a ticket. Whatever happens next
// ends up in exactly one statistics bucket: served, went home, no
// ticket, timed out or did not arrive.
package user
