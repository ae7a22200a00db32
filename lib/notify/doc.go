// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify carries day-boundary, termination and wakeup
// notifications between participants.
//
// Every participant owns a Mailbox registered on the Bus under its
// participant id. Senders post Event bits; the owner drains them with
// a bounded Wait and then re-reads the shared state it cares about.
// Notifications are hints: a participant never acts on an event
// without re-checking the state, so a coalesced or missed event costs
// at most one wait timeout.
package notify
