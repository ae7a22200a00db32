// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package issuer is the ticket office of the post office.
//
// Users write a Pending request slot and send its index over the
// message queue. The issuer validates the slot, numbers it within its
// service, appends it to the service queue and marks it Completed,
// then wakes the operators working on that service and the user. While
// the office is closed every request is rejected.
package issuer
