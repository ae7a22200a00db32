// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package office defines the vocabulary shared by every participant:
// participant and service identifiers, the service catalog, the
// status enums of request slots and operators, and the message a user
// sends to the ticket issuer.
package office
