// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service exposes a running simulation on a Unix socket.
//
// The protocol is one CBOR request per connection: the client writes
// a map with an "action" field, the server answers with a [Response]
// envelope and closes. [RegisterOffice] installs the two actions the
// post office serves: "status" returns a [director.Snapshot] and
// "terminate" asks the director to stop the run the way an interrupt
// would. [Client] is the matching caller used by postoffice-status.
package service
