// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"

	"github.com/bureau-foundation/postoffice/lib/director"
)

// Actions served on the status socket.
const (
	ActionStatus    = "status"
	ActionTerminate = "terminate"
)

// Office is the part of a running simulation the status socket
// exposes. *director.Director implements it.
type Office interface {
	Snapshot(ctx context.Context) (director.Snapshot, error)
	Terminate()
}

// RegisterOffice installs the status and terminate actions.
func RegisterOffice(server *SocketServer, office Office) {
	server.Handle(ActionStatus, func(ctx context.Context, _ []byte) (any, error) {
		return office.Snapshot(ctx)
	})
	server.Handle(ActionTerminate, func(ctx context.Context, _ []byte) (any, error) {
		office.Terminate()
		return nil, nil
	})
}
