// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package operator runs the clerks of the post office.
//
// An operator is bound to one service for its whole life and to a
// counter of that service day by day. Each day it waits for a free
// counter (Waiting), serves tickets from its service queue (Working),
// may take one of the simulation's limited breaks (OnBreak) and stops
// when the office closes (Finished).
package operator
