// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mq is the bounded FIFO that carries ticket requests from
// users to the ticket issuer. Receive blocks without polling until a
// frame arrives, the receiver is cancelled or the queue is removed.
package mq
