// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package office

// RequestStatus is the state of a request slot.
type RequestStatus uint8

const (
	RequestUndefined RequestStatus = iota
	RequestPending
	RequestProcessing
	RequestCompleted
	RequestRejected
)

func (s RequestStatus) String() string {
	switch s {
	case RequestUndefined:
		return "undefined"
	case RequestPending:
		return "pending"
	case RequestProcessing:
		return "processing"
	case RequestCompleted:
		return "completed"
	case RequestRejected:
		return "rejected"
	}
	return "unknown"
}

// OperatorStatus is the state of an operator record.
type OperatorStatus uint8

const (
	OperatorUndefined OperatorStatus = iota
	OperatorWorking
	OperatorWaiting
	OperatorOnBreak
	OperatorFinished
)

func (s OperatorStatus) String() string {
	switch s {
	case OperatorUndefined:
		return "undefined"
	case OperatorWorking:
		return "working"
	case OperatorWaiting:
		return "waiting"
	case OperatorOnBreak:
		return "on-break"
	case OperatorFinished:
		return "finished"
	}
	return "unknown"
}

// HomeReason says why a user who came to the office left without a
// ticket being served.
type HomeReason uint8

const (
	HomeNoService HomeReason = iota
	HomeRequestFailed
	HomeArrivedLate
	HomeRejected

	HomeReasonCount
)

func (r HomeReason) String() string {
	switch r {
	case HomeNoService:
		return "no-service"
	case HomeRequestFailed:
		return "request-failed"
	case HomeArrivedLate:
		return "arrived-late"
	case HomeRejected:
		return "rejected"
	}
	return "unknown"
}

// Kind is the role of a participant.
type Kind uint8

const (
	KindDirector Kind = iota
	KindIssuer
	KindOperator
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindDirector:
		return "director"
	case KindIssuer:
		return "issuer"
	case KindOperator:
		return "operator"
	case KindUser:
		return "user"
	}
	return "unknown"
}
