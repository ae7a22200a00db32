// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package office

import (
	"fmt"
	"time"
)

// ProcessID identifies one participant of the simulation. Zero means
// "nobody": an unbound counter or an unclaimed ticket.
type ProcessID int

// ServiceID indexes the service catalog.
type ServiceID int

// Service is one kind of business the office handles.
type Service struct {
	Name string `yaml:"name" cbor:"name"`

	// Prefix is the letter printed in front of ticket numbers.
	Prefix string `yaml:"prefix" cbor:"prefix"`

	// Minutes is the baseline service time in simulated minutes.
	Minutes float64 `yaml:"minutes" cbor:"minutes"`
}

// Catalog is the immutable ordered list of services.
type Catalog []Service

// DefaultCatalog is the service list of the reference office.
func DefaultCatalog() Catalog {
	return Catalog{
		{Name: "packages", Prefix: "P", Minutes: 10},
		{Name: "letters", Prefix: "L", Minutes: 8},
		{Name: "bancoposta", Prefix: "B", Minutes: 6},
		{Name: "bills", Prefix: "F", Minutes: 8},
		{Name: "financial", Prefix: "I", Minutes: 20},
		{Name: "watches", Prefix: "O", Minutes: 20},
	}
}

// Valid reports whether id names a service of the catalog.
func (c Catalog) Valid(id ServiceID) bool {
	return id >= 0 && int(id) < len(c)
}

// Label formats a ticket number for display, e.g. "P12".
func (c Catalog) Label(id ServiceID, number int) string {
	return fmt.Sprintf("%s%d", c[id].Prefix, number)
}

// Validate checks that the catalog is usable.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("service catalog is empty")
	}
	seen := make(map[string]bool, len(c))
	for index, service := range c {
		if service.Name == "" {
			return fmt.Errorf("service %d has no name", index)
		}
		if len(service.Prefix) != 1 {
			return fmt.Errorf("service %q: prefix must be a single character, got %q", service.Name, service.Prefix)
		}
		if seen[service.Prefix] {
			return fmt.Errorf("service %q: duplicate prefix %q", service.Name, service.Prefix)
		}
		seen[service.Prefix] = true
		if service.Minutes <= 0 {
			return fmt.Errorf("service %q: minutes must be positive", service.Name)
		}
	}
	return nil
}

// TicketRequestMessage travels from a user to the ticket issuer. It
// only points at the request slot the user already wrote; the slot is
// authoritative.
type TicketRequestMessage struct {
	User    ProcessID `cbor:"user"`
	Service ServiceID `cbor:"service"`
	Slot    int       `cbor:"slot"`
	SentAt  time.Time `cbor:"sent_at"`
}
