// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

type frame struct {
	User    int       `cbor:"user"`
	Service int       `cbor:"service"`
	Slot    int       `cbor:"slot"`
	SentAt  time.Time `cbor:"sent_at"`
}

type widerFrame struct {
	User    int    `cbor:"user"`
	Service int    `cbor:"service"`
	Slot    int    `cbor:"slot"`
	Comment string `cbor:"comment"`
}

func TestRoundTripKeepsNanoseconds(t *testing.T) {
	sent := time.Date(2026, 3, 2, 9, 15, 0, 123456789, time.UTC)
	data, err := Marshal(frame{User: 3, Service: 1, Slot: 17, SentAt: sent})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded frame
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.SentAt.Equal(sent) {
		t.Fatalf("SentAt = %v, want %v", decoded.SentAt, sent)
	}
	if decoded.Slot != 17 {
		t.Fatalf("Slot = %d, want 17", decoded.Slot)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]int{"waiting": 4, "served": 9, "home": 1}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal produced different bytes for the same map")
		}
	}
}

func TestUnmarshalStrictRejectsUnknownFields(t *testing.T) {
	data, err := Marshal(widerFrame{User: 1, Comment: "late"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var lenient frame
	if err := Unmarshal(data, &lenient); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	var strict frame
	if err := UnmarshalStrict(data, &strict); err == nil {
		t.Fatal("UnmarshalStrict accepted an unknown field")
	}
}

func TestUnmarshalStrictRejectsDuplicateKeys(t *testing.T) {
	// {"user": 1, "user": 2}
	data := []byte{0xa2, 0x64, 'u', 's', 'e', 'r', 0x01, 0x64, 'u', 's', 'e', 'r', 0x02}

	var lenient frame
	if err := Unmarshal(data, &lenient); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	var strict frame
	if err := UnmarshalStrict(data, &strict); err == nil {
		t.Fatal("UnmarshalStrict accepted a duplicate key")
	}
}

func TestStreamEncoderDecoder(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for slot := range 3 {
		if err := encoder.Encode(frame{Slot: slot}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for want := range 3 {
		var decoded frame
		if err := decoder.Decode(&decoded); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if decoded.Slot != want {
			t.Fatalf("Slot = %d, want %d", decoded.Slot, want)
		}
	}
}
