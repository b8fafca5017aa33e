package core

import (
	"testing"
)

// TestNATSConfig tests the NATSConfig structure.
func TestNATSConfig(t *testing.T) {
	config := NATSConfig{
		Enabled:       true,
		URL:           "nats://127.0.0.1:4222",
		EventSubject:  "streammon.events",
		ReportSubject: "streammon.reports",
	}

	if !config.Enabled {
		t.Errorf("Expected Enabled to be true, got %v", config.Enabled)
	}

	if config.URL != "nats://127.0.0.1:4222" {
		t.Errorf("Expected URL to be 'nats://127.0.0.1:4222', got '%s'", config.URL)
	}

	if config.EventSubject != "streammon.events" {
		t.Errorf("Expected EventSubject to be 'streammon.events', got '%s'", config.EventSubject)
	}
}

// TestPublisherTypes tests the publisher type enumeration.
func TestPublisherTypes(t *testing.T) {
	types := PublisherTypes()
	if len(types) != int(NumberOfPublishers) {
		t.Fatalf("Expected %d publisher types, got %d", NumberOfPublishers, len(types))
	}
	if types[0] != PublisherUnknown {
		t.Errorf("Expected first type to be unknown, got %s", types[0])
	}

	for _, pt := range types {
		parsed, err := ParsePublisherType(pt.String())
		if err != nil {
			t.Errorf("ParsePublisherType(%q) failed: %v", pt.String(), err)
		}
		if parsed != pt {
			t.Errorf("Expected %s, got %s", pt, parsed)
		}
	}

	if NumberOfPublishers.Valid() {
		t.Error("Expected NumberOfPublishers to be invalid")
	}
	if _, err := ParsePublisherType("carrier-pigeon"); err == nil {
		t.Error("Expected error for unknown publisher name")
	}
}

// TestProviderTypes tests provider type parsing.
func TestProviderTypes(t *testing.T) {
	p, err := ParseProviderType("RTMP")
	if err != nil {
		t.Fatalf("ParseProviderType failed: %v", err)
	}
	if p != ProviderRtmp {
		t.Errorf("Expected rtmp, got %s", p)
	}
	if p, _ := ParseProviderType(""); p != ProviderUnknown {
		t.Errorf("Expected unknown for empty name, got %s", p)
	}
	if _, err := ParseProviderType("smoke-signal"); err == nil {
		t.Error("Expected error for unknown provider name")
	}
}

// TestStreamDescriptorOrigin tests origin handling on descriptors.
func TestStreamDescriptorOrigin(t *testing.T) {
	s := StreamDescriptor{ID: 1, Name: "cam"}
	if _, ok := s.Origin(); ok {
		t.Error("Expected originating stream to have no origin")
	}

	r := NewRelayDescriptor(2, "cam_relay", 1)
	origin, ok := r.Origin()
	if !ok || origin != 1 {
		t.Errorf("Expected origin 1, got %d (set=%v)", origin, ok)
	}
}
