package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
)

func TestRelayFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "studio-mac._sparkboard._tcp.local.",
		Host:       "studio-mac.local.",
		AddrV4:     net.IPv4(192, 168, 1, 20),
		Port:       5000,
		InfoFields: []string{"sparkboard"},
	}

	relay, ok := relayFromEntry(entry)
	assert.True(t, ok)
	assert.Equal(t, Relay{
		Instance: "studio-mac",
		Host:     "studio-mac.local",
		Addr:     "192.168.1.20:5000",
		Info:     []string{"sparkboard"},
	}, relay)
}

func TestRelayFromEntryRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
	}{
		{"nil", nil},
		{"no port", &mdns.ServiceEntry{Name: "x._sparkboard._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 1)}},
		{"no address", &mdns.ServiceEntry{Name: "x._sparkboard._tcp.local.", Port: 5000}},
		{"other service", &mdns.ServiceEntry{Name: "x._localboard._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 1), Port: 5000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := relayFromEntry(tt.entry)
			assert.False(t, ok)
		})
	}
}

func TestRelayFromEntryIPv6(t *testing.T) {
	relay, ok := relayFromEntry(&mdns.ServiceEntry{
		Name:   "x._sparkboard._tcp.local.",
		AddrV6: net.ParseIP("fe80::1"),
		Port:   5000,
	})
	assert.True(t, ok)
	assert.Equal(t, "[fe80::1]:5000", relay.Addr)
}
