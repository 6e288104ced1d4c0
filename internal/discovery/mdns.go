// Package discovery advertises relays on the local network and finds them.
package discovery

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD service relays register under.
const ServiceType = "_sparkboard._tcp"

// Relay is a relay found on the LAN.
type Relay struct {
	Instance string
	Host     string
	Addr     string // host:port to dial
	Info     []string
}

// Advertise announces a relay listening on port until the returned server is
// shut down. An empty instance falls back to the hostname.
func Advertise(instance string, port int, info ...string) (*mdns.Server, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}
	if len(info) == 0 {
		info = []string{"sparkboard"}
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

// Browse queries the LAN for timeout and returns the relays that answered,
// sorted by address.
func Browse(timeout time.Duration) ([]Relay, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	collected := make(chan []Relay, 1)

	go func() {
		seen := map[string]Relay{}
		for e := range entries {
			if r, ok := relayFromEntry(e); ok {
				seen[r.Addr] = r
			}
		}
		out := make([]Relay, 0, len(seen))
		for _, r := range seen {
			out = append(out, r)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
		collected <- out
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	relays := <-collected
	if err != nil {
		return relays, fmt.Errorf("mDNS query failed: %w", err)
	}
	return relays, nil
}

func relayFromEntry(e *mdns.ServiceEntry) (Relay, bool) {
	if e == nil || e.Port == 0 || !strings.Contains(e.Name, ServiceType) {
		return Relay{}, false
	}

	var ip net.IP
	switch {
	case e.AddrV4 != nil:
		ip = e.AddrV4
	case e.AddrV6 != nil:
		ip = e.AddrV6
	default:
		return Relay{}, false
	}

	instance, _, _ := strings.Cut(e.Name, "."+ServiceType)
	return Relay{
		Instance: instance,
		Host:     strings.TrimSuffix(e.Host, "."),
		Addr:     net.JoinHostPort(ip.String(), fmt.Sprint(e.Port)),
		Info:     e.InfoFields,
	}, true
}
