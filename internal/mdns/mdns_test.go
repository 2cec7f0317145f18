package mdns

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestHostFromEntry(t *testing.T) {
	e := zeroconf.NewServiceEntry(`fmcw\ on\ bench`, ServiceType, domain)
	e.HostName = "bench.local."
	e.Port = 8080
	e.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	e.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
	e.Text = []string{"session=abc"}

	h := hostFromEntry(e)
	if h.Instance != "fmcw on bench" {
		t.Fatalf("unexpected instance %q", h.Instance)
	}
	if len(h.Addresses) != 2 || !h.Addresses[0].Equal(net.ParseIP("192.168.1.20")) {
		t.Fatalf("expected IPv4 address first, got %v", h.Addresses)
	}
	if h.URL() != "http://192.168.1.20:8080" {
		t.Fatalf("unexpected url %q", h.URL())
	}
	e.Text[0] = "mutated"
	if h.TXT[0] != "session=abc" {
		t.Fatal("expected TXT records to be copied")
	}
}

func TestURLFallsBackToHostname(t *testing.T) {
	h := Host{Hostname: "bench.local.", Port: 9000, Addresses: []net.IP{net.ParseIP("fe80::1")}}
	if got := h.URL(); got != "http://bench.local:9000" {
		t.Fatalf("unexpected url %q", got)
	}
}
