package netif

import (
	"net"
	"testing"

	"github.com/pkg/errors"
)

func candidates() []Candidate {
	return []Candidate{
		{Name: "lo", Display: "lo", IP: net.ParseIP("127.0.0.1")},
		{Name: "lo", Display: "lo", IP: net.ParseIP("::1")},
		{Name: "eth0", Display: "00:11:22:33:44:55", IP: net.ParseIP("192.168.1.20")},
		{Name: "eth0", Display: "00:11:22:33:44:55", IP: net.ParseIP("fe80::1")},
		{Name: "wlan0", Display: "66:77:88:99:aa:bb", IP: net.ParseIP("10.0.0.5")},
	}
}

func TestCandidateString(t *testing.T) {
	c := candidates()[2]
	if got := c.String(); got != "eth0 / 00:11:22:33:44:55 / 192.168.1.20" {
		t.Errorf("got %q", got)
	}
}

func TestSelect(t *testing.T) {
	cases := []struct {
		pattern string
		want    string
		wantErr error
	}{
		{"192.168.", "192.168.1.20", nil},
		{"wlan", "10.0.0.5", nil},
		{"127.0.0.1", "127.0.0.1", nil},
		{"eth0", "", ErrAmbiguous},
		{"lo", "", ErrAmbiguous},
		{"docker", "", ErrNoMatch},
	}
	for _, tc := range cases {
		t.Run(tc.pattern, func(t *testing.T) {
			c, err := Select(candidates(), tc.pattern)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if c.IP.String() != tc.want {
				t.Errorf("got %s, want %s", c.IP, tc.want)
			}
		})
	}
}

func TestListenAddrAllInterfaces(t *testing.T) {
	addr, err := ListenAddr("", "8080")
	if err != nil {
		t.Fatal(err)
	}
	if addr != ":8080" {
		t.Errorf("got %q", addr)
	}
}

func TestListenAddrLoopback(t *testing.T) {
	cands, err := List()
	if err != nil {
		t.Skipf("cannot enumerate interfaces: %v", err)
	}
	found := false
	for _, c := range cands {
		if c.IP.Equal(net.ParseIP("127.0.0.1")) {
			found = true
		}
	}
	if !found {
		t.Skip("no IPv4 loopback address")
	}
	addr, err := ListenAddr("127.0.0.1", "9000")
	if err != nil {
		t.Fatal(err)
	}
	if addr != "127.0.0.1:9000" {
		t.Errorf("got %q", addr)
	}
}
