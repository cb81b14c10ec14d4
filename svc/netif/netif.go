// Package netif picks the local address to listen on from a loose
// description such as "eth0", "192.168." or "wlan".
package netif

import (
	"net"
	"strings"

	"pastebin/svc/util"

	"github.com/pkg/errors"
)

var (
	ErrNoMatch   = errors.New("no interface address matches")
	ErrAmbiguous = errors.New("more than one interface address matches")
)

// Candidate is one address of one local interface.
type Candidate struct {
	Name    string
	Display string
	IP      net.IP
}

// String is the text a bind pattern is matched against: "name / display / address".
func (c Candidate) String() string {
	return c.Name + " / " + c.Display + " / " + c.IP.String()
}

// List enumerates every address of every local interface. Go does not expose
// a separate display name, so the hardware address stands in when present.
func List() ([]Candidate, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errors.Wrap(err, "list interfaces")
	}
	var out []Candidate
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			util.Warn().Err(err).Str("interface", iface.Name).Msg("cannot read interface addresses")
			continue
		}
		display := iface.Name
		if len(iface.HardwareAddr) > 0 {
			display = iface.HardwareAddr.String()
		}
		for _, a := range addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil {
				continue
			}
			out = append(out, Candidate{Name: iface.Name, Display: display, IP: ip})
		}
	}
	return out, nil
}

// Select returns the single candidate whose description contains pattern.
func Select(cands []Candidate, pattern string) (Candidate, error) {
	var found []Candidate
	for _, c := range cands {
		util.Debug().Str("candidate", c.String()).Msg("interface address")
		if strings.Contains(c.String(), pattern) {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return Candidate{}, errors.Wrapf(ErrNoMatch, "%q", pattern)
	case 1:
		return found[0], nil
	default:
		names := make([]string, len(found))
		for i, c := range found {
			names[i] = c.IP.String()
		}
		return Candidate{}, errors.Wrapf(ErrAmbiguous, "%q: %s", pattern, strings.Join(names, ", "))
	}
}

// ListenAddr turns a bind pattern and port into a host:port. An empty pattern
// listens on every interface.
func ListenAddr(pattern, port string) (string, error) {
	if pattern == "" {
		return ":" + port, nil
	}
	cands, err := List()
	if err != nil {
		return "", err
	}
	c, err := Select(cands, pattern)
	if err != nil {
		return "", err
	}
	util.Info().Str("interface", c.String()).Msg("binding to interface address")
	return net.JoinHostPort(c.IP.String(), port), nil
}
