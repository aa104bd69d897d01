package nat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	// MappingLifetime is the lease asked of the router.
	MappingLifetime = 20 * time.Minute
	// RefreshInterval is how often the owner should call Refresh to keep the
	// lease alive.
	RefreshInterval = 15 * time.Minute
	// portAttempts is how many consecutive external ports are tried.
	portAttempts = 10
)

// ErrMappingClosed is returned by Refresh after Close.
var ErrMappingClosed = errors.New("port mapping closed")

// Mapping is one TCP port forwarded on a router. It is owned by whoever created
// it and released with Close.
type Mapping struct {
	mx           sync.Mutex
	nat          NAT
	internalPort int
	externalPort int
	description  string
	externalIP   net.IP
	closed       bool
}

// Map asks n to forward an external port to the local port. When the router
// refuses the port the following ones are tried.
func Map(ctx context.Context, n NAT, port int, description string) (m *Mapping, e error) {
	lifetime := int(MappingLifetime / time.Second)
	for i := 0; i < portAttempts; i++ {
		if e = ctx.Err(); e != nil {
			return
		}
		var mapped int
		if mapped, e = n.AddPortMapping("tcp", port+i, port, description, lifetime); e != nil {
			D.F("%v refused external port %d: %v", n, port+i, e)
			continue
		}
		m = &Mapping{
			nat:          n,
			internalPort: port,
			externalPort: mapped,
			description:  description,
		}
		if m.externalIP, e = n.GetExternalAddress(); e != nil {
			W.Ln("mapped port", mapped, "but could not read external address:", e)
			e = nil
		}
		I.F("mapped external port %d to local port %d via %v", mapped, port, n)
		return
	}
	return nil, fmt.Errorf("no external port in [%d, %d) could be mapped: %w", port, port+portAttempts, e)
}

// ExternalIP is the address the router reported, nil if it did not.
func (m *Mapping) ExternalIP() net.IP {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.externalIP
}

// ExternalPort is the port peers outside the NAT connect to.
func (m *Mapping) ExternalPort() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.externalPort
}

// Refresh renews the lease and rereads the external address.
func (m *Mapping) Refresh() (e error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.closed {
		return ErrMappingClosed
	}
	var mapped int
	if mapped, e = m.nat.AddPortMapping(
		"tcp", m.externalPort, m.internalPort, m.description, int(MappingLifetime/time.Second),
	); E.Chk(e) {
		return
	}
	m.externalPort = mapped
	var ip net.IP
	if ip, e = m.nat.GetExternalAddress(); E.Chk(e) {
		return
	}
	m.externalIP = ip
	return
}

// Close removes the mapping from the router. Calling it again does nothing.
func (m *Mapping) Close() (e error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if e = m.nat.DeletePortMapping("tcp", m.externalPort, m.internalPort); E.Chk(e) {
		return
	}
	D.Ln("cleared port mapping", m.externalPort)
	return
}
