package nat

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"
)

type pmpNAT struct {
	gw     net.IP
	client *natpmp.Client
}

// discoverPMP asks the default gateway for its external address over NAT-PMP.
func discoverPMP(ctx context.Context) (n NAT, e error) {
	var gw net.IP
	if gw, e = gateway.DiscoverGateway(); e != nil {
		return
	}
	p := &pmpNAT{gw: gw, client: natpmp.NewClient(gw)}
	// The client blocks for up to its own timeout, run it aside so ctx wins.
	done := make(chan error, 1)
	go func() {
		_, e := p.client.GetExternalAddress()
		done <- e
	}()
	select {
	case e = <-done:
		if e != nil {
			return nil, fmt.Errorf("NAT-PMP gateway %v: %w", gw, e)
		}
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *pmpNAT) String() string {
	return fmt.Sprintf("NAT-PMP(%v)", n.gw)
}

func (n *pmpNAT) GetExternalAddress() (addr net.IP, e error) {
	var res *natpmp.GetExternalAddressResult
	if res, e = n.client.GetExternalAddress(); e != nil {
		return
	}
	ip := res.ExternalIPAddress
	return net.IPv4(ip[0], ip[1], ip[2], ip[3]).To4(), nil
}

func (n *pmpNAT) AddPortMapping(
	protocol string, externalPort, internalPort int, description string, lifetime int,
) (mappedExternalPort int, e error) {
	// NAT-PMP has no descriptions.
	var res *natpmp.AddPortMappingResult
	if res, e = n.client.AddPortMapping(
		strings.ToLower(protocol), internalPort, externalPort, lifetime,
	); e != nil {
		return
	}
	return int(res.MappedExternalPort), nil
}

func (n *pmpNAT) DeletePortMapping(protocol string, externalPort, internalPort int) (e error) {
	// A lifetime of zero removes the mapping.
	_, e = n.client.AddPortMapping(strings.ToLower(protocol), internalPort, 0, 0)
	return
}
