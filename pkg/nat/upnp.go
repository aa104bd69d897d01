package nat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/huin/goupnp"
	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/huin/goupnp/dcps/internetgateway2"
)

// upnpClient is the subset of the generated WANIPConnection and
// WANPPPConnection clients of both IGD versions that port mapping needs.
type upnpClient interface {
	GetExternalIPAddress() (NewExternalIPAddress string, err error)
	AddPortMapping(
		NewRemoteHost string, NewExternalPort uint16, NewProtocol string,
		NewInternalPort uint16, NewInternalClient string, NewEnabled bool,
		NewPortMappingDescription string, NewLeaseDuration uint32,
	) (err error)
	DeletePortMapping(NewRemoteHost string, NewExternalPort uint16, NewProtocol string) (err error)
}

type upnpNAT struct {
	client  upnpClient
	service string
	ourIP   string
}

// discoverUPnP tries the IGDv2 IP and PPP connection services, then IGDv1.
func discoverUPnP(ctx context.Context) (n NAT, e error) {
	type finder struct {
		name string
		find func(ctx context.Context) ([]upnpClient, []*goupnp.ServiceClient, error)
	}
	finders := []finder{
		{"IGDv2-IP1", func(ctx context.Context) (c []upnpClient, s []*goupnp.ServiceClient, e error) {
			cs, _, e := internetgateway2.NewWANIPConnection1ClientsCtx(ctx)
			for _, x := range cs {
				c, s = append(c, x), append(s, &x.ServiceClient)
			}
			return
		}},
		{"IGDv2-PPP1", func(ctx context.Context) (c []upnpClient, s []*goupnp.ServiceClient, e error) {
			cs, _, e := internetgateway2.NewWANPPPConnection1ClientsCtx(ctx)
			for _, x := range cs {
				c, s = append(c, x), append(s, &x.ServiceClient)
			}
			return
		}},
		{"IGDv1-IP1", func(ctx context.Context) (c []upnpClient, s []*goupnp.ServiceClient, e error) {
			cs, _, e := internetgateway1.NewWANIPConnection1ClientsCtx(ctx)
			for _, x := range cs {
				c, s = append(c, x), append(s, &x.ServiceClient)
			}
			return
		}},
	}
	for _, f := range finders {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		clients, services, e := f.find(ctx)
		if e != nil {
			T.Ln("UPnP", f.name, "search failed:", e)
			continue
		}
		for i, c := range clients {
			// A gateway that cannot tell its external address is no use to us.
			if _, e = c.GetExternalIPAddress(); e != nil {
				continue
			}
			ourIP := ""
			if local := services[i].LocalAddr(); local != nil {
				ourIP = local.String()
			} else if ourIP, e = getOurIP(); e != nil {
				continue
			}
			return &upnpNAT{client: c, service: f.name, ourIP: ourIP}, nil
		}
	}
	return nil, errors.New("no UPnP internet gateway device found")
}

// getOurIP returns a best guess at what the local IP is.
func getOurIP() (ip string, e error) {
	var hostname string
	if hostname, e = os.Hostname(); E.Chk(e) {
		return
	}
	var addrs []string
	if addrs, e = net.LookupHost(hostname); E.Chk(e) {
		return
	}
	return addrs[0], nil
}

func (n *upnpNAT) String() string {
	return "UPnP " + n.service
}

// GetExternalAddress implements the NAT interface by fetching the external IP
// from the UPnP router.
func (n *upnpNAT) GetExternalAddress() (addr net.IP, e error) {
	var s string
	if s, e = n.client.GetExternalIPAddress(); e != nil {
		return
	}
	if addr = net.ParseIP(s); addr == nil {
		return nil, fmt.Errorf("unable to parse ip address %q", s)
	}
	return
}

// AddPortMapping implements the NAT interface by setting up a port forwarding
// from the UPnP router to the local machine with the given ports and protocol.
func (n *upnpNAT) AddPortMapping(
	protocol string, externalPort, internalPort int, description string, lifetime int,
) (mappedExternalPort int, e error) {
	if e = n.client.AddPortMapping(
		"", uint16(externalPort), strings.ToUpper(protocol), uint16(internalPort),
		n.ourIP, true, description, uint32(lifetime),
	); e != nil {
		return
	}
	return externalPort, nil
}

// DeletePortMapping implements the NAT interface by removing up a port
// forwarding from the UPnP router to the local machine.
func (n *upnpNAT) DeletePortMapping(protocol string, externalPort, internalPort int) (e error) {
	return n.client.DeletePortMapping("", uint16(externalPort), strings.ToUpper(protocol))
}
