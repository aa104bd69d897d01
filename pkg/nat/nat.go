// Package nat opens the listening port of a node on the home router, through
// UPnP or NAT-PMP, and learns the external address from it.
package nat

import (
	"context"
	"errors"
	"net"
	"time"
)

// ErrNoGateway is returned by Discover when no protocol found a router.
var ErrNoGateway = errors.New("no UPnP or NAT-PMP gateway found")

// DiscoverTimeout bounds Discover when the context has no deadline.
const DiscoverTimeout = 5 * time.Second

// NAT is an interface representing a NAT traversal options for example UPNP or
// NAT-PMP. It provides methods to query and manipulate this traversal to allow
// access to services.
type NAT interface {
	// GetExternalAddress gets the external address from outside the NAT.
	GetExternalAddress() (addr net.IP, e error)
	// AddPortMapping adds a port mapping for protocol ("udp" or "tcp") from
	// external port to internal port with description lasting for lifetime
	// seconds.
	AddPortMapping(
		protocol string, externalPort, internalPort int, description string, lifetime int,
	) (mappedExternalPort int, e error)
	// DeletePortMapping removes a previously added port mapping from external
	// port to internal port.
	DeletePortMapping(protocol string, externalPort, internalPort int) (e error)
	// String names the protocol and the gateway.
	String() string
}

// Discover searches the local network for a router that speaks UPnP or NAT-PMP
// and returns the first one that answers.
func Discover(ctx context.Context) (n NAT, e error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DiscoverTimeout)
		defer cancel()
	}
	type result struct {
		nat NAT
		err error
	}
	finders := []func(context.Context) (NAT, error){discoverUPnP, discoverPMP}
	found := make(chan result, len(finders))
	for _, find := range finders {
		go func(find func(context.Context) (NAT, error)) {
			n, e := find(ctx)
			found <- result{n, e}
		}(find)
	}
	var errs []error
	for range finders {
		select {
		case r := <-found:
			if r.err == nil {
				D.Ln("found gateway", r.nat)
				return r.nat, nil
			}
			errs = append(errs, r.err)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, errors.Join(append([]error{ErrNoGateway}, errs...)...)
}
