package wire

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// maxNetAddressPayload returns the max payload size for a bitcoin NetAddress:
// timestamp 4 bytes + services 8 bytes + ip 16 bytes + port 2 bytes.
func maxNetAddressPayload(pver uint32) uint32 {
	return 30
}

// v4InV6Prefix is the prefix of an IPv4 address carried in the 16 byte field.
var v4InV6Prefix = [12]byte{10: 0xff, 11: 0xff}

// NetAddress defines information about a peer on the network including the time
// it was last seen, the services it supports, its IP address, and port.
//
// The network is restricted to IPv4, the IP is always held in its 4 byte form.
type NetAddress struct {
	// Last time the address was seen. This is encoded as a uint32 on the wire
	// and therefore is limited to 2106. This field is not present in the version
	// message.
	Timestamp time.Time
	// Bitfield which identifies the services supported by the address.
	Services ServiceFlag
	// IP address of the peer.
	IP net.IP
	// Port the peer is using. This is encoded in big endian on the wire which
	// differs from most everything else.
	Port uint16
}

// HasService returns whether the specified service is supported by the address.
func (na *NetAddress) HasService(service ServiceFlag) bool {
	return na.Services&service == service
}

// AddService adds service as a supported service by the peer generating the
// message.
func (na *NetAddress) AddService(service ServiceFlag) {
	na.Services |= service
}

// Key returns the ip:port form used to index addresses.
func (na *NetAddress) Key() string {
	return net.JoinHostPort(na.IP.String(), strconv.Itoa(int(na.Port)))
}

func (na *NetAddress) String() string {
	return na.Key()
}

// NewNetAddressIPPort returns a new NetAddress using the provided IP, port, and
// supported services with defaults for the remaining fields.
func NewNetAddressIPPort(ip net.IP, port uint16, services ServiceFlag) *NetAddress {
	return NewNetAddressTimestamp(time.Now(), services, ip, port)
}

// NewNetAddressTimestamp returns a new NetAddress using the provided timestamp,
// IP, port, and supported services. The timestamp is rounded to single second
// precision.
func NewNetAddressTimestamp(
	timestamp time.Time, services ServiceFlag, ip net.IP, port uint16,
) *NetAddress {
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	return &NetAddress{
		Timestamp: time.Unix(timestamp.Unix(), 0),
		Services:  services,
		IP:        ip,
		Port:      port,
	}
}

// NewNetAddress returns a new NetAddress using the provided TCP address and
// supported services with defaults for the remaining fields.
func NewNetAddress(addr *net.TCPAddr, services ServiceFlag) *NetAddress {
	return NewNetAddressIPPort(addr.IP, uint16(addr.Port), services)
}

// ParseNetAddress parses an ip:port string into a NetAddress.
func ParseNetAddress(hostport string, services ServiceFlag) (na *NetAddress, e error) {
	var host, port string
	if host, port, e = net.SplitHostPort(hostport); e != nil {
		return
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return nil, fmt.Errorf("%q is not an IPv4 address", host)
	}
	var p uint64
	if p, e = strconv.ParseUint(port, 10, 16); e != nil {
		return
	}
	return NewNetAddressIPPort(ip, uint16(p), services), nil
}

// readNetAddress reads an encoded NetAddress from r depending on the protocol
// version and whether or not the timestamp is included per ts. The IPv4 address
// is taken from the last four bytes of the address field.
func readNetAddress(r io.Reader, pver uint32, na *NetAddress, ts bool) (e error) {
	var ip [16]byte
	if ts {
		if e = readElement(r, (*uint32Time)(&na.Timestamp)); e != nil {
			return
		}
	}
	if e = readElements(r, &na.Services, &ip); e != nil {
		return
	}
	var port uint16
	if port, e = binarySerializer.Uint16(r, bigEndian); e != nil {
		return
	}
	na.IP = net.IP(append([]byte(nil), ip[12:]...))
	na.Port = port
	return
}

// writeNetAddress serializes a NetAddress to w depending on the protocol version
// and whether or not the timestamp is included per ts.
func writeNetAddress(w io.Writer, pver uint32, na *NetAddress, ts bool) (e error) {
	if ts {
		if e = writeElement(w, uint32(na.Timestamp.Unix())); e != nil {
			return
		}
	}
	ip4 := na.IP.To4()
	if ip4 == nil {
		return messageError(
			"writeNetAddress", fmt.Sprintf("%v is not an IPv4 address", na.IP),
		)
	}
	var ip [16]byte
	copy(ip[:], v4InV6Prefix[:])
	copy(ip[12:], ip4)
	if e = writeElements(w, na.Services, ip); e != nil {
		return
	}
	return binarySerializer.PutUint16(w, bigEndian, na.Port)
}
