package addrmgr

import (
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

const (
	// MaxAddresses identifies the maximum number of addresses that the address
	// book will track.
	MaxAddresses = 2500
	// AddressesPerAsk is the most addresses served in answer to a getaddr.
	AddressesPerAsk = wire.MaxAddrPerMsg
	// NeedAddresses is the book size below which the node asks peers for more.
	NeedAddresses = 50
)

// KnownAddress is an entry of the address book. HasServices is false when the
// entry was learned without a service field, such entries are not gossiped.
type KnownAddress struct {
	IP          net.IP
	Port        uint16
	Timestamp   time.Time
	Services    wire.ServiceFlag
	HasServices bool
}

// Key returns the ip:port form the book is indexed by.
func (ka KnownAddress) Key() string {
	return Key(ka.IP, ka.Port)
}

// NetAddress converts the entry into its wire form.
func (ka KnownAddress) NetAddress() *wire.NetAddress {
	return wire.NewNetAddressTimestamp(ka.Timestamp, ka.Services, ka.IP, ka.Port)
}

// FromNetAddress builds an entry from a gossiped address.
func FromNetAddress(na *wire.NetAddress) KnownAddress {
	return KnownAddress{
		IP:          na.IP,
		Port:        na.Port,
		Timestamp:   na.Timestamp,
		Services:    na.Services,
		HasServices: true,
	}
}

// Key returns a string key in the form of ip:port.
func Key(ip net.IP, port uint16) string {
	return net.JoinHostPort(ip.String(), strconv.FormatUint(uint64(port), 10))
}

// AddrBook is a capacity bounded set of known peer addresses.
type AddrBook struct {
	entries map[string]*KnownAddress
	// order is the insertion order of keys, it drives Candidates.
	order []string
}

// NewAddrBook returns an empty address book.
func NewAddrBook() *AddrBook {
	return &AddrBook{entries: make(map[string]*KnownAddress)}
}

// Add inserts or overwrites an entry. A new key is dropped when the book is
// full, and the return is false.
func (b *AddrBook) Add(ka KnownAddress) bool {
	key := ka.Key()
	if old, ok := b.entries[key]; ok {
		*old = ka
		T.Ln("updated known address", key)
		return true
	}
	if len(b.entries) >= MaxAddresses {
		T.Ln("max addresses of", MaxAddresses, "reached, dropping", key)
		return false
	}
	b.entries[key] = &ka
	b.order = append(b.order, key)
	T.F("added new address %s for a total of %d addresses", key, len(b.entries))
	return true
}

// Remove deletes the entry with the given ip:port key, if any.
func (b *AddrBook) Remove(key string) bool {
	if _, ok := b.entries[key]; !ok {
		return false
	}
	delete(b.entries, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the entry for key.
func (b *AddrBook) Get(key string) (KnownAddress, bool) {
	if ka, ok := b.entries[key]; ok {
		return *ka, true
	}
	return KnownAddress{}, false
}

// Len is the number of known addresses.
func (b *AddrBook) Len() int {
	return len(b.entries)
}

// Full reports whether new keys are being dropped.
func (b *AddrBook) Full() bool {
	return len(b.entries) >= MaxAddresses
}

// NeedMoreAddresses returns whether the node should ask peers for addresses.
func (b *AddrBook) NeedMoreAddresses() bool {
	return len(b.entries) < NeedAddresses
}

// AddressCache returns up to max entries that carry services, freshest first.
func (b *AddrBook) AddressCache(max int) []*wire.NetAddress {
	list := make([]*KnownAddress, 0, len(b.entries))
	for _, ka := range b.entries {
		if !ka.HasServices {
			continue
		}
		list = append(list, ka)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Key() > list[j].Key()
		}
		return list[i].Timestamp.After(list[j].Timestamp)
	})
	if len(list) > max {
		list = list[:max]
	}
	out := make([]*wire.NetAddress, len(list))
	for i, ka := range list {
		out[i] = ka.NetAddress()
	}
	return out
}

// Candidates returns the keys in the order they were first learned.
func (b *AddrBook) Candidates() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Snapshot returns a copy of every entry in insertion order.
func (b *AddrBook) Snapshot() []KnownAddress {
	out := make([]KnownAddress, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, *b.entries[k])
	}
	return out
}

// Load adds every entry of list, subject to the capacity bound. It returns the
// number of entries that were kept.
func (b *AddrBook) Load(list []KnownAddress) (n int) {
	for _, ka := range list {
		if b.Add(ka) {
			n++
		}
	}
	return
}
