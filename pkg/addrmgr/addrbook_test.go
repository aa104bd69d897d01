package addrmgr

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

func knownAddress(i int, ts time.Time) KnownAddress {
	return KnownAddress{
		IP:          net.IPv4(10, byte(i>>16), byte(i>>8), byte(i)).To4(),
		Port:        8333,
		Timestamp:   ts,
		Services:    wire.SFNodeNetwork,
		HasServices: true,
	}
}

func TestAddrBookCap(t *testing.T) {
	b := NewAddrBook()
	base := time.Unix(1700000000, 0)
	for i := 0; i < 2600; i++ {
		added := b.Add(knownAddress(i, base))
		if i < MaxAddresses {
			require.True(t, added, "address %d", i)
			require.Equal(t, i+1, b.Len())
		} else {
			require.False(t, added, "address %d", i)
			require.Equal(t, MaxAddresses, b.Len())
		}
	}
	assert.True(t, b.Full())
	// The first entries survive, nothing was evicted.
	_, ok := b.Get(knownAddress(0, base).Key())
	assert.True(t, ok)
	_, ok = b.Get(knownAddress(2599, base).Key())
	assert.False(t, ok)
	// Overwriting an existing key still works at capacity.
	updated := knownAddress(7, base.Add(time.Hour))
	assert.True(t, b.Add(updated))
	got, _ := b.Get(updated.Key())
	assert.Equal(t, updated.Timestamp, got.Timestamp)
	assert.Equal(t, MaxAddresses, b.Len())
}

func TestAddressCacheOrdering(t *testing.T) {
	b := NewAddrBook()
	base := time.Unix(1700000000, 0)
	for i := 0; i < 1500; i++ {
		b.Add(knownAddress(i, base.Add(time.Duration(i)*time.Second)))
	}
	// An entry without services is never served.
	noServices := knownAddress(5000, base.Add(time.Hour))
	noServices.HasServices = false
	b.Add(noServices)
	list := b.AddressCache(AddressesPerAsk)
	require.Len(t, list, 1000)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].Timestamp.After(list[i].Timestamp),
			"entry %d is not fresher than entry %d", i-1, i)
	}
	assert.Equal(t, base.Add(1499*time.Second), list[0].Timestamp)
	for _, na := range list {
		assert.NotEqual(t, noServices.Key(), na.Key())
	}
}

func TestAddrBookRemoveAndCandidates(t *testing.T) {
	b := NewAddrBook()
	now := time.Unix(1700000000, 0)
	for i := 0; i < 4; i++ {
		b.Add(knownAddress(i, now))
	}
	assert.True(t, b.Remove(knownAddress(1, now).Key()))
	assert.False(t, b.Remove(knownAddress(1, now).Key()))
	assert.False(t, b.Remove("10.0.0.2:9999"))
	want := []string{"10.0.0.0:8333", "10.0.0.2:8333", "10.0.0.3:8333"}
	assert.Equal(t, want, b.Candidates())
	assert.True(t, b.NeedMoreAddresses())

	other := NewAddrBook()
	assert.Equal(t, 3, other.Load(b.Snapshot()))
	assert.Equal(t, want, other.Candidates())
}

func TestBanWindow(t *testing.T) {
	l := NewBanList()
	now := time.Unix(1700000000, 0)
	l.Ban("192.0.2.1", now)
	assert.True(t, l.IsBanned("192.0.2.1", now))
	assert.True(t, l.IsBanned("192.0.2.1", now.Add(BanDuration-time.Second)))
	assert.False(t, l.IsBanned("192.0.2.2", now))
	assert.Equal(t, 1, l.Len())
	assert.False(t, l.IsBanned("192.0.2.1", now.Add(BanDuration+time.Second)))
	// The expired entry was purged by the check.
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.IsBanned("192.0.2.1", now))
}

func TestBanListLoad(t *testing.T) {
	now := time.Unix(1700000000, 0)
	bans := map[string]time.Time{}
	for i := 0; i < 3; i++ {
		bans[fmt.Sprintf("192.0.2.%d", i)] = now.Add(-time.Duration(i) * 40 * time.Minute)
	}
	l := NewBanList()
	l.Load(bans, now)
	// The ban from 80 minutes ago is dropped on load.
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, l.Snapshot(), map[string]time.Time{
		"192.0.2.0": now,
		"192.0.2.1": now.Add(-40 * time.Minute),
	})
}
