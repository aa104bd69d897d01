package nat

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNAT refuses every external port below free.
type fakeNAT struct {
	free     int
	mapped   map[int]int
	deleted  []int
	calls    int
	external net.IP
}

func newFakeNAT(free int) *fakeNAT {
	return &fakeNAT{free: free, mapped: map[int]int{}, external: net.IPv4(203, 0, 113, 7)}
}

func (f *fakeNAT) GetExternalAddress() (net.IP, error) { return f.external, nil }

func (f *fakeNAT) AddPortMapping(proto string, ext, in int, desc string, lifetime int) (int, error) {
	f.calls++
	if ext < f.free {
		return 0, errors.New("ConflictInMappingEntry")
	}
	f.mapped[ext] = in
	return ext, nil
}

func (f *fakeNAT) DeletePortMapping(proto string, ext, in int) error {
	delete(f.mapped, ext)
	f.deleted = append(f.deleted, ext)
	return nil
}

func (f *fakeNAT) String() string { return "fake" }

func TestMapPortSearch(t *testing.T) {
	f := newFakeNAT(8336)
	m, e := Map(context.Background(), f, 8333, "nbc")
	require.NoError(t, e)
	assert.Equal(t, 8336, m.ExternalPort())
	assert.Equal(t, 4, f.calls)
	assert.Equal(t, 8333, f.mapped[8336])
	assert.True(t, m.ExternalIP().Equal(net.IPv4(203, 0, 113, 7)))

	f.external = net.IPv4(203, 0, 113, 8)
	require.NoError(t, m.Refresh())
	assert.True(t, m.ExternalIP().Equal(net.IPv4(203, 0, 113, 8)))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, []int{8336}, f.deleted)
	assert.ErrorIs(t, m.Refresh(), ErrMappingClosed)
}

func TestMapGivesUp(t *testing.T) {
	f := newFakeNAT(9000)
	_, e := Map(context.Background(), f, 8333, "nbc")
	require.Error(t, e)
	assert.Equal(t, portAttempts, f.calls)
}

func TestMapCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, e := Map(ctx, newFakeNAT(0), 8333, "nbc")
	assert.ErrorIs(t, e, context.Canceled)
}
