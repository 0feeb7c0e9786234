package dns

import (
	"os"
	"testing"
	"time"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/storage"
	"github.com/hueshift/hueshift/pkg/types"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *storage.BoltStore {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedSlots(t *testing.T, store *storage.BoltStore) {
	t.Helper()
	require.NoError(t, store.SaveSlot(&types.Slot{
		ID:             types.SlotBlue,
		App:            "storefront",
		CurrentVersion: "1.0.0",
		Health:         types.HealthHealthy,
		Activity:       types.ActivityActive,
		Endpoint:       "10.0.0.10:8080",
		Replicas:       1,
		UpdatedAt:      time.Now(),
	}))
	require.NoError(t, store.SaveSlot(&types.Slot{
		ID:             types.SlotGreen,
		App:            "storefront",
		CurrentVersion: "1.1.0",
		Health:         types.HealthHealthy,
		Activity:       types.ActivityStandby,
		Endpoint:       "10.0.0.11:8080",
		Replicas:       1,
		UpdatedAt:      time.Now(),
	}))
}

func TestResolve_ActiveFromRoute(t *testing.T) {
	store := newTestStore(t)
	seedSlots(t, store)
	require.NoError(t, store.SaveRoute(&types.TrafficRoute{
		App:       "storefront",
		Slot:      types.SlotGreen,
		Endpoint:  "10.0.0.11:8080",
		UpdatedAt: time.Now(),
	}))

	r := NewResolver(store, "hueshift")
	answers, err := r.Resolve("storefront.hueshift.", dns.TypeA)
	require.NoError(t, err)
	require.Len(t, answers, 1)

	a, ok := answers[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.11", a.A.String())
	assert.Equal(t, "storefront.hueshift.", a.Hdr.Name)
	assert.Equal(t, uint32(recordTTL), a.Hdr.Ttl)
}

func TestResolve_ActiveFallsBackToSlot(t *testing.T) {
	// No route persisted yet; the active slot record answers.
	store := newTestStore(t)
	seedSlots(t, store)

	r := NewResolver(store, "hueshift")
	answers, err := r.Resolve("storefront.hueshift.", dns.TypeA)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "10.0.0.10", answers[0].(*dns.A).A.String())
}

func TestResolve_SlotNames(t *testing.T) {
	store := newTestStore(t)
	seedSlots(t, store)
	r := NewResolver(store, "hueshift")

	blue, err := r.Resolve("blue.storefront.hueshift.", dns.TypeA)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.10", blue[0].(*dns.A).A.String())

	green, err := r.Resolve("green.storefront.hueshift.", dns.TypeA)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.11", green[0].(*dns.A).A.String())
}

func TestResolve_SRV(t *testing.T) {
	store := newTestStore(t)
	seedSlots(t, store)
	r := NewResolver(store, "hueshift")

	answers, err := r.Resolve("blue.storefront.hueshift.", dns.TypeSRV)
	require.NoError(t, err)
	require.Len(t, answers, 1)

	srv, ok := answers[0].(*dns.SRV)
	require.True(t, ok)
	assert.Equal(t, uint16(8080), srv.Port)
	assert.Equal(t, "10.0.0.10.", srv.Target)
}

func TestResolve_Errors(t *testing.T) {
	store := newTestStore(t)
	seedSlots(t, store)
	r := NewResolver(store, "hueshift")

	_, err := r.Resolve("storefront.example.com.", dns.TypeA)
	assert.Error(t, err, "name outside the discovery domain")

	_, err = r.Resolve("missing.hueshift.", dns.TypeA)
	assert.Error(t, err, "unknown application")

	_, err = r.Resolve("purple.storefront.hueshift.", dns.TypeA)
	assert.Error(t, err, "unknown slot")

	_, err = r.Resolve("a.b.c.hueshift.", dns.TypeA)
	assert.Error(t, err, "too many labels")

	_, err = r.Resolve("storefront.hueshift.", dns.TypeMX)
	assert.Error(t, err, "unsupported query type")
}

func TestResolve_HostnameEndpointNotAnARecord(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveSlot(&types.Slot{
		ID:       types.SlotBlue,
		App:      "storefront",
		Activity: types.ActivityActive,
		Endpoint: "blue.svc.cluster.local:8080",
	}))

	r := NewResolver(store, "hueshift")
	_, err := r.Resolve("blue.storefront.hueshift.", dns.TypeA)
	assert.Error(t, err)

	// SRV still works because the target may be a hostname.
	answers, err := r.Resolve("blue.storefront.hueshift.", dns.TypeSRV)
	require.NoError(t, err)
	assert.Equal(t, "blue.svc.cluster.local.", answers[0].(*dns.SRV).Target)
}
