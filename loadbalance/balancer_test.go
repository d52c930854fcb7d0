package loadbalance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkpoint-rpc/registry"
)

var testInstances = []registry.ServiceInstance{
	{Addr: "ctl1:6817", Weight: 10, Version: "1.0"},
	{Addr: "ctl2:6817", Weight: 5, Version: "1.0"},
	{Addr: "ctl3:6817", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	var got []string
	for i := 0; i < 4; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		got = append(got, inst.Addr)
	}
	assert.Equal(t, []string{"ctl1:6817", "ctl2:6817", "ctl3:6817", "ctl1:6817"}, got)
}

func TestEmptyInstances(t *testing.T) {
	for _, b := range []Balancer{&RoundRobinBalancer{}, &WeightedRandomBalancer{}} {
		_, err := b.Pick(nil)
		assert.ErrorIs(t, err, ErrNoInstances, b.Name())
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		counts[inst.Addr]++
	}

	// ctl2 has a fifth of the total weight; allow generous slack
	share := float64(counts["ctl2:6817"]) / float64(n)
	assert.InDelta(t, 0.2, share, 0.05)
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	inst, err := b.Pick([]registry.ServiceInstance{{Addr: "only:1"}})
	require.NoError(t, err)
	assert.Equal(t, "only:1", inst.Addr)
}

func TestNew(t *testing.T) {
	for _, name := range []string{"round-robin", "weighted-random"} {
		b, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, b.Name())
	}
	_, err := New("consistent-hash")
	assert.Error(t, err)
}
