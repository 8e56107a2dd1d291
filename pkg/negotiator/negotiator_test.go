package negotiator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/registry"
)

func newRegistry(t *testing.T, stores ...*registry.Store) *registry.Registry {
	t.Helper()
	reg, err := registry.New(stores...)
	require.NoError(t, err)
	return reg
}

func TestChooseDefaultPrefersCheckoutStore(t *testing.T) {
	reg, err := registry.DefaultRegistry()
	require.NoError(t, err)

	d, reason := ChooseDefaultWithReason(reg)
	assert.Equal(t, "cafe_con_alma", d.SelectedStoreID)
	assert.Empty(t, d.RejectedStoreID)
	assert.Contains(t, d.Explanation, "exposes UCP checkout capabilities")
	assert.Equal(t, ReasonSupportsCheckout, reason)
}

func TestChooseDefaultFallsBackToFirstStore(t *testing.T) {
	reg := newRegistry(t, registry.NewStore("a", "A", nil), registry.NewStore("b", "B", nil))

	d, reason := ChooseDefaultWithReason(reg)
	assert.Equal(t, "a", d.SelectedStoreID)
	assert.Contains(t, d.Explanation, "no store exposes UCP checkout capabilities")
	assert.Equal(t, ReasonNoCheckoutStore, reason)
}

func TestChooseDefaultEmptyRegistry(t *testing.T) {
	d := ChooseDefault(newRegistry(t))
	assert.Empty(t, d.SelectedStoreID)
	assert.NotEmpty(t, d.Explanation)
}

func TestRequireCheckout(t *testing.T) {
	reg, err := registry.DefaultRegistry()
	require.NoError(t, err)

	t.Run("compliant store passes", func(t *testing.T) {
		assert.Nil(t, RequireCheckout(reg, "cafe_con_alma"))
	})

	t.Run("non compliant store gets alternative", func(t *testing.T) {
		d, reason := RequireCheckoutWithReason(reg, "tierra_de_cafe")
		require.NotNil(t, d)
		assert.Equal(t, "cafe_con_alma", d.SelectedStoreID)
		assert.Equal(t, "tierra_de_cafe", d.RejectedStoreID)
		assert.Contains(t, d.Explanation, "'tierra_de_cafe'")
		assert.Contains(t, d.Explanation, "I will use 'cafe_con_alma' instead")
		assert.Equal(t, "cafe_con_alma", d.Recommended("tierra_de_cafe"))
		assert.Equal(t, ReasonRejectedWithOption, reason)
	})

	t.Run("unknown store is treated as non compliant", func(t *testing.T) {
		d := RequireCheckout(reg, "ghost")
		require.NotNil(t, d)
		assert.Equal(t, "cafe_con_alma", d.SelectedStoreID)
		assert.Equal(t, "ghost", d.RejectedStoreID)
	})
}

func TestRequireCheckoutNoAlternative(t *testing.T) {
	reg := newRegistry(t, registry.NewStore("only", "Only", nil))

	d, reason := RequireCheckoutWithReason(reg, "only")
	require.NotNil(t, d)
	assert.Equal(t, "only", d.SelectedStoreID)
	assert.Equal(t, "only", d.RejectedStoreID)
	assert.Contains(t, d.Explanation, "no alternative store is UCP-compliant")
	assert.Empty(t, d.Recommended("only"))
	assert.Equal(t, ReasonRejectedNoOption, reason)
}

func TestDecisionsDoNotDependOnCallOrder(t *testing.T) {
	reg := newRegistry(t,
		registry.NewStore("a", "A", nil),
		registry.NewStore("b", "B", nil, core.CapabilityCheckout),
		registry.NewStore("c", "C", nil, core.CapabilityCheckout),
	)

	first := ChooseDefault(reg)
	_ = RequireCheckout(reg, "a")
	_ = RequireCheckout(reg, "c")
	assert.Equal(t, first, ChooseDefault(reg))
	assert.Equal(t, "b", first.SelectedStoreID)
}
