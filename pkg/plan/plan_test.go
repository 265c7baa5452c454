package plan_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialecho/echokit/pkg/plan"
)

func testPriceConfig() plan.PriceConfig {
	return plan.PriceConfig{
		StarterPriceID:  "price_starter",
		ProPriceID:      "price_pro",
		UltimatePriceID: "price_ultimate",
		AgencyPriceID:   "price_agency",
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	cases := map[string]plan.ID{
		"starter":            plan.Starter,
		"Pro":                plan.Pro,
		"SocialEcho_Starter": plan.Starter,
		"SocialEcho_Pro":     plan.Pro,
		"ultimate":           plan.Ultimate,
		"AgencyGrowth":       plan.Agency,
		"reseller":           plan.Agency,
		"":                   plan.None,
		"none":               plan.None,
	}

	for input, want := range cases {
		got, err := plan.Parse(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	_, err := plan.Parse("enterprise")
	require.ErrorIs(t, err, plan.ErrUnknownPlan)
}

func TestTierOrder(t *testing.T) {
	t.Parallel()

	assert.Less(t, plan.None.Tier(), plan.Starter.Tier())
	assert.Less(t, plan.Starter.Tier(), plan.Pro.Tier())
	assert.Less(t, plan.Pro.Tier(), plan.Ultimate.Tier())
	assert.Less(t, plan.Ultimate.Tier(), plan.Agency.Tier())
}

func TestLimit(t *testing.T) {
	t.Parallel()

	t.Run("capped", func(t *testing.T) {
		t.Parallel()

		l := plan.Capped(3)
		assert.False(t, l.IsUnlimited())
		assert.True(t, l.Allows(0))
		assert.True(t, l.Allows(2))
		assert.False(t, l.Allows(3))
		assert.False(t, l.Allows(100))
		assert.Equal(t, int64(1), l.Remaining(2))
		assert.Equal(t, int64(0), l.Remaining(5))
		assert.Equal(t, "3", l.String())
	})

	t.Run("unlimited", func(t *testing.T) {
		t.Parallel()

		l := plan.Unlimited()
		assert.True(t, l.IsUnlimited())
		assert.True(t, l.Allows(1<<40))
		assert.Equal(t, int64(-1), l.Remaining(1<<40))
		assert.Equal(t, "unlimited", l.String())
	})

	t.Run("zero value denies", func(t *testing.T) {
		t.Parallel()

		var l plan.Limit
		assert.False(t, l.Allows(0))
	})
}

func TestNewCatalog(t *testing.T) {
	t.Parallel()

	t.Run("default plans", func(t *testing.T) {
		t.Parallel()

		catalog, err := plan.NewCatalog(plan.DefaultPlans(testPriceConfig())...)
		require.NoError(t, err)

		ent, err := catalog.Entitlements(plan.Starter)
		require.NoError(t, err)
		assert.Equal(t, int64(30), ent.Posts.Value())
		assert.Equal(t, int64(2), ent.CustomisationsPerArtifact.Value())

		ent, err = catalog.Entitlements(plan.Pro)
		require.NoError(t, err)
		assert.Equal(t, int64(100), ent.Posts.Value())

		ent, err = catalog.Entitlements(plan.Agency)
		require.NoError(t, err)
		assert.True(t, ent.Posts.IsUnlimited())
		assert.True(t, ent.CustomisationsPerArtifact.IsUnlimited())

		ent, err = catalog.Entitlements(plan.None)
		require.NoError(t, err)
		assert.False(t, ent.Posts.Allows(0))
	})

	t.Run("price id round trip", func(t *testing.T) {
		t.Parallel()

		catalog, err := plan.NewCatalog(plan.DefaultPlans(testPriceConfig())...)
		require.NoError(t, err)

		priceID, err := catalog.PriceID(plan.Pro)
		require.NoError(t, err)

		id, err := catalog.ByPriceID(priceID)
		require.NoError(t, err)
		assert.Equal(t, plan.Pro, id)

		_, err = catalog.ByPriceID("price_bogus")
		require.ErrorIs(t, err, plan.ErrUnknownPriceID)

		_, err = catalog.PriceID(plan.None)
		require.ErrorIs(t, err, plan.ErrMissingPriceID)
	})

	t.Run("missing plan rejected", func(t *testing.T) {
		t.Parallel()

		plans := plan.DefaultPlans(testPriceConfig())
		_, err := plan.NewCatalog(plans[:len(plans)-1]...)
		require.ErrorIs(t, err, plan.ErrInvalidCatalog)
	})

	t.Run("paid plan without price rejected", func(t *testing.T) {
		t.Parallel()

		cfg := testPriceConfig()
		cfg.ProPriceID = ""
		_, err := plan.NewCatalog(plan.DefaultPlans(cfg)...)
		require.ErrorIs(t, err, plan.ErrMissingPriceID)
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		t.Parallel()

		plans := plan.DefaultPlans(testPriceConfig())
		_, err := plan.NewCatalog(append(plans, plans[1])...)
		require.ErrorIs(t, err, plan.ErrDuplicatePlan)
	})
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	t.Run("valid document", func(t *testing.T) {
		t.Parallel()

		doc := `
plans:
  - id: starter
    price_id: price_s
    posts: 30
    customisations_per_artifact: 2
  - id: agency
    name: Agency Scale
    price_id: price_a
    posts: unlimited
    customisations_per_artifact: unlimited
`
		plans, err := plan.ParseYAML(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, plans, 2)

		assert.Equal(t, plan.Starter, plans[0].ID)
		assert.Equal(t, "Starter", plans[0].Name)
		assert.Equal(t, int64(30), plans[0].Entitlements.Posts.Value())

		assert.Equal(t, "Agency Scale", plans[1].Name)
		assert.True(t, plans[1].Entitlements.Posts.IsUnlimited())
	})

	t.Run("unknown plan id", func(t *testing.T) {
		t.Parallel()

		_, err := plan.ParseYAML(strings.NewReader("plans:\n  - id: enterprise\n    posts: 10\n"))
		require.ErrorIs(t, err, plan.ErrUnknownPlan)
	})

	t.Run("negative limit", func(t *testing.T) {
		t.Parallel()

		_, err := plan.ParseYAML(strings.NewReader("plans:\n  - id: starter\n    posts: -1\n"))
		require.Error(t, err)
	})
}
