package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	require.Len(t, catalog, CatalogSize)
	require.NoError(t, ValidateCatalog(catalog))

	kinds := make(map[ElementKind]int)
	for _, s := range catalog {
		kinds[s.TriggerKind]++
	}
	for _, k := range ElementKinds {
		assert.NotZero(t, kinds[k], "no scenario for %s", k)
	}
}

func TestDefaultCatalogReturnsCopy(t *testing.T) {
	a := DefaultCatalog()
	a[0].Options[0] = "changed"
	a[0].Title = "changed"

	b := DefaultCatalog()
	assert.NotEqual(t, "changed", b[0].Options[0])
	assert.NotEqual(t, "changed", b[0].Title)
}

func TestValidateCatalog(t *testing.T) {
	valid := func() []Scenario { return DefaultCatalog() }

	tests := []struct {
		name    string
		catalog func() []Scenario
		wantErr string
	}{
		{"too small", func() []Scenario { return valid()[:ScenariosPerRun-1] }, "need exactly 20"},
		{"one short of the pool", func() []Scenario { return valid()[:CatalogSize-1] }, "need exactly 20"},
		{"too large", func() []Scenario {
			c := valid()
			extra := c[0]
			extra.ID = "extra"
			return append(c, extra)
		}, "need exactly 20"},
		{"missing id", func() []Scenario { c := valid(); c[3].ID = ""; return c }, "has no id"},
		{"duplicate id", func() []Scenario { c := valid(); c[4].ID = c[2].ID; return c }, "duplicate scenario id"},
		{"one option", func() []Scenario { c := valid(); c[1].Options = c[1].Options[:1]; return c }, "at least 2 options"},
		{"correct index out of range", func() []Scenario { c := valid(); c[0].CorrectOptionIndex = 9; return c }, "out of range"},
		{"unknown trigger", func() []Scenario { c := valid(); c[0].TriggerKind = "roundabout"; return c }, "unknown trigger_kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCatalog(tt.catalog())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSampleRunWithoutReplacement(t *testing.T) {
	catalog := DefaultCatalog()
	ids := make(map[string]bool, len(catalog))
	for _, s := range catalog {
		ids[s.ID] = true
	}

	seen := make(map[string]bool)
	for seed := int64(1); seed <= 200; seed++ {
		run := SampleRun(rand.New(rand.NewSource(seed)), catalog, ScenariosPerRun)
		require.Len(t, run, ScenariosPerRun)

		unique := make(map[string]bool)
		for _, s := range run {
			assert.True(t, ids[s.ID], "sampled %s is not in the catalog", s.ID)
			assert.False(t, unique[s.ID], "seed %d sampled %s twice", seed, s.ID)
			unique[s.ID] = true
			seen[s.ID] = true
		}
	}
	assert.Len(t, seen, CatalogSize, "every scenario is eventually sampled")
}

func TestSampleRunIsReproducible(t *testing.T) {
	catalog := DefaultCatalog()
	a := SampleRun(rand.New(rand.NewSource(99)), catalog, ScenariosPerRun)
	b := SampleRun(rand.New(rand.NewSource(99)), catalog, ScenariosPerRun)
	assert.Equal(t, a, b)
}

func TestSampleRunLeavesCatalogIntact(t *testing.T) {
	catalog := DefaultCatalog()
	before := DefaultCatalog()
	SampleRun(rand.New(rand.NewSource(3)), catalog, ScenariosPerRun)
	assert.Equal(t, before, catalog)
}

func TestSampleRunLargerThanCatalog(t *testing.T) {
	catalog := DefaultCatalog()[:3]
	run := SampleRun(rand.New(rand.NewSource(1)), catalog, ScenariosPerRun)
	assert.Len(t, run, 3)
}
