package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCoversAllIndices(t *testing.T) {
	tax := Default()
	assert.Equal(t, 11, tax.Len())

	perCategory := map[string]int{}
	for i := 0; i <= 10; i++ {
		e, ok := tax.Lookup(i)
		require.True(t, ok, "index %d", i)
		assert.Equal(t, i, e.Index)
		assert.NotEmpty(t, e.Label)
		perCategory[e.Category]++
	}
	assert.Equal(t, map[string]int{
		Alzheimers:          4,
		BrainTumor:          2,
		DiabeticRetinopathy: 5,
	}, perCategory)
}

func TestDefaultLabels(t *testing.T) {
	tax := Default()
	cases := []struct {
		index    int
		label    string
		category string
	}{
		{0, "NonDemented", Alzheimers},
		{3, "ModerateDemented", Alzheimers},
		{4, "no", BrainTumor},
		{5, "yes", BrainTumor},
		{6, "Healthy", DiabeticRetinopathy},
		{10, "Proliferate DR", DiabeticRetinopathy},
	}
	for _, c := range cases {
		e, ok := tax.Lookup(c.index)
		require.True(t, ok)
		assert.Equal(t, c.label, e.Label)
		assert.Equal(t, c.category, e.Category)
	}
}

func TestLookupUnknown(t *testing.T) {
	tax := Default()
	for _, idx := range []int{-1, 11, 12, 1000} {
		_, ok := tax.Lookup(idx)
		assert.False(t, ok, "index %d", idx)
	}
}

func TestEntriesOrdered(t *testing.T) {
	entries := Default().Entries()
	for i, e := range entries {
		assert.Equal(t, i, e.Index)
	}
	entries[0].Label = "changed"
	e, _ := Default().Lookup(0)
	assert.Equal(t, "NonDemented", e.Label)
}

func TestCategoriesOrder(t *testing.T) {
	assert.Equal(t, []string{Alzheimers, BrainTumor, DiabeticRetinopathy}, Default().Categories())
}

func TestNewRejectsDuplicateIndex(t *testing.T) {
	_, err := New(
		Group{Category: "a", Labels: map[int]string{0: "x", 1: "y"}},
		Group{Category: "b", Labels: map[int]string{1: "z"}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 1")
}

func TestNewRejectsMalformedGroups(t *testing.T) {
	_, err := New(Group{Labels: map[int]string{0: "x"}})
	assert.Error(t, err)

	_, err = New(Group{Category: "a"})
	assert.Error(t, err)

	_, err = New(Group{Category: "a", Labels: map[int]string{0: ""}})
	assert.Error(t, err)

	_, err = New(Group{Category: "a", Labels: map[int]string{-2: "x"}})
	assert.Error(t, err)
}
