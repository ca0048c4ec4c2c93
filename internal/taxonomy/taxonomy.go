package taxonomy

import (
	"sort"

	"github.com/pkg/errors"
)

const (
	Alzheimers          = "Alzheimer's Disease"
	BrainTumor          = "Brain Tumor"
	DiabeticRetinopathy = "Diabetic Retinopathy"
)

// Entry is one class the model can emit.
type Entry struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

// Group is a contiguous set of labels that share a category.
type Group struct {
	Category string
	Labels   map[int]string
}

// Taxonomy maps model class indices to labels and categories.
// It is immutable once built.
type Taxonomy struct {
	entries    []Entry
	byIndex    map[int]int
	categories []string
}

var defaultGroups = []Group{
	{
		Category: Alzheimers,
		Labels: map[int]string{
			0: "NonDemented",
			1: "VeryMildDemented",
			2: "MildDemented",
			3: "ModerateDemented",
		},
	},
	{
		Category: BrainTumor,
		Labels: map[int]string{
			4: "no",
			5: "yes",
		},
	},
	{
		Category: DiabeticRetinopathy,
		Labels: map[int]string{
			6:  "Healthy",
			7:  "Mild DR",
			8:  "Moderate DR",
			9:  "Severe DR",
			10: "Proliferate DR",
		},
	},
}

var defaultTaxonomy = mustNew(defaultGroups...)

// Default returns the Alzheimer's / brain tumor / diabetic retinopathy table.
func Default() *Taxonomy {
	return defaultTaxonomy
}

func mustNew(groups ...Group) *Taxonomy {
	t, err := New(groups...)
	if err != nil {
		panic(err.Error())
	}
	return t
}

// New builds a taxonomy ordered by index. Indices must be unique across all
// groups.
func New(groups ...Group) (*Taxonomy, error) {
	t := &Taxonomy{byIndex: make(map[int]int)}
	var entries []Entry
	seen := make(map[int]string)
	for _, g := range groups {
		if g.Category == "" {
			return nil, errors.New("group without category")
		}
		if len(g.Labels) == 0 {
			return nil, errors.Errorf("category %q has no labels", g.Category)
		}
		t.categories = append(t.categories, g.Category)
		for idx, label := range g.Labels {
			if idx < 0 {
				return nil, errors.Errorf("negative index %d in category %q", idx, g.Category)
			}
			if label == "" {
				return nil, errors.Errorf("empty label for index %d in category %q", idx, g.Category)
			}
			if other, ok := seen[idx]; ok {
				return nil, errors.Errorf("index %d defined in both %q and %q", idx, other, g.Category)
			}
			seen[idx] = g.Category
			entries = append(entries, Entry{Index: idx, Label: label, Category: g.Category})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	for i, e := range entries {
		t.byIndex[e.Index] = i
	}
	t.entries = entries
	return t, nil
}

// Lookup returns the entry for a class index. ok is false for indices the
// taxonomy does not know.
func (t *Taxonomy) Lookup(index int) (Entry, bool) {
	i, ok := t.byIndex[index]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Entries returns a copy of all entries in index order.
func (t *Taxonomy) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Taxonomy) Len() int {
	return len(t.entries)
}

// Categories returns the category names in declaration order.
func (t *Taxonomy) Categories() []string {
	out := make([]string, len(t.categories))
	copy(out, t.categories)
	return out
}
