package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{"Cat", "Dog", "Rabbit"}, c.Names())
	assert.True(t, c.Contains("Cat"))
	assert.False(t, c.Contains("cat"))
	assert.False(t, c.Contains("Dragon"))

	cat, ok := c.Lookup("Cat")
	require.True(t, ok)
	assert.Equal(t, 100, cat.Price)
	assert.Equal(t, "infinite", cat.UsesLabel())

	dog, _ := c.Lookup("Dog")
	assert.Equal(t, "5", dog.UsesLabel())
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New([]Animal{{Name: "Cat"}, {Name: " Cat "}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNew_RejectsBlankName(t *testing.T) {
	_, err := New([]Animal{{Name: "  "}})
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
animals:
  - name: Fox
    price: 300
    ability: Dash
    abilityUses: 2
  - name: Dog
    price: 150
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Dog", "Fox"}, c.Names())

	fox, ok := c.Lookup("Fox")
	require.True(t, ok)
	assert.Equal(t, "Dash", fox.Ability)
	assert.Equal(t, 2, fox.AbilityUses)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte("animals: []"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.Animals(), 3)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("animals:\n  - name: Owl\n"), 0o600))

	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Owl"}, c.Names())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
