// Package catalog holds the purchasable animal definitions.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// UnlimitedUses marks an ability that can be used without limit.
const UnlimitedUses = -1

// Animal is a purchasable character.
type Animal struct {
	Name        string `yaml:"name" json:"name"`
	Price       int    `yaml:"price" json:"price"`
	Description string `yaml:"description" json:"description"`
	Image       string `yaml:"image" json:"image"`
	Health      int    `yaml:"health" json:"health"`
	Speed       int    `yaml:"speed" json:"speed"`
	Jump        int    `yaml:"jump" json:"jump"`
	Ability     string `yaml:"ability" json:"ability"`
	AbilityUses int    `yaml:"abilityUses" json:"abilityUses"`
}

// Catalog is an immutable set of animals indexed by name.
type Catalog struct {
	animals []Animal
	byName  map[string]Animal
}

type file struct {
	Animals []Animal `yaml:"animals"`
}

// Default returns the built-in shop catalog.
func Default() *Catalog {
	c, _ := New([]Animal{
		{
			Name: "Cat", Price: 100, Description: "A cute and cuddly companion", Image: "cat_image",
			Health: 80, Speed: 7, Jump: 5, Ability: "Night Vision", AbilityUses: UnlimitedUses,
		},
		{
			Name: "Dog", Price: 150, Description: "A loyal and playful friend", Image: "dog_image",
			Health: 100, Speed: 8, Jump: 4, Ability: "Bark", AbilityUses: 5,
		},
		{
			Name: "Rabbit", Price: 120, Description: "A quick and agile hopper", Image: "rabbit_image",
			Health: 60, Speed: 10, Jump: 8, Ability: "Burrow", AbilityUses: 3,
		},
	})
	return c
}

// New builds a catalog, rejecting blank or duplicate names.
func New(animals []Animal) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Animal, len(animals))}
	for _, a := range animals {
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			return nil, oops.Code("CATALOG_INVALID").Errorf("animal with empty name")
		}
		if _, dup := c.byName[a.Name]; dup {
			return nil, oops.Code("CATALOG_INVALID").With("name", a.Name).Errorf("duplicate animal %q", a.Name)
		}
		c.byName[a.Name] = a
		c.animals = append(c.animals, a)
	}
	sort.Slice(c.animals, func(i, j int) bool { return c.animals[i].Name < c.animals[j].Name })
	return c, nil
}

// Load reads a YAML catalog from path. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("CATALOG_LOAD").With("path", path).Wrap(err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code("CATALOG_PARSE").Wrap(err)
	}
	if len(f.Animals) == 0 {
		return nil, oops.Code("CATALOG_INVALID").Errorf("catalog has no animals")
	}
	return New(f.Animals)
}

// Lookup returns the animal with the given name.
func (c *Catalog) Lookup(name string) (Animal, bool) {
	a, ok := c.byName[name]
	return a, ok
}

// Contains reports whether name is a catalog entry.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Animals returns all animals sorted by name.
func (c *Catalog) Animals() []Animal {
	return append([]Animal(nil), c.animals...)
}

// Names returns all animal names sorted.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.animals))
	for i, a := range c.animals {
		names[i] = a.Name
	}
	return names
}

// UsesLabel renders AbilityUses for display.
func (a Animal) UsesLabel() string {
	if a.AbilityUses == UnlimitedUses {
		return "infinite"
	}
	return fmt.Sprintf("%d", a.AbilityUses)
}
