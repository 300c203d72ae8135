// Package classes provides the resource class tree: ancestry, sort order and
// the stat ordering each class uses.
package classes

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/twistedatrocity/swgaide/internal/models"
	"gopkg.in/yaml.v3"
)

// Valid stat values, inclusive.
const (
	MinStat = 1
	MaxStat = 1000
)

// ErrUnknownClass is returned when a class name is not in the tree.
var ErrUnknownClass = errors.New("unknown resource class")

//go:embed classes.yaml
var embeddedTree []byte

var defaultTree = mustLoad(embeddedTree)

type node struct {
	Name     string   `yaml:"name"`
	Stats    []string `yaml:"stats"`
	Children []node   `yaml:"children"`
}

// Class is one node of the tree.
type Class struct {
	Name   string
	Parent *Class
	// Index is the pre-order position of the class in the tree.
	Index int
	stats []models.Stat
}

// Stats returns the ordered stats of the class, inherited from the nearest
// ancestor that defines them.
func (c *Class) Stats() []models.Stat {
	for k := c; k != nil; k = k.Parent {
		if len(k.stats) > 0 {
			out := make([]models.Stat, len(k.stats))
			copy(out, k.stats)
			return out
		}
	}
	return nil
}

// Tree is an immutable class hierarchy.
type Tree struct {
	ordered []*Class
	byName  map[string]*Class
}

// Default returns the built-in class tree.
func Default() *Tree { return defaultTree }

func mustLoad(data []byte) *Tree {
	t, err := Load(data)
	if err != nil {
		panic(fmt.Sprintf("classes: embedded tree: %v", err))
	}
	return t
}

// Load parses a YAML class tree.
func Load(data []byte) (*Tree, error) {
	var root node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse class tree: %w", err)
	}
	t := &Tree{byName: make(map[string]*Class)}
	if err := t.add(root, nil); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile parses a YAML class tree from path.
func LoadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class tree: %w", err)
	}
	return Load(data)
}

func (t *Tree) add(n node, parent *Class) error {
	name := strings.TrimSpace(n.Name)
	if name == "" {
		return errors.New("class without name")
	}
	key := strings.ToLower(name)
	if _, dup := t.byName[key]; dup {
		return fmt.Errorf("duplicate class %q", name)
	}
	c := &Class{Name: name, Parent: parent, Index: len(t.ordered)}
	for _, s := range n.Stats {
		st, ok := models.ParseStat(s)
		if !ok {
			return fmt.Errorf("class %q: unknown stat %q", name, s)
		}
		c.stats = append(c.stats, st)
	}
	t.ordered = append(t.ordered, c)
	t.byName[key] = c
	for _, child := range n.Children {
		if err := t.add(child, c); err != nil {
			return err
		}
	}
	return nil
}

// Lookup finds a class by name, ignoring case.
func (t *Tree) Lookup(name string) (*Class, bool) {
	c, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Rank returns the sort position of a class. Unknown classes sort last.
func (t *Tree) Rank(name string) int {
	if c, ok := t.Lookup(name); ok {
		return c.Index
	}
	return len(t.ordered)
}

// IsUnder reports whether class is ancestor or one of its descendants.
func (t *Tree) IsUnder(class, ancestor string) bool {
	c, ok := t.Lookup(class)
	if !ok {
		return false
	}
	a, ok := t.Lookup(ancestor)
	if !ok {
		return false
	}
	for k := c; k != nil; k = k.Parent {
		if k == a {
			return true
		}
	}
	return false
}

// UnderAny reports whether class is under any of ancestors.
func (t *Tree) UnderAny(class string, ancestors []string) bool {
	for _, a := range ancestors {
		if t.IsUnder(class, a) {
			return true
		}
	}
	return false
}

// Category returns the survey category of class: its ancestor two levels
// below the root (Mineral, Chemical, Flora, ...). Shallower classes are their
// own category; unknown classes return their name.
func (t *Tree) Category(class string) string {
	c, ok := t.Lookup(class)
	if !ok {
		return class
	}
	var path []*Class
	for k := c; k != nil; k = k.Parent {
		path = append(path, k)
	}
	if len(path) <= 3 {
		return c.Name
	}
	return path[len(path)-3].Name
}

// StatOrder returns the positional stat ordering for class.
func (t *Tree) StatOrder(class string) ([]models.Stat, error) {
	c, ok := t.Lookup(class)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	return c.Stats(), nil
}

// Classes returns every class in pre-order.
func (t *Tree) Classes() []*Class {
	out := make([]*Class, len(t.ordered))
	copy(out, t.ordered)
	return out
}
