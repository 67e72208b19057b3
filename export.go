package flags

import (
	"fmt"
	"io"
	"regexp"

	"github.com/go-viper/mapstructure/v2"
	"github.com/xlab/treeprint"
	"gopkg.in/yaml.v3"
)

// AsDict loads every category and resolves every flag into nested maps keyed
// by name.
func (t *Tree) AsDict() (map[string]any, error) {
	return t.dictAt("")
}

func (t *Tree) dictAt(path string) (map[string]any, error) {
	n, err := t.categoryNode("as-dict", path)
	if err != nil {
		return nil, err
	}
	if err := t.loadAllUnder(n, path); err != nil {
		return nil, err
	}
	return t.dictOf(n, path)
}

func (t *Tree) dictOf(n *node, prefix string) (map[string]any, error) {
	out := make(map[string]any, len(n.entries))
	for _, name := range n.names() {
		e := n.entries[name]
		path := joinPath(prefix, name)
		switch e.kind {
		case KindFlag:
			value, err := t.resolve(path, prefix, e.cell)
			if err != nil {
				return nil, err
			}
			out[name] = value
		case KindCategory:
			child, err := t.dictOf(e.node, path)
			if err != nil {
				return nil, err
			}
			out[name] = child
		}
	}
	return out, nil
}

// YAML renders AsDict as a YAML document.
func (t *Tree) YAML() ([]byte, error) {
	dict, err := t.AsDict()
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(dict)
	if err != nil {
		return nil, newFlagError("yaml", "", err)
	}
	return out, nil
}

// Decode resolves the category at path (the root when empty) into out, which
// must be a pointer. Struct fields are matched by their `flag` tag.
func (t *Tree) Decode(path string, out any) error {
	dict, err := t.dictAt(path)
	if err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "flag",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return newFlagError("decode", path, err)
	}
	if err := decoder.Decode(dict); err != nil {
		return newFlagError("decode", path, err)
	}
	return nil
}

// Decode resolves the addressed category into out.
func (a Address) Decode(out any) error {
	return a.tree.Decode(a.path, out)
}

// DumpOptions filters and formats Dump output.
type DumpOptions struct {
	// Pattern is a regular expression matched against full flag paths.
	Pattern string
	// Evaluate prints resolved values instead of unresolved defaults. It
	// loads every category.
	Evaluate bool
}

// Dump writes the tree as an indented listing.
func (t *Tree) Dump(w io.Writer, opts DumpOptions) error {
	var re *regexp.Regexp
	if opts.Pattern != "" {
		compiled, err := regexp.Compile(opts.Pattern)
		if err != nil {
			return &FlagError{Op: "dump", Detail: err.Error(), Err: ErrInvalidArgument}
		}
		re = compiled
	}
	if opts.Evaluate {
		if err := t.LoadAll(); err != nil {
			return err
		}
	}
	out := treeprint.New()
	t.dumpNode(out, t.root, "", re, opts.Evaluate)
	_, err := io.WriteString(w, out.String())
	return err
}

func (t *Tree) dumpNode(branch treeprint.Tree, n *node, prefix string, re *regexp.Regexp, evaluate bool) {
	for _, name := range n.names() {
		e := n.entries[name]
		path := joinPath(prefix, name)
		switch e.kind {
		case KindFlag:
			if re != nil && !re.MatchString(path) {
				continue
			}
			branch.AddNode(fmt.Sprintf("%s = %s", name, t.dumpValue(path, prefix, e.cell, evaluate)))
		case KindCategory:
			if !matchesBelow(e.node, path, re) {
				continue
			}
			t.dumpNode(branch.AddBranch(name), e.node, path, re, evaluate)
		case KindPending:
			if re != nil && !re.MatchString(path) {
				continue
			}
			branch.AddMetaNode("pending", name)
		}
	}
}

func (t *Tree) dumpValue(path, scope string, c *cell, evaluate bool) string {
	if !evaluate || !c.dynamic() {
		return c.describe()
	}
	value, err := t.resolve(path, scope, c)
	if err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}
	return fmt.Sprintf("%v", value)
}

func matchesBelow(n *node, prefix string, re *regexp.Regexp) bool {
	if re == nil {
		return true
	}
	for name, e := range n.entries {
		path := joinPath(prefix, name)
		switch e.kind {
		case KindFlag, KindPending:
			if re.MatchString(path) {
				return true
			}
		case KindCategory:
			if matchesBelow(e.node, path, re) {
				return true
			}
		}
	}
	return false
}

// FlagDescriptor documents one flag.
type FlagDescriptor struct {
	Path    string   `json:"path" yaml:"path"`
	Type    string   `json:"type" yaml:"type"`
	Default string   `json:"default" yaml:"default"`
	Dynamic bool     `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	Enum    string   `json:"enum,omitempty" yaml:"enum,omitempty"`
	Members []string `json:"members,omitempty" yaml:"members,omitempty"`
	Help    string   `json:"help,omitempty" yaml:"help,omitempty"`
	Hidden  bool     `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// Describe loads every category and lists a descriptor per flag in path
// order. Nothing is resolved.
func (t *Tree) Describe() ([]FlagDescriptor, error) {
	if err := t.LoadAll(); err != nil {
		return nil, err
	}
	var out []FlagDescriptor
	_ = t.root.walkFlags("", func(path string, c *cell) error {
		descriptor := FlagDescriptor{
			Path:    path,
			Type:    c.typeName(),
			Default: c.describe(),
			Dynamic: c.dynamic(),
			Help:    c.help,
			Hidden:  c.hidden,
		}
		if c.enum != nil {
			descriptor.Enum = c.enum.EnumName()
			descriptor.Members = c.enum.Members()
		}
		out = append(out, descriptor)
		return nil
	})
	return out, nil
}
