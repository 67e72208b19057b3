package flags

// Address is a category path inside a tree. It is a cheap value; nothing is
// loaded until it is used to read or write.
type Address struct {
	tree *Tree
	path string
}

// Tree returns the tree the address points into.
func (a Address) Tree() *Tree {
	return a.tree
}

// Path is the dotted path of the category; empty for the root.
func (a Address) Path() string {
	return a.path
}

// At descends into name.
func (a Address) At(name string) Address {
	return Address{tree: a.tree, path: joinPath(a.path, name)}
}

// Get resolves name relative to the addressed category.
func (a Address) Get(name string) (any, error) {
	return a.tree.Get(joinPath(a.path, name))
}

// Set assigns name relative to the addressed category.
func (a Address) Set(name string, value any) error {
	return a.tree.Set(joinPath(a.path, name), value)
}

// Delete removes name relative to the addressed category.
func (a Address) Delete(name string) error {
	return a.tree.Delete(joinPath(a.path, name))
}

// HasFlag reports whether name is a flag of the addressed category.
func (a Address) HasFlag(name string) bool {
	return a.tree.HasFlag(joinPath(a.path, name))
}

// Exists reports whether the address names a category, loaded or not.
func (a Address) Exists() bool {
	if a.path == "" {
		return true
	}
	return a.tree.HasCategory(a.path)
}

// Names lists the children of the category, running its loader if needed.
func (a Address) Names() ([]string, error) {
	n, err := a.tree.categoryNode("names", a.path)
	if err != nil {
		return nil, err
	}
	return n.names(), nil
}

// AsDict resolves the category into nested maps.
func (a Address) AsDict() (map[string]any, error) {
	return a.tree.dictAt(a.path)
}
