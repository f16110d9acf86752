package model

// ModuleName is the domain-meaningful identity of a dependency node.
type ModuleName string

func (n ModuleName) String() string {
	return string(n)
}

// Dependency is one manifest-level entry: a name, the coordinate it
// resolves to, the revision constraint, and its selection rules.
type Dependency struct {
	Name          ModuleName
	Coordinate    Coordinate
	Specification RevisionSpecification
	Rules         Rules
}

// Descriptor is the parsed shape of a protofetch.toml: one per manifest,
// and also extractable from any commit of a remote repository (the file
// protofetch.toml at that commit). A remote commit lacking that file
// yields a synthetic empty descriptor (the node is a dependency leaf).
type Descriptor struct {
	Name         ModuleName
	Description  *string
	ProtoOutDir  *string
	Dependencies []Dependency
}

// EmptyDescriptor synthesizes a leaf descriptor for a dependency whose
// commit carries no protofetch.toml of its own.
func EmptyDescriptor(name ModuleName) Descriptor {
	return Descriptor{Name: name}
}
