package config

import (
	"fmt"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/utilitywarehouse/protofetch/model"
)

// legacyDescriptor is the pre-protofetch protodep.toml shape: a flat list
// of dependency tables instead of one table per dependency name.
type legacyDescriptor struct {
	ProtoOutDir  string             `toml:"proto_outdir"`
	Dependencies []legacyDependency `toml:"dependencies"`
}

type legacyDependency struct {
	Target   string   `toml:"target"`
	Protocol string   `toml:"protocol"`
	Revision string   `toml:"revision"`
	Subgroup *string  `toml:"subgroup,omitempty"`
	Branch   *string  `toml:"branch,omitempty"`
	Path     *string  `toml:"path,omitempty"`
	Ignores  []string `toml:"ignores,omitempty"`
	Includes []string `toml:"includes,omitempty"`
}

// ParseLegacyManifest parses a protodep.toml document.
func ParseLegacyManifest(data []byte) (legacyDescriptor, error) {
	var d legacyDescriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return legacyDescriptor{}, fmt.Errorf("parsing protodep manifest: %w", err)
	}
	if d.ProtoOutDir == "" {
		return legacyDescriptor{}, fmt.Errorf("protodep manifest: %w: proto_outdir", ErrMissingKey)
	}
	return d, nil
}

// MigrateLegacyManifest converts a parsed protodep.toml into a Descriptor
// under the given module name. protodep has no concept of pruning, content
// roots, or file policies, so every dependency keeps the zero-value Rules;
// its ignores/includes lists have no protofetch equivalent and are dropped.
func MigrateLegacyManifest(name model.ModuleName, legacy legacyDescriptor) (model.Descriptor, error) {
	description := "Generated from protodep file"
	descriptor := model.Descriptor{
		Name:        name,
		Description: &description,
		ProtoOutDir: &legacy.ProtoOutDir,
	}

	for _, dep := range legacy.Dependencies {
		protocol, err := model.ParseProtocol(dep.Protocol)
		if err != nil {
			return model.Descriptor{}, fmt.Errorf("protodep dependency %q: %w", dep.Target, err)
		}
		coordinate, err := model.CoordinateFromURL(dep.Target, &protocol)
		if err != nil {
			return model.Descriptor{}, fmt.Errorf("protodep dependency %q: %w", dep.Target, err)
		}

		revision := model.Arbitrary
		if dep.Revision != "" {
			revision = model.Pinned(dep.Revision)
		}

		descriptor.Dependencies = append(descriptor.Dependencies, model.Dependency{
			Name:       model.ModuleName(coordinate.Repository),
			Coordinate: coordinate,
			Specification: model.RevisionSpecification{
				Revision: revision,
				Branch:   dep.Branch,
			},
		})
	}
	return descriptor, nil
}

// BuildModuleName returns name if given, otherwise the base name of root.
func BuildModuleName(name *string, root string) (model.ModuleName, error) {
	if name != nil && *name != "" {
		return model.ModuleName(*name), nil
	}
	base := filepath.Base(filepath.Clean(root))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("module name not given and could not derive one from %q", root)
	}
	return model.ModuleName(base), nil
}
