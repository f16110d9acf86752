// Package config reads and writes the two on-disk TOML formats this
// codebase understands: the protofetch.toml manifest (model.Descriptor)
// and the protofetch.lock lock file (model.LockFile), plus migration
// from the legacy protodep.toml format.
package config

import (
	"fmt"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/utilitywarehouse/protofetch/model"
)

// ParseManifest parses a protofetch.toml document into a Descriptor.
// Every top-level key other than name/description/proto_out_dir is taken
// to be a dependency table keyed by its module name.
func ParseManifest(data []byte) (model.Descriptor, error) {
	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return model.Descriptor{}, fmt.Errorf("parsing manifest: %w", err)
	}

	name, ok := raw["name"].(string)
	if !ok {
		return model.Descriptor{}, fmt.Errorf("manifest: %w: name", ErrMissingKey)
	}
	delete(raw, "name")

	descriptor := model.Descriptor{Name: model.ModuleName(name)}

	if v, ok := raw["description"]; ok {
		s, ok := v.(string)
		if !ok {
			return model.Descriptor{}, fmt.Errorf("manifest: description must be a string")
		}
		descriptor.Description = &s
	}
	delete(raw, "description")

	if v, ok := raw["proto_out_dir"]; ok {
		s, ok := v.(string)
		if !ok {
			return model.Descriptor{}, fmt.Errorf("manifest: proto_out_dir must be a string")
		}
		descriptor.ProtoOutDir = &s
	}
	delete(raw, "proto_out_dir")

	names := make([]string, 0, len(raw))
	for k := range raw {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, depName := range names {
		table, ok := raw[depName].(map[string]interface{})
		if !ok {
			return model.Descriptor{}, fmt.Errorf("manifest: dependency %q must be a table", depName)
		}
		dep, err := parseDependency(depName, table)
		if err != nil {
			return model.Descriptor{}, err
		}
		descriptor.Dependencies = append(descriptor.Dependencies, dep)
	}
	return descriptor, nil
}

func parseDependency(name string, table map[string]interface{}) (model.Dependency, error) {
	rawURL, ok := table["url"].(string)
	if !ok {
		return model.Dependency{}, fmt.Errorf("dependency %q: %w: url", name, ErrMissingKey)
	}

	var protocol *model.Protocol
	if v, ok := table["protocol"]; ok {
		s, ok := v.(string)
		if !ok {
			return model.Dependency{}, fmt.Errorf("dependency %q: protocol must be a string", name)
		}
		p, err := model.ParseProtocol(s)
		if err != nil {
			return model.Dependency{}, fmt.Errorf("dependency %q: %w", name, err)
		}
		protocol = &p
	}

	coordinate, err := model.CoordinateFromURL(rawURL, protocol)
	if err != nil {
		return model.Dependency{}, fmt.Errorf("dependency %q: %w", name, err)
	}

	revision := model.Arbitrary
	if v, ok := table["revision"]; ok {
		s, ok := v.(string)
		if !ok {
			return model.Dependency{}, fmt.Errorf("dependency %q: revision must be a string", name)
		}
		revision = model.Pinned(s)
	}

	var branch *string
	if v, ok := table["branch"]; ok {
		s, ok := v.(string)
		if !ok {
			return model.Dependency{}, fmt.Errorf("dependency %q: branch must be a string", name)
		}
		branch = &s
	}

	rules, err := parseRules(name, table)
	if err != nil {
		return model.Dependency{}, err
	}

	return model.Dependency{
		Name:          model.ModuleName(name),
		Coordinate:    coordinate,
		Specification: model.RevisionSpecification{Revision: revision, Branch: branch},
		Rules:         rules,
	}, nil
}

func parseRules(depName string, table map[string]interface{}) (model.Rules, error) {
	prune, _ := table["prune"].(bool)
	transitive, _ := table["transitive"].(bool)

	contentRoots, err := stringSlice(table, "content_roots")
	if err != nil {
		return model.Rules{}, fmt.Errorf("dependency %q: %w", depName, err)
	}

	allowRaw, err := stringSlice(table, "allow_policies")
	if err != nil {
		return model.Rules{}, fmt.Errorf("dependency %q: %w", depName, err)
	}
	allow, err := parsePolicies(depName, "allow_policies", allowRaw)
	if err != nil {
		return model.Rules{}, err
	}

	denyRaw, err := stringSlice(table, "deny_policies")
	if err != nil {
		return model.Rules{}, fmt.Errorf("dependency %q: %w", depName, err)
	}
	deny, err := parsePolicies(depName, "deny_policies", denyRaw)
	if err != nil {
		return model.Rules{}, err
	}

	return model.Rules{
		Prune:         prune,
		Transitive:    transitive,
		ContentRoots:  model.NewContentRootSet(contentRoots),
		AllowPolicies: allow,
		DenyPolicies:  deny,
	}, nil
}

func parsePolicies(depName, field string, raw []string) (model.PolicySet, error) {
	policies := make([]model.FilePolicy, 0, len(raw))
	for _, s := range raw {
		p, err := model.ParseFilePolicy(s)
		if err != nil {
			return model.PolicySet{}, fmt.Errorf("dependency %q: %s: %w: %w", depName, field, ErrInvalidPolicy, err)
		}
		policies = append(policies, p)
	}
	return model.NewPolicySet(policies), nil
}

func stringSlice(table map[string]interface{}, key string) ([]string, error) {
	v, ok := table[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be an array of strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

// EncodeManifest renders a Descriptor back into protofetch.toml form, one
// table per dependency, matching Descriptor.into_toml's field ordering.
func EncodeManifest(d model.Descriptor) ([]byte, error) {
	raw := make(map[string]interface{}, 3+len(d.Dependencies))
	raw["name"] = string(d.Name)
	if d.Description != nil {
		raw["description"] = *d.Description
	}
	if d.ProtoOutDir != nil {
		raw["proto_out_dir"] = *d.ProtoOutDir
	}

	for _, dep := range d.Dependencies {
		table := map[string]interface{}{
			"url": dep.Coordinate.String(),
		}
		if dep.Coordinate.Protocol != nil {
			table["protocol"] = string(*dep.Coordinate.Protocol)
		}
		if rev, ok := dep.Specification.Revision.Value(); ok {
			table["revision"] = rev
		}
		if dep.Specification.Branch != nil {
			table["branch"] = *dep.Specification.Branch
		}
		if dep.Rules.Prune {
			table["prune"] = true
		}
		if dep.Rules.Transitive {
			table["transitive"] = true
		}
		if !dep.Rules.ContentRoots.Empty() {
			table["content_roots"] = dep.Rules.ContentRoots.Roots()
		}
		if !dep.Rules.AllowPolicies.Empty() {
			table["allow_policies"] = policyStrings(dep.Rules.AllowPolicies)
		}
		if !dep.Rules.DenyPolicies.Empty() {
			table["deny_policies"] = policyStrings(dep.Rules.DenyPolicies)
		}
		raw[string(dep.Name)] = table
	}

	out, err := toml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return out, nil
}

func policyStrings(set model.PolicySet) []string {
	policies := set.Policies()
	out := make([]string, 0, len(policies))
	for _, p := range policies {
		out = append(out, p.String())
	}
	return out
}
