package template

import "strings"

// Reference scopes. A reference is "<scope>.<path>" where scope is one of
// the constants below.
const (
	// ScopeInputParams addresses a task parameter value.
	ScopeInputParams = "inputs.params"

	// ScopeInputResources addresses an attribute of a resource bound to an
	// input slot, e.g. inputs.resources.src.url.
	ScopeInputResources = "inputs.resources"

	// ScopeOutputResources addresses an attribute of a resource bound to an
	// output slot.
	ScopeOutputResources = "outputs.resources"

	// ScopePipelineParams addresses a pipeline parameter, usable inside
	// pipeline task parameter bindings.
	ScopePipelineParams = "params"
)

var scopes = []string{ScopeInputParams, ScopeInputResources, ScopeOutputResources, ScopePipelineParams}

// SplitReference splits a reference into its scope and path.
// Returns ok=false if the reference belongs to no known scope or has an
// empty path.
func SplitReference(ref string) (scope, path string, ok bool) {
	for _, s := range scopes {
		if strings.HasPrefix(ref, s+".") {
			p := ref[len(s)+1:]
			if p == "" {
				return "", "", false
			}
			return s, p, true
		}
	}
	return "", "", false
}

// SlotOf returns the slot name addressed by a resource reference path,
// i.e. the first segment of "<slot>.<attribute>".
func SlotOf(path string) string {
	if i := strings.Index(path, "."); i >= 0 {
		return path[:i]
	}
	return path
}
