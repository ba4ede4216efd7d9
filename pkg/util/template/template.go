package template

import (
	"regexp"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/pkg/errors"
)

var (
	// tplRegexp is the compiled regexp matching ${...} markers
	tplRegexp *regexp.Regexp
)

func init() {
	r, err := regexp.Compile(`\$\{[^}]+\}`)
	if err != nil {
		panic(errors.Wrap(err, "cannot compile template regexp"))
	}
	tplRegexp = r
}

// Context maps reference strings (e.g. "inputs.params.imageTag") to the
// literal values they resolve to.
type Context map[string]string

// Find returns the references of every ${...} marker within the given
// string, without the marker syntax.
func Find(in string) []string {
	var refs []string
	for _, m := range tplRegexp.FindAllString(in, -1) {
		refs = append(refs, m[2:len(m)-1])
	}
	return refs
}

// Resolve substitutes every ${...} marker in the given string with its
// value from the context. Substitution is a single, non-recursive pass:
// resolved values are not re-scanned for markers. A marker with no entry
// in the context yields an api.ErrUnresolvedReference, never an empty
// substitution.
func Resolve(in string, ctx Context) (string, error) {
	var rerr error
	out := tplRegexp.ReplaceAllStringFunc(in, func(matched string) string {
		ref := matched[2 : len(matched)-1]
		val, ok := ctx[ref]
		if !ok {
			if rerr == nil {
				rerr = api.UnresolvedReferenceError(ref)
			}
			return ""
		}
		return val
	})
	if rerr != nil {
		return "", rerr
	}
	return out, nil
}

// ResolveAll resolves every string of the given slice.
func ResolveAll(in []string, ctx Context) ([]string, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		r, err := Resolve(s, ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot resolve %q", s)
		}
		out[i] = r
	}
	return out, nil
}
