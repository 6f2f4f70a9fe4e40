package rules

import "github.com/corehub/sdk/internal/types"

// merge combines src into dst per spec §4.4: recursive on nested maps,
// lists replaced wholesale (never element-merged), scalars obey overwrite.
func merge(dst, src types.Map, overwrite bool) types.Map {
	out := dst.Clone()
	for k, sv := range src {
		dv, exists := out[k]
		switch {
		case !exists:
			out[k] = sv.Clone()
		case dv.Kind() == types.KindMap && sv.Kind() == types.KindMap:
			dstMap, _ := dv.AsMap()
			srcMap, _ := sv.AsMap()
			out[k] = types.FromMap(merge(dstMap, srcMap, overwrite))
		case overwrite:
			out[k] = sv.Clone()
		}
	}
	return out
}

// renderValue walks v recursively, replacing every string leaf with its
// token-rendered form. Non-string scalars, lists, and maps are walked but
// never reinterpreted — only string content ever carries {% %} tokens.
func renderValue(v types.Value, render func(string) string) types.Value {
	switch v.Kind() {
	case types.KindString:
		s, _ := v.AsString()
		return types.String(render(s))
	case types.KindList:
		list, _ := v.AsList()
		out := make([]types.Value, len(list))
		for i, e := range list {
			out[i] = renderValue(e, render)
		}
		return types.List(out)
	case types.KindMap:
		m, _ := v.AsMap()
		out := make(types.Map, len(m))
		for k, e := range m {
			out[k] = renderValue(e, render)
		}
		return types.FromMap(out)
	default:
		return v
	}
}
