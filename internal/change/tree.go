package change

// Resolve walks path from root and returns the value it addresses.
// The empty path resolves to root itself.
func Resolve(root Value, path Path) (Value, bool) {
	cur := root
	for _, key := range path {
		obj, ok := cur.(Object)
		if !ok {
			return nil, false
		}
		next, ok := obj[key]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Merge deep-merges a partial object src into a clone of dst and returns the
// result. dst is never modified: merging always produces a fresh value, which
// is what keeps derived views replace-on-update. A non-object src (or a
// non-object dst at the same position) replaces outright.
func Merge(dst, src Value) Value {
	srcObj, srcOK := src.(Object)
	dstObj, dstOK := dst.(Object)
	if !srcOK || !dstOK {
		return Clone(src)
	}

	out := make(Object, len(dstObj)+len(srcObj))
	for k, v := range dstObj {
		out[k] = Clone(v)
	}
	for k, v := range srcObj {
		if existing, ok := out[k]; ok {
			out[k] = Merge(existing, v)
		} else {
			out[k] = Clone(v)
		}
	}
	return out
}

// Prune removes the value addressed by path from a clone of root and returns
// the result. Pruning a path that does not resolve returns an unchanged
// clone. Pruning the empty path returns an empty object.
func Prune(root Value, path Path) Value {
	if len(path) == 0 {
		return Object{}
	}
	obj, ok := root.(Object)
	if !ok {
		return Clone(root)
	}

	out := make(Object, len(obj))
	for k, v := range obj {
		if k == path[0] {
			if len(path) == 1 {
				continue
			}
			out[k] = Prune(v, path[1:])
			continue
		}
		out[k] = Clone(v)
	}
	return out
}

// Nest wraps value in objects along path, producing the minimal tree that
// contains value at that location. Nest(["alice","pie"], String("cherry"))
// yields {"alice":{"pie":"cherry"}}.
func Nest(path Path, value Value) Value {
	out := Clone(value)
	for i := len(path) - 1; i >= 0; i-- {
		out = Object{path[i]: out}
	}
	return out
}

// StructuralClass buckets a value by shape: "object", "array", or "scalar".
// Update mutations must preserve the class; Replace may change it.
func StructuralClass(v Value) string {
	switch v.(type) {
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "scalar"
	}
}
