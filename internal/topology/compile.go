package topology

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/helix/internal/change"
)

// CompileMaster parses a CUE value into a MasterSpec.
//
// The CUE value should be the master struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`master: pantry: { data: {...} }`)
//	spec, err := CompileMaster(v.LookupPath(cue.ParsePath("master.pantry")))
func CompileMaster(v cue.Value) (*MasterSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &MasterSpec{Name: nodeLabel(v)}

	dataVal := v.LookupPath(cue.ParsePath("data"))
	if !dataVal.Exists() {
		return nil, &CompileError{
			Field:   "data",
			Message: "master data is required",
			Pos:     v.Pos(),
		}
	}
	data, err := extractValue(dataVal)
	if err != nil {
		return nil, err
	}
	obj, ok := data.(change.Object)
	if !ok {
		return nil, &CompileError{
			Field:   "data",
			Message: "master data must be an object",
			Pos:     dataVal.Pos(),
		}
	}
	spec.Data = obj

	return spec, nil
}

// CompileComposite parses a CUE value into a CompositeSpec.
func CompileComposite(v cue.Value) (*CompositeSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &CompositeSpec{Name: nodeLabel(v)}

	upVal := v.LookupPath(cue.ParsePath("upstream"))
	if !upVal.Exists() {
		return nil, &CompileError{
			Field:   "upstream",
			Message: "composite upstream is required",
			Pos:     v.Pos(),
		}
	}
	upstream, err := upVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Upstream = upstream

	spec.Select, err = parseSelector(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// CompileExpression parses a CUE value into an ExpressionSpec. Upstream
// may be a single name or a list of names.
func CompileExpression(v cue.Value) (*ExpressionSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ExpressionSpec{Name: nodeLabel(v)}

	upVal := v.LookupPath(cue.ParsePath("upstream"))
	if !upVal.Exists() {
		return nil, &CompileError{
			Field:   "upstream",
			Message: "expression upstream is required",
			Pos:     v.Pos(),
		}
	}
	if name, err := upVal.String(); err == nil {
		spec.Upstream = []string{name}
	} else {
		names, err := stringList(upVal)
		if err != nil {
			return nil, &CompileError{
				Field:   "upstream",
				Message: "upstream must be a name or list of names",
				Pos:     upVal.Pos(),
			}
		}
		spec.Upstream = names
	}

	var err error
	spec.Select, err = parseSelector(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parseSelector extracts the optional select block. Absent means match
// everything.
func parseSelector(v cue.Value) (SelectorSpec, error) {
	var spec SelectorSpec

	selVal := v.LookupPath(cue.ParsePath("select"))
	if !selVal.Exists() {
		return spec, nil
	}

	allVal := selVal.LookupPath(cue.ParsePath("all"))
	if allVal.Exists() {
		all, err := allVal.Bool()
		if err != nil {
			return spec, formatCUEError(err)
		}
		spec.All = all
	}

	prefixVal := selVal.LookupPath(cue.ParsePath("prefix"))
	if prefixVal.Exists() {
		prefix, err := stringList(prefixVal)
		if err != nil {
			return spec, &CompileError{
				Field:   "select.prefix",
				Message: "prefix must be a list of strings",
				Pos:     prefixVal.Pos(),
			}
		}
		spec.Prefix = prefix
	}

	fieldsVal := selVal.LookupPath(cue.ParsePath("fields"))
	if fieldsVal.Exists() {
		fields, err := stringList(fieldsVal)
		if err != nil {
			return spec, &CompileError{
				Field:   "select.fields",
				Message: "fields must be a list of strings",
				Pos:     fieldsVal.Pos(),
			}
		}
		spec.Fields = fields
	}

	return spec, nil
}

// extractValue converts a concrete CUE value to canonical data. Floats
// are forbidden; only null, bool, int, string, list, and struct map.
func extractValue(v cue.Value) (change.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return change.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return change.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return change.Int(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return change.String(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := change.Array{}
		for iter.Next() {
			elem, err := extractValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := change.Object{}
		for iter.Next() {
			field, err := extractValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = field
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "data",
			Message: "float values are forbidden in canonical data, use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "data",
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// nodeLabel takes the node's name from its struct label.
func nodeLabel(v cue.Value) string {
	labels := v.Path().Selectors()
	if len(labels) == 0 {
		return ""
	}
	return labels[len(labels)-1].String()
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
