package topology

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadMode controls how errors are handled during topology loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Load reads every CUE file in dir and compiles the declared topology.
// Node declarations live under the top-level "master", "composite", and
// "expression" structs. Structural validation runs after compilation, so
// a collect-all load reports reference and cycle problems alongside
// per-node compile errors.
func Load(dir string, mode LoadMode) (*Spec, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{fmt.Errorf("topology directory not found: %s", dir)}
	}
	if err != nil {
		return nil, []error{fmt.Errorf("accessing topology directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("not a directory: %s", dir)}
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scanning topology directory: %w", err)}
	}
	if len(cueFiles) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir, Package: "_"})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded from %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{fmt.Errorf("loading CUE files: %w", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	return CompileSpec(value, mode)
}

// CompileSpec compiles an already-built CUE value into a topology spec.
// Exposed separately so callers can compile inline CUE without a
// directory on disk.
func CompileSpec(value cue.Value, mode LoadMode) (*Spec, []error) {
	spec := &Spec{}
	var errs []error

	collect := func(path string, compile func(cue.Value) error) bool {
		structVal := value.LookupPath(cue.ParsePath(path))
		if !structVal.Exists() {
			return true
		}
		iter, err := structVal.Fields()
		if err != nil {
			errs = append(errs, fmt.Errorf("iterating %s declarations: %w", path, err))
			return mode != LoadModeFailFast
		}
		for iter.Next() {
			if err := compile(iter.Value()); err != nil {
				errs = append(errs, err)
				if mode == LoadModeFailFast {
					return false
				}
			}
		}
		return true
	}

	ok := collect("master", func(v cue.Value) error {
		m, err := CompileMaster(v)
		if err != nil {
			return err
		}
		spec.Masters = append(spec.Masters, *m)
		return nil
	})
	if ok {
		ok = collect("composite", func(v cue.Value) error {
			c, err := CompileComposite(v)
			if err != nil {
				return err
			}
			spec.Composites = append(spec.Composites, *c)
			return nil
		})
	}
	if ok {
		collect("expression", func(v cue.Value) error {
			e, err := CompileExpression(v)
			if err != nil {
				return err
			}
			spec.Expressions = append(spec.Expressions, *e)
			return nil
		})
	}

	if len(errs) > 0 && mode == LoadModeFailFast {
		return spec, errs
	}

	if len(spec.Masters) == 0 && len(errs) == 0 {
		errs = append(errs, fmt.Errorf("no masters declared in topology"))
	}

	errs = append(errs, spec.Validate()...)
	return spec, errs
}

// findCUEFiles walks the directory and returns all .cue file paths.
func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
