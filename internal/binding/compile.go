package binding

import (
	"fmt"
	"regexp"

	"github.com/vyrodovalexey/avrouter/internal/util"
)

// boundSpec is a Spec with its registration-time work done: the regex
// constraint compiled and the shape checks passed.
type boundSpec struct {
	Spec
	pattern *regexp.Regexp
}

// BoundSpecs is a compiled set of parameter specs ready for binding.
type BoundSpecs struct {
	specs []boundSpec
}

// Compile validates a spec set and compiles its regex constraints.
// Every shape problem is a registration-time failure; Bind never has
// to re-check spec validity per request.
func Compile(specs []Spec) (*BoundSpecs, error) {
	bound := make([]boundSpec, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))

	for i := range specs {
		spec := specs[i]
		if spec.Name == "" {
			return nil, util.NewMisconfigurationError("binding", fmt.Sprintf("specs[%d]", i), "parameter name is empty")
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, util.NewMisconfigurationError("binding", spec.Name, "duplicate parameter name")
		}
		seen[spec.Name] = struct{}{}

		if err := validateSpec(&spec); err != nil {
			return nil, err
		}

		bs := boundSpec{Spec: spec}
		if spec.Constraints.Pattern != "" {
			re, err := regexp.Compile(`\A(?:` + spec.Constraints.Pattern + `)\z`)
			if err != nil {
				return nil, util.NewMisconfigurationError("binding", spec.Name,
					fmt.Sprintf("invalid regex constraint: %v", err))
			}
			bs.pattern = re
		}
		bound = append(bound, bs)
	}

	return &BoundSpecs{specs: bound}, nil
}

// validateSpec checks the shape of a single spec.
func validateSpec(spec *Spec) error {
	switch spec.Source {
	case SourceQuery, SourcePath, SourceHeader, SourceCookie, SourceForm, SourceBody, SourceFile:
	default:
		return util.NewMisconfigurationError("binding", spec.Name, "unknown source")
	}

	switch spec.Type {
	case TypeString, TypeInt, TypeFloat, TypeBool:
	case TypeList:
		switch spec.Elem {
		case TypeString, TypeInt, TypeFloat, TypeBool:
		default:
			return util.NewMisconfigurationError("binding", spec.Name,
				"list parameter requires a scalar element type")
		}
	case TypeModel:
		if spec.Model == nil {
			return util.NewMisconfigurationError("binding", spec.Name,
				"model parameter requires a model factory")
		}
		if spec.Source != SourceBody {
			return util.NewMisconfigurationError("binding", spec.Name,
				"model parameter must bind from the body")
		}
	case TypeFile:
		if spec.Source != SourceFile {
			return util.NewMisconfigurationError("binding", spec.Name,
				"file parameter must bind from the file source")
		}
	default:
		return util.NewMisconfigurationError("binding", spec.Name, "unknown type")
	}

	if spec.Source == SourceFile && spec.Type != TypeFile {
		return util.NewMisconfigurationError("binding", spec.Name,
			"file source requires the file type")
	}

	c := spec.Constraints
	if c.GE != nil && c.LE != nil && *c.GE > *c.LE {
		return util.NewMisconfigurationError("binding", spec.Name, "ge exceeds le")
	}
	if c.GT != nil && c.LT != nil && *c.GT >= *c.LT {
		return util.NewMisconfigurationError("binding", spec.Name, "gt is not below lt")
	}
	if c.MinLength != nil && *c.MinLength < 0 {
		return util.NewMisconfigurationError("binding", spec.Name, "min_length is negative")
	}
	if c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength {
		return util.NewMisconfigurationError("binding", spec.Name, "min_length exceeds max_length")
	}

	return nil
}

// Specs returns the compiled specs in declaration order.
func (b *BoundSpecs) Specs() []Spec {
	out := make([]Spec, len(b.specs))
	for i := range b.specs {
		out[i] = b.specs[i].Spec
	}
	return out
}

// Len returns the number of compiled specs.
func (b *BoundSpecs) Len() int {
	return len(b.specs)
}
