package binding

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Bind extracts values for every compiled spec from the input, in spec
// order. All violations are collected; Bind never stops at the first
// failed parameter. The returned MultiError is nil when every
// parameter bound cleanly.
func (b *BoundSpecs) Bind(in *Input) (Args, *MultiError) {
	args := make(Args, len(b.specs))
	merr := &MultiError{}

	for i := range b.specs {
		spec := &b.specs[i]
		switch spec.Type {
		case TypeModel:
			bindModel(spec, in, args, merr)
		case TypeFile:
			bindFile(spec, in, args, merr)
		default:
			bindValue(spec, in, args, merr)
		}
	}

	return args, merr.ErrorOrNil()
}

// bindValue handles scalar and list parameters: presence, coercion,
// then constraints.
func bindValue(spec *boundSpec, in *Input, args Args, merr *MultiError) {
	values, present := in.lookup(&spec.Spec)

	if !present || len(values) == 0 || (spec.Type != TypeList && values[0] == "") {
		if spec.Required() {
			merr.Add(spec.Name, spec.Source, "", "required")
			return
		}
		// Defaults are trusted; constraints are not re-checked.
		args[spec.Name] = spec.Default
		return
	}

	switch spec.Type {
	case TypeList:
		bindList(spec, values, args, merr)
	default:
		raw := values[0]
		v, err := coerceScalar(spec.Type, raw)
		if err != nil {
			merr.Add(spec.Name, spec.Source, raw, err.Error())
			return
		}
		checkConstraints(spec, raw, v, merr)
		if _, failed := hasViolationFor(merr, spec.Name); !failed {
			args[spec.Name] = v
		}
	}
}

// bindList coerces each element and applies length constraints to the
// list itself.
func bindList(spec *boundSpec, values []string, args Args, merr *MultiError) {
	elems := values
	if len(values) == 1 && strings.Contains(values[0], ",") {
		elems = strings.Split(values[0], ",")
	}

	out := make([]any, 0, len(elems))
	ok := true
	for i, raw := range elems {
		raw = strings.TrimSpace(raw)
		v, err := coerceScalar(spec.Elem, raw)
		if err != nil {
			merr.Add(spec.Name, spec.Source, raw, fmt.Sprintf("element %d: %v", i, err))
			ok = false
			continue
		}
		out = append(out, v)
	}

	c := spec.Constraints
	if c.MinLength != nil && len(elems) < *c.MinLength {
		merr.Add(spec.Name, spec.Source, strings.Join(elems, ","),
			fmt.Sprintf("fewer than %d elements", *c.MinLength))
		ok = false
	}
	if c.MaxLength != nil && len(elems) > *c.MaxLength {
		merr.Add(spec.Name, spec.Source, strings.Join(elems, ","),
			fmt.Sprintf("more than %d elements", *c.MaxLength))
		ok = false
	}

	if ok {
		args[spec.Name] = out
	}
}

// bindModel decodes the JSON body into a fresh model instance and runs
// its Validate method.
func bindModel(spec *boundSpec, in *Input, args Args, merr *MultiError) {
	if len(in.Body) == 0 {
		if spec.Required() {
			merr.Add(spec.Name, spec.Source, "", "required")
			return
		}
		args[spec.Name] = spec.Default
		return
	}

	model := spec.Model()
	if err := json.Unmarshal(in.Body, model); err != nil {
		merr.Add(spec.Name, spec.Source, "", fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	if err := model.Validate(); err != nil {
		for _, fieldErr := range flattenErrors(err) {
			merr.Add(spec.Name, spec.Source, "", fieldErr.Error())
		}
		return
	}

	args[spec.Name] = model
}

// bindFile binds the first uploaded file for the parameter name.
func bindFile(spec *boundSpec, in *Input, args Args, merr *MultiError) {
	header, ok := in.file(spec.Name)
	if !ok {
		if spec.Required() {
			merr.Add(spec.Name, spec.Source, "", "required")
			return
		}
		args[spec.Name] = spec.Default
		return
	}

	args[spec.Name] = &FileValue{
		Filename: header.Filename,
		Size:     header.Size,
		Header:   header,
	}
}

// coerceScalar converts a raw string to the target scalar type. Bool
// coercion never fails.
func coerceScalar(t Type, raw string) (any, error) {
	switch t {
	case TypeString:
		return raw, nil
	case TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not a valid integer")
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("not a valid number")
		}
		return f, nil
	case TypeBool:
		switch strings.ToLower(raw) {
		case "true", "1", "yes", "on":
			return true, nil
		default:
			return false, nil
		}
	default:
		return nil, fmt.Errorf("unsupported type %s", t)
	}
}

// checkConstraints applies numeric, length, and pattern constraints to
// a coerced scalar. Every failed constraint is its own violation.
func checkConstraints(spec *boundSpec, raw string, v any, merr *MultiError) {
	c := spec.Constraints

	if num, ok := numericValue(v); ok {
		if c.GE != nil && num < *c.GE {
			merr.Add(spec.Name, spec.Source, raw, fmt.Sprintf("must be >= %v", *c.GE))
		}
		if c.GT != nil && num <= *c.GT {
			merr.Add(spec.Name, spec.Source, raw, fmt.Sprintf("must be > %v", *c.GT))
		}
		if c.LE != nil && num > *c.LE {
			merr.Add(spec.Name, spec.Source, raw, fmt.Sprintf("must be <= %v", *c.LE))
		}
		if c.LT != nil && num >= *c.LT {
			merr.Add(spec.Name, spec.Source, raw, fmt.Sprintf("must be < %v", *c.LT))
		}
	}

	if s, ok := v.(string); ok {
		if c.MinLength != nil && len(s) < *c.MinLength {
			merr.Add(spec.Name, spec.Source, raw, fmt.Sprintf("shorter than %d characters", *c.MinLength))
		}
		if c.MaxLength != nil && len(s) > *c.MaxLength {
			merr.Add(spec.Name, spec.Source, raw, fmt.Sprintf("longer than %d characters", *c.MaxLength))
		}
		if spec.pattern != nil && !spec.pattern.MatchString(s) {
			merr.Add(spec.Name, spec.Source, raw, "does not match required pattern")
		}
	}
}

// numericValue extracts a float64 from int64 and float64 values.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// hasViolationFor reports whether a violation was already recorded for
// a field.
func hasViolationFor(merr *MultiError, field string) (int, bool) {
	for i, v := range merr.Violations {
		if v.Field == field {
			return i, true
		}
	}
	return -1, false
}

// flattenErrors expands joined errors into their parts so each model
// field error becomes its own violation.
func flattenErrors(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
