package binding

import "mime/multipart"

// Source identifies where a parameter value is read from.
type Source int

const (
	// SourceUnknown is an unspecified source.
	SourceUnknown Source = iota

	// SourceQuery reads from URL query parameters.
	SourceQuery

	// SourcePath reads from URL path parameters.
	SourcePath

	// SourceHeader reads from HTTP headers.
	SourceHeader

	// SourceCookie reads from HTTP cookies.
	SourceCookie

	// SourceForm reads from form data.
	SourceForm

	// SourceBody reads the raw request body.
	SourceBody

	// SourceFile reads an uploaded multipart file.
	SourceFile
)

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceQuery:
		return "query"
	case SourcePath:
		return "path"
	case SourceHeader:
		return "header"
	case SourceCookie:
		return "cookie"
	case SourceForm:
		return "form"
	case SourceBody:
		return "body"
	case SourceFile:
		return "file"
	default:
		return "unknown"
	}
}

// Type identifies the target type a parameter value is coerced to.
type Type int

const (
	// TypeUnknown is an unspecified type.
	TypeUnknown Type = iota

	// TypeString passes the value through unchanged.
	TypeString

	// TypeInt coerces via strconv.ParseInt.
	TypeInt

	// TypeFloat coerces via strconv.ParseFloat.
	TypeFloat

	// TypeBool treats true/1/yes/on (case-insensitive) as true and
	// anything else as false.
	TypeBool

	// TypeList splits a single value on commas, or uses repeated
	// values when the source provides them, coercing each element.
	TypeList

	// TypeModel decodes the JSON body into a fresh Validatable.
	TypeModel

	// TypeFile binds an uploaded multipart file.
	TypeFile
)

// String returns the string representation of the type.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeList:
		return "list"
	case TypeModel:
		return "model"
	case TypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// Validatable is the contract body models satisfy. Validate is called
// after JSON decoding; every error it reports is surfaced verbatim as
// a violation.
type Validatable interface {
	Validate() error
}

// Constraints holds the optional value checks applied after coercion.
// Numeric bounds apply to int and float values, length bounds to
// strings and lists, Pattern full-matches strings.
type Constraints struct {
	GE        *float64
	GT        *float64
	LE        *float64
	LT        *float64
	MinLength *int
	MaxLength *int
	Pattern   string
}

// Spec declares a single parameter: where it comes from, what type it
// coerces to, and which constraints apply. A nil Default makes the
// parameter required.
type Spec struct {
	Name        string
	Source      Source
	Type        Type
	Elem        Type
	Default     any
	Constraints Constraints
	Model       func() Validatable
	Description string
}

// Required reports whether the parameter must be present.
func (s *Spec) Required() bool {
	return s.Default == nil
}

// FileValue is the bound form of an uploaded file.
type FileValue struct {
	Filename string
	Size     int64
	Header   *multipart.FileHeader
}
