package binding

import (
	"mime/multipart"
	"net/http"
	"net/url"
)

// Input is the framework-neutral view of a request that binding reads
// from. The caller fills only the sources it has; nil maps behave as
// empty.
type Input struct {
	Query   url.Values
	Path    map[string]string
	Header  http.Header
	Cookies []*http.Cookie
	Form    url.Values
	Files   map[string][]*multipart.FileHeader
	Body    []byte
}

// lookup returns the values present for a spec in its declared source.
// The second return reports presence; an empty present slice means the
// parameter appeared with no value.
func (in *Input) lookup(spec *Spec) (values []string, ok bool) {
	switch spec.Source {
	case SourceQuery:
		if in.Query == nil {
			return nil, false
		}
		vs, ok := in.Query[spec.Name]
		return vs, ok
	case SourcePath:
		v, ok := in.Path[spec.Name]
		if !ok {
			return nil, false
		}
		return []string{v}, true
	case SourceHeader:
		if in.Header == nil {
			return nil, false
		}
		vs := in.Header.Values(spec.Name)
		return vs, len(vs) > 0
	case SourceCookie:
		for _, c := range in.Cookies {
			if c.Name == spec.Name {
				return []string{c.Value}, true
			}
		}
		return nil, false
	case SourceForm:
		if in.Form == nil {
			return nil, false
		}
		vs, ok := in.Form[spec.Name]
		return vs, ok
	default:
		return nil, false
	}
}

// file returns the first uploaded file for a name.
func (in *Input) file(name string) (*multipart.FileHeader, bool) {
	headers, ok := in.Files[name]
	if !ok || len(headers) == 0 {
		return nil, false
	}
	return headers[0], true
}
