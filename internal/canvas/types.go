package canvas

import (
	"encoding/json"
	"math"
	"strconv"
)

// Profile is the raw user profile returned by Canvas. It is kept as
// an opaque mapping because the username field is configurable and
// deployments attach custom attributes.
type Profile map[string]any

// String returns the named profile field rendered as a string.
// Numeric fields (Canvas user ids) are formatted without an exponent.
func (p Profile) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	return stringify(v)
}

// Enrollment is the slice of enrollment info embedded in a course
// object. Only the type is relevant for group derivation.
type Enrollment struct {
	Type string `json:"type"`
}

// Course is a Canvas course. Known fields are decoded normally while
// Attrs retains the full object so the configurable course key
// (id, sis_course_id, course_code, ...) can be looked up.
type Course struct {
	Enrollments []Enrollment   `json:"enrollments"`
	Attrs       map[string]any `json:"-"`
}

func (c *Course) UnmarshalJSON(b []byte) error {
	type alias Course
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	var attrs map[string]any
	if err := json.Unmarshal(b, &attrs); err != nil {
		return err
	}
	a.Attrs = attrs
	*c = Course(a)
	return nil
}

// Key returns the course identifier under the given key name.
func (c Course) Key(name string) (string, bool) {
	v, ok := c.Attrs[name]
	if !ok || v == nil {
		return "", false
	}
	return stringify(v)
}

// Group is a Canvas group membership. The context is either a course
// or an account; the matching id field depends on the context type.
type Group struct {
	Name        string `json:"name"`
	ContextType string `json:"context_type"`
	CourseID    int64  `json:"course_id"`
	AccountID   int64  `json:"account_id"`
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}
