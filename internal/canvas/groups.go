package canvas

import (
	"sort"
	"strconv"
	"strings"
)

// group name term separator
const groupSep = "::"

// FormatGroup assembles a canonical group name from the given terms.
func FormatGroup(terms ...string) string {
	return strings.Join(terms, groupSep)
}

// CourseGroups derives group names from course enrollments:
//
//	course::{courseKey}
//	course::{courseKey}::enrollment_type::{type}
//
// courseKey names the course field used as the identifier. Courses
// missing that field are skipped. Enrollment types are deduplicated
// and emitted in sorted order so the result is deterministic.
func CourseGroups(courses []Course, courseKey string) []string {
	var groups []string
	for _, course := range courses {
		id, ok := course.Key(courseKey)
		if !ok {
			continue
		}
		groups = append(groups, FormatGroup("course", id))

		seen := make(map[string]struct{})
		var types []string
		for _, e := range course.Enrollments {
			if e.Type == "" {
				continue
			}
			if _, dup := seen[e.Type]; dup {
				continue
			}
			seen[e.Type] = struct{}{}
			types = append(types, e.Type)
		}
		sort.Strings(types)
		for _, t := range types {
			groups = append(groups, FormatGroup("course", id, "enrollment_type", t))
		}
	}
	return groups
}

// MembershipGroups derives group names from Canvas group memberships:
//
//	{context_type}::{context_id}::group::{name}
//
// e.g. course::12345::group::mygroup1 or account::23456::group::mygroup1.
// The same group name can appear in multiple group sets with no way to
// tell them apart, so duplicates are removed; results are sorted.
func MembershipGroups(groups []Group) []string {
	set := make(map[string]struct{})
	for _, g := range groups {
		if g.Name == "" {
			continue
		}
		contextType := strings.ToLower(g.ContextType)
		var contextID int64
		switch contextType {
		case "course":
			contextID = g.CourseID
		case "account":
			contextID = g.AccountID
		}
		name := FormatGroup(contextType, strconv.FormatInt(contextID, 10), "group", g.Name)
		set[name] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
