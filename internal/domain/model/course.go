package model

import "strings"

// Course is an immutable catalog entry. Two courses are the same course when
// their codes match; title and description are display data only.
type Course struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SameCourse reports whether a and b share a course code.
func SameCourse(a, b Course) bool {
	return a.Code == b.Code
}

// NormalizeCode trims surrounding whitespace from a course code.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// DedupeCourses keeps the first course for every code, preserving order.
func DedupeCourses(in []Course) []Course {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]Course, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.Code]; ok {
			continue
		}
		seen[c.Code] = struct{}{}
		out = append(out, c)
	}
	return out
}
