package model

// SavedCourses is the user's deduplicated list of courses marked for follow-up.
// It is a value type: Add and Remove return a new set and never touch the receiver,
// so a snapshot handed to a renderer stays stable.
type SavedCourses struct {
	order  []string
	byCode map[string]Course
}

// NewSavedCourses builds a set from courses, dropping repeated codes.
func NewSavedCourses(courses ...Course) SavedCourses {
	var s SavedCourses
	for _, c := range courses {
		s = s.Add(c)
	}
	return s
}

// Add returns a set containing course. If the code is already present the
// receiver is returned unchanged.
func (s SavedCourses) Add(course Course) SavedCourses {
	if _, ok := s.byCode[course.Code]; ok {
		return s
	}
	next := SavedCourses{
		order:  make([]string, len(s.order), len(s.order)+1),
		byCode: make(map[string]Course, len(s.byCode)+1),
	}
	copy(next.order, s.order)
	for k, v := range s.byCode {
		next.byCode[k] = v
	}
	next.order = append(next.order, course.Code)
	next.byCode[course.Code] = course
	return next
}

// Remove returns a set without code. Removing an absent code is a no-op.
func (s SavedCourses) Remove(code string) SavedCourses {
	if _, ok := s.byCode[code]; !ok {
		return s
	}
	next := SavedCourses{
		order:  make([]string, 0, len(s.order)-1),
		byCode: make(map[string]Course, len(s.byCode)-1),
	}
	for _, c := range s.order {
		if c == code {
			continue
		}
		next.order = append(next.order, c)
		next.byCode[c] = s.byCode[c]
	}
	return next
}

func (s SavedCourses) Contains(code string) bool {
	_, ok := s.byCode[code]
	return ok
}

func (s SavedCourses) Len() int { return len(s.order) }

// List returns the saved courses in insertion order.
func (s SavedCourses) List() []Course {
	out := make([]Course, 0, len(s.order))
	for _, c := range s.order {
		out = append(out, s.byCode[c])
	}
	return out
}
