package search

import (
	"context"
	"strings"
	"time"

	"gator-course-advisor/internal/domain/model"
	"gator-course-advisor/internal/domain/ports/adapter"
)

var _ adapter.CourseSearchAdapter = (*Catalog)(nil)

// topic maps interest keywords to the courses recommended for them.
type topic struct {
	keywords []string
	codes    []string
}

var defaultCourses = []model.Course{
	{Code: "CAP 4630", Title: "Artificial Intelligence", Description: "Covers fundamental AI concepts including search algorithms, knowledge representation, reasoning, machine learning basics, and applications of intelligent systems."},
	{Code: "EEL 3872", Title: "AI Foundations", Description: "Introduction to artificial intelligence principles, algorithms, and techniques. Explores problem-solving methods, heuristic search, and basic machine learning approaches."},
	{Code: "STA 4241", Title: "Machine Learning for Data Science", Description: "Statistical learning methods for data analysis including regression, classification, clustering, and model evaluation techniques applied to real-world datasets."},
	{Code: "COP 4813", Title: "Web Application Programming", Description: "Development of dynamic web applications using modern frameworks, client-server architecture, RESTful APIs, and database integration for full-stack solutions."},
	{Code: "CEN 4010", Title: "Software Engineering", Description: "Software development lifecycle, requirements analysis, design patterns, testing strategies, version control, and collaborative development practices in team environments."},
	{Code: "COP 3530", Title: "Data Structures", Description: "Covers fundamental data structures including lists, stacks, queues, trees, graphs, and algorithmic efficiency analysis."},
	{Code: "COP 4710", Title: "Database Systems", Description: "Database design, SQL querying, normalization, transaction management, indexing, and implementation of relational database management systems."},
	{Code: "CAP 4770", Title: "Data Mining", Description: "Techniques for discovering patterns in large datasets including association rules, classification, clustering, and evaluation of mining algorithms."},
	{Code: "CIS 4361", Title: "Computer Security", Description: "Principles of information security, threat analysis, access control, cryptography basics, network security, and secure software development practices."},
	{Code: "CNT 4403", Title: "Network Security", Description: "Security protocols, firewalls, intrusion detection systems, VPN technologies, and defense mechanisms for protecting network infrastructure."},
	{Code: "CIS 4362", Title: "Applied Cryptography", Description: "Cryptographic algorithms, symmetric and asymmetric encryption, digital signatures, hash functions, and their practical applications in secure systems."},
	{Code: "CAP 4720", Title: "Computer Graphics", Description: "Rendering techniques, 3D transformations, lighting models, texture mapping, and graphics programming using modern graphics APIs and shaders."},
	{Code: "CAP 4053", Title: "Game Development", Description: "Game design principles, game engines, physics simulation, collision detection, game AI, and development of interactive entertainment applications."},
}

var defaultTopics = []topic{
	{keywords: []string{"ai", "artificial intelligence", "machine learning"}, codes: []string{"CAP 4630", "EEL 3872", "STA 4241"}},
	{keywords: []string{"web", "frontend", "react"}, codes: []string{"COP 4813", "CEN 4010", "COP 3530"}},
	{keywords: []string{"database", "sql", "data"}, codes: []string{"COP 4710", "STA 4241", "CAP 4770"}},
	{keywords: []string{"cyber", "security", "hack"}, codes: []string{"CIS 4361", "CNT 4403", "CIS 4362"}},
	{keywords: []string{"game", "gaming", "graphics"}, codes: []string{"CAP 4720", "CAP 4053", "CEN 4010"}},
}

var fallbackCodes = []string{"COP 3530", "CEN 4010", "CAP 4630"}

// Catalog is an in-process course search backed by a fixed course list and
// keyword topics. It serves local development and the mock search service.
type Catalog struct {
	courses []model.Course
	byCode  map[string]model.Course
	topics  []topic
	delay   time.Duration
}

// NewCatalog returns the built-in catalog. delay simulates backend latency.
func NewCatalog(delay time.Duration) *Catalog {
	c := &Catalog{
		courses: defaultCourses,
		byCode:  make(map[string]model.Course, len(defaultCourses)),
		topics:  defaultTopics,
		delay:   delay,
	}
	for _, course := range c.courses {
		c.byCode[course.Code] = course
	}
	return c
}

// Search matches query keywords against the catalog topics and returns up to
// topK unique courses, falling back to a general set when nothing matches.
func (c *Catalog) Search(ctx context.Context, query string, topK int) ([]model.Course, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	lower := strings.ToLower(query)
	var codes []string
	for _, t := range c.topics {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				codes = append(codes, t.codes...)
				break
			}
		}
	}
	if len(codes) == 0 {
		codes = fallbackCodes
	}

	out := make([]model.Course, 0, len(codes))
	for _, code := range codes {
		if course, ok := c.byCode[code]; ok {
			out = append(out, course)
		}
	}
	out = model.DedupeCourses(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (c *Catalog) Health(ctx context.Context) (adapter.HealthStatus, error) {
	return adapter.HealthStatus{Status: "healthy", CoursesLoaded: len(c.courses)}, nil
}

// All returns up to limit catalog courses in catalog order; limit <= 0 means all.
func (c *Catalog) All(limit int) []model.Course {
	if limit <= 0 || limit > len(c.courses) {
		limit = len(c.courses)
	}
	return append([]model.Course(nil), c.courses[:limit]...)
}

func (c *Catalog) Len() int { return len(c.courses) }
