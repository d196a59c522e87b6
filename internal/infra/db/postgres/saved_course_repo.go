package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"gator-course-advisor/internal/domain"
	"gator-course-advisor/internal/domain/model"
	"gator-course-advisor/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.SavedCourseRepository = (*PostgresSavedCourseRepo)(nil)

// checkViolation is the SQLSTATE for a failed CHECK constraint.
const checkViolation = "23514"

type PostgresSavedCourseRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSavedCourseRepo(pool *pgxpool.Pool) *PostgresSavedCourseRepo {
	return &PostgresSavedCourseRepo{pool: pool}
}

// Add inserts course; an existing code keeps its original row and position.
func (r *PostgresSavedCourseRepo) Add(ctx context.Context, course model.Course) error {
	const sql = `
INSERT INTO saved_courses (code, title, description)
VALUES ($1, $2, $3)
ON CONFLICT (code) DO NOTHING;
`
	_, err := r.pool.Exec(ctx, sql, course.Code, course.Title, course.Description)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
			return fmt.Errorf("Add saved course: %w", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("Add saved course: %w", err)
	}
	return nil
}

func (r *PostgresSavedCourseRepo) Remove(ctx context.Context, code string) error {
	const sql = `DELETE FROM saved_courses WHERE code = $1;`
	if _, err := r.pool.Exec(ctx, sql, code); err != nil {
		return fmt.Errorf("Remove saved course: %w", err)
	}
	return nil
}

// List returns saved courses in insertion order.
func (r *PostgresSavedCourseRepo) List(ctx context.Context) ([]model.Course, error) {
	const sql = `
SELECT code, title, description
  FROM saved_courses
 ORDER BY position;
`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("List saved courses: %w", err)
	}
	defer rows.Close()
	var out []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.Code, &c.Title, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
