package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"learningmap/api/internal/hexmap"
)

// Catalog serves reference data (courses, units, classes, templates,
// curriculum vocabulary) from Postgres. It is optional: deployments
// without a DATABASE_URL fall back to the built-in defaults.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Catalog) Courses(ctx context.Context) ([]hexmap.Course, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name, subject FROM courses ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var out []hexmap.Course
	for rows.Next() {
		var course hexmap.Course
		if err := rows.Scan(&course.ID, &course.Name, &course.Subject); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, course)
	}
	return out, rows.Err()
}

func (c *Catalog) Units(ctx context.Context) ([]hexmap.Unit, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, course_id, name FROM units ORDER BY course_id, name`)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var out []hexmap.Unit
	for rows.Next() {
		var unit hexmap.Unit
		if err := rows.Scan(&unit.ID, &unit.CourseID, &unit.Name); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}

func (c *Catalog) Classes(ctx context.Context) ([]hexmap.ClassGroup, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name, student_emails FROM class_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var out []hexmap.ClassGroup
	for rows.Next() {
		var class hexmap.ClassGroup
		var emails []byte
		if err := rows.Scan(&class.ID, &class.Name, &emails); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		if len(emails) > 0 {
			if err := json.Unmarshal(emails, &class.StudentEmails); err != nil {
				return nil, fmt.Errorf("decode class roster %s: %w", class.ID, err)
			}
		}
		out = append(out, class)
	}
	return out, rows.Err()
}

func (c *Catalog) HexTemplates(ctx context.Context) ([]hexmap.HexTemplate, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, label, icon, type, curriculum FROM hex_templates ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("list hex templates: %w", err)
	}
	defer rows.Close()

	var out []hexmap.HexTemplate
	for rows.Next() {
		var tpl hexmap.HexTemplate
		var curriculum []byte
		if err := rows.Scan(&tpl.ID, &tpl.Label, &tpl.Icon, &tpl.Type, &curriculum); err != nil {
			return nil, fmt.Errorf("scan hex template: %w", err)
		}
		if len(curriculum) > 0 {
			if err := json.Unmarshal(curriculum, &tpl.Curriculum); err != nil {
				return nil, fmt.Errorf("decode template curriculum %s: %w", tpl.ID, err)
			}
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

// CurriculumConfig reads the single-row tagging vocabulary. A missing
// row is not an error; the caller falls back to defaults.
func (c *Catalog) CurriculumConfig(ctx context.Context) (*hexmap.CurriculumConfig, error) {
	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT config FROM curriculum_config WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read curriculum config: %w", err)
	}
	var cfg hexmap.CurriculumConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode curriculum config: %w", err)
	}
	return &cfg, nil
}
