package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/acadportal-api/internal/models"
)

// StudentRepository handles persistence of student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student profile with account info.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `SELECT s.id, s.user_id, s.roll_number, s.full_name, s.department_id, s.semester, s.active, s.created_at, s.updated_at,
        u.email, u.active AS user_active
        FROM students s JOIN users u ON u.id = s.user_id WHERE s.id = $1`
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUserID returns the student profile linked to a portal account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	const query = `SELECT s.id, s.user_id, s.roll_number, s.full_name, s.department_id, s.semester, s.active, s.created_at, s.updated_at,
        u.email, u.active AS user_active
        FROM students s JOIN users u ON u.id = s.user_id WHERE s.user_id = $1`
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns students matching the filter with pagination.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := `FROM students s JOIN users u ON u.id = s.user_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(s.full_name ILIKE $%d OR s.roll_number ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.DepartmentID != "" {
		where = append(where, fmt.Sprintf("s.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Semester > 0 {
		where = append(where, fmt.Sprintf("s.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	whereClause := " WHERE " + strings.Join(where, " AND ")

	allowedSorts := map[string]string{
		"full_name":   "s.full_name",
		"roll_number": "s.roll_number",
		"created_at":  "s.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.roll_number"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.user_id, s.roll_number, s.full_name, s.department_id, s.semester, s.active, s.created_at, s.updated_at,
        u.email, u.active AS user_active %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+whereClause, orderBy, order, size, offset)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// CreateWithUser inserts the portal user and the student profile in one
// transaction so a failure leaves neither row behind.
func (r *StudentRepository) CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student create: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Role = models.RoleStudent
	user.CreatedAt = now
	user.UpdatedAt = now
	const userInsert = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userInsert, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.UserID = user.ID
	student.CreatedAt = now
	student.UpdatedAt = now
	const studentInsert = `INSERT INTO students (id, user_id, roll_number, full_name, department_id, semester, active, created_at, updated_at)
        VALUES (:id, :user_id, :roll_number, :full_name, :department_id, :semester, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, studentInsert, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit student create: %w", err)
	}
	committed = true
	return nil
}

// UpdateWithUser updates the profile and the linked user name atomically.
func (r *StudentRepository) UpdateWithUser(ctx context.Context, student *models.Student) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student update: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	student.UpdatedAt = now
	const studentUpdate = `UPDATE students SET roll_number = :roll_number, full_name = :full_name, department_id = :department_id,
        semester = :semester, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, studentUpdate, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET full_name = $2, updated_at = $3 WHERE id = $1`, student.UserID, student.FullName, now); err != nil {
		return fmt.Errorf("update student user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit student update: %w", err)
	}
	committed = true
	return nil
}

// Count returns the number of active students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students WHERE active`); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}
