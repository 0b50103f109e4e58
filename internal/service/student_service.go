package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/acadportal-api/internal/models"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
)

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error
	UpdateWithUser(ctx context.Context, student *models.Student) error
}

// CreateStudentRequest provisions a portal account and a student profile.
type CreateStudentRequest struct {
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required,min=8"`
	FullName     string  `json:"full_name" validate:"required"`
	RollNumber   string  `json:"roll_number" validate:"required"`
	DepartmentID *string `json:"department_id,omitempty"`
	Semester     int     `json:"semester" validate:"required,min=1"`
}

// UpdateStudentRequest modifies a student profile.
type UpdateStudentRequest struct {
	FullName     string  `json:"full_name" validate:"required"`
	RollNumber   string  `json:"roll_number" validate:"required"`
	DepartmentID *string `json:"department_id,omitempty"`
	Semester     int     `json:"semester" validate:"required,min=1"`
	Active       bool    `json:"active"`
}

// StudentService manages student profiles and their linked accounts.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// Get returns a student profile with account info.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Create provisions the user account and student profile in one transaction.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Active:       true,
	}
	student := &models.Student{
		RollNumber:   req.RollNumber,
		FullName:     req.FullName,
		DepartmentID: req.DepartmentID,
		Semester:     req.Semester,
		Active:       true,
	}
	if err := s.repo.CreateWithUser(ctx, user, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransactionFailure.Code, appErrors.ErrTransactionFailure.Status, "failed to create student")
	}
	detail, err := s.repo.FindByID(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	s.logger.Info("student created", zap.String("student_id", student.ID))
	return detail, nil
}

// Update modifies a student profile and the linked account name atomically.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	student := existing.Student
	student.FullName = req.FullName
	student.RollNumber = req.RollNumber
	student.DepartmentID = req.DepartmentID
	student.Semester = req.Semester
	student.Active = req.Active
	if err := s.repo.UpdateWithUser(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransactionFailure.Code, appErrors.ErrTransactionFailure.Status, "failed to update student")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}
