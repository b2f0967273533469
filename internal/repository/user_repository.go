package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lpg-service/internal/models"
)

var validate = validator.New()

type userRepo struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &userRepo{db: db}
}

type userRecord struct {
	Email    string `validate:"required,email"`
	FullName string `validate:"required,min=2,max=150"`
	Phone    string `validate:"omitempty,e164"`
	Hash     string `validate:"required"`
}

func isUniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr, true
	}
	return nil, false
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	rec := userRecord{Email: u.Email, FullName: u.FullName, Phone: u.Phone, Hash: u.PasswordHash}
	if err := validate.Struct(rec); err != nil {
		var validationErr validator.ValidationErrors
		if errors.As(err, &validationErr) {
			switch validationErr[0].Field() {
			case "Email":
				return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
			case "Phone":
				return fmt.Errorf("%w: phone must be in E.164 format (+639171234567)", ErrInvalidInput)
			case "FullName":
				return fmt.Errorf("%w: full name must be 2-150 characters", ErrInvalidInput)
			}
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.Role == "" {
		u.Role = models.RoleCustomer
	}

	sql := `
		INSERT INTO users (
			email,
			full_name,
			phone,
			address,
			role,
			password_hash,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	err := r.db.QueryRow(ctx, sql,
		u.Email,
		u.FullName,
		u.Phone,
		u.Address,
		u.Role,
		u.PasswordHash,
		now,
	).Scan(&u.ID)
	if err != nil {
		if pgErr, ok := isUniqueViolation(err); ok && strings.Contains(pgErr.ConstraintName, "email") {
			return fmt.Errorf("%w: email already exists", ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

const userColumns = `
	id,
	email,
	full_name,
	COALESCE(phone, ''),
	COALESCE(address, ''),
	role,
	password_hash,
	created_at,
	updated_at`

func (r *userRepo) get(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE `+where, arg).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.Phone,
		&u.Address,
		&u.Role,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
	}
	return r.get(ctx, "email = $1", email)
}

type adminRepo struct {
	db *pgxpool.Pool
}

func NewAdminRepository(db *pgxpool.Pool) AdminRepository {
	return &adminRepo{db: db}
}

func (r *adminRepo) Create(ctx context.Context, a *models.Admin) error {
	if strings.TrimSpace(a.Username) == "" || a.PasswordHash == "" {
		return fmt.Errorf("%w: username and password hash are required", ErrInvalidInput)
	}

	a.CreatedAt = time.Now().UTC()

	err := r.db.QueryRow(ctx,
		`INSERT INTO admins (username, password_hash, created_at) VALUES ($1, $2, $3) RETURNING id`,
		a.Username, a.PasswordHash, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return fmt.Errorf("%w: admin already exists", ErrDuplicate)
		}
		return fmt.Errorf("create admin: %w", err)
	}

	return nil
}

func (r *adminRepo) GetByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var a models.Admin
	err := r.db.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM admins WHERE username = $1`,
		username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}

	return &a, nil
}
