package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/model"
)

// UserRepo provides access to partner/ops portal accounts.
type UserRepo struct {
    db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the provided database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new account.  booking.ErrConflict is returned when the
// email is already registered.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, role string) (model.User, error) {
    const q = `INSERT INTO users (email, password_hash, role) VALUES ($1, $2, $3)
               RETURNING id, created_at`
    u := model.User{Email: email, PasswordHash: passwordHash, Role: role}
    err := r.db.QueryRowContext(ctx, q, email, passwordHash, role).Scan(&u.ID, &u.CreatedAt)
    if err != nil {
        if isUniqueViolation(err) {
            return model.User{}, ErrDuplicate
        }
        return model.User{}, err
    }
    return u, nil
}

// GetByEmail loads an account by email.  booking.ErrNotFound when absent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
    const q = `SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1`
    var u model.User
    err := r.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.User{}, booking.ErrNotFound
        }
        return model.User{}, err
    }
    return u, nil
}
