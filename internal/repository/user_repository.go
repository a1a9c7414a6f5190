package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smartpass-api/internal/models"
)

const userColumns = `id, name, email, password_hash, role, dept, account_status, created_at, updated_at`

// UserRepository provides database access for users and RFID card bindings.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail matches the normalised email; returns sql.ErrNoRows when absent.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, models.NormalizeEmail(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// List returns users ordered by name.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	ph := &placeholder{}
	conditions := []string{"1=1"}
	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", ph.next(*filter.Role)))
	}
	if filter.Search != "" {
		idx := ph.next("%" + strings.ToLower(filter.Search) + "%")
		conditions = append(conditions, fmt.Sprintf("(email LIKE $%d OR LOWER(name) LIKE $%d)", idx, idx))
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY name`, userColumns, strings.Join(conditions, " AND "))

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, ph.args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Create inserts a user through q so it can join a caller's transaction. A taken
// email surfaces as ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, q sqlx.ExtContext, user *models.User) error {
	if q == nil {
		q = r.db
	}
	user.Email = models.NormalizeEmail(user.Email)
	const query = `INSERT INTO users (id, name, email, password_hash, role, dept, account_status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := q.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Dept, user.AccountStatus, user.CreatedAt, user.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update applies an admin edit of name, role and department.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	const query = `UPDATE users SET name = $2, role = $3, dept = $4, updated_at = $5 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, user.ID, user.Name, user.Role, user.Dept, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(result, "update user")
}

// Delete removes the user and every card bound to them.
func (r *UserRepository) Delete(ctx context.Context, q sqlx.ExtContext, id string) error {
	if q == nil {
		q = r.db
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM rfid_cards WHERE student_id = $1`, id); err != nil {
		return fmt.Errorf("delete user cards: %w", err)
	}
	result, err := q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(result, "delete user")
}

// ResolveCard returns the student bound to cardNumber.
func (r *UserRepository) ResolveCard(ctx context.Context, cardNumber string) (string, error) {
	var studentID string
	if err := r.db.GetContext(ctx, &studentID, `SELECT student_id FROM rfid_cards WHERE card_number = $1`, cardNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("resolve card: %w", err)
	}
	return studentID, nil
}

// BindCard binds cardNumber to studentID in a single statement. The no-op conflict
// update locks and returns the existing row, so a concurrent binder either wins the
// insert or observes the winner. Rebinding to the same student is idempotent.
func (r *UserRepository) BindCard(ctx context.Context, q sqlx.ExtContext, cardNumber, studentID string, boundAt time.Time) error {
	if q == nil {
		q = r.db
	}
	const query = `INSERT INTO rfid_cards (card_number, student_id, bound_at) VALUES ($1, $2, $3)
	ON CONFLICT (card_number) DO UPDATE SET card_number = EXCLUDED.card_number
	RETURNING student_id`
	var owner string
	if err := sqlx.GetContext(ctx, q, &owner, query, cardNumber, studentID, boundAt); err != nil {
		return fmt.Errorf("bind card: %w", err)
	}
	if owner != studentID {
		return ErrCardBound
	}
	return nil
}

// UnbindCard releases a card so it can be reassigned.
func (r *UserRepository) UnbindCard(ctx context.Context, cardNumber string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rfid_cards WHERE card_number = $1`, cardNumber)
	if err != nil {
		return fmt.Errorf("unbind card: %w", err)
	}
	return requireRow(result, "unbind card")
}

// ListCards returns card bindings with the holder's name, most recently bound first.
func (r *UserRepository) ListCards(ctx context.Context, filter models.CardFilter) ([]models.RFIDBinding, error) {
	query := `SELECT c.card_number, c.student_id, COALESCE(u.name, '') AS student_name, c.bound_at
	FROM rfid_cards c
	LEFT JOIN users u ON u.id = c.student_id`
	var args []interface{}
	if filter.StudentID != "" {
		query += ` WHERE c.student_id = $1`
		args = append(args, filter.StudentID)
	}
	query += ` ORDER BY c.bound_at DESC, c.card_number`

	var cards []models.RFIDBinding
	if err := r.db.SelectContext(ctx, &cards, query, args...); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// requireRow maps zero affected rows to sql.ErrNoRows.
func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
