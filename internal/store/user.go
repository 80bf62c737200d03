package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tcobb/launchbase/internal/model"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var emailVerified int
	var customerID, subStatus sql.NullString
	err := scanner.Scan(
		&u.ID, &u.Name, &u.Email, &emailVerified, &u.Role,
		&customerID, &subStatus, &u.SubscriptionPlan, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.EmailVerified = emailVerified != 0
	if customerID.Valid {
		u.StripeCustomerID = &customerID.String
	}
	if subStatus.Valid {
		u.SubscriptionStatus = &subStatus.String
	}
	return &u, nil
}

const userCols = `id, name, email, email_verified, role, stripe_customer_id, subscription_status, subscription_plan, created_at, updated_at`

func (s *UserStore) Create(name, email, passwordHash string) (*model.User, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO users (id, name, email, password_hash) VALUES (?, ?, ?, ?)`,
		id, name, email, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetByStripeCustomerID returns the user holding the given billing customer
// ID, or nil when no local user has been linked to it yet.
func (s *UserStore) GetByStripeCustomerID(customerID string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE stripe_customer_id = ?`, customerID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by stripe customer id: %w", err)
	}
	return u, nil
}

// PasswordHash returns the stored bcrypt hash for the given email, along
// with the user ID. Both are empty when the email is unknown.
func (s *UserStore) PasswordHash(email string) (userID, hash string, err error) {
	row := s.db.QueryRow(`SELECT id, password_hash FROM users WHERE email = ?`, email)
	err = row.Scan(&userID, &hash)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("get password hash: %w", err)
	}
	return userID, hash, nil
}

// UpdateStripeCustomerID links a billing customer to the user. Returns the
// number of rows updated so callers can detect a missing user.
func (s *UserStore) UpdateStripeCustomerID(userID, customerID string) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE users SET stripe_customer_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		customerID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("update stripe customer id: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// UpdateSubscription writes the denormalized status/plan projection of the
// user's latest subscription.
func (s *UserStore) UpdateSubscription(userID, status, plan string) error {
	_, err := s.db.Exec(
		`UPDATE users SET subscription_status = ?, subscription_plan = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, plan, userID,
	)
	if err != nil {
		return fmt.Errorf("update user subscription: %w", err)
	}
	return nil
}

func (s *UserStore) UpdateName(userID, name string) error {
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, userID,
	)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	return nil
}

func (s *UserStore) UpdateRole(userID, role string) error {
	_, err := s.db.Exec(
		`UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		role, userID,
	)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return nil
}

func (s *UserStore) UpdatePasswordHash(userID, hash string) error {
	_, err := s.db.Exec(
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		hash, userID,
	)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return nil
}

func (s *UserStore) MarkEmailVerified(userID string) error {
	_, err := s.db.Exec(
		`UPDATE users SET email_verified = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

// Recent returns the most recently registered users, newest first.
func (s *UserStore) Recent(limit int) ([]*model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userCols+` FROM users ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
