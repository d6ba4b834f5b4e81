package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"wink/internal/domain/auth"
	"wink/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const userColumns = "id, email, full_name, role, department, is_active, mfa_enabled, last_login, created_at"

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.Department, &u.IsActive, &u.MFAEnabled, &u.LastLogin, &u.CreatedAt)
	if db.NoRows(err) {
		return User{}, ErrNotFound
	}
	return u, err
}

func buildFilter(filter Filter) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if filter.Role != "" {
		args = append(args, filter.Role)
		where += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		where += fmt.Sprintf(" AND department = $%d", len(args))
	}
	if filter.ActiveOnly {
		where += " AND is_active = true"
	}
	return where, args
}

func (s *Store) ListUsers(ctx context.Context, filter Filter, limit, offset int) ([]User, error) {
	where, args := buildFilter(filter)
	query := "SELECT " + userColumns + " FROM users" + where +
		fmt.Sprintf(" ORDER BY full_name, email LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context, filter Filter) (int, error) {
	where, args := buildFilter(filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM users"+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", userID))
}

func (s *Store) CreateUser(ctx context.Context, in CreateInput, passwordHash string) (User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, full_name, role, department)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING `+userColumns, in.Email, passwordHash, in.FullName, in.Role, in.Department))
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	return u, err
}

func (s *Store) UpdateRole(ctx context.Context, userID, role string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `
    UPDATE users SET role = $1, updated_at = now()
    WHERE id = $2
    RETURNING `+userColumns, role, userID))
}

func (s *Store) UpdateStatus(ctx context.Context, userID string, active bool) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `
    UPDATE users SET is_active = $1, updated_at = now()
    WHERE id = $2
    RETURNING `+userColumns, active, userID))
}

func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))
        OR EXISTS (SELECT 1 FROM invitations WHERE lower(corporate_email) = lower($1))
  `, email).Scan(&taken)
	return taken, err
}

const invitationColumns = "id, email, full_name, corporate_email, department, invited_by, is_activated, activated_at, user_id, expires_at, created_at"

func scanInvitation(row pgx.Row) (Invitation, error) {
	var inv Invitation
	err := row.Scan(&inv.ID, &inv.Email, &inv.FullName, &inv.CorporateEmail, &inv.Department, &inv.InvitedBy,
		&inv.IsActivated, &inv.ActivatedAt, &inv.UserID, &inv.ExpiresAt, &inv.CreatedAt)
	return inv, err
}

func (s *Store) CreateInvitation(ctx context.Context, inv Invitation, tokenHash string) (Invitation, error) {
	out, err := scanInvitation(s.DB.QueryRow(ctx, `
    INSERT INTO invitations (email, full_name, corporate_email, department, token, invited_by, expires_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING `+invitationColumns,
		inv.Email, inv.FullName, inv.CorporateEmail, inv.Department, tokenHash, inv.InvitedBy, inv.ExpiresAt))
	if isUniqueViolation(err) {
		return Invitation{}, ErrEmailTaken
	}
	return out, err
}

func (s *Store) ListInvitations(ctx context.Context, limit, offset int) ([]Invitation, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+invitationColumns+`
    FROM invitations
    ORDER BY created_at DESC
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) ActivateInvitation(ctx context.Context, tokenHash, passwordHash string, now time.Time) (User, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback(ctx)

	var invitationID, corporateEmail, fullName, department string
	err = tx.QueryRow(ctx, `
    SELECT id, corporate_email, full_name, department
    FROM invitations
    WHERE token = $1 AND is_activated = false AND expires_at > $2
    FOR UPDATE
  `, tokenHash, now).Scan(&invitationID, &corporateEmail, &fullName, &department)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrInvitationInvalid
	}
	if err != nil {
		return User{}, err
	}

	u, err := scanUser(tx.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, full_name, role, department)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING `+userColumns, corporateEmail, passwordHash, fullName, auth.RoleEmployee, department))
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, err
	}

	if _, err := tx.Exec(ctx, `
    UPDATE invitations
    SET is_activated = true, activated_at = $1, user_id = $2
    WHERE id = $3
  `, now, u.ID, invitationID); err != nil {
		return User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
