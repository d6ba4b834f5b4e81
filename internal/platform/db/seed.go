package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wink/internal/domain/auth"
	"wink/internal/platform/config"
)

// Seed installs the role permission matrix and, when configured, the first
// admin account. It is safe to run on every start.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureRolePermissions(ctx, pool); err != nil {
		return err
	}
	return ensureAdminUser(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminPassword, cfg.SeedAdminName)
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for role, perms := range auth.RolePermissions {
		for _, perm := range perms {
			_, err := pool.Exec(ctx, "INSERT INTO role_permissions (role, permission) VALUES ($1, $2) ON CONFLICT DO NOTHING", role, perm)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, email, password, name string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE lower(email) = lower($1)", email).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	_, err = pool.Exec(ctx, "INSERT INTO users (email, password_hash, full_name, role) VALUES ($1, $2, $3, $4)", strings.ToLower(email), hash, name, auth.RoleAdmin)
	return err
}
