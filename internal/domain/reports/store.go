package reports

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StoreAPI interface {
	ActiveEmployees(ctx context.Context, department string) ([]Employee, error)
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) ActiveEmployees(ctx context.Context, department string) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, full_name, email, department
    FROM users
    WHERE is_active = true AND ($1 = '' OR department = $1)
    ORDER BY full_name
  `, department)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.FullName, &e.Email, &e.Department); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
