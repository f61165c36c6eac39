package db

import (
	"context"
	"database/sql"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/models"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (models.User, error) {
	var u models.User
	err := r.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.CreatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role))
	created, err := scanUser(row)
	if err != nil {
		return models.User{}, mapErr(err, "пользователь")
	}
	return created, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "пользователь")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, mapErr(err, "пользователь")
	}
	return &u, nil
}

// DeleteUser удаляет пользователя без истории посещаемости и без своих курсов.
// Записи на курсы удаляются вместе с ним.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var history bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM attendances WHERE student_id = $1)`, id).Scan(&history); err != nil {
			return err
		}
		if history {
			return apperr.New(apperr.ConstraintViolation, "у пользователя есть история посещаемости")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM course_enrollments WHERE student_id = $1`, id); err != nil {
			return err
		}
		return execOne(ctx, tx, "пользователь", `DELETE FROM users WHERE id = $1`, id)
	})
}
