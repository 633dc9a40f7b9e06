package testutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/todosync/internal/model"
)

// errNoRow is returned by lookups that match nothing.
var errNoRow = errors.New("no row")

// backendStore is the SQLite storage behind the backend double.
type backendStore struct {
	db *sqlx.DB
}

type userRow struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	Password  string `db:"password"`
	Confirmed bool   `db:"confirmed"`
}

// openStore opens an in-memory database and applies all migrations. A
// single connection keeps every query on the same in-memory database.
func openStore() (*backendStore, error) {
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &backendStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *backendStore) Close() error {
	return s.db.Close()
}

func (s *backendStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func (s *backendStore) insertUser(ctx context.Context, u userRow) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password, confirmed) VALUES (?, ?, ?, ?)",
		u.ID, u.Email, u.Password, u.Confirmed,
	)
	if err != nil {
		return fmt.Errorf("inserting user %s: %w", u.Email, err)
	}
	return nil
}

func (s *backendStore) userByEmail(ctx context.Context, email string) (userRow, error) {
	var u userRow
	err := s.db.GetContext(ctx, &u,
		"SELECT id, email, password, confirmed FROM users WHERE email = ?", email)
	if errors.Is(err, sql.ErrNoRows) {
		return userRow{}, errNoRow
	}
	return u, err
}

func (s *backendStore) userByID(ctx context.Context, id string) (userRow, error) {
	var u userRow
	err := s.db.GetContext(ctx, &u,
		"SELECT id, email, password, confirmed FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return userRow{}, errNoRow
	}
	return u, err
}

func (s *backendStore) confirmUser(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET confirmed = 1 WHERE email = ?", email)
	return err
}

func (s *backendStore) saveRefreshToken(ctx context.Context, token, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (token, user_id) VALUES (?, ?)", token, userID)
	return err
}

// useRefreshToken revokes token and returns its owner. Revoked or unknown
// tokens yield errNoRow.
func (s *backendStore) useRefreshToken(ctx context.Context, token string) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.GetContext(ctx, &userID,
		"SELECT user_id FROM refresh_tokens WHERE token = ? AND revoked = 0", token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errNoRow
	}
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE token = ?", token); err != nil {
		return "", err
	}
	return userID, tx.Commit()
}

func (s *backendStore) revokeTokens(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?", userID)
	return err
}

const todoColumns = `id, text, completed, "order", user_id`

func (s *backendStore) selectTodos(ctx context.Context, userID string) ([]model.Todo, error) {
	todos := []model.Todo{}
	err := s.db.SelectContext(ctx, &todos,
		"SELECT "+todoColumns+" FROM todos WHERE user_id = ? ORDER BY id ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("selecting todos: %w", err)
	}
	return todos, nil
}

func (s *backendStore) todoByID(ctx context.Context, userID string, id int64) (model.Todo, error) {
	var t model.Todo
	err := s.db.GetContext(ctx, &t,
		"SELECT "+todoColumns+" FROM todos WHERE id = ? AND user_id = ?", id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Todo{}, errNoRow
	}
	return t, err
}

func (s *backendStore) insertTodo(ctx context.Context, t model.Todo) (model.Todo, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO todos (text, completed, "order", user_id) VALUES (?, ?, ?, ?)`,
		t.Text, t.Completed, t.Order, t.UserID,
	)
	if err != nil {
		return model.Todo{}, fmt.Errorf("inserting todo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Todo{}, err
	}
	t.ID = id
	return t, nil
}

// updateTodo applies the allowed fields of patch to the user's todo. Like
// the real table API, matching no row is not an error.
func (s *backendStore) updateTodo(ctx context.Context, userID string, id int64, patch todoPatch) error {
	t, err := s.todoByID(ctx, userID, id)
	if errors.Is(err, errNoRow) {
		return nil
	}
	if err != nil {
		return err
	}
	if patch.Text != nil {
		t.Text = *patch.Text
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	if patch.Order != nil {
		t.Order = *patch.Order
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE todos SET text = ?, completed = ?, "order" = ? WHERE id = ? AND user_id = ?`,
		t.Text, t.Completed, t.Order, id, userID,
	)
	return err
}

func (s *backendStore) deleteTodo(ctx context.Context, userID string, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM todos WHERE id = ? AND user_id = ?", id, userID)
	return err
}

// upsertOrders writes every order in one transaction. A row naming an id
// the user does not own would be an insert without text, which the real
// service rejects with a not-null violation; errNoRow stands for that.
func (s *backendStore) upsertOrders(ctx context.Context, userID string, rows []model.OrderUpdate) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		`UPDATE todos SET "order" = ? WHERE id = ? AND user_id = ?`)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		res, err := stmt.ExecContext(ctx, r.Order, r.ID, userID)
		if err != nil {
			return fmt.Errorf("upserting todo %d: %w", r.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNoRow
		}
	}
	return tx.Commit()
}
