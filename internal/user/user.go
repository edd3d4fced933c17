package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/google/uuid"

	"github.com/jmartynas/canvas-auth/internal/errs"
	"github.com/jmartynas/canvas-auth/structs"
)

type User struct {
	ID       uuid.UUID
	Username string
	Email    string
	Name     string
}

// Upsert stores the identity, keyed by username. Repeat logins update
// email and name in place. Returns the user's id.
func Upsert(ctx context.Context, dbc dbresolver.DB, identity *structs.Identity) (uuid.UUID, error) {
	if identity.Username == "" {
		return uuid.Nil, errors.New("user: username is required")
	}

	id := uuid.New()
	_, err := squirrel.Insert("users").
		SetMap(map[string]any{
			"id":       id.String(),
			"username": identity.Username,
			"email":    nullStr(identity.Email),
			"name":     nullStr(identity.Name),
		}).
		Suffix("ON DUPLICATE KEY UPDATE email = VALUES(email), name = VALUES(name)").
		RunWith(dbc).
		ExecContext(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user upsert: %w", err)
	}

	// The insert id is useless on the duplicate path; read it back.
	var idStr string
	err = squirrel.Select("id").
		From("users").
		Where(squirrel.Eq{"username": identity.Username}).
		Limit(1).
		RunWith(dbc).
		QueryRowContext(ctx).
		Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user upsert select: %w", err)
	}
	id, err = uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user upsert parse id: %w", err)
	}
	return id, nil
}

func GetByUsername(ctx context.Context, dbc dbresolver.DB, username string) (*User, error) {
	var u User
	var idStr string
	err := squirrel.Select("id", "username", "COALESCE(email, '')", "COALESCE(name, '')").
		From("users").
		Where(squirrel.Eq{"username": username}).
		Limit(1).
		RunWith(dbc).
		QueryRowContext(ctx).
		Scan(&idStr, &u.Username, &u.Email, &u.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	u.ID, _ = uuid.Parse(idStr)
	return &u, nil
}

func List(ctx context.Context, dbc dbresolver.DB) ([]User, error) {
	rows, err := squirrel.Select("id", "username", "COALESCE(email, '')", "COALESCE(name, '')").
		From("users").
		OrderBy("username").
		RunWith(dbc).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var idStr string
		if err := rows.Scan(&idStr, &u.Username, &u.Email, &u.Name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.ID, _ = uuid.Parse(idStr)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ReplaceGroups swaps the user's group memberships for the freshly
// derived set. Login always reflects current enrollments; dropped
// courses disappear on the next login.
func ReplaceGroups(ctx context.Context, dbc dbresolver.DB, userID uuid.UUID, groups []string) error {
	tx, err := dbc.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace groups begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = ?`, userID.String()); err != nil {
		return fmt.Errorf("replace groups delete: %w", err)
	}
	for _, name := range groups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_groups (user_id, group_name) VALUES (?, ?)`,
			userID.String(), name,
		); err != nil {
			return fmt.Errorf("replace groups insert %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace groups commit: %w", err)
	}
	return nil
}

func Groups(ctx context.Context, dbc dbresolver.DB, userID uuid.UUID) ([]string, error) {
	rows, err := squirrel.Select("group_name").
		From("user_groups").
		Where(squirrel.Eq{"user_id": userID.String()}).
		OrderBy("group_name").
		RunWith(dbc).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("user groups: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user groups: %w", err)
	}
	return groups, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
