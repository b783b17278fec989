package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var updateUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"credentials_version" = "credentials_version" + 1,
	"credentials_last_password" = ?,
	"credentials_password_updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var updateUserEmailSQL = `UPDATE "users" AS "usr"
SET
	"email" = ?,
	"credentials_version" = "credentials_version" + 1
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var confirmUserEmailSQL = `UPDATE "users" AS "usr"
SET
	"confirmed" = TRUE
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	GetOrRegisterExternal(ctx context.Context, email, name string) (*User, error)

	GetByUserID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// UncheckedByEmail returns (nil, nil) when no user matches, so callers
	// can probe for existence without handling a not found error.
	UncheckedByEmail(ctx context.Context, email string) (*User, error)
	// GetByCredentials loads the user only if the credential version still
	// matches; a version drift yields ErrStaleCredentials.
	GetByCredentials(ctx context.Context, id uuid.UUID, version uint64) (*User, error)

	ConfirmEmail(ctx context.Context, id uuid.UUID) (*User, error)
	UpdatePassword(ctx context.Context, user *User, newHash string) (*User, error)
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) (*User, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db     *bun.DB
	logger Logger
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

func WithUsersLogger(logger Logger) UsersOption {
	return func(u *users) {
		if logger != nil {
			u.logger = logger
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	user.Email = strings.ToLower(user.Email)

	if existing, err := a.uncheckedByTx(ctx, tx, "email", user.Email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrEmailTaken
	}

	if user.Username == "" {
		username, err := a.generateUsernameTx(ctx, tx, user.Name)
		if err != nil {
			return nil, err
		}
		user.Username = username
	} else if existing, err := a.uncheckedByTx(ctx, tx, "username", user.Username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUsernameTaken
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	return a.Repository.CreateTx(ctx, tx, user)
}

// GetOrRegisterExternal backs provider sign-in: a user that already owns the
// email is reused, otherwise an account is created with an unusable password
// and a generated username, pre confirmed since the provider vouched for the
// email.
func (a *users) GetOrRegisterExternal(ctx context.Context, email, name string) (*User, error) {
	email = strings.ToLower(email)

	user, err := a.UncheckedByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	return a.Register(ctx, &User{
		Name:         formatName(name),
		Email:        email,
		PasswordHash: UnsetPassword,
		Confirmed:    true,
	})
}

func (a *users) GetByUserID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.getBy(ctx, "id", id.String())
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.getBy(ctx, "email", strings.ToLower(email))
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.getBy(ctx, "username", username)
}

func (a *users) UncheckedByEmail(ctx context.Context, email string) (*User, error) {
	return a.uncheckedByTx(ctx, a.db, "email", strings.ToLower(email))
}

func (a *users) GetByCredentials(ctx context.Context, id uuid.UUID, version uint64) (*User, error) {
	user, err := a.GetByUserID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Credentials.Version != version {
		return nil, ErrStaleCredentials
	}
	return user, nil
}

func (a *users) ConfirmEmail(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.execReturning(ctx, confirmUserEmailSQL, id.String())
}

// UpdatePassword swaps the password hash and bumps the credential version,
// remembering the previous hash for the recency hint on failed sign-ins.
func (a *users) UpdatePassword(ctx context.Context, user *User, newHash string) (*User, error) {
	return a.execReturning(ctx, updateUserPasswordSQL,
		newHash,
		user.PasswordHash,
		time.Now().UnixMilli(),
		user.ID.String(),
	)
}

func (a *users) UpdateEmail(ctx context.Context, id uuid.UUID, email string) (*User, error) {
	return a.execReturning(ctx, updateUserEmailSQL, email, id.String())
}

func (a *users) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewDelete().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", id.String()).
		Exec(ctx)
	return err
}

func (a *users) getBy(ctx context.Context, column, value string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) uncheckedByTx(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// generateUsernameTx derives a point-slug from the display name and appends
// the count of colliding prefixes, e.g. "Jane Doe" becomes "jane.doe", then
// "jane.doe1" on the next collision.
func (a *users) generateUsernameTx(ctx context.Context, tx bun.IDB, name string) (string, error) {
	slug := pointSlug(name)
	count, err := tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.username LIKE ?", slug+"%").
		Count(ctx)
	if err != nil {
		return "", err
	}
	if count > 0 {
		slug = fmt.Sprintf("%s%d", slug, count)
	}
	return slug, nil
}

func (a *users) execReturning(ctx context.Context, sql string, args ...any) (*User, error) {
	res, err := a.Repository.RawTx(ctx, a.db, sql, args...)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"args": fmt.Sprintf("%v", args),
			})
	}

	return res[0], nil
}
