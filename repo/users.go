package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jacentio/livewall"
	"github.com/jacentio/livewall/store"
)

const (
	userByID    = "id"
	userByEmail = "email"
)

// Users stores each user under ("email", email) and ("id", id). The email
// record is written first: it is the uniqueness check, so a losing Create
// leaves nothing behind.
type Users struct {
	table store.Table
}

// NewUsers returns the user repository backed by b.
func NewUsers(b store.Backend) *Users {
	return &Users{table: b.Table(store.CollectionUsers)}
}

func userKeys(u *livewall.User) []key {
	return []key{
		{partition: userByEmail, row: u.Email},
		{partition: userByID, row: u.ID},
	}
}

func userAttrs(u *livewall.User) map[string]any {
	return map[string]any{
		"id":              u.ID,
		"email":           u.Email,
		"validation_code": u.ValidationCode,
		"validated":       u.Validated,
		"created":         timeAttr(u.Created),
		"modified":        timeAttr(u.Modified),
	}
}

func decodeUser(rec *store.Record) *livewall.User {
	return &livewall.User{
		ID:             rec.String("id"),
		Email:          rec.String("email"),
		ValidationCode: rec.String("validation_code"),
		Validated:      rec.Bool("validated"),
		Created:        rec.Time("created"),
		Modified:       rec.Time("modified"),
	}
}

// NormalizeEmail lower-cases and trims an address so it can serve as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create writes a new user. A taken id or email yields ErrConflict.
func (r *Users) Create(ctx context.Context, u *livewall.User) error {
	u.Email = NormalizeEmail(u.Email)
	if u.ID == "" || u.Email == "" {
		return fmt.Errorf("%w: user needs id and email", livewall.ErrInvalidInput)
	}
	attrs := userAttrs(u)
	return writeAll("user", userKeys(u), func(k key) error {
		return r.table.Create(ctx, k.partition, k.row, attrs)
	})
}

// Update rewrites both copies of the user with merge semantics.
func (r *Users) Update(ctx context.Context, u *livewall.User) error {
	u.Modified = nowUTC()
	attrs := userAttrs(u)
	return writeAll("user", userKeys(u), func(k key) error {
		return r.table.Merge(ctx, k.partition, k.row, attrs)
	})
}

// GetByID returns the user with id.
func (r *Users) GetByID(ctx context.Context, id string) (*livewall.User, error) {
	return r.get(ctx, userByID, id)
}

// GetByEmail returns the user registered under email.
func (r *Users) GetByEmail(ctx context.Context, email string) (*livewall.User, error) {
	return r.get(ctx, userByEmail, NormalizeEmail(email))
}

func (r *Users) get(ctx context.Context, partition, row string) (*livewall.User, error) {
	if row == "" {
		return nil, fmt.Errorf("%w: user %s", livewall.ErrNotFound, partition)
	}
	rec, err := r.table.Get(ctx, partition, row)
	if err != nil {
		return nil, translate(err)
	}
	return decodeUser(rec), nil
}

// Delete removes both copies of the user.
func (r *Users) Delete(ctx context.Context, u *livewall.User) error {
	return deleteAll("user", userKeys(u), func(k key) error {
		return r.table.Delete(ctx, k.partition, k.row)
	})
}

// List returns every user.
func (r *Users) List(ctx context.Context) ([]*livewall.User, error) {
	recs, err := r.table.Scan(ctx, userByID)
	if err != nil {
		return nil, translate(err)
	}
	users := make([]*livewall.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, decodeUser(rec))
	}
	return users, nil
}
