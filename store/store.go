// Package store is the data-access layer. Every repository method takes the
// caller's organization id, taken from the verified session, and scopes its
// queries by it.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("record conflicts with existing data")
	ErrInvalidReference = errors.New("referenced record does not exist")
)

// Store groups the per-entity repositories over one database handle.
type Store struct {
	db *gorm.DB

	Orgs      *Orgs
	Profiles  *Profiles
	Clients   *Clients
	Projects  *Projects
	Invoices  *Invoices
	LineItems *LineItems
	Payments  *Payments
	Notes     *Notes
}

func New(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Orgs:      &Orgs{db: db},
		Profiles:  &Profiles{db: db},
		Clients:   &Clients{db: db},
		Projects:  &Projects{db: db},
		Invoices:  &Invoices{db: db},
		LineItems: &LineItems{db: db},
		Payments:  &Payments{db: db},
		Notes:     &Notes{db: db},
	}
}

// DB exposes the underlying handle for callers that need raw access.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// Page limits list results. A zero Limit means no limit.
type Page struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// search adds a case-insensitive substring match over columns. Wildcards in
// term match literally.
func search(q *gorm.DB, term string, columns ...string) *gorm.DB {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return q
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
	clauses := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		clauses[i] = fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, col)
		args[i] = pattern
	}
	return q.Where(strings.Join(clauses, " OR "), args...)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// scoped implements the org-scoped get/update/delete shared by the repositories
// whose table carries an org_id column.
type scoped[T any] struct {
	db *gorm.DB
}

func (s scoped[T]) where(ctx context.Context, orgID string) *gorm.DB {
	return s.db.WithContext(ctx).Where("org_id = ?", orgID)
}

func (s scoped[T]) get(ctx context.Context, orgID, id string) (*T, error) {
	var v T
	if err := s.where(ctx, orgID).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (s scoped[T]) update(ctx context.Context, orgID, id string, fields map[string]interface{}) (*T, error) {
	if _, err := s.get(ctx, orgID, id); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.where(ctx, orgID).Model(new(T)).Where("id = ?", id).Updates(fields).Error; err != nil {
			return nil, translate(err)
		}
	}
	return s.get(ctx, orgID, id)
}

func (s scoped[T]) delete(ctx context.Context, orgID, id string) error {
	res := s.where(ctx, orgID).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s scoped[T]) count(ctx context.Context, orgID string, query interface{}, args ...interface{}) (int64, error) {
	var n int64
	q := s.where(ctx, orgID).Model(new(T))
	if query != nil {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// mustExist returns ErrInvalidReference unless an org-owned row with id exists.
func mustExist(ctx context.Context, db *gorm.DB, model interface{}, table, orgID, id string) error {
	var n int64
	if err := db.WithContext(ctx).Model(model).Where("org_id = ? AND id = ?", orgID, id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrInvalidReference, table, id)
	}
	return nil
}

// nullable maps an empty optional string to SQL NULL.
func nullable(s string) interface{} {
	if v := strings.TrimSpace(s); v != "" {
		return v
	}
	return gorm.Expr("NULL")
}

// Optional trims s and returns nil for an empty value.
func Optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
