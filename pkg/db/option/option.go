// Package option provides composable query modifiers for the generic store.
package option

import "gorm.io/gorm"

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// WithOrder appends an ORDER BY clause.
func WithOrder(order string) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(order)
	})
}

// WithLimit caps the result set size.
func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Limit(limit)
	})
}

// WithWhere appends an extra predicate beyond the struct filter.
func WithWhere(query any, args ...any) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}
