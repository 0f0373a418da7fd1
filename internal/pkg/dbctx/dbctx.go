// Package dbctx threads an optional transaction through repository calls,
// grounded on the teacher's identical internal/pkg/dbctx package: a caller
// coordinating a multi-row write opens one *gorm.DB transaction and passes
// it down through every repo method via this struct; a caller doing a
// single read leaves Tx nil and each repo method falls back to its own
// connection.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
