package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	other := errors.New("boom")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"wrapped no rows", fmt.Errorf("query: %w", pgx.ErrNoRows), ErrNotFound},
		{"unique", &pgconn.PgError{Code: codeUniqueViolation}, ErrEmailTaken},
		{"foreign key", &pgconn.PgError{Code: codeForeignKeyViolation}, ErrNotFound},
		{"bad uuid", &pgconn.PgError{Code: codeInvalidText}, ErrNotFound},
		{"passthrough", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestTranslateKeepsUnknownPgErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001"}
	assert.Same(t, pgErr, translate(pgErr))
}
