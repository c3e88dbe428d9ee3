package postgres

import (
	"errors"
	"fmt"
	"testing"

	"neoncode/backend/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "username constraint",
			err:  &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "users_username_key"},
			want: store.ErrUsernameTaken,
		},
		{
			name: "email constraint",
			err:  &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "users_email_key"},
			want: store.ErrEmailTaken,
		},
		{
			name: "wrapped username constraint",
			err:  fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "users_username_key"}),
			want: store.ErrUsernameTaken,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapUniqueViolation(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("mapUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapUniqueViolationPassesThrough(t *testing.T) {
	other := errors.New("connection reset")
	if got := mapUniqueViolation(other); got != other {
		t.Fatalf("expected unrelated error unchanged, got %v", got)
	}
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "projects_user_id_fkey"}
	if got := mapUniqueViolation(fk); got != error(fk) {
		t.Fatalf("expected non-unique violation unchanged, got %v", got)
	}
}
