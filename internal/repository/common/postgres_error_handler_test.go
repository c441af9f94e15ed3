package common

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
)

func TestHandlePostgreSQLError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "non postgres error",
			err:         assert.AnError,
			wantCode:    apperrors.CodeInternal,
			wantMessage: "failed to insert video",
		},
		{
			name:        "source url conflict",
			err:         &pgconn.PgError{Code: "23505", ConstraintName: "videos_source_url_unique"},
			wantCode:    apperrors.CodeConflict,
			wantMessage: "source URL already exists",
		},
		{
			name:        "platform id conflict",
			err:         &pgconn.PgError{Code: "23505", ConstraintName: "videos_video_id_unique"},
			wantCode:    apperrors.CodeConflict,
			wantMessage: "platform id already exists",
		},
		{
			name:        "missing ingredient",
			err:         &pgconn.PgError{Code: "23503", ConstraintName: "ingredient_additions_ingredient_id_fkey"},
			wantCode:    apperrors.CodeDependency,
			wantMessage: "referenced ingredient does not exist",
		},
		{
			name:        "rating check",
			err:         &pgconn.PgError{Code: "23514", ConstraintName: "rating_overall_range"},
			wantCode:    apperrors.CodeInvalidArg,
			wantMessage: "rating_overall_range",
		},
		{
			name:        "bad enum",
			err:         &pgconn.PgError{Code: "22P02"},
			wantCode:    apperrors.CodeInvalidArg,
			wantMessage: "invalid enum",
		},
		{
			name:        "connection lost",
			err:         &pgconn.PgError{Code: "08006"},
			wantCode:    apperrors.CodeTransient,
			wantMessage: "temporarily unavailable",
		},
		{
			name:        "unknown code",
			err:         &pgconn.PgError{Code: "XX000"},
			wantCode:    apperrors.CodeInternal,
			wantMessage: "PostgreSQL code: XX000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HandlePostgreSQLError(tt.err, "failed to insert video")
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.wantCode, got.Code)
				assert.Contains(t, got.Message, tt.wantMessage)
				assert.ErrorIs(t, got, tt.err)
			}
		})
	}

	assert.Nil(t, HandlePostgreSQLError(nil, "noop"))
}
