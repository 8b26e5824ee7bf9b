package tenant

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "canonical", raw: id.String()},
		{name: "surrounding whitespace", raw: "  " + id.String() + "\n"},
		{name: "empty", raw: "", wantErr: true},
		{name: "blank", raw: "   ", wantErr: true},
		{name: "not a uuid", raw: "user-1", wantErr: true},
		{name: "nil uuid", raw: uuid.Nil.String(), wantErr: true},
		{name: "sql fragment", raw: "'; RESET app.current_user_id; --", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdentity(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrIdentityInvalid)
				require.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			require.Equal(t, id, got.UUID())
			require.Equal(t, id.String(), got.String())
		})
	}
}

func TestZeroIdentityString(t *testing.T) {
	require.Equal(t, "", Identity{}.String())
	require.True(t, Identity{}.IsZero())
}
