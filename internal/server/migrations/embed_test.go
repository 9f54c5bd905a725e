package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrations_EmbedsIdentitySchema(t *testing.T) {
	b, err := Migrations.ReadFile("00001_identity.sql")
	require.NoError(t, err)

	sql := string(b)
	require.Contains(t, sql, "-- +goose Up")
	require.Contains(t, sql, "-- +goose Down")
	require.Contains(t, sql, "CONSTRAINT users_email_key UNIQUE (email)")
	require.False(t, strings.Contains(strings.ToUpper(sql), "ON DELETE CASCADE"),
		"dependents must be deleted explicitly")
}
