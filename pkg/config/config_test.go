package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_TypesenseConfig(t *testing.T) {
	t.Setenv("TYPESENSE_URL", "http://test-typesense:8108")
	t.Setenv("TYPESENSE_API_KEY", "test-key")
	t.Setenv("TYPESENSE_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
	assert.Equal(t, "test-key", cfg.Typesense.APIKey)
	assert.True(t, cfg.Typesense.Enabled)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TYPESENSE_URL", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("AUTO_APPROVE_SCHEDULE", "")
	t.Setenv("ADMIN_ROLE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0 3 * * *", cfg.Scheduler.AutoApproveSpec)
	assert.Equal(t, "admin", cfg.Auth.AdminRole)
}

func TestLoad_AdminEmailList(t *testing.T) {
	t.Setenv("ADMIN_EMAILS", " a@example.com, ,b@example.com ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.SMTP.AdminEmails)
}

func TestLoad_SMTPRequiresHost(t *testing.T) {
	t.Setenv("SMTP_ENABLED", "true")
	t.Setenv("SMTP_HOST", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "hub", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=hub sslmode=require", c.DatabaseDSN())
}
