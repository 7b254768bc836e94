package database

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Removing a team member must keep their approval requests and tests in
// place. The users table carries a removed_at flag for soft removal, and
// the authorship foreign keys detach instead of cascading.
func TestSchemaKeepsAuthoredRowsOnMemberRemoval(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/001_schema.sql")
	require.NoError(t, err)
	schema := string(raw)

	assert.Regexp(t, regexp.MustCompile(`removed_at TIMESTAMPTZ`), schema,
		"users needs a soft-removal timestamp")
	assert.Regexp(t, regexp.MustCompile(`editor_id UUID REFERENCES users\(id\) ON DELETE SET NULL`), schema,
		"approval requests must survive their editor's removal")
	assert.Regexp(t, regexp.MustCompile(`created_by UUID REFERENCES users\(id\) ON DELETE SET NULL`), schema,
		"tests must survive their author's removal")
	assert.NotRegexp(t, regexp.MustCompile(`editor_id UUID[^,]*ON DELETE CASCADE`), schema)
	assert.NotRegexp(t, regexp.MustCompile(`created_by UUID[^,]*ON DELETE CASCADE`), schema)
}
