package repomanager

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresManager_HandsOutBoundRepos(t *testing.T) {
	m := NewPostgresManager()

	var db *sql.DB // nil DBTX is fine for construction

	assert.NotNil(t, m.Accounts(db))
	assert.NotNil(t, m.Projects(db))
	assert.NotNil(t, m.Files(db))
	assert.NotNil(t, m.Nonces(db))
	assert.NotNil(t, m.Misc(db))
}
