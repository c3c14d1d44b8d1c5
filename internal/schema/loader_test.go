package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datagate/internal/domain"
)

const sampleConfig = `
tables:
  - name: authors
    soft_delete: true
    columns:
      - name: id
        type: integer
      - name: name
        required: true
      - name: email
        format: email
        unique: true
      - name: deleted_at
        type: timestamp
  - name: books
    primary_key: id
    columns:
      - name: id
        type: integer
      - name: author_id
        type: integer
        required: true
        references: authors.id
      - name: title
        required: true
  - name: audit_log
    read_only: true
    columns:
      - name: id
        type: integer
access:
  authors: [read, insert, update, delete]
  books: [READ, INSERT]
  audit_log: [read]
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"authors", "books", "audit_log"}, r.TableNames())

	authors := r.Descriptor("authors")
	require.NotNil(t, authors)
	assert.Equal(t, "id", authors.PrimaryKey)
	assert.True(t, authors.SoftDeleteCapable)

	email := authors.Column("email")
	require.NotNil(t, email)
	assert.Equal(t, domain.ColText, email.Type)
	assert.Equal(t, domain.FormatEmail, email.Format)
	assert.True(t, email.Unique)

	books := r.Descriptor("books")
	authorID := books.Column("author_id")
	require.NotNil(t, authorID)
	require.NotNil(t, authorID.ForeignKey)
	assert.Equal(t, "authors", authorID.ForeignKey.Table)
	assert.Equal(t, "id", authorID.ForeignKey.Column)

	assert.True(t, r.Descriptor("audit_log").ReadOnly)

	// Access entries parse case-insensitively; absence denies.
	require.NoError(t, r.ValidateTableAccess("books", domain.OpInsert))
	assert.Error(t, r.ValidateTableAccess("books", domain.OpDelete))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"invalid yaml", ":\t not yaml"},
		{"no tables", "access:\n  authors: [read]\n"},
		{"unknown type", "tables:\n  - name: a\n    columns:\n      - name: x\n        type: blob\n"},
		{"unknown format", "tables:\n  - name: a\n    columns:\n      - name: x\n        format: uuid\n"},
		{"bad references", "tables:\n  - name: a\n    columns:\n      - name: x\n        references: nodot\n"},
		{"unknown operation", "tables:\n  - name: a\n    columns:\n      - name: x\naccess:\n  a: [upsert]\n"},
		{"fk to unknown table", "tables:\n  - name: a\n    columns:\n      - name: x\n        references: b.id\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, r.TableNames(), 3)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
