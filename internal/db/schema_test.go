package db

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestApplySchema(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := applySchema(conn); err != nil {
		t.Fatalf("applySchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApplySchema_Error(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	boom := errors.New("permission denied for schema public")
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).WillReturnError(boom)

	err = applySchema(conn)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped exec error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "create schema") {
		t.Errorf("error %q lacks create schema prefix", err.Error())
	}
}

// The repositories scan these columns by name.
func TestSchema_Columns(t *testing.T) {
	want := []string{
		"CREATE TABLE IF NOT EXISTS users",
		"device_id TEXT PRIMARY KEY",
		"pin TEXT",
		"emergency_contacts JSONB",
		"notes_for_emergency TEXT",
		"append_location BOOLEAN",
		"theme TEXT",
		"last_accessed TIMESTAMPTZ",
		"CREATE TABLE IF NOT EXISTS notes",
		"device_id TEXT NOT NULL",
		"last_edited_at TIMESTAMPTZ NOT NULL",
		"ON notes (device_id, last_edited_at DESC)",
	}
	for _, w := range want {
		if !strings.Contains(schema, w) {
			t.Errorf("schema missing %q", w)
		}
	}
	if strings.Contains(schema, "name TEXT NOT NULL") {
		t.Errorf("profile fields must stay nullable")
	}
}
