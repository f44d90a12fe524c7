package main

import (
	"path/filepath"
	"testing"
)

func TestOpenDatabaseSqliteDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.db")
	db, err := openDatabase("sqlite://" + path)
	if err != nil {
		t.Fatalf("openDatabase: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenDatabaseRejectsEmptyDSN(t *testing.T) {
	if _, err := openDatabase("  "); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
