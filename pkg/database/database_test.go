package database_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/creditdesk/pkg/database"
	"github.com/JaimeStill/creditdesk/pkg/lifecycle"
)

func TestNewSetsPoolParams(t *testing.T) {
	cfg := database.Config{
		Host:            "localhost",
		Port:            5432,
		Name:            "testdb",
		User:            "testuser",
		SSLMode:         "disable",
		MaxOpenConns:    42,
		MaxIdleConns:    7,
		ConnMaxLifetime: "10m",
		ConnTimeout:     "3s",
	}

	sys, err := database.New(&cfg, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	conn := sys.Connection()
	defer conn.Close()

	if got := conn.Stats().MaxOpenConnections; got != 42 {
		t.Errorf("MaxOpenConnections = %d, want 42", got)
	}
	if sys.Ready() {
		t.Error("system should not be ready before the startup ping")
	}
}

func TestUnreachableDatabaseNotReady(t *testing.T) {
	cfg := database.Config{
		Host:            "127.0.0.1",
		Port:            1,
		Name:            "testdb",
		User:            "testuser",
		SSLMode:         "disable",
		ConnMaxLifetime: "1m",
		ConnTimeout:     "200ms",
	}

	sys, err := database.New(&cfg, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	lc.WaitForStartup()

	if sys.Ready() {
		t.Error("failed ping must leave the system not ready")
	}
	if lc.Ready() {
		t.Error("coordinator should report not ready while the database is down")
	}
	if report := lc.Report(); report["database"] {
		t.Errorf("report: got %v", report)
	}

	if err := lc.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestSchemaVersion(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(sqlmock.Sqlmock)
		want    uint
		wantErr error
	}{
		{
			name: "migrated",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT version, dirty FROM schema_migrations").
					WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}).AddRow(1, false))
			},
			want: 1,
		},
		{
			name: "dirty",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT version, dirty FROM schema_migrations").
					WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}).AddRow(2, true))
			},
			want:    2,
			wantErr: database.ErrSchemaDirty,
		},
		{
			name: "no table",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT version, dirty FROM schema_migrations").
					WillReturnError(&pgconn.PgError{Code: "42P01"})
			},
			wantErr: database.ErrSchemaMissing,
		},
		{
			name: "empty table",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT version, dirty FROM schema_migrations").
					WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}))
			},
			wantErr: database.ErrSchemaMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock: %v", err)
			}
			defer db.Close()
			tt.setup(mock)

			got, err := database.SchemaVersion(context.Background(), db)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err: got %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("version: got %d, want %d", got, tt.want)
			}
		})
	}
}
