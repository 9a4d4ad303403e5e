package db

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/aakash-soni-git/bitalino/internal/session"
)

var DBPool *DB

// Setup the testcontainer DB before running any ops tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
	)
	if err != nil {
		panic(err)
	}
	defer pgContainer.Terminate(ctx)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}
	migrationsPath := "./migrations"

	DBPool, err = Init(ctx, Config{
		ConnString:     connStr,
		MigrationsPath: migrationsPath,
	})
	if err != nil {
		panic(err)
	}

	m.Run()

	pgContainer.Terminate(ctx)
	DBPool.Close()
}

func TestOps(t *testing.T) {
	ctx := context.Background()

	err := DBPool.CreateSession(ctx, SessionRow{
		Stamp:        "09-03-2024-140506",
		SamplingRate: 100,
		Labels:       []string{"EDA", "ECG"},
		StartedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	blk := &session.Block{
		Stamp:  "09-03-2024-140506",
		Labels: []string{"EDA", "ECG"},
		Offset: 0,
		Values: [][]float64{{1.5, 2.5}, {-0.25, 0.75}},
		At:     time.Now(),
	}
	if err := DBPool.InsertBlock(ctx, blk); err != nil {
		t.Fatalf("InsertBlock failed: %v", err)
	}

	got, err := DBPool.LoadSeries(ctx, "09-03-2024-140506", "EDA", 0, 10)
	if err != nil {
		t.Fatalf("LoadSeries failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0].Value != 1.5 || got[1].Value != 2.5 {
		t.Fatalf("unexpected sample values: %+v", got)
	}
	if got[0].Idx != 0 || got[1].Idx != 1 {
		t.Fatalf("unexpected sample indices: %+v", got)
	}

	sessions, err := DBPool.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].SamplingRate != 100 {
		t.Fatalf("unexpected session row: %+v", sessions[0])
	}
}
