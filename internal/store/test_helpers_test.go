package store

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"event-settlement/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var testSchemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func openStore(t *testing.T) (*Store, context.Context, func()) {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	dsn := cfg.TestPostgresDSN
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	base, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open base db: %v", err)
	}
	createSchemaSQL, err := schemaDDL("CREATE SCHEMA %s", schema)
	if err != nil {
		base.Close()
		t.Fatalf("invalid schema name: %v", err)
	}
	if _, err := base.Exec(context.Background(), createSchemaSQL); err != nil {
		base.Close()
		t.Fatalf("create schema: %v", err)
	}
	base.Close()

	scoped := withSearchPath(dsn, schema)
	if err := Migrate(scoped); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st, err := New(scoped)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cleanup := func() {
		st.Close()
		base, err := pgxpool.New(context.Background(), dsn)
		if err == nil {
			if dropSchemaSQL, ddlErr := schemaDDL("DROP SCHEMA %s CASCADE", schema); ddlErr == nil {
				_, _ = base.Exec(context.Background(), dropSchemaSQL)
			}
			base.Close()
		}
	}
	return st, context.Background(), cleanup
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}

func schemaDDL(format, schema string) (string, error) {
	if !testSchemaNamePattern.MatchString(schema) {
		return "", fmt.Errorf("schema %q does not match required pattern", schema)
	}
	return fmt.Sprintf(format, pgx.Identifier{schema}.Sanitize()), nil
}

func mustCreateActiveEvent(t *testing.T, st *Store, ctx context.Context, kind EventKind, mode EventMode, maxParticipants int) (*Event, []Option) {
	t.Helper()
	ev := Event{
		ID:              NewID(),
		TenantID:        "tenant-a",
		Kind:            kind,
		Mode:            mode,
		Title:           "weekly",
		PrizeAmount:     300,
		EntryFee:        10,
		Currency:        NativeCurrency,
		MinParticipants: 1,
		MaxParticipants: maxParticipants,
		DurationSeconds: 3600,
	}
	opts := []Option{
		{ID: NewID(), DisplayOrder: 0, Label: "A"},
		{ID: NewID(), DisplayOrder: 1, Label: "B"},
	}
	if err := st.CreateEvent(ctx, ev, opts); err != nil {
		t.Fatalf("create event: %v", err)
	}
	published, err := st.PublishEvent(ctx, ev.ID, time.Now(), "seed", "seed-hash")
	if err != nil {
		t.Fatalf("publish event: %v", err)
	}
	for i := range opts {
		opts[i].EventID = ev.ID
	}
	return published, opts
}
