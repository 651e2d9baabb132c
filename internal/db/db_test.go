package db

import (
	"strings"
	"testing"
	"time"
)

func TestDetectDialectFromDSN(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{"postgres://user:pw@localhost/app", DialectPostgres},
		{"host=localhost user=app dbname=app sslmode=disable", DialectPostgres},
		{"file:data/app.db", DialectSQLite},
		{"sqlite://data/app.db", DialectSQLite},
		{"./app.db", DialectSQLite},
	}
	for _, tc := range cases {
		got, errDetect := detectDialectFromDSN(tc.dsn)
		if errDetect != nil {
			t.Fatalf("detect %q: %v", tc.dsn, errDetect)
		}
		if got != tc.want {
			t.Fatalf("dsn %q: expected %s, got %s", tc.dsn, tc.want, got)
		}
	}
	if _, errDetect := detectDialectFromDSN("mysql://whatever"); errDetect == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestSQLiteDSNFillsDefaults(t *testing.T) {
	out := sqliteDSN("sqlite://data/app.db")
	if !strings.HasPrefix(out, "file:data/app.db?") {
		t.Fatalf("expected file: rewrite, got %q", out)
	}
	for _, param := range []string{"_busy_timeout=5000", "_journal_mode=WAL", "_foreign_keys=on", "_synchronous=NORMAL"} {
		if !strings.Contains(out, param) {
			t.Fatalf("expected %s in %q", param, out)
		}
	}

	custom := sqliteDSN("file:x?mode=memory&cache=shared&_busy_timeout=10000")
	if strings.Count(custom, "_busy_timeout") != 1 {
		t.Fatalf("caller-set params must not be duplicated: %q", custom)
	}
	if !strings.Contains(custom, "_busy_timeout=10000") {
		t.Fatalf("caller-set busy timeout must survive: %q", custom)
	}
}

func TestPoolDefaultsPerDialect(t *testing.T) {
	pg := Pool{}.withDefaults(DialectPostgres)
	if pg.MaxOpen != 25 || pg.MaxIdle != 25 || pg.MaxLifetime != 30*time.Minute {
		t.Fatalf("unexpected postgres defaults: %+v", pg)
	}

	lite := Pool{}.withDefaults(DialectSQLite)
	if lite.MaxOpen != 10 {
		t.Fatalf("expected smaller sqlite pool, got %+v", lite)
	}

	custom := Pool{MaxOpen: 3, MaxLifetime: time.Minute}.withDefaults(DialectPostgres)
	if custom.MaxOpen != 3 || custom.MaxIdle != 3 || custom.MaxLifetime != time.Minute {
		t.Fatalf("explicit settings must win: %+v", custom)
	}
}
