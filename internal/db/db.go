package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Pool bounds the sql.DB connection pool. Zero fields fall back to
// per-dialect defaults.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

const openPingTimeout = 5 * time.Second

// withDefaults fills unset pool fields. SQLite gets a smaller pool since
// the engine serializes writers anyway.
func (p Pool) withDefaults(dialect string) Pool {
	out := p
	if out.MaxOpen <= 0 {
		out.MaxOpen = 25
		if dialect == DialectSQLite {
			out.MaxOpen = 10
		}
	}
	if out.MaxIdle <= 0 {
		out.MaxIdle = out.MaxOpen
	}
	if out.MaxLifetime <= 0 {
		out.MaxLifetime = 30 * time.Minute
	}
	return out
}

// newGormLogger routes gorm's query log through the process logger so
// slow queries and errors land in the same stream as everything else.
func newGormLogger() logger.Interface {
	return logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Open opens a GORM connection with default pool settings.
func Open(dsn string) (*gorm.DB, error) {
	return OpenWithPool(dsn, Pool{})
}

// OpenWithPool opens a GORM connection based on the provided DSN, sizing
// the underlying pool from cfg.
func OpenWithPool(dsn string, cfg Pool) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}

	dialect, err := detectDialectFromDSN(trimmed)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults(dialect)
	switch dialect {
	case DialectPostgres:
		return openPostgres(trimmed, cfg)
	case DialectSQLite:
		return openSQLite(trimmed, cfg)
	default:
		return nil, fmt.Errorf("db: unsupported dialect: %s", dialect)
	}
}

// detectDialectFromDSN infers the dialect from a DSN string.
func detectDialectFromDSN(dsn string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, nil
	case strings.Contains(lower, "host=") || strings.Contains(lower, "user=") || strings.Contains(lower, "dbname=") || strings.Contains(lower, "sslmode="):
		return DialectPostgres, nil
	case strings.HasPrefix(lower, "file:"),
		strings.HasPrefix(lower, "sqlite://"),
		strings.HasPrefix(lower, "sqlite3://"),
		!strings.Contains(lower, "://"):
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("db: unsupported dsn: %s", dsn)
	}
}

func openPostgres(dsn string, pool Pool) (*gorm.DB, error) {
	sqlDB, err := postgresSQLDB(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: open postgres: %w", err)
	}

	if errPing := applyPoolAndPing(sqlDB, pool); errPing != nil {
		_ = sqlDB.Close()
		return nil, errPing
	}
	return conn, nil
}

func openSQLite(dsn string, pool Pool) (*gorm.DB, error) {
	prepared := sqliteDSN(dsn)
	if errDir := ensureSQLiteDir(prepared); errDir != nil {
		return nil, errDir
	}

	conn, err := gorm.Open(sqlite.Open(prepared), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("db: sqlite handle: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, errExec := sqlDB.Exec(pragma); errExec != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("db: %s: %w", strings.ToLower(pragma), errExec)
		}
	}

	if errPing := applyPoolAndPing(sqlDB, pool); errPing != nil {
		_ = sqlDB.Close()
		return nil, errPing
	}
	return conn, nil
}

func applyPoolAndPing(sqlDB *sql.DB, pool Pool) error {
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetMaxIdleConns(pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(pool.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), openPingTimeout)
	defer cancel()
	if errPing := sqlDB.PingContext(ctx); errPing != nil {
		return fmt.Errorf("db: ping: %w", errPing)
	}
	return nil
}

// postgresSQLDB builds a pgx-backed sql.DB whose sessions and scanned
// timestamps use the resolved host timezone.
func postgresSQLDB(dsn string) (*sql.DB, error) {
	cfg, errParse := pgx.ParseConfig(dsn)
	if errParse != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", errParse)
	}

	tzName, loc := hostTimeZone()
	if tzName != "" {
		cfg.RuntimeParams["timezone"] = tzName
	}
	var options []stdlib.OptionOpenDB
	if loc != nil {
		scanLoc := loc
		options = append(options, stdlib.OptionAfterConnect(func(ctx context.Context, conn *pgx.Conn) error {
			conn.TypeMap().RegisterType(&pgtype.Type{
				Name:  "timestamp",
				OID:   pgtype.TimestampOID,
				Codec: &pgtype.TimestampCodec{ScanLocation: scanLoc},
			})
			conn.TypeMap().RegisterType(&pgtype.Type{
				Name:  "timestamptz",
				OID:   pgtype.TimestamptzOID,
				Codec: &pgtype.TimestamptzCodec{ScanLocation: scanLoc},
			})
			return nil
		}))
	}

	return stdlib.OpenDB(*cfg, options...), nil
}

// sqliteDefaultParams are appended to every sqlite DSN unless the caller
// already set them.
var sqliteDefaultParams = [][2]string{
	{"_busy_timeout", "5000"},
	{"_journal_mode", "WAL"},
	{"_foreign_keys", "on"},
	{"_synchronous", "NORMAL"},
}

// sqliteDSN rewrites sqlite:// URLs into file: form and fills in missing
// default parameters.
func sqliteDSN(dsn string) string {
	out := strings.TrimSpace(dsn)
	lower := strings.ToLower(out)
	for _, scheme := range []string{"sqlite3://", "sqlite://"} {
		if strings.HasPrefix(lower, scheme) {
			out = "file:" + out[len(scheme):]
			break
		}
	}

	present := map[string]bool{}
	if idx := strings.Index(out, "?"); idx >= 0 {
		for _, pair := range strings.Split(strings.ToLower(out[idx+1:]), "&") {
			if pair == "" {
				continue
			}
			present[strings.SplitN(pair, "=", 2)[0]] = true
		}
	}
	for _, param := range sqliteDefaultParams {
		if present[param[0]] {
			continue
		}
		separator := "?"
		if strings.Contains(out, "?") {
			separator = "&"
		}
		out += separator + param[0] + "=" + param[1]
	}
	return out
}

// ensureSQLiteDir creates the parent directory of a file-backed sqlite
// database. In-memory and URL DSNs need no directory.
func ensureSQLiteDir(dsn string) error {
	path := strings.TrimSpace(dsn)
	if strings.HasPrefix(strings.ToLower(path), "file:") {
		path = path[len("file:"):]
		if idx := strings.Index(path, "?"); idx >= 0 {
			path = path[:idx]
		}
		path = strings.TrimPrefix(path, "//")
	} else if strings.Contains(path, "://") {
		return nil
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("db: create sqlite dir: %w", errMkdir)
	}
	return nil
}

var (
	tzOnce sync.Once
	tzName string
	tzLoc  *time.Location
)

// hostTimeZone resolves the host timezone once. Containers frequently
// run without TZ set, so the /etc/localtime symlink is consulted before
// falling back to a fixed numeric offset. time.Local is pinned to the
// result so timestamps scan consistently across goroutines.
func hostTimeZone() (string, *time.Location) {
	tzOnce.Do(func() {
		name := strings.TrimPrefix(strings.TrimSpace(os.Getenv("TZ")), ":")
		if name == "" {
			if link, errLink := os.Readlink("/etc/localtime"); errLink == nil {
				name = zoneNameFromPath(link)
			}
		}
		if name != "" {
			if loc, errLoad := time.LoadLocation(name); errLoad == nil {
				tzName, tzLoc = name, loc
				time.Local = loc
				return
			}
		}

		_, offsetSeconds := time.Now().Zone()
		tzName = formatUTCOffset(offsetSeconds)
		tzLoc = time.FixedZone(tzName, offsetSeconds)
		time.Local = tzLoc
	})
	return tzName, tzLoc
}

// zoneNameFromPath extracts "Area/City" from a zoneinfo path.
func zoneNameFromPath(path string) string {
	const marker = "/zoneinfo/"
	idx := strings.Index(path, marker)
	if idx < 0 {
		return ""
	}
	name := strings.Trim(path[idx+len(marker):], "/")
	name = strings.TrimPrefix(name, "posix/")
	return strings.TrimPrefix(name, "right/")
}

// formatUTCOffset formats a numeric offset into "+HH:MM" or "-HH:MM".
func formatUTCOffset(offsetSeconds int) string {
	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
		offsetSeconds = -offsetSeconds
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offsetSeconds/3600, (offsetSeconds%3600)/60)
}
