package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/yourusername/signin-gateway/internal/accounts/migrations"
)

// Dialect は SQLRepository が話すSQL方言です。
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const pgUniqueViolation = "23505"

// SQLRepository は database/sql 経由でアカウントを保存します（SQLite / PostgreSQL）。
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLRepository は既存の接続から SQLRepository を作成します。マイグレーションは実行しません。
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// OpenSQLite は SQLite ファイルを開き、マイグレーションを適用します。
// path に ":memory:" を渡すと単一コネクションのインメモリDBになります。
func OpenSQLite(ctx context.Context, path string) (*SQLRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return openWith(ctx, db, DialectSQLite)
}

// OpenPostgres は PostgreSQL に接続し、マイグレーションを適用します。
func OpenPostgres(ctx context.Context, dsn string) (*SQLRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	return openWith(ctx, db, DialectPostgres)
}

func openWith(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLRepository, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}
	if err := Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return NewSQLRepository(db, dialect), nil
}

// gooseUp はテストで差し替えるための seam です。
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Migrate は埋め込みマイグレーションを goose で適用します。
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	goose.SetBaseFS(migrations.FS)
	gooseDialect := "sqlite3"
	if dialect == DialectPostgres {
		gooseDialect = "pgx"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}
	return gooseUp(ctx, db, ".")
}

// Close は接続を閉じます。
func (r *SQLRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// FindByEmail はメールアドレスでアカウントを検索します。
func (r *SQLRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT id, email, name, password_hash, created_at FROM accounts WHERE email = ` + r.placeholder(1)
	return r.scanOne(ctx, query, NormalizeEmail(email))
}

// FindByID はIDでアカウントを検索します。
func (r *SQLRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	query := `SELECT id, email, name, password_hash, created_at FROM accounts WHERE id = ` + r.placeholder(1)
	return r.scanOne(ctx, query, id)
}

// Insert はアカウントを追加します。一意制約違反は ErrEmailTaken に変換されます。
func (r *SQLRepository) Insert(ctx context.Context, account *Account) error {
	if err := validateForInsert(account); err != nil {
		return err
	}
	account.Email = NormalizeEmail(account.Email)
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(
		`INSERT INTO accounts (id, email, name, password_hash, created_at) VALUES (%s, %s, %s, %s, %s)`,
		r.placeholder(1), r.placeholder(2), r.placeholder(3), r.placeholder(4), r.placeholder(5),
	)
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.Name, account.PasswordHash, toMillis(account.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) scanOne(ctx context.Context, query string, arg string) (*Account, error) {
	var (
		account   Account
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&account.ID, &account.Email, &account.Name, &account.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	account.CreatedAt = fromMillis(createdAt)
	return &account, nil
}

func (r *SQLRepository) placeholder(n int) string {
	if r.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
