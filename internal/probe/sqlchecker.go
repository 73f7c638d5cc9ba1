package probe

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	goora "github.com/sijms/go-ora/v2"
	"go.uber.org/zap"

	"github.com/hamed0406/healthreport/internal/domain"
)

// CountQuery counts the pending tasks of the action queue.
const CountQuery = "SELECT COUNT(*) FROM server_action"

// DBKind maps a configured db_type onto a database/sql driver.
type DBKind struct {
	Driver string
	DSN    func(DBRequest) string
}

// DefaultKinds lists the supported db_type values.
func DefaultKinds() map[string]DBKind {
	return map[string]DBKind{
		"oracle":   {Driver: "oracle", DSN: oracleDSN},
		"postgres": {Driver: "pgx", DSN: postgresDSN},
		"mysql":    {Driver: "mysql", DSN: mysqlDSN},
	}
}

type SQLChecker struct {
	Logger       *zap.Logger
	QueryTimeout time.Duration

	kinds map[string]DBKind
	open  func(driver, dsn string) (*sql.DB, error)
}

func NewSQLChecker(logger *zap.Logger, queryTimeout time.Duration) *SQLChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}
	return &SQLChecker{
		Logger:       logger,
		QueryTimeout: queryTimeout,
		kinds:        DefaultKinds(),
		open:         sql.Open,
	}
}

// Register adds or replaces a supported db_type.
func (c *SQLChecker) Register(kind string, k DBKind) {
	c.kinds[normalizeKind(kind)] = k
}

func (c *SQLChecker) Supports(kind string) bool {
	_, ok := c.kinds[normalizeKind(kind)]
	return ok
}

func (c *SQLChecker) CheckDB(ctx context.Context, req DBRequest) (out domain.ProbeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.Failuref("unexpected error during database check: %v", r)
		}
	}()

	kind, ok := c.kinds[normalizeKind(req.Kind)]
	if !ok {
		return domain.Failuref("unsupported database type")
	}

	db, err := c.open(kind.Driver, kind.DSN(req))
	if err != nil {
		return domain.Failure(fmt.Errorf("open %s: %w", req.Kind, err))
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	qctx, cancel := context.WithTimeout(ctx, c.QueryTimeout)
	defer cancel()

	var pending int64
	if err := db.QueryRowContext(qctx, CountQuery).Scan(&pending); err != nil {
		c.Logger.Warn("db_check_failed",
			zap.String("kind", req.Kind),
			zap.String("host", req.Host),
			zap.Int("port", req.Port),
			zap.Error(err),
		)
		return domain.Failure(err)
	}
	return domain.Success(fmt.Sprintf("%d tareas pendientes en server_action.", pending))
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

func oracleDSN(r DBRequest) string {
	return goora.BuildUrl(r.Host, r.Port, r.ServiceName, r.User, r.Password, nil)
}

func postgresDSN(r DBRequest) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(r.User, r.Password),
		Host:   net.JoinHostPort(r.Host, strconv.Itoa(r.Port)),
		Path:   "/" + r.ServiceName,
	}
	return u.String()
}

func mysqlDSN(r DBRequest) string {
	cfg := mysql.NewConfig()
	cfg.User = r.User
	cfg.Passwd = r.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
	cfg.DBName = r.ServiceName
	return cfg.FormatDSN()
}
