package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"receiptai/pkg/domain"
)

const migrateLockID int64 = 51720417

const sqliteScheme = "sqlite://"

// GormStoreOptions tunes the connection pool.
type GormStoreOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        gormlogger.LogLevel
}

type GormStoreOption func(*GormStoreOptions)

// WithMaxOpenConns caps the shared pool size.
func WithMaxOpenConns(n int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.MaxOpenConns = n
	}
}

// WithLogLevel overrides the gorm logger level (default Warn).
func WithLogLevel(level gormlogger.LogLevel) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.LogLevel = level
	}
}

// GormStore implements Store using GORM over Postgres or SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
//
// Postgres DSNs (postgres://, postgresql:// or key=value form) use pgx; a
// "sqlite://<path>" or "file:" DSN opens a SQLite database, creating the parent
// directory when needed.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		LogLevel:        gormlogger.Warn,
	}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	dialector, isSQLite, err := openDialector(dsn)
	if err != nil {
		return nil, err
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if isSQLite {
		// one writer at a time; avoids SQLITE_BUSY under concurrent requests
		sqlDB.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &SessionModel{}, &MessageModel{}, &ReceiptModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if isSQLite {
		err = migrate(db)
	} else {
		err = withMigrationLock(db, migrate)
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func openDialector(dsn string) (gorm.Dialector, bool, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, false, errors.New("database URL required")
	case strings.HasPrefix(dsn, sqliteScheme):
		path := strings.TrimPrefix(dsn, sqliteScheme)
		if path == "" {
			return nil, false, fmt.Errorf("sqlite path required in %q", dsn)
		}
		file := path
		if i := strings.Index(path, "?"); i >= 0 {
			file = path[:i]
		}
		if dir := filepath.Dir(file); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, false, fmt.Errorf("create sqlite directory %s: %w", dir, err)
			}
		}
		if !strings.Contains(path, "?") {
			path += "?_journal_mode=WAL&_busy_timeout=5000"
		}
		return sqlite.Open(path), true, nil
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn), true, nil
	default:
		return postgres.Open(dsn), false, nil
	}
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// ResolveUser returns the user for username, inserting it first when absent.
// The insert is ON CONFLICT DO NOTHING on the unique username, so concurrent
// first sightings converge on one row.
func (s *GormStore) ResolveUser(ctx context.Context, username string) (domain.User, error) {
	username = normalizeUsername(username)
	model := UserModel{Username: username, CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoNothing: true,
	}).Create(&model).Error; err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	user, ok, err := s.FindUser(ctx, username)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, fmt.Errorf("user %q missing after upsert", username)
	}
	return user, nil
}

// FindUser looks up a user by username without creating it.
func (s *GormStore) FindUser(ctx context.Context, username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("username = ?", normalizeUsername(username)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, fmt.Errorf("find user: %w", err)
	}
	return userFromModel(model), true, nil
}

// CreateSession inserts a new session row.
func (s *GormStore) CreateSession(ctx context.Context, session domain.Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return errors.New("session id required")
	}
	model := sessionToModel(session)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns a session by ID.
func (s *GormStore) GetSession(ctx context.Context, id string) (domain.Session, bool, error) {
	var model SessionModel
	if err := s.db.WithContext(ctx).First(&model, "session_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, fmt.Errorf("get session: %w", err)
	}
	return sessionFromModel(model), true, nil
}

// ListSessions returns a user's sessions, newest first.
func (s *GormStore) ListSessions(ctx context.Context, userID int64) ([]domain.Session, error) {
	var models []SessionModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("session_id DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions := make([]domain.Session, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, sessionFromModel(model))
	}
	return sessions, nil
}

// AppendMessages inserts msgs in order inside one transaction. Rows get
// strictly increasing created_at values so newest-first reads keep the
// insertion order even at microsecond column precision.
func (s *GormStore) AppendMessages(ctx context.Context, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	base := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, msg := range msgs {
			model := messageToModel(msg)
			model.ID = 0
			model.CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("insert %s message: %w", msg.Sender, err)
			}
		}
		return nil
	})
}

// ListRecentMessages returns up to limit messages for a session, newest first.
func (s *GormStore) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	var models []MessageModel
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msgs = append(msgs, messageFromModel(model))
	}
	return msgs, nil
}

// ListSessionMessages returns a session's messages in chronological order.
// limit > 0 keeps only the newest limit messages; limit <= 0 means all.
func (s *GormStore) ListSessionMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := s.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if limit > 0 {
		query = query.Order("created_at DESC").Order("id DESC").Limit(limit)
	} else {
		query = query.Order("created_at ASC").Order("id ASC")
	}
	var models []MessageModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list session messages: %w", err)
	}
	msgs := make([]domain.Message, len(models))
	for i, model := range models {
		if limit > 0 {
			msgs[len(models)-1-i] = messageFromModel(model)
		} else {
			msgs[i] = messageFromModel(model)
		}
	}
	return msgs, nil
}

// CreateReceipt inserts a receipt and returns it with the store-assigned ID and timestamp.
func (s *GormStore) CreateReceipt(ctx context.Context, receipt domain.Receipt) (domain.Receipt, error) {
	model, err := receiptToModel(receipt)
	if err != nil {
		return domain.Receipt{}, err
	}
	model.ID = 0
	model.CreatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Receipt{}, fmt.Errorf("insert receipt: %w", err)
	}
	return receiptFromModel(model), nil
}

// ListReceipts returns every receipt of a user, newest first.
func (s *GormStore) ListReceipts(ctx context.Context, userID int64) ([]domain.Receipt, error) {
	var models []ReceiptModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("receipt_id DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	receipts := make([]domain.Receipt, 0, len(models))
	for _, model := range models {
		receipts = append(receipts, receiptFromModel(model))
	}
	return receipts, nil
}

// GetReceipt returns a receipt by ID.
func (s *GormStore) GetReceipt(ctx context.Context, id int64) (domain.Receipt, bool, error) {
	var model ReceiptModel
	if err := s.db.WithContext(ctx).First(&model, "receipt_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Receipt{}, false, nil
		}
		return domain.Receipt{}, false, fmt.Errorf("get receipt: %w", err)
	}
	return receiptFromModel(model), true, nil
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// normalizeUsername only defaults empty names; other values are kept as
// given, surrounding whitespace included.
func normalizeUsername(username string) string {
	if username == "" {
		return domain.DefaultUsername
	}
	return username
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:        m.ID,
		Username:  m.Username,
		CreatedAt: m.CreatedAt,
	}
}

func sessionToModel(s domain.Session) SessionModel {
	return SessionModel{
		ID:        s.ID,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
	}
}

func sessionFromModel(m SessionModel) domain.Session {
	return domain.Session{
		ID:        m.ID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:          msg.ID,
		SessionID:   msg.SessionID,
		Sender:      string(msg.Sender),
		MessageText: msg.Text,
		CreatedAt:   msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		Sender:    domain.Sender(m.Sender),
		Text:      m.MessageText,
		CreatedAt: m.CreatedAt,
	}
}

func receiptToModel(r domain.Receipt) (ReceiptModel, error) {
	model := ReceiptModel{
		ID:          r.ID,
		UserID:      r.UserID,
		ReceiptText: r.Text,
		ImageKey:    r.ImageKey,
		CreatedAt:   r.CreatedAt,
	}
	if len(r.Metadata) > 0 {
		raw, err := json.Marshal(r.Metadata)
		if err != nil {
			return ReceiptModel{}, fmt.Errorf("encode receipt metadata: %w", err)
		}
		model.Metadata = datatypes.JSON(raw)
	}
	return model, nil
}

func receiptFromModel(m ReceiptModel) domain.Receipt {
	receipt := domain.Receipt{
		ID:        m.ID,
		UserID:    m.UserID,
		Text:      m.ReceiptText,
		ImageKey:  m.ImageKey,
		HasImage:  m.ImageKey != "",
		CreatedAt: m.CreatedAt,
	}
	if len(m.Metadata) > 0 {
		var meta map[string]string
		if err := json.Unmarshal(m.Metadata, &meta); err == nil {
			receipt.Metadata = meta
		}
	}
	return receipt
}
