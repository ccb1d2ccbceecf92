package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

// EncryptedDocumentStore implements domain.DocumentStore using a SQLCipher
// encrypted SQLite database, one row per day.
type EncryptedDocumentStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedDocumentStore opens (or creates) the encrypted day database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedDocumentStore(dbPath string, key []byte) (*EncryptedDocumentStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only surfaces on first query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedDocumentStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// OpenEncryptedDocumentStore opens the database at dbPath with the key from
// provider. A key is generated only when neither key nor database exists yet;
// a database whose key is lost or does not match yields domain.ErrStoreKey.
func OpenEncryptedDocumentStore(dbPath string, provider domain.KeyProvider) (*EncryptedDocumentStore, error) {
	var key []byte
	if provider.KeyExists() {
		k, err := provider.GetKey()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStoreKey, err)
		}
		key = k
	} else {
		if _, err := os.Stat(dbPath); err == nil {
			// A fresh key would never open the existing days.
			return nil, fmt.Errorf("%w: %s exists but its key is missing", domain.ErrStoreKey, dbPath)
		}
		k, err := GenerateKey()
		if err != nil {
			return nil, err
		}
		if err := provider.StoreKey(k); err != nil {
			return nil, fmt.Errorf("failed to save store key: %w", err)
		}
		key = k
	}

	store, err := NewEncryptedDocumentStore(dbPath, key)
	if err != nil {
		if isKeyRejected(err) {
			return nil, fmt.Errorf("%w: %w", domain.ErrStoreKey, err)
		}
		return nil, err
	}
	return store, nil
}

// isKeyRejected matches SQLCipher's answer to a wrong passphrase.
func isKeyRejected(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "file is not a database")
}

func (s *EncryptedDocumentStore) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS day_documents (
		day_key TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`)
	return err
}

// Location identifies the row for key inside the database file.
func (s *EncryptedDocumentStore) Location(key string) string {
	return s.dbPath + "#" + key
}

// Open reads the row for key. Rows are created by the first Write.
func (s *EncryptedDocumentStore) Open(ctx context.Context, key string) (*domain.DayDocument, bool, bool, error) {
	doc, exists, migrated, err := s.read(ctx, key)
	if err != nil {
		return nil, false, false, err
	}
	if !exists {
		return domain.NewDayDocument(), false, false, nil
	}
	return doc, true, migrated, nil
}

// Read returns the stored document without creating anything.
func (s *EncryptedDocumentStore) Read(ctx context.Context, key string) (*domain.DayDocument, bool, error) {
	doc, exists, _, err := s.read(ctx, key)
	return doc, exists, err
}

func (s *EncryptedDocumentStore) read(ctx context.Context, key string) (*domain.DayDocument, bool, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM day_documents WHERE day_key = ?`, key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, false, nil
	}
	if err != nil {
		return nil, false, false, err
	}

	var doc domain.DayDocument
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, false, false, fmt.Errorf("failed to decode day %s: %w", key, err)
	}
	migrated := doc.Migrate()
	return &doc, true, migrated, nil
}

// Write upserts the row for key.
func (s *EncryptedDocumentStore) Write(ctx context.Context, key string, doc *domain.DayDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO day_documents (day_key, body, updated_at) VALUES (?, ?, ?)`,
		key, string(body), time.Now().Unix())
	return err
}

// Close releases the database connection.
func (s *EncryptedDocumentStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedDocumentStore implements domain.DocumentStore.
var _ domain.DocumentStore = (*EncryptedDocumentStore)(nil)
