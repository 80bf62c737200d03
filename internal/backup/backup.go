// Package backup ships encrypted snapshots of the SQLite database to
// S3-compatible storage.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client is the subset of the S3 API the manager uses, as an interface
// for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration. Backups are disabled unless
// the S3 settings and passphrase are all present.
type Config struct {
	S3         S3Config
	Passphrase string
}

// Manager produces encrypted database snapshots and uploads them.
type Manager struct {
	cfg    Config
	db     *sql.DB
	client s3Client
	logger *slog.Logger
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	m := &Manager{cfg: cfg, db: db, logger: logger}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether the manager has a complete configuration.
func (m *Manager) Enabled() bool {
	return m.client != nil
}

// Run performs a backup every interval until the context is canceled.
// Intended to run as a goroutine from main.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if !m.Enabled() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.BackupNow(ctx); err != nil {
				m.logger.Error("scheduled backup failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// BackupNow snapshots the live database with VACUUM INTO, encrypts the
// snapshot, and uploads it under a timestamped key.
func (m *Manager) BackupNow(ctx context.Context) (err error) {
	if !m.Enabled() {
		return fmt.Errorf("backup not configured")
	}

	tmpDir, err := os.MkdirTemp("", "launchbase-backup-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "snapshot.db")
	// VACUUM INTO takes a filename expression, not a bound parameter.
	quoted := strings.ReplaceAll(snapshot, "'", "''")
	if _, err := m.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	encrypted := snapshot + ".enc"
	if err := EncryptFile(snapshot, encrypted, m.cfg.Passphrase); err != nil {
		return fmt.Errorf("encrypt snapshot: %w", err)
	}

	f, err := os.Open(encrypted)
	if err != nil {
		return fmt.Errorf("open encrypted snapshot: %w", err)
	}
	defer f.Close()

	key := fmt.Sprintf("backups/launchbase-%s.db.enc", time.Now().UTC().Format("20060102-150405"))
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key)
	return nil
}

// Restore downloads and decrypts a backup object to dstPath.
func (m *Manager) Restore(ctx context.Context, key, dstPath string) error {
	if !m.Enabled() {
		return fmt.Errorf("backup not configured")
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download backup: %w", err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp("", "launchbase-restore-*.enc")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.ReadFrom(out.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return DecryptFile(tmp.Name(), dstPath, m.cfg.Passphrase)
}
