// Package backup ships encrypted snapshots of the linkshelf database to
// S3-compatible storage and restores them.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"
)

// objectStore is the subset of the S3 client the manager uses.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// Enabled reports whether enough is configured to reach a bucket.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

var ErrDisabled = errors.New("backup not configured: S3 bucket or credentials missing")

// Object describes one archive in the bucket.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Manager writes and reads archives under a key prefix.
type Manager struct {
	client    objectStore
	bucket    string
	prefix    string
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager creates a manager for cfg. A zero retention keeps every
// archive.
func NewManager(cfg S3Config, retention time.Duration, logger *slog.Logger) (*Manager, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	return newManager(newS3Client(cfg), cfg, retention, logger), nil
}

func newManager(client objectStore, cfg S3Config, retention time.Duration, logger *slog.Logger) *Manager {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Manager{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    prefix,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
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

// Snapshot returns a consistent copy of the database file. The database
// stays online while it is taken.
func Snapshot(ctx context.Context, db *sql.DB) ([]byte, error) {
	dir, err := os.MkdirTemp("", "linkshelf-snapshot-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("vacuum into snapshot: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Run snapshots db, seals it with passphrase and uploads it.
func (m *Manager) Run(ctx context.Context, db *sql.DB, passphrase string) (Object, error) {
	plain, err := Snapshot(ctx, db)
	if err != nil {
		return Object{}, err
	}
	sealed, err := Seal(plain, passphrase)
	if err != nil {
		return Object{}, err
	}

	now := m.now().UTC()
	key := fmt.Sprintf("%slinkshelf-%s.db.enc", m.prefix, now.Format("2006-01-02T150405Z"))
	if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	}); err != nil {
		return Object{}, fmt.Errorf("upload to s3: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "bytes", len(sealed))
	return Object{Key: key, Size: int64(len(sealed)), LastModified: now}, nil
}

// List returns the archives under the prefix, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	var (
		out   []Object
		token *string
	)
	for {
		page, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.bucket),
			Prefix:            aws.String(m.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list s3 objects: %w", err)
		}
		for _, o := range page.Contents {
			out = append(out, Object{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
		if !aws.ToBool(page.IsTruncated) || page.NextContinuationToken == nil {
			break
		}
		token = page.NextContinuationToken
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out, nil
}

// Prune deletes archives older than the retention period and reports how
// many were removed. The newest archive is always kept.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if m.retention <= 0 {
		return 0, nil
	}
	objects, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-m.retention)
	removed := 0
	for i, o := range objects {
		if i == 0 || !o.LastModified.Before(cutoff) {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(o.Key),
		}); err != nil {
			m.logger.Warn("delete old backup", "key", o.Key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Restore downloads key, decrypts it, checks it is an intact linkshelf
// database and installs it at dbPath. Nothing may hold dbPath open while
// it runs.
func (m *Manager) Restore(ctx context.Context, key, passphrase, dbPath string) error {
	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read download: %w", err)
	}
	plain, err := Open(sealed, passphrase)
	if err != nil {
		return err
	}

	tmp := dbPath + ".restore"
	if err := os.WriteFile(tmp, plain, 0600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := verify(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}

	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")
	if err := os.Rename(tmp, dbPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace database: %w", err)
	}

	m.logger.Info("backup restored", "key", key, "path", dbPath)
	return nil
}

// verify checks SQLite integrity and that migrations have been applied.
func verify(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var integrity string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed: %s", integrity)
	}

	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(version_id) FROM goose_db_version").Scan(&version); err != nil {
		return fmt.Errorf("restored file is not a linkshelf database: %w", err)
	}
	if !version.Valid || version.Int64 == 0 {
		return errors.New("restored database has no applied migrations")
	}
	return nil
}
