package backup

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/tandem/internal/database"
	"github.com/dukerupert/tandem/internal/model"
	"github.com/dukerupert/tandem/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var testConfig = Config{
	S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret", Prefix: "backups/"},
	Passphrase: "correct horse",
}

func setupManager(t *testing.T) (*Manager, *mockS3Client, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(testConfig, db, store.NewBackupStore(db), testLogger)
	mock := newMockS3()
	m.client = mock
	return m, mock, db
}

func TestManagerStateLifecycle(t *testing.T) {
	if s := NewManager(Config{}, nil, nil, testLogger).Status().State; s != StateDisabled {
		t.Errorf("state = %q, want %q", s, StateDisabled)
	}

	noPass := testConfig
	noPass.Passphrase = ""
	if s := NewManager(noPass, nil, nil, testLogger).Status().State; s != StateDisabled {
		t.Errorf("state without passphrase = %q, want %q", s, StateDisabled)
	}

	m := NewManager(testConfig, nil, nil, testLogger)
	if m.Status().State != StateIdle || !m.Enabled() {
		t.Errorf("state = %q, want %q", m.Status().State, StateIdle)
	}
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	m, mock, db := setupManager(t)
	if _, err := store.NewUserStore(db).Create("alice@example.com", "Alice", "CA"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	b, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	if b.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", b.Status)
	}
	if !strings.HasPrefix(b.S3Key, "backups/") || !strings.HasSuffix(b.S3Key, ".db.enc") {
		t.Errorf("key = %q", b.S3Key)
	}

	obj, ok := mock.objects[b.S3Key]
	if !ok {
		t.Fatalf("object %q not uploaded", b.S3Key)
	}
	if int64(len(obj)) != b.SizeBytes {
		t.Errorf("size = %d, object has %d bytes", b.SizeBytes, len(obj))
	}
	if strings.Contains(string(obj), "alice@example.com") {
		t.Error("uploaded object is not encrypted")
	}

	status := m.Status()
	if status.State != StateIdle || status.LastBackup == nil {
		t.Errorf("status = %+v", status)
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	m, mock, db := setupManager(t)
	mock.putErr = errors.New("bucket gone")

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
	if m.Status().State != StateError {
		t.Errorf("state = %q, want error", m.Status().State)
	}

	list, _ := store.NewBackupStore(db).List(10)
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed || list[0].ErrorMessage == "" {
		t.Errorf("history = %+v", list)
	}
}

func TestRunNowDisabled(t *testing.T) {
	m := NewManager(Config{}, nil, nil, testLogger)
	if _, err := m.RunNow(context.Background()); err == nil {
		t.Error("expected error when disabled")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	m, _, db := setupManager(t)
	store.NewUserStore(db).Create("alice@example.com", "Alice", "CA")

	b, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(context.Background(), b.ID, "wrong", dest); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("restore with wrong passphrase: err = %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("failed restore should not create the destination")
	}

	if err := m.Restore(context.Background(), b.ID, testConfig.Passphrase, dest); err != nil {
		t.Fatalf("restore: %v", err)
	}
	restored, err := sql.Open("sqlite", dest)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()
	var email string
	if err := restored.QueryRow(`SELECT email FROM users`).Scan(&email); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if email != "alice@example.com" {
		t.Errorf("email = %q", email)
	}
}

func TestCleanupRemovesOldObjects(t *testing.T) {
	m, mock, _ := setupManager(t)

	b, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, ok := mock.objects[b.S3Key]; !ok {
		t.Fatal("recent backup should survive cleanup")
	}

	m.now = func() time.Time { return time.Now().AddDate(0, 0, 31) }
	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, ok := mock.objects[b.S3Key]; ok {
		t.Error("expired backup should be deleted from storage")
	}
}

func TestManagerStopSafety(t *testing.T) {
	m := NewManager(testConfig, nil, nil, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	m.Stop()

	// Double stop should not panic
	m.Stop()
}

func TestManagerDisabledNoStart(t *testing.T) {
	m := NewManager(Config{}, nil, nil, testLogger)
	m.Start(context.Background())
	m.Stop()
}
