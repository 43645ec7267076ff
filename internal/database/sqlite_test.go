package database

import (
	"testing"
	"time"

	"epu-go/internal/epu"
	"epu-go/internal/model"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteDatabase_CreateUpdateOperation(t *testing.T) {
	t.Run("creates running operation", func(t *testing.T) {
		db := newTestDB(t)

		startedAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		op, err := db.CreateUpdateOperation("run-abc", "update", startedAt)
		if err != nil {
			t.Fatalf("CreateUpdateOperation() error = %v", err)
		}

		if op.ID == 0 {
			t.Error("operation ID should be non-zero")
		}
		if op.RunID != "run-abc" {
			t.Errorf("RunID = %q, want %q", op.RunID, "run-abc")
		}
		if op.Operation != "update" {
			t.Errorf("Operation = %q, want %q", op.Operation, "update")
		}
		if op.Status != epu.StatusRunning {
			t.Errorf("Status = %q, want %q", op.Status, epu.StatusRunning)
		}

		// Row must be readable back with the same fields
		found, err := db.LastUpdateOperation()
		if err != nil {
			t.Fatalf("LastUpdateOperation() error = %v", err)
		}
		if found == nil {
			t.Fatal("LastUpdateOperation() returned nil, want operation")
		}
		if found.ID != op.ID {
			t.Errorf("ID = %d, want %d", found.ID, op.ID)
		}
		if !found.StartedAt.Equal(startedAt) {
			t.Errorf("StartedAt = %v, want %v", found.StartedAt, startedAt)
		}
		if found.FinishedAt.Valid {
			t.Error("FinishedAt should not be set for a running operation")
		}
	})

	t.Run("assigns distinct ids", func(t *testing.T) {
		db := newTestDB(t)

		op1, err := db.CreateUpdateOperation("run-1", "update", time.Now())
		if err != nil {
			t.Fatalf("first CreateUpdateOperation() error = %v", err)
		}
		op2, err := db.CreateUpdateOperation("run-2", "update", time.Now())
		if err != nil {
			t.Fatalf("second CreateUpdateOperation() error = %v", err)
		}

		if op1.ID == op2.ID {
			t.Error("operations have same ID")
		}
	})
}

func TestSQLiteDatabase_FinishUpdateOperation(t *testing.T) {
	t.Run("records success with details", func(t *testing.T) {
		db := newTestDB(t)

		op, err := db.CreateUpdateOperation("run-abc", "update", time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
		if err != nil {
			t.Fatalf("CreateUpdateOperation() error = %v", err)
		}

		finishedAt := time.Date(2026, 3, 14, 9, 27, 41, 0, time.UTC)
		details := model.UpdateDetails{
			ArchiveName:   "episode.zip",
			ArchiveDigest: "sha256:deadbeef",
			InstallName:   "The Invasion 2",
			BackupName:    "backup_The Invasion 2_12345678_20260314T092653Z.zip",
			FilesChanged:  42,
		}
		if err := db.FinishUpdateOperation(op.ID, epu.StatusSuccess, finishedAt, details); err != nil {
			t.Fatalf("FinishUpdateOperation() error = %v", err)
		}

		found, err := db.LastUpdateOperation()
		if err != nil {
			t.Fatalf("LastUpdateOperation() error = %v", err)
		}
		if found.Status != epu.StatusSuccess {
			t.Errorf("Status = %q, want %q", found.Status, epu.StatusSuccess)
		}
		if !found.FinishedAt.Valid {
			t.Fatal("FinishedAt should be set")
		}
		if !found.FinishedAt.Time.Equal(finishedAt) {
			t.Errorf("FinishedAt = %v, want %v", found.FinishedAt.Time, finishedAt)
		}
		if found.ArchiveName != details.ArchiveName {
			t.Errorf("ArchiveName = %q, want %q", found.ArchiveName, details.ArchiveName)
		}
		if found.ArchiveDigest != details.ArchiveDigest {
			t.Errorf("ArchiveDigest = %q, want %q", found.ArchiveDigest, details.ArchiveDigest)
		}
		if found.InstallName != details.InstallName {
			t.Errorf("InstallName = %q, want %q", found.InstallName, details.InstallName)
		}
		if found.BackupName != details.BackupName {
			t.Errorf("BackupName = %q, want %q", found.BackupName, details.BackupName)
		}
		if found.FilesChanged != 42 {
			t.Errorf("FilesChanged = %d, want 42", found.FilesChanged)
		}
	})

	t.Run("records error with empty details", func(t *testing.T) {
		db := newTestDB(t)

		op, _ := db.CreateUpdateOperation("run-abc", "update", time.Now())
		if err := db.FinishUpdateOperation(op.ID, epu.StatusError, time.Now(), model.UpdateDetails{}); err != nil {
			t.Fatalf("FinishUpdateOperation() error = %v", err)
		}

		found, _ := db.LastUpdateOperation()
		if found.Status != epu.StatusError {
			t.Errorf("Status = %q, want %q", found.Status, epu.StatusError)
		}
		if found.ArchiveName != "" {
			t.Errorf("ArchiveName = %q, want empty", found.ArchiveName)
		}
		if found.FilesChanged != 0 {
			t.Errorf("FilesChanged = %d, want 0", found.FilesChanged)
		}
	})
}

func TestSQLiteDatabase_RecordChangedPaths(t *testing.T) {
	t.Run("records and reads back in insertion order", func(t *testing.T) {
		db := newTestDB(t)

		op, _ := db.CreateUpdateOperation("run-abc", "update", time.Now())

		writes := []string{"map.wld", "levels/1-1.lvl", "graphics/tileset.png"}
		if err := db.RecordChangedPaths(op.ID, "write", writes); err != nil {
			t.Fatalf("RecordChangedPaths(write) error = %v", err)
		}
		if err := db.RecordChangedPaths(op.ID, "delete", []string{"levels/old.lvl"}); err != nil {
			t.Fatalf("RecordChangedPaths(delete) error = %v", err)
		}

		paths, err := db.ChangedPaths(op.ID)
		if err != nil {
			t.Fatalf("ChangedPaths() error = %v", err)
		}
		if len(paths) != 4 {
			t.Fatalf("got %d changed paths, want 4", len(paths))
		}

		for i, want := range writes {
			if paths[i].Phase != "write" {
				t.Errorf("paths[%d].Phase = %q, want write", i, paths[i].Phase)
			}
			if paths[i].Path != want {
				t.Errorf("paths[%d].Path = %q, want %q", i, paths[i].Path, want)
			}
		}
		if paths[3].Phase != "delete" {
			t.Errorf("paths[3].Phase = %q, want delete", paths[3].Phase)
		}
		if paths[3].Path != "levels/old.lvl" {
			t.Errorf("paths[3].Path = %q, want levels/old.lvl", paths[3].Path)
		}
	})

	t.Run("empty path list is a no-op", func(t *testing.T) {
		db := newTestDB(t)

		op, _ := db.CreateUpdateOperation("run-abc", "update", time.Now())
		if err := db.RecordChangedPaths(op.ID, "delete", nil); err != nil {
			t.Fatalf("RecordChangedPaths(nil) error = %v", err)
		}

		paths, err := db.ChangedPaths(op.ID)
		if err != nil {
			t.Fatalf("ChangedPaths() error = %v", err)
		}
		if len(paths) != 0 {
			t.Errorf("got %d changed paths, want 0", len(paths))
		}
	})

	t.Run("fails for unknown operation", func(t *testing.T) {
		db := newTestDB(t)

		err := db.RecordChangedPaths(999, "write", []string{"map.wld"})
		if err == nil {
			t.Error("RecordChangedPaths() expected foreign key error for unknown operation")
		}
	})
}

func TestSQLiteDatabase_ListUpdateOperations(t *testing.T) {
	t.Run("newest first", func(t *testing.T) {
		db := newTestDB(t)

		base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		op1, _ := db.CreateUpdateOperation("run-1", "update", base)
		op2, _ := db.CreateUpdateOperation("run-2", "update", base.Add(time.Hour))
		op3, _ := db.CreateUpdateOperation("run-3", "update", base.Add(2*time.Hour))

		ops, err := db.ListUpdateOperations(10)
		if err != nil {
			t.Fatalf("ListUpdateOperations() error = %v", err)
		}
		if len(ops) != 3 {
			t.Fatalf("got %d operations, want 3", len(ops))
		}

		wantOrder := []int64{op3.ID, op2.ID, op1.ID}
		for i, want := range wantOrder {
			if ops[i].ID != want {
				t.Errorf("ops[%d].ID = %d, want %d", i, ops[i].ID, want)
			}
		}
	})

	t.Run("respects limit", func(t *testing.T) {
		db := newTestDB(t)

		base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			db.CreateUpdateOperation("run", "update", base.Add(time.Duration(i)*time.Minute))
		}

		ops, err := db.ListUpdateOperations(2)
		if err != nil {
			t.Fatalf("ListUpdateOperations() error = %v", err)
		}
		if len(ops) != 2 {
			t.Errorf("got %d operations, want 2", len(ops))
		}
	})

	t.Run("empty database", func(t *testing.T) {
		db := newTestDB(t)

		ops, err := db.ListUpdateOperations(10)
		if err != nil {
			t.Fatalf("ListUpdateOperations() error = %v", err)
		}
		if len(ops) != 0 {
			t.Errorf("got %d operations, want 0", len(ops))
		}
	})
}

func TestSQLiteDatabase_LastUpdateOperation(t *testing.T) {
	t.Run("returns nil when no operations exist", func(t *testing.T) {
		db := newTestDB(t)

		op, err := db.LastUpdateOperation()
		if err != nil {
			t.Fatalf("LastUpdateOperation() error = %v", err)
		}
		if op != nil {
			t.Errorf("LastUpdateOperation() = %v, want nil", op)
		}
	})

	t.Run("returns the newest operation", func(t *testing.T) {
		db := newTestDB(t)

		base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		db.CreateUpdateOperation("run-1", "update", base)
		op2, _ := db.CreateUpdateOperation("run-2", "update", base.Add(time.Hour))

		found, err := db.LastUpdateOperation()
		if err != nil {
			t.Fatalf("LastUpdateOperation() error = %v", err)
		}
		if found == nil {
			t.Fatal("LastUpdateOperation() returned nil")
		}
		if found.ID != op2.ID {
			t.Errorf("ID = %d, want %d", found.ID, op2.ID)
		}
	})
}

func TestSQLiteDatabase_Path(t *testing.T) {
	db := newTestDB(t)

	if db.Path() != ":memory:" {
		t.Errorf("Path() = %q, want :memory:", db.Path())
	}
}

func TestSQLiteDatabase_CheckMigrations(t *testing.T) {
	t.Run("fails on DB without migrations applied", func(t *testing.T) {
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			t.Fatalf("NewSQLiteDatabase() error = %v", err)
		}
		defer db.Close()

		// No schema at all.
		if err := db.CheckMigrations(); err == nil {
			t.Error("CheckMigrations() expected error for missing schema")
		}
	})

	t.Run("passes after migration", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})
}
