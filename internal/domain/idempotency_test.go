package domain

import (
	"testing"
	"time"
)

func TestProcessedUpdate_MigrationAndUniqueness(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&ProcessedUpdate{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasTable(&ProcessedUpdate{}) {
		t.Fatalf("expected table %q to exist", ProcessedUpdate{}.TableName())
	}

	now := time.Now().UTC()
	rec := &ProcessedUpdate{UpdateID: 1001, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt should be filled by autoCreateTime")
	}

	var got ProcessedUpdate
	if err := db.First(&got, "update_id = ?", 1001).Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if !got.ExpiresAt.After(now) {
		t.Fatalf("ExpiresAt should be in the future: %v", got.ExpiresAt)
	}

	dup := &ProcessedUpdate{UpdateID: 1001, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected primary key violation for duplicate update id")
	}
}
