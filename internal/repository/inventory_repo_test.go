package repository_test

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/aweiyin/stardeck/internal/repository"
	"github.com/aweiyin/stardeck/internal/schema"
	"github.com/aweiyin/stardeck/internal/testutil"
)

func TestInventoryRepositoryConsumeUse(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewInventoryRepository(db)
	ctx := context.Background()

	item := &schema.InventoryItem{
		OwnerID:       "u1",
		ItemType:      "Telescope",
		Configuration: schema.JSONMap{schema.ConfKeyUses: 2},
	}
	if err := repo.Create(ctx, item); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	remaining, err := repo.ConsumeUse(ctx, item.ID, "u1")
	if err != nil || remaining != 1 {
		t.Fatalf("remaining=%d err=%v, want 1", remaining, err)
	}
	remaining, err = repo.ConsumeUse(ctx, item.ID, "u1")
	if err != nil || remaining != 0 {
		t.Fatalf("remaining=%d err=%v, want 0", remaining, err)
	}

	// 次数耗尽后不再扣减，也不会减成负数
	if _, err := repo.ConsumeUse(ctx, item.ID, "u1"); !errors.Is(err, repository.ErrNoUsesLeft) {
		t.Fatalf("err=%v, want ErrNoUsesLeft", err)
	}
	got, _ := repo.GetByID(ctx, item.ID)
	if uses := schema.GetInt(got.Configuration, schema.ConfKeyUses); uses != 0 {
		t.Fatalf("uses=%d, want 0", uses)
	}
}

func TestInventoryRepositoryConsumeUseOwnership(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewInventoryRepository(db)
	ctx := context.Background()

	item := &schema.InventoryItem{
		OwnerID:       "u1",
		ItemType:      "Probe",
		Configuration: schema.JSONMap{schema.ConfKeyUses: 1},
	}
	if err := repo.Create(ctx, item); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// 别人的道具等同不存在
	if _, err := repo.ConsumeUse(ctx, item.ID, "u2"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err=%v, want ErrRecordNotFound", err)
	}
	if _, err := repo.ConsumeUse(ctx, 999, "u1"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err=%v, want ErrRecordNotFound", err)
	}
}

func TestInventoryRepositoryListByOwner(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewInventoryRepository(db)
	ctx := context.Background()

	_ = repo.Create(ctx, &schema.InventoryItem{OwnerID: "u1", ItemType: "Telescope"})
	_ = repo.Create(ctx, &schema.InventoryItem{OwnerID: "u1", ItemType: "Probe"})
	_ = repo.Create(ctx, &schema.InventoryItem{OwnerID: "u2", ItemType: "Probe"})

	items, err := repo.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByOwner error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len=%d, want 2", len(items))
	}
}

func TestInventoryRepositoryMergeConfiguration(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewInventoryRepository(db)
	ctx := context.Background()

	item := &schema.InventoryItem{
		OwnerID:       "u1",
		ItemType:      "Telescope",
		Configuration: schema.JSONMap{schema.ConfKeyUses: 3, "lens": "wide"},
	}
	if err := repo.Create(ctx, item); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	merged, err := repo.MergeConfiguration(ctx, item.ID, schema.JSONMap{"lens": "narrow"})
	if err != nil {
		t.Fatalf("MergeConfiguration error: %v", err)
	}
	if merged["lens"] != "narrow" || schema.GetInt(merged, schema.ConfKeyUses) != 3 {
		t.Fatalf("merged=%v", merged)
	}
}
