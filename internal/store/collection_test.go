package store

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/realtime"
)

func product(id int, name string) models.Product {
	return models.Product{ID: id, Name: name, Price: decimal.NewFromInt(10)}
}

func TestCollection_CreatePrepends(t *testing.T) {
	col := NewCollection[models.Product]()
	col.Apply(realtime.ActionCreate, product(1, "first"))
	col.Apply(realtime.ActionCreate, product(2, "second"))

	items := col.Items()
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ID != 2 {
		t.Errorf("Expected newest record first, got id %d", items[0].ID)
	}
}

func TestCollection_DuplicateCreateDoesNotDuplicate(t *testing.T) {
	col := NewCollection[models.Product]()
	col.Apply(realtime.ActionCreate, product(1, "original"))
	// Echo of a locally-originated create
	col.Apply(realtime.ActionCreate, product(1, "echoed"))

	if col.Len() != 1 {
		t.Fatalf("Expected 1 item after duplicate create, got %d", col.Len())
	}
	got, _ := col.Get(1)
	if got.Name != "echoed" {
		t.Errorf("Duplicate create should overwrite in place, got %q", got.Name)
	}
}

func TestCollection_UpdateAbsentIsNoOp(t *testing.T) {
	col := NewCollection[models.Product]()
	if col.Update(product(7, "ghost")) {
		t.Error("Update of absent id should report false")
	}
	if col.Len() != 0 {
		t.Errorf("Update must never synthesize a record, got %d items", col.Len())
	}
}

func TestCollection_DeleteAbsentIsNoOp(t *testing.T) {
	col := NewCollection[models.Product]()
	col.Apply(realtime.ActionCreate, product(1, "keep"))
	col.Apply(realtime.ActionDelete, product(9, ""))

	if col.Len() != 1 {
		t.Errorf("Delete of absent id must not touch other records, got %d items", col.Len())
	}
}

func TestCollection_ApplyIsIdempotent(t *testing.T) {
	actions := []realtime.Action{realtime.ActionCreate, realtime.ActionUpdate, realtime.ActionDelete}

	for _, action := range actions {
		col := NewCollection[models.Product]()
		col.Replace([]models.Product{product(1, "one"), product(2, "two")})

		event := product(2, "changed")
		col.Apply(action, event)
		once := col.Items()

		col.Apply(action, event)
		twice := col.Items()

		if len(once) != len(twice) {
			t.Fatalf("%s: applying twice changed length %d -> %d", action, len(once), len(twice))
		}
		for i := range once {
			if once[i].ID != twice[i].ID || once[i].Name != twice[i].Name {
				t.Errorf("%s: applying twice changed item %d", action, i)
			}
		}
	}
}

func TestCollection_NoDuplicateIDsUnderMixedEvents(t *testing.T) {
	col := NewCollection[models.Product]()
	for id := 1; id <= 5; id++ {
		col.Apply(realtime.ActionCreate, product(id, "p"))
	}
	// Arbitrary follow-up events, including repeats
	col.Apply(realtime.ActionUpdate, product(3, "updated"))
	col.Apply(realtime.ActionCreate, product(3, "re-created"))
	col.Apply(realtime.ActionDelete, product(5, ""))
	col.Apply(realtime.ActionDelete, product(5, ""))
	col.Apply(realtime.ActionCreate, product(5, "back"))

	seen := make(map[int]bool)
	for _, item := range col.Items() {
		if seen[item.ID] {
			t.Fatalf("Duplicate id %d in collection", item.ID)
		}
		seen[item.ID] = true
	}
}

func TestStore_HandleUpdateRoutesTopics(t *testing.T) {
	s := New()

	productJSON, _ := json.Marshal(product(1, "scanner"))
	s.HandleUpdate(realtime.TopicProduct, realtime.ActionCreate, 1, productJSON)

	warehouseJSON, _ := json.Marshal(models.Warehouse{ID: 4, Name: "Main"})
	s.HandleUpdate(realtime.TopicWarehouse, realtime.ActionCreate, 4, warehouseJSON)

	if s.Products.Len() != 1 {
		t.Errorf("Expected product collection to hold 1 record, got %d", s.Products.Len())
	}
	if s.Warehouses.Len() != 1 {
		t.Errorf("Expected warehouse collection to hold 1 record, got %d", s.Warehouses.Len())
	}
}

func TestStore_HandleUpdateDeleteByIDOnly(t *testing.T) {
	s := New()
	s.Products.Replace([]models.Product{product(1, "a"), product(2, "b")})

	// Deletes may carry no payload at all, just the id hint
	s.HandleUpdate(realtime.TopicProduct, realtime.ActionDelete, 1, nil)

	if _, ok := s.Products.Get(1); ok {
		t.Error("Expected product 1 to be removed")
	}
	if s.Products.Len() != 1 {
		t.Errorf("Expected 1 remaining product, got %d", s.Products.Len())
	}
}

func TestStore_HandleUpdateBadPayloadIgnored(t *testing.T) {
	s := New()
	s.Products.Replace([]models.Product{product(1, "a")})

	s.HandleUpdate(realtime.TopicProduct, realtime.ActionUpdate, 1, json.RawMessage(`{broken`))
	s.HandleUpdate(realtime.TopicProduct, realtime.Action("upsert"), 1, json.RawMessage(`{}`))

	got, ok := s.Products.Get(1)
	if !ok || got.Name != "a" {
		t.Error("Bad payloads and unknown actions must leave the collection untouched")
	}
}
