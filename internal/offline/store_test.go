package offline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xelth-com/eckposgo/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func draftFixture(total int64) models.SaleDraft {
	return models.SaleDraft{
		CashierID:   1,
		WarehouseID: 2,
		Items: []models.SaleItem{
			{ProductID: 1, Name: "widget", Quantity: 1, UnitPrice: decimal.NewFromInt(total), LineTotal: decimal.NewFromInt(total)},
		},
		TotalAmount:   decimal.NewFromInt(total),
		PaymentMethod: models.PaymentMethodCash,
	}
}

func productFixture(id int, barcode string) models.Product {
	return models.Product{ID: id, Name: "product", Barcode: barcode, Price: decimal.NewFromInt(5)}
}

func TestSaveSale_CaptureOrder(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC()
	if _, err := s.SaveSale(draftFixture(10), "OFF-a", base); err != nil {
		t.Fatalf("SaveSale failed: %v", err)
	}
	if _, err := s.SaveSale(draftFixture(20), "OFF-b", base.Add(time.Second)); err != nil {
		t.Fatalf("SaveSale failed: %v", err)
	}

	rows, err := s.Sales()
	if err != nil {
		t.Fatalf("Sales failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 captured sales, got %d", len(rows))
	}
	if rows[0].ReceiptRef != "OFF-a" || rows[1].ReceiptRef != "OFF-b" {
		t.Errorf("Sales must come back in capture order: %s, %s", rows[0].ReceiptRef, rows[1].ReceiptRef)
	}

	draft, err := DecodeDraft(rows[1])
	if err != nil {
		t.Fatalf("DecodeDraft failed: %v", err)
	}
	if !draft.TotalAmount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Decoded draft total = %s, want 20", draft.TotalAmount)
	}
}

func TestMarkSaleSynced_Idempotent(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveSale(draftFixture(10), "OFF-a", time.Now())
	if err != nil {
		t.Fatalf("SaveSale failed: %v", err)
	}

	if err := s.MarkSaleSynced(id); err != nil {
		t.Fatalf("MarkSaleSynced failed: %v", err)
	}
	// Second mark is a no-op, not an error
	if err := s.MarkSaleSynced(id); err != nil {
		t.Fatalf("Re-marking a synced sale failed: %v", err)
	}
	// So is marking a record that does not exist
	if err := s.MarkSaleSynced(9999); err != nil {
		t.Fatalf("Marking a missing sale failed: %v", err)
	}

	unsynced, _ := s.UnsyncedSales()
	if len(unsynced) != 0 {
		t.Errorf("Expected no unsynced sales, got %d", len(unsynced))
	}
}

func TestClearSyncedSales_KeepsUnsynced(t *testing.T) {
	s := newTestStore(t)

	syncedID, _ := s.SaveSale(draftFixture(10), "OFF-a", time.Now())
	if _, err := s.SaveSale(draftFixture(20), "OFF-b", time.Now()); err != nil {
		t.Fatalf("SaveSale failed: %v", err)
	}
	if err := s.MarkSaleSynced(syncedID); err != nil {
		t.Fatalf("MarkSaleSynced failed: %v", err)
	}

	if err := s.ClearSyncedSales(); err != nil {
		t.Fatalf("ClearSyncedSales failed: %v", err)
	}

	rows, _ := s.Sales()
	if len(rows) != 1 {
		t.Fatalf("Expected 1 remaining sale, got %d", len(rows))
	}
	if rows[0].ReceiptRef != "OFF-b" {
		t.Errorf("The unsynced capture must survive the purge, got %s", rows[0].ReceiptRef)
	}
}

func TestReplaceProducts_FullSnapshot(t *testing.T) {
	s := newTestStore(t)

	first := []models.Product{productFixture(1, "111"), productFixture(2, "222")}
	if err := s.ReplaceProducts(first); err != nil {
		t.Fatalf("ReplaceProducts failed: %v", err)
	}

	// A refresh replaces, never merges
	second := []models.Product{productFixture(3, "333")}
	if err := s.ReplaceProducts(second); err != nil {
		t.Fatalf("ReplaceProducts failed: %v", err)
	}

	products, err := s.Products()
	if err != nil {
		t.Fatalf("Products failed: %v", err)
	}
	if len(products) != 1 || products[0].ID != 3 {
		t.Errorf("Expected snapshot [3], got %+v", products)
	}
}

func TestReplaceProducts_FailureLeavesOldCacheIntact(t *testing.T) {
	s := newTestStore(t)

	old := []models.Product{productFixture(1, "111"), productFixture(2, "222")}
	if err := s.ReplaceProducts(old); err != nil {
		t.Fatalf("ReplaceProducts failed: %v", err)
	}

	// The duplicate barcode violates the unique index mid-replace; the
	// whole transaction must roll back.
	bad := []models.Product{productFixture(3, "333"), productFixture(4, "333")}
	if err := s.ReplaceProducts(bad); err == nil {
		t.Fatal("Expected the replace to fail on the duplicate barcode")
	}

	products, err := s.Products()
	if err != nil {
		t.Fatalf("Products failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("Old snapshot must survive a failed replace, got %d products", len(products))
	}
	for _, p := range products {
		if p.ID != 1 && p.ID != 2 {
			t.Errorf("Unexpected product %d in cache after rollback", p.ID)
		}
	}
}

func TestProductLookups(t *testing.T) {
	s := newTestStore(t)

	if err := s.ReplaceProducts([]models.Product{productFixture(1, "4006381333931")}); err != nil {
		t.Fatalf("ReplaceProducts failed: %v", err)
	}

	p, err := s.ProductByBarcode("4006381333931")
	if err != nil {
		t.Fatalf("ProductByBarcode failed: %v", err)
	}
	if p == nil || p.ID != 1 {
		t.Fatalf("Expected product 1 for barcode, got %+v", p)
	}

	missing, err := s.ProductByBarcode("0000000000000")
	if err != nil {
		t.Fatalf("ProductByBarcode failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Unknown barcode must return nil, got %+v", missing)
	}

	byID, err := s.ProductByID(1)
	if err != nil {
		t.Fatalf("ProductByID failed: %v", err)
	}
	if byID == nil || byID.Barcode != "4006381333931" {
		t.Errorf("Unexpected product by id: %+v", byID)
	}
}
