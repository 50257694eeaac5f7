package offline

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xelth-com/eckposgo/internal/models"
)

// Store is the terminal-local durable database: sales captured while
// the backend was unreachable, plus a full product-catalog snapshot
// for offline lookup.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the offline database at path and
// synchronizes its schema. Use ":memory:" for throwaway stores.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open offline database: %w", err)
	}

	if err := db.AutoMigrate(&models.OfflineSale{}, &models.OfflineProduct{}); err != nil {
		return nil, fmt.Errorf("failed to migrate offline schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSale durably captures a sale draft taken while disconnected.
// The row starts unsynced and is never mutated afterwards except for
// the synced flag. Returns the local auto-increment id.
func (s *Store) SaveSale(draft models.SaleDraft, receiptRef string, capturedAt time.Time) (uint, error) {
	data, err := json.Marshal(draft)
	if err != nil {
		return 0, fmt.Errorf("failed to encode sale draft: %w", err)
	}

	row := models.OfflineSale{
		Draft:      datatypes.JSON(data),
		ReceiptRef: receiptRef,
		CapturedAt: capturedAt,
		Synced:     false,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return 0, fmt.Errorf("failed to save offline sale: %w", err)
	}
	return row.ID, nil
}

// Sales returns every captured sale in capture order, synced or not
func (s *Store) Sales() ([]models.OfflineSale, error) {
	var rows []models.OfflineSale
	err := s.db.Order("captured_at asc, id asc").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load offline sales: %w", err)
	}
	return rows, nil
}

// UnsyncedSales returns the captured sales still awaiting replay, in
// capture order.
func (s *Store) UnsyncedSales() ([]models.OfflineSale, error) {
	var rows []models.OfflineSale
	err := s.db.Where("synced = ?", false).Order("captured_at asc, id asc").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load unsynced sales: %w", err)
	}
	return rows, nil
}

// DecodeDraft unpacks the stored draft of a captured sale
func DecodeDraft(row models.OfflineSale) (models.SaleDraft, error) {
	var draft models.SaleDraft
	if err := json.Unmarshal(row.Draft, &draft); err != nil {
		return draft, fmt.Errorf("failed to decode offline sale %d: %w", row.ID, err)
	}
	return draft, nil
}

// MarkSaleSynced flips the synced flag on a captured sale. Marking an
// already-synced or missing record is a no-op.
func (s *Store) MarkSaleSynced(localID uint) error {
	err := s.db.Model(&models.OfflineSale{}).
		Where("id = ?", localID).
		Update("synced", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark sale %d synced: %w", localID, err)
	}
	return nil
}

// ClearSyncedSales purges every synced record. Unsynced captures are
// untouched even when new ones land concurrently.
func (s *Store) ClearSyncedSales() error {
	err := s.db.Where("synced = ?", true).Delete(&models.OfflineSale{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear synced sales: %w", err)
	}
	return nil
}

// ReplaceProducts atomically replaces the offline product cache with a
// fresh catalog snapshot. The clear and the inserts share one
// transaction, so readers never observe a half-replaced cache and a
// failed refresh leaves the previous snapshot intact.
func (s *Store) ReplaceProducts(products []models.Product) error {
	rows := make([]models.OfflineProduct, 0, len(products))
	for _, p := range products {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode product %d: %w", p.ID, err)
		}
		rows = append(rows, models.OfflineProduct{
			ID:      p.ID,
			Name:    p.Name,
			Barcode: p.Barcode,
			Data:    datatypes.JSON(data),
		})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM offline_products").Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace offline product cache: %w", err)
	}
	return nil
}

// Products returns the cached catalog snapshot
func (s *Store) Products() ([]models.Product, error) {
	var rows []models.OfflineProduct
	if err := s.db.Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load offline products: %w", err)
	}

	products := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		var p models.Product
		if err := json.Unmarshal(row.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode cached product %d: %w", row.ID, err)
		}
		products = append(products, p)
	}
	return products, nil
}

// ProductByBarcode looks up one cached product via the barcode index;
// this backs live scanner entry during offline checkout. Returns
// (nil, nil) when the barcode is unknown.
func (s *Store) ProductByBarcode(barcode string) (*models.Product, error) {
	var row models.OfflineProduct
	err := s.db.Where("barcode = ?", barcode).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up barcode %s: %w", barcode, err)
	}

	var p models.Product
	if err := json.Unmarshal(row.Data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode cached product %d: %w", row.ID, err)
	}
	return &p, nil
}

// ProductByID looks up one cached product by its server id. Returns
// (nil, nil) when absent.
func (s *Store) ProductByID(id int) (*models.Product, error) {
	var row models.OfflineProduct
	err := s.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up product %d: %w", id, err)
	}

	var p models.Product
	if err := json.Unmarshal(row.Data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode cached product %d: %w", row.ID, err)
	}
	return &p, nil
}
