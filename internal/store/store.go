package store

import (
	"encoding/json"
	"log"

	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/realtime"
)

// Store holds the authoritative client-side entity collections and
// reconciles pushed change events into them. It implements
// realtime.UpdateHandler.
type Store struct {
	Products   *Collection[models.Product]
	Sales      *Collection[models.Sale]
	Inventory  *Collection[models.InventoryRecord]
	Warehouses *Collection[models.Warehouse]
}

// New creates an empty store
func New() *Store {
	return &Store{
		Products:   NewCollection[models.Product](),
		Sales:      NewCollection[models.Sale](),
		Inventory:  NewCollection[models.InventoryRecord](),
		Warehouses: NewCollection[models.Warehouse](),
	}
}

// HandleUpdate applies one pushed change event to the collection for
// its topic. Undecodable payloads and unknown actions are logged and
// skipped; a bad event never takes the channel down.
func (s *Store) HandleUpdate(topic realtime.Topic, action realtime.Action, entityID int, payload json.RawMessage) {
	switch topic {
	case realtime.TopicProduct:
		applyEvent(s.Products, topic, action, entityID, payload)
	case realtime.TopicSale:
		applyEvent(s.Sales, topic, action, entityID, payload)
	case realtime.TopicInventory:
		applyEvent(s.Inventory, topic, action, entityID, payload)
	case realtime.TopicWarehouse:
		applyEvent(s.Warehouses, topic, action, entityID, payload)
	default:
		log.Printf("❓ Update for unknown topic %q ignored", topic)
	}
}

func applyEvent[T Entity](col *Collection[T], topic realtime.Topic, action realtime.Action, entityID int, payload json.RawMessage) {
	switch action {
	case realtime.ActionDelete:
		// Deletes may carry an id-only payload
		col.Delete(entityID)

	case realtime.ActionCreate, realtime.ActionUpdate:
		if len(payload) == 0 {
			log.Printf("⚠️ %s %s event without payload ignored", topic, action)
			return
		}
		var item T
		if err := json.Unmarshal(payload, &item); err != nil {
			log.Printf("⚠️ Failed to decode %s %s payload: %v", topic, action, err)
			return
		}
		col.Apply(action, item)

	default:
		log.Printf("⚠️ Unknown %s action %q ignored", topic, action)
	}
}
