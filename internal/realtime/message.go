package realtime

import "encoding/json"

// Topic identifies one multiplexed update stream on the live channel
type Topic string

const (
	TopicProduct   Topic = "product"
	TopicSale      Topic = "sale"
	TopicInventory Topic = "inventory"
	TopicWarehouse Topic = "warehouse"
)

// Topics lists every stream the terminal subscribes to on connect
var Topics = []Topic{TopicProduct, TopicSale, TopicInventory, TopicWarehouse}

// Action is the mutation kind carried by an update message
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Server message types that are handled observationally
const (
	msgConnectionEstablished = "connection_established"
	msgSubscriptionSuccess   = "subscription_success"
	msgPong                  = "pong"
	msgError                 = "error"
)

// envelope is the wire frame exchanged with the sync server. Update
// frames carry the entity under a topic-named key; deletes may instead
// carry only the topic-named id field.
type envelope struct {
	Type    string `json:"type"`
	Action  Action `json:"action,omitempty"`
	Message string `json:"message,omitempty"`

	Product   json.RawMessage `json:"product,omitempty"`
	Sale      json.RawMessage `json:"sale,omitempty"`
	Inventory json.RawMessage `json:"inventory,omitempty"`
	Warehouse json.RawMessage `json:"warehouse,omitempty"`

	ProductID   int `json:"productId,omitempty"`
	SaleID      int `json:"saleId,omitempty"`
	InventoryID int `json:"inventoryId,omitempty"`
	WarehouseID int `json:"warehouseId,omitempty"`
}

// payloadFor returns the entity payload and id hint for a topic
func (e *envelope) payloadFor(topic Topic) (json.RawMessage, int) {
	switch topic {
	case TopicProduct:
		return e.Product, e.ProductID
	case TopicSale:
		return e.Sale, e.SaleID
	case TopicInventory:
		return e.Inventory, e.InventoryID
	case TopicWarehouse:
		return e.Warehouse, e.WarehouseID
	}
	return nil, 0
}

// updateTopic maps an inbound "<topic>_update" frame type to its topic
func updateTopic(frameType string) (Topic, bool) {
	switch frameType {
	case "product_update":
		return TopicProduct, true
	case "sale_update":
		return TopicSale, true
	case "inventory_update":
		return TopicInventory, true
	case "warehouse_update":
		return TopicWarehouse, true
	}
	return "", false
}

// entityID resolves the id of an update payload. Delete frames may
// carry an id-only payload or just the topic-named id field.
func entityID(payload json.RawMessage, hint int) int {
	if hint != 0 {
		return hint
	}
	if len(payload) == 0 {
		return 0
	}
	var probe struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return 0
	}
	return probe.ID
}
