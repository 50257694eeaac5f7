package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/eckposgo/internal/api"
	"github.com/xelth-com/eckposgo/internal/buildinfo"
	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/credentials"
	"github.com/xelth-com/eckposgo/internal/offline"
	"github.com/xelth-com/eckposgo/internal/pos"
	"github.com/xelth-com/eckposgo/internal/realtime"
	"github.com/xelth-com/eckposgo/internal/store"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("🚀 Starting POS terminal %s (build %s)", cfg.TerminalID, buildinfo.CommitHash)

	// 2. Open the terminal-local durable store
	queue, err := offline.Open(cfg.OfflineDBPath)
	if err != nil {
		log.Fatalf("Failed to open offline store: %v", err)
	}

	// 3. Wire services
	creds := credentials.NewStore(cfg.CredentialsPath)
	apiClient := api.NewClient(cfg.APIURL, creds)
	collections := store.New()
	channel := realtime.NewClient(cfg.WebSocketURL, creds, &catalogCache{
		collections: collections,
		queue:       queue,
	})
	sales := pos.NewService(apiClient, queue, channel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Drain the offline queue and refresh caches whenever the live
	// channel comes (back) up.
	unsubscribe := channel.OnConnectionChange(func(connected bool) {
		if !connected {
			return
		}
		go func() {
			if _, err := sales.Flush(ctx); err != nil {
				log.Printf("⚠️ Offline flush failed: %v", err)
			}
			refreshCollections(ctx, apiClient, collections, queue)
		}()
	})
	defer unsubscribe()

	unsubscribeErr := channel.OnChannelError(func(message string) {
		log.Printf("⚠️ Live updates degraded: %s", message)
	})
	defer unsubscribeErr()

	// 5. Initial data load; a cold offline start falls back to the
	// cached catalog so barcode lookup keeps working.
	refreshCollections(ctx, apiClient, collections, queue)

	// 6. Connect the live channel (keeps retrying on its own)
	if err := channel.Connect(); err != nil {
		log.Printf("⚠️ Live channel unavailable, running degraded: %v", err)
	}

	// 7. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")
	channel.Disconnect()
	cancel()
	if err := queue.Close(); err != nil {
		log.Printf("⚠️ Failed to close offline store: %v", err)
	}
	log.Println("👋 Terminal stopped")
}

// catalogCache reconciles pushed updates into the in-memory
// collections and keeps the offline product snapshot in step with
// catalog changes, so a crash right after a push still leaves the
// scanner working.
type catalogCache struct {
	collections *store.Store
	queue       *offline.Store
}

func (c *catalogCache) HandleUpdate(topic realtime.Topic, action realtime.Action, entityID int, payload json.RawMessage) {
	c.collections.HandleUpdate(topic, action, entityID, payload)
	if topic != realtime.TopicProduct {
		return
	}
	if err := c.queue.ReplaceProducts(c.collections.Products.Items()); err != nil {
		log.Printf("⚠️ Offline cache refresh failed: %v", err)
	}
}

// refreshCollections pulls the working set from the backend into the
// in-memory collections and snapshots the catalog into the offline
// cache. When the backend is unreachable the previous offline snapshot
// is loaded instead.
func refreshCollections(ctx context.Context, apiClient *api.Client, collections *store.Store, queue *offline.Store) {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	products, err := apiClient.Products(fetchCtx)
	if err != nil {
		log.Printf("⚠️ Catalog fetch failed (%v), using offline cache", err)
		if cached, cacheErr := queue.Products(); cacheErr == nil {
			collections.Products.Replace(cached)
		} else {
			log.Printf("⚠️ Offline cache unavailable: %v", cacheErr)
		}
		return
	}
	collections.Products.Replace(products)
	if err := queue.ReplaceProducts(products); err != nil {
		log.Printf("⚠️ Offline cache refresh failed: %v", err)
	}

	if warehouses, err := apiClient.Warehouses(fetchCtx); err == nil {
		collections.Warehouses.Replace(warehouses)
	} else {
		log.Printf("⚠️ Warehouse fetch failed: %v", err)
	}
	if inventory, err := apiClient.Inventory(fetchCtx); err == nil {
		collections.Inventory.Replace(inventory)
	} else {
		log.Printf("⚠️ Inventory fetch failed: %v", err)
	}
	if salesList, err := apiClient.Sales(fetchCtx); err == nil {
		collections.Sales.Replace(salesList)
	} else {
		log.Printf("⚠️ Sales fetch failed: %v", err)
	}
}
