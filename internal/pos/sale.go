package pos

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xelth-com/eckposgo/internal/api"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/offline"
	"github.com/xelth-com/eckposgo/internal/realtime"
)

var (
	// Local validation failures; never reach the network layer
	ErrNoWarehouse        = errors.New("no warehouse selected")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInsufficientTender = errors.New("amount tendered is less than the total due")

	// ErrOfflineSaveFailed means the sale could be neither submitted
	// nor captured locally. The caller must tell the user the sale was
	// not saved anywhere.
	ErrOfflineSaveFailed = errors.New("could not save sale offline")
)

// SalesAPI is the slice of the backend the capture flow consumes
type SalesAPI interface {
	CreateSale(ctx context.Context, draft models.SaleDraft) (*models.Sale, error)
}

// Broadcaster pushes local mutations onto the live update channel
type Broadcaster interface {
	Send(topic realtime.Topic, action realtime.Action, payload any) error
}

// Receipt is what the cashier sees after a submission attempt: exactly
// one per attempted sale. Offline receipts carry an OFF- reference and
// no server sale id until the capture is replayed.
type Receipt struct {
	Ref      string
	SaleID   int
	LocalID  uint
	Offline  bool
	Draft    models.SaleDraft
	IssuedAt time.Time
}

// FlushResult summarizes one offline queue drain
type FlushResult struct {
	Replayed int
	Failed   int
}

// Service is the sale submission path: network first, durable offline
// capture on connectivity failure.
type Service struct {
	api     SalesAPI
	queue   *offline.Store
	channel Broadcaster

	// Injected for tests
	now   func() time.Time
	newID func() string

	flushMu sync.Mutex
}

// NewService wires the capture flow. channel may be nil when the live
// channel is not in use.
func NewService(salesAPI SalesAPI, queue *offline.Store, channel Broadcaster) *Service {
	return &Service{
		api:     salesAPI,
		queue:   queue,
		channel: channel,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Submit validates and submits a sale draft. On success the created
// sale is broadcast and a server receipt returned. On a connectivity
// failure the draft is captured offline and a clearly-marked offline
// receipt returned. A server rejection is returned verbatim: nothing
// is queued and the cart must stay intact.
func (s *Service) Submit(ctx context.Context, draft models.SaleDraft) (*Receipt, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	sale, err := s.api.CreateSale(ctx, draft)
	if err == nil {
		if s.channel != nil {
			_ = s.channel.Send(realtime.TopicSale, realtime.ActionCreate, sale)
		}
		return &Receipt{
			Ref:      sale.ReceiptNumber,
			SaleID:   sale.ID,
			Draft:    draft,
			IssuedAt: s.now(),
		}, nil
	}

	if !api.IsConnectivity(err) {
		// Rejected, not unreachable: retrying offline would fail again
		return nil, err
	}

	capturedAt := s.now()
	ref := "OFF-" + s.newID()
	localID, saveErr := s.queue.SaveSale(draft, ref, capturedAt)
	if saveErr != nil {
		return nil, fmt.Errorf("%w: %v (after submit failed: %v)", ErrOfflineSaveFailed, saveErr, err)
	}

	log.Printf("📴 Sale captured offline as %s (local id %d)", ref, localID)
	return &Receipt{
		Ref:      ref,
		LocalID:  localID,
		Offline:  true,
		Draft:    draft,
		IssuedAt: capturedAt,
	}, nil
}

// SubmitCart submits the cart's draft and clears the cart on success
// or offline capture. On a rejection the cart is left intact for
// correction.
func (s *Service) SubmitCart(ctx context.Context, cart *Cart) (*Receipt, error) {
	receipt, err := s.Submit(ctx, cart.Draft())
	if err != nil {
		return nil, err
	}
	cart.Clear()
	return receipt, nil
}

// Flush replays unsynced offline captures through the regular REST
// path. Successful replays are marked synced and purged; failures stay
// queued for the next flush. Captures landing while a flush runs are
// not touched until the next round, so nothing is lost or
// double-processed.
func (s *Service) Flush(ctx context.Context) (FlushResult, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	var result FlushResult

	rows, err := s.queue.UnsyncedSales()
	if err != nil {
		return result, err
	}
	if len(rows) == 0 {
		return result, nil
	}
	log.Printf("🔄 Flushing %d offline sale(s)", len(rows))

	for _, row := range rows {
		draft, err := offline.DecodeDraft(row)
		if err != nil {
			log.Printf("⚠️ Skipping offline sale %d: %v", row.ID, err)
			result.Failed++
			continue
		}

		sale, err := s.api.CreateSale(ctx, draft)
		if err != nil {
			log.Printf("⚠️ Replay of offline sale %d failed, keeping for retry: %v", row.ID, err)
			result.Failed++
			continue
		}

		if err := s.queue.MarkSaleSynced(row.ID); err != nil {
			log.Printf("⚠️ Failed to mark offline sale %d synced: %v", row.ID, err)
			result.Failed++
			continue
		}

		if s.channel != nil {
			_ = s.channel.Send(realtime.TopicSale, realtime.ActionCreate, sale)
		}
		result.Replayed++
	}

	if result.Replayed > 0 {
		if err := s.queue.ClearSyncedSales(); err != nil {
			log.Printf("⚠️ Failed to purge synced sales: %v", err)
		}
	}

	log.Printf("✅ Offline flush done: %d replayed, %d kept", result.Replayed, result.Failed)
	return result, nil
}

func validateDraft(draft models.SaleDraft) error {
	if draft.WarehouseID == 0 {
		return ErrNoWarehouse
	}
	if len(draft.Items) == 0 {
		return ErrEmptyCart
	}
	if draft.PaymentMethod == models.PaymentMethodCash && draft.AmountTendered.LessThan(draft.TotalAmount) {
		return ErrInsufficientTender
	}
	return nil
}
