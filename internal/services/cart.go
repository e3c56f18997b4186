package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"eventhub/internal/status"
	"eventhub/models"
	"eventhub/utils"

	"github.com/shopspring/decimal"
)

const DefaultMaxPerPurchase = 10

type ticketTypeReader interface {
	Get(ctx context.Context, ticketTypeID string) (*models.TicketType, error)
}

// CartStore holds advisory per-user carts. Adding to a cart never reserves
// seats, so two carts may both hold the last seat; checkout decides.
type CartStore struct {
	catalog        ticketTypeReader
	maxPerPurchase int

	mu    sync.RWMutex
	carts map[string]*userCart
	now   func() time.Time
}

type userCart struct {
	mu      sync.Mutex
	items   []models.CartLineItem
	touched time.Time
	removed bool
}

func NewCartStore(catalog ticketTypeReader, maxPerPurchase int) *CartStore {
	if maxPerPurchase <= 0 {
		maxPerPurchase = DefaultMaxPerPurchase
	}
	return &CartStore{
		catalog:        catalog,
		maxPerPurchase: maxPerPurchase,
		carts:          make(map[string]*userCart),
		now:            time.Now,
	}
}

// lockCart returns the user's cart locked, creating it when needed.
func (s *CartStore) lockCart(userID string) *userCart {
	for {
		s.mu.RLock()
		c, ok := s.carts[userID]
		s.mu.RUnlock()

		if !ok {
			s.mu.Lock()
			if c, ok = s.carts[userID]; !ok {
				c = &userCart{}
				s.carts[userID] = c
			}
			s.mu.Unlock()
		}

		c.mu.Lock()
		if !c.removed {
			return c
		}
		// swept between lookup and lock
		c.mu.Unlock()
	}
}

// lockExisting is lockCart without creation; it returns nil for an empty cart.
func (s *CartStore) lockExisting(userID string) *userCart {
	s.mu.RLock()
	c, ok := s.carts[userID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	c.mu.Lock()
	if c.removed {
		c.mu.Unlock()
		return nil
	}
	return c
}

func clamp(qty, lo, hi int) int {
	if qty < lo {
		return lo
	}
	if qty > hi {
		return hi
	}
	return qty
}

// AddItem puts qty seats of a ticket type in the cart, clamped to
// [1, min(available, maxPerPurchase)] using availability read now. Adding a
// type already in the cart merges into the existing line.
func (s *CartStore) AddItem(ctx context.Context, userID, ticketTypeID string, qty int) (*models.CartLineItem, error) {
	tt, err := s.catalog.Get(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}

	limit := min(tt.Available(), s.maxPerPurchase)
	if limit < 1 {
		return nil, fmt.Errorf("%w: ticket type %s is sold out", status.ErrInsufficientInventory, ticketTypeID)
	}

	c := s.lockCart(userID)
	defer c.mu.Unlock()

	now := s.now()
	c.touched = now

	for i := range c.items {
		line := &c.items[i]
		if line.TicketTypeID != ticketTypeID {
			continue
		}
		line.MaxQuantity = limit
		line.Quantity = clamp(line.Quantity+qty, 1, limit)
		out := *line
		return &out, nil
	}

	line := models.CartLineItem{
		ID:                utils.NewID(),
		UserID:            userID,
		TicketTypeID:      ticketTypeID,
		Quantity:          clamp(qty, 1, limit),
		UnitPriceSnapshot: tt.UnitPrice,
		MaxQuantity:       limit,
		AddedAt:           now,
	}
	c.items = append(c.items, line)

	if line.Quantity != qty {
		slog.Info("cart quantity clamped", "user_id", userID, "ticket_type_id", ticketTypeID, "requested", qty, "stored", line.Quantity)
	}
	return &line, nil
}

// UpdateQuantity clamps qty to [1, MaxQuantity] captured when the line was added.
func (s *CartStore) UpdateQuantity(userID, lineID string, qty int) (*models.CartLineItem, error) {
	c := s.lockExisting(userID)
	if c == nil {
		return nil, fmt.Errorf("%w: cart line %s", status.ErrNotFound, lineID)
	}
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == lineID {
			c.items[i].Quantity = clamp(qty, 1, c.items[i].MaxQuantity)
			c.touched = s.now()
			out := c.items[i]
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: cart line %s", status.ErrNotFound, lineID)
}

func (s *CartStore) RemoveItem(userID, lineID string) error {
	c := s.lockExisting(userID)
	if c == nil {
		return fmt.Errorf("%w: cart line %s", status.ErrNotFound, lineID)
	}
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == lineID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.touched = s.now()
			return nil
		}
	}
	return fmt.Errorf("%w: cart line %s", status.ErrNotFound, lineID)
}

// RemoveLines takes committed quantities (line id to seats bought) out of the
// cart. A line raised after its snapshot keeps the extra seats; ids that are
// no longer present are ignored.
func (s *CartStore) RemoveLines(userID string, committed map[string]int) {
	if len(committed) == 0 {
		return
	}
	c := s.lockExisting(userID)
	if c == nil {
		return
	}
	defer c.mu.Unlock()

	kept := c.items[:0]
	for _, item := range c.items {
		if qty, ok := committed[item.ID]; ok {
			if item.Quantity <= qty {
				continue
			}
			item.Quantity -= qty
		}
		kept = append(kept, item)
	}
	c.items = kept
	c.touched = s.now()
}

func (s *CartStore) Clear(userID string) {
	c := s.lockExisting(userID)
	if c == nil {
		return
	}
	defer c.mu.Unlock()

	c.items = nil
	c.touched = s.now()
}

func (s *CartStore) Items(userID string) []models.CartLineItem {
	c := s.lockExisting(userID)
	if c == nil {
		return []models.CartLineItem{}
	}
	defer c.mu.Unlock()

	out := make([]models.CartLineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (s *CartStore) Total(userID string) decimal.Decimal {
	return s.Snapshot(userID).Total()
}

func (s *CartStore) Snapshot(userID string) models.CartSnapshot {
	return models.CartSnapshot{
		UserID:  userID,
		Items:   s.Items(userID),
		TakenAt: s.now(),
	}
}

// Sweep removes carts untouched for idleTTL and returns how many were dropped.
// Carts busy in another call are left for the next sweep.
func (s *CartStore) Sweep(idleTTL time.Duration) int {
	cutoff := s.now().Add(-idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for userID, c := range s.carts {
		if !c.mu.TryLock() {
			continue
		}
		if len(c.items) == 0 || c.touched.Before(cutoff) {
			c.removed = true
			delete(s.carts, userID)
			swept++
		}
		c.mu.Unlock()
	}
	return swept
}

// RunSweeper sweeps idle carts every interval until ctx is done.
func (s *CartStore) RunSweeper(ctx context.Context, interval, idleTTL time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(idleTTL); n > 0 {
				slog.Info("swept idle carts", "count", n)
			}
		}
	}
}
