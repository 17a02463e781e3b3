package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/ledger"
	"github.com/pointvest/pointvest/internal/transaction"
)

// MemoryStore keeps all state in maps. Units are serialised by a store-wide
// lock and their writes are staged until fn succeeds.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]account.User
	txs     map[string]transaction.Transaction
	txOrder []string
	subs    map[string]account.Subscription
	subKeys map[string][]string
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]account.User),
		txs:     make(map[string]transaction.Transaction),
		subs:    make(map[string]account.Subscription),
		subKeys: make(map[string][]string),
	}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store: s,
		users: make(map[string]account.User),
		txs:   make(map[string]transaction.Transaction),
		subs:  make(map[string]account.Subscription),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u account.User) error {
	if u.ID == "" {
		return apperr.Validation("user id is required")
	}
	if err := u.Balances.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; exists {
		return apperr.Validation("user %s already exists", u.ID)
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) User(_ context.Context, id string) (account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return account.User{}, apperr.NotFound("user", id)
	}
	return u, nil
}

func (s *MemoryStore) ActiveUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.users))
	for id, u := range s.users {
		if u.Active() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Transaction(_ context.Context, id string) (transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txs[id]
	if !ok {
		return transaction.Transaction{}, apperr.NotFound("transaction", id)
	}
	return t, nil
}

// ListTransactions returns matching records, newest first.
func (s *MemoryStore) ListTransactions(_ context.Context, f transaction.Filter) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []transaction.Transaction
	skipped := 0
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		t := s.txs[s.txOrder[i]]
		if !f.Matches(t) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, t)
		if len(out) == f.PageSize() {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertTransaction(ctx context.Context, t transaction.Transaction) error {
	return s.WithinTx(ctx, func(tx Tx) error {
		return tx.InsertTransaction(ctx, t)
	})
}

func (s *MemoryStore) Subscriptions(_ context.Context, userID string) ([]account.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscriptionsLocked(userID, nil), nil
}

func (s *MemoryStore) UpdateAutoRenew(_ context.Context, userID, subscriptionID string, autoRenew bool) (account.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subscriptionID]
	if !ok || sub.UserID != userID {
		return account.Subscription{}, apperr.NotFound("subscription", subscriptionID)
	}
	sub.AutoRenew = autoRenew
	s.subs[subscriptionID] = sub
	return sub, nil
}

func (s *MemoryStore) subscriptionsLocked(userID string, staged map[string]account.Subscription) []account.Subscription {
	keys := s.subKeys[userID]
	out := make([]account.Subscription, 0, len(keys))
	for _, id := range keys {
		if sub, ok := staged[id]; ok {
			out = append(out, sub)
			continue
		}
		out = append(out, s.subs[id])
	}
	for id, sub := range staged {
		if _, committed := s.subs[id]; !committed && sub.UserID == userID {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PurchaseDate.Before(out[j].PurchaseDate) })
	return out
}

type memoryTx struct {
	store   *MemoryStore
	users   map[string]account.User
	txs     map[string]transaction.Transaction
	newTxs  []string
	subs    map[string]account.Subscription
	newSubs []string
}

func (t *memoryTx) User(_ context.Context, id string) (account.User, error) {
	if u, ok := t.users[id]; ok {
		return u, nil
	}
	u, ok := t.store.users[id]
	if !ok {
		return account.User{}, apperr.NotFound("user", id)
	}
	return u, nil
}

func (t *memoryTx) UpdateBalances(ctx context.Context, userID string, b ledger.Balances) error {
	if err := b.Validate(); err != nil {
		return err
	}
	u, err := t.User(ctx, userID)
	if err != nil {
		return err
	}
	u.Balances = b
	t.users[userID] = u
	return nil
}

func (t *memoryTx) Transaction(_ context.Context, id string) (transaction.Transaction, error) {
	if rec, ok := t.txs[id]; ok {
		return rec, nil
	}
	rec, ok := t.store.txs[id]
	if !ok {
		return transaction.Transaction{}, apperr.NotFound("transaction", id)
	}
	return rec, nil
}

func (t *memoryTx) InsertTransaction(ctx context.Context, rec transaction.Transaction) error {
	if _, err := t.User(ctx, rec.UserID); err != nil {
		return err
	}
	if _, err := t.Transaction(ctx, rec.ID); err == nil {
		return fmt.Errorf("transaction %s already exists", rec.ID)
	}
	t.txs[rec.ID] = rec
	t.newTxs = append(t.newTxs, rec.ID)
	return nil
}

func (t *memoryTx) FinalizeTransaction(ctx context.Context, rec transaction.Transaction) error {
	current, err := t.Transaction(ctx, rec.ID)
	if err != nil {
		return err
	}
	if current.Status != transaction.StatusPending {
		return apperr.ErrAlreadyProcessed
	}
	t.txs[rec.ID] = rec
	return nil
}

func (t *memoryTx) UpdateNotes(ctx context.Context, id, notes string) error {
	rec, err := t.Transaction(ctx, id)
	if err != nil {
		return err
	}
	rec.Notes = notes
	t.txs[id] = rec
	return nil
}

func (t *memoryTx) CountTransactions(_ context.Context, userID string, typ transaction.Type) (int, error) {
	n := 0
	for id, rec := range t.store.txs {
		if _, staged := t.txs[id]; staged {
			continue
		}
		if rec.UserID == userID && rec.Type == typ {
			n++
		}
	}
	for _, rec := range t.txs {
		if rec.UserID == userID && rec.Type == typ {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) Subscriptions(_ context.Context, userID string) ([]account.Subscription, error) {
	return t.store.subscriptionsLocked(userID, t.subs), nil
}

func (t *memoryTx) InsertSubscription(ctx context.Context, s account.Subscription) error {
	if _, err := t.User(ctx, s.UserID); err != nil {
		return err
	}
	t.subs[s.ID] = s
	t.newSubs = append(t.newSubs, s.ID)
	return nil
}

func (t *memoryTx) UpdateSubscription(_ context.Context, s account.Subscription) error {
	if _, ok := t.subs[s.ID]; !ok {
		if _, ok := t.store.subs[s.ID]; !ok {
			return apperr.NotFound("subscription", s.ID)
		}
	}
	t.subs[s.ID] = s
	return nil
}

func (t *memoryTx) commit() {
	s := t.store
	for id, u := range t.users {
		s.users[id] = u
	}
	for id, rec := range t.txs {
		s.txs[id] = rec
	}
	s.txOrder = append(s.txOrder, t.newTxs...)
	for _, id := range t.newSubs {
		userID := t.subs[id].UserID
		s.subKeys[userID] = append(s.subKeys[userID], id)
	}
	for id, sub := range t.subs {
		s.subs[id] = sub
	}
}
