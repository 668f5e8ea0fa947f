package notifyService

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vbilyk/usd_tax_helper_bot/internal/model"
)

// subscriberStore keeps subscriptions in process memory. Notifications are
// best effort: losing the throttle state on restart only means subscribers
// get their next notice a bit earlier than scheduled.
type subscriberStore struct {
	mu   sync.RWMutex
	subs map[int64]model.Subscription
}

func newSubscriberStore() *subscriberStore {
	return &subscriberStore{subs: make(map[int64]model.Subscription)}
}

// subscribe activates the subscription and resets the throttle state, so a
// returning subscriber is picked up by the next sweep right away.
func (s *subscriberStore) subscribe(userID, chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[userID] = model.Subscription{
		UserID: userID,
		ChatID: chatID,
		Status: model.SubscriptionActive,
	}
}

// cancel reports whether there was an active subscription to cancel.
func (s *subscriberStore) cancel(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[userID]
	if !ok || sub.Status != model.SubscriptionActive {
		return false
	}
	sub.Status = model.SubscriptionCancelled
	s.subs[userID] = sub
	return true
}

func (s *subscriberStore) active() []model.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]model.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.Status == model.SubscriptionActive {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].UserID < subs[j].UserID })
	return subs
}

func (s *subscriberStore) markNotified(userID int64, pnl, rate decimal.Decimal, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[userID]
	if !ok {
		return
	}
	sub.LastNotifiedPnL = pnl
	sub.LastNotifiedRate = rate
	sub.LastNotifiedAt = at
	s.subs[userID] = sub
}
