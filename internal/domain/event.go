package domain

import (
	"strings"
	"time"
)

// EventType — тип пользовательского взаимодействия с товаром
type EventType string

const (
	EventView      EventType = "view"
	EventAddToCart EventType = "add_to_cart"
	EventPurchase  EventType = "purchase"
)

// Valid сообщает, известен ли тип события.
func (t EventType) Valid() bool {
	switch t {
	case EventView, EventAddToCart, EventPurchase:
		return true
	}
	return false
}

// ParseEventType нормализует строку и проверяет тип события.
func ParseEventType(s string) (EventType, bool) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// InteractionEvent — запись журнала взаимодействий. Журнал только дополняется.
type InteractionEvent struct {
	ID        int64
	UserID    string
	ProductID string
	EventType EventType
	Timestamp time.Time
}

func NewInteractionEvent(userID, productID string, eventType EventType, ts time.Time) *InteractionEvent {
	return &InteractionEvent{
		UserID:    userID,
		ProductID: productID,
		EventType: eventType,
		Timestamp: ts,
	}
}

// MaxTimestamp возвращает время последнего события. Для пустого журнала возвращает нулевое время.
func MaxTimestamp(events []InteractionEvent) time.Time {
	var maxTS time.Time
	for _, ev := range events {
		if ev.Timestamp.After(maxTS) {
			maxTS = ev.Timestamp
		}
	}
	return maxTS
}
