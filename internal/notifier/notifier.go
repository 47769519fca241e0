// Package notifier реализует рассылку событий подключённым клиентам через Server-Sent Events.
package notifier

import (
	"sync"
)

// EventUpdateLeaderboard отправляется клиентам после каждой успешной записи.
const EventUpdateLeaderboard = `{"type":"update_leaderboard"}`

const subscriberBuffer = 8

// Hub управляет подписчиками и рассылает им события.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan string]struct{}
	closed      bool
}

// NewHub создаёт новый пустой Hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[chan string]struct{}),
	}
}

// Subscribe регистрирует нового подписчика и возвращает канал его событий
// вместе с функцией отписки. После отписки канал закрывается.
func (h *Hub) Subscribe() (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	h.subscribers[ch] = struct{}{}

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}

	return ch, unsubscribe
}

// Broadcast отправляет событие всем подписчикам. Доставка негарантированная:
// подписчик с переполненным буфером пропускает событие.
func (h *Hub) Broadcast(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Len возвращает текущее количество подписчиков.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close отписывает всех подписчиков и запрещает новые подписки.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}
