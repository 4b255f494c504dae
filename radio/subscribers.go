package radio

import (
	"log/slog"

	"github.com/google/uuid"
)

// Subscribe registers a listener for receptions. The channel is buffered;
// receptions are dropped for a listener that falls behind.
func (s *Service) Subscribe() (uuid.UUID, <-chan Reception) {
	id := uuid.New()
	ch := make(chan Reception, 16)

	s.subsMu.Lock()
	s.subs[id] = ch
	s.subsMu.Unlock()

	slog.Debug("Reception subscriber added", "id", id)
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Service) Unsubscribe(id uuid.UUID) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
		slog.Debug("Reception subscriber removed", "id", id)
	}
}

// Receptions returns the most recent receptions, oldest first.
func (s *Service) Receptions() []Reception {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	return append([]Reception(nil), s.history...)
}

func (s *Service) publish(rx Reception) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.history = append(s.history, rx)
	if n := len(s.history) - s.cfg.History; n > 0 {
		s.history = append([]Reception(nil), s.history[n:]...)
	}

	for id, ch := range s.subs {
		select {
		case ch <- rx:
		default:
			slog.Warn("Reception subscriber is behind, dropping", "id", id)
		}
	}
}
