package commands

import "sync"

const defaultRecentCapacity = 200

// RecentMessages remembers the latest message ids per chat, since the Bot API
// has no way to list chat history.
type RecentMessages struct {
	capacity int
	mu       sync.Mutex
	chats    map[int64][]int64
}

func NewRecentMessages(capacity int) *RecentMessages {
	if capacity <= 0 {
		capacity = defaultRecentCapacity
	}
	return &RecentMessages{capacity: capacity, chats: map[int64][]int64{}}
}

func (r *RecentMessages) Add(chatID, messageID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := append(r.chats[chatID], messageID)
	if len(ids) > r.capacity {
		ids = append(ids[:0:0], ids[len(ids)-r.capacity:]...)
	}
	r.chats[chatID] = ids
}

// Take removes and returns up to n newest ids, newest first.
func (r *RecentMessages) Take(chatID int64, n int) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.chats[chatID]
	n = min(n, len(ids))
	taken := make([]int64, 0, n)
	for i := len(ids) - 1; i >= len(ids)-n; i-- {
		taken = append(taken, ids[i])
	}
	r.chats[chatID] = ids[:len(ids)-n]
	return taken
}

// Forget drops ids that were removed by other means.
func (r *RecentMessages) Forget(chatID int64, messageIDs ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[int64]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		drop[id] = struct{}{}
	}
	ids := r.chats[chatID]
	kept := ids[:0]
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	r.chats[chatID] = kept
}
