package store

import "device-intake-backend/internal/model"

var transitionMap = map[string][]string{
	model.StatusPending:    {model.StatusDraft},
	model.StatusInProgress: {model.StatusPending},
	model.StatusCompleted:  {model.StatusPending, model.StatusInProgress},
}

// ValidTransition reports whether an order may move from one status to another.
func ValidTransition(from, to string) bool {
	allowed, ok := transitionMap[to]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}
