package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iamwavecut/ngwarden/internal/moderation"
)

var (
	permissionMarkers = []string{
		"not enough rights",
		"have no rights",
		"chat_admin_required",
		"can't remove chat owner",
		"method is available only for supergroups",
	}
	notFoundMarkers = []string{
		"user not found",
		"participant_id_invalid",
		"user_not_participant",
		"message to delete not found",
		"message can't be deleted",
		"chat not found",
	}
)

// classify maps a Bot API failure onto the moderation error kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := strings.ToLower(err.Error())
	kind := moderation.ErrGateway
	switch {
	case containsAny(msg, permissionMarkers):
		kind = moderation.ErrPermissionDenied
	case containsAny(msg, notFoundMarkers):
		kind = moderation.ErrTargetNotFound
	}
	return fmt.Errorf("%s: %w: %v", op, kind, err)
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
