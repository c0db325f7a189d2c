package telegram

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
)

// BotAPI is the part of *api.BotAPI used here.
type BotAPI interface {
	Request(c api.Chattable) (*api.APIResponse, error)
	Send(c api.Chattable) (api.Message, error)
	GetChatMember(config api.GetChatMemberConfig) (api.ChatMember, error)
}

func (a *Actuator) request(ctx context.Context, op string, c api.Chattable) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return classify(op, err)
	}
	_, err := a.bot.Request(c)
	return classify(op, err)
}

func (a *Actuator) send(ctx context.Context, op string, c api.Chattable) (api.Message, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return api.Message{}, classify(op, err)
	}
	msg, err := a.bot.Send(c)
	return msg, classify(op, err)
}

func (a *Actuator) chatMember(ctx context.Context, chatID, userID int64) (api.ChatMember, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return api.ChatMember{}, classify("get chat member", err)
	}
	member, err := a.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			UserID: userID,
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
		},
	})
	return member, classify("get chat member", err)
}

// restrictConfig sets every member permission to allow. Revoking a mute
// must hand back the full set, since omitted flags are applied as false.
func restrictConfig(chatID, userID int64, allow bool) api.RestrictChatMemberConfig {
	return api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		Permissions: &api.ChatPermissions{
			CanSendMessages:       allow,
			CanSendAudios:         allow,
			CanSendDocuments:      allow,
			CanSendPhotos:         allow,
			CanSendVideos:         allow,
			CanSendVideoNotes:     allow,
			CanSendVoiceNotes:     allow,
			CanSendPolls:          allow,
			CanSendOtherMessages:  allow,
			CanAddWebPagePreviews: allow,
			CanChangeInfo:         allow,
			CanInviteUsers:        allow,
			CanPinMessages:        allow,
			CanManageTopics:       allow,
		},
		UseIndependentChatPermissions: true,
	}
}
