package notify

import (
	"context"
	"errors"

	maxbot "github.com/max-messenger/max-bot-api-client-go"
)

// MaxNotifier delivers reminders through the Max messenger bot API.
type MaxNotifier struct {
	api *maxbot.Api
}

func NewMaxNotifier(botToken string) (*MaxNotifier, error) {
	api, err := maxbot.New(botToken)
	if err != nil {
		return nil, errors.New("creating max bot client error: " + err.Error())
	}
	return &MaxNotifier{api: api}, nil
}

func (n *MaxNotifier) Send(ctx context.Context, externalID int64, text string) error {
	_, err := n.api.Messages.Send(ctx, maxbot.NewMessage().SetChat(externalID).SetText(text))
	if err != nil {
		return errors.New("sending messenger notification error: " + err.Error())
	}
	return nil
}
