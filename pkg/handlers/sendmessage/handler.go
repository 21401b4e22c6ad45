// Package sendmessage delivers a templated message to the subject or to
// staff through the messaging capability.
package sendmessage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/protocol"
)

var ErrTemplateRequired = errors.New("send_message requires a template")

// Factory builds send_message handlers.
type Factory struct {
	messenger protocol.Messenger
}

func NewFactory(messenger protocol.Messenger) *Factory {
	return &Factory{messenger: messenger}
}

func (*Factory) Type() models.ActionType {
	return models.ActionSendMessage
}

func (f *Factory) Create(params map[string]any) (protocol.ActionHandler, error) {
	template, _ := params[models.ParamTemplate].(string)
	if template == "" {
		return nil, ErrTemplateRequired
	}

	channel, _ := params["channel"].(string)
	if channel == "" {
		channel = "email"
	}

	recipients := parseRecipients(params[models.ParamRecipients])
	if len(recipients) == 0 {
		recipients = []string{"subject"}
	}

	vars, _ := params["vars"].(map[string]any)

	return &Handler{
		messenger:  f.messenger,
		template:   template,
		channel:    channel,
		recipients: recipients,
		vars:       vars,
	}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			models.ParamTemplate: map[string]any{
				"type":        "string",
				"description": "Message template name",
			},
			"channel": map[string]any{
				"type":    "string",
				"enum":    []any{"email", "sms"},
				"default": "email",
			},
			models.ParamRecipients: map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Recipient ids; the token 'subject' resolves to the workflow subject",
			},
			models.ParamDelay: map[string]any{
				"type":        "number",
				"description": "Defer execution by this many minutes",
			},
			"vars": map[string]any{
				"type": "object",
			},
		},
		"required": []any{models.ParamTemplate},
	}
}

// Handler sends one template to each recipient.
type Handler struct {
	messenger  protocol.Messenger
	template   string
	channel    string
	recipients []string
	vars       map[string]any
}

func (h *Handler) Execute(ctx context.Context, hctx *protocol.HandlerContext, logger *slog.Logger) (any, error) {
	sent := make([]string, 0, len(h.recipients))

	for _, recipient := range h.recipients {
		if recipient == "subject" {
			recipient = hctx.SubjectID
		}

		if _, err := h.messenger.SendMessage(ctx, h.channel, h.template, recipient, h.vars); err != nil {
			return nil, err
		}

		sent = append(sent, recipient)
	}

	logger.Info("Message sent", "template", h.template, "recipients", len(sent))

	hctx.PutPhaseData("last_message_template", h.template)

	return map[string]any{
		"template":   h.template,
		"channel":    h.channel,
		"recipients": sent,
	}, nil
}

func parseRecipients(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	recipients := make([]string, 0, len(list))

	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			recipients = append(recipients, s)
		}
	}

	return recipients
}
