package chat

import (
	"encoding/json"
	"time"

	"jircord/logger"
	"jircord/service/storage"
	"jircord/tools/decode"
	"jircord/tools/errs"

	"go.uber.org/zap"
)

// Wire event names.
const (
	EventChatMessage  = "chat:message"
	EventUsersUpdate  = "users:update"
	EventUsersAll     = "users:all"
	EventMessagesGet  = "messages:get"
	EventMessagesList = "messages:list"
	EventError        = "error"
)

// createdAt is always rendered in UTC with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type inboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type sendPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type historyPayload struct {
	Target string `json:"target"`
}

// MessagePayload is a delivered chat message as clients see it.
type MessagePayload struct {
	From      string `json:"from"`
	To        string `json:"to,omitempty"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

func toPayload(e storage.Entry) MessagePayload {
	return MessagePayload{
		From:      e.From,
		To:        e.To,
		Text:      e.Text,
		CreatedAt: e.CreatedAt.UTC().Format(timeLayout),
	}
}

// ParseTime reads a createdAt value back.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// parseInbound turns one client frame into a router event. Every failure
// is an InvalidPayload.
func parseInbound(s *Session, raw []byte) (Event, error) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.WrapCode(errs.ErrInvalidPayload, err, "unmarshal frame")
	}
	switch f.Event {
	case EventChatMessage:
		p, err := decode.DecodeMap[sendPayload](f.Data)
		if err != nil {
			return nil, errs.WrapCode(errs.ErrInvalidPayload, err, "chat:message payload")
		}
		return MessageSent{Session: s, To: p.To, Text: p.Text}, nil
	case EventMessagesGet:
		target, err := historyTarget(f.Data)
		if err != nil {
			return nil, err
		}
		return HistoryRequested{Session: s, Target: target}, nil
	case EventUsersAll:
		return RosterRequested{Session: s}, nil
	case "":
		return nil, errs.ErrInvalidPayload.WrapMsg("missing event")
	default:
		return nil, errs.ErrInvalidPayload.WrapMsg("unknown event", "event", f.Event)
	}
}

// historyTarget accepts null, a bare string or {target}.
func historyTarget(data any) (string, error) {
	switch v := data.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case map[string]any:
		p, err := decode.DecodeMap[historyPayload](v)
		if err != nil {
			return "", errs.WrapCode(errs.ErrInvalidPayload, err, "messages:get payload")
		}
		return p.Target, nil
	default:
		return "", errs.ErrInvalidPayload.WrapMsg("messages:get payload", "type", v)
	}
}

func encodeFrame(event string, data any) []byte {
	b, err := json.Marshal(outboundFrame{Event: event, Data: data})
	if err != nil {
		logger.Error("[WS] encode frame", zap.String("event", event), zap.Error(err))
		return nil
	}
	return b
}

func chatMessageFrame(e storage.Entry) []byte {
	return encodeFrame(EventChatMessage, toPayload(e))
}

func historyFrame(entries []storage.Entry) []byte {
	list := make([]MessagePayload, 0, len(entries))
	for _, e := range entries {
		list = append(list, toPayload(e))
	}
	return encodeFrame(EventMessagesList, list)
}

func usersFrame(event string, users []string) []byte {
	if users == nil {
		users = []string{}
	}
	return encodeFrame(event, users)
}

func errorFrame(err error) []byte {
	return encodeFrame(EventError, errs.As(err))
}
