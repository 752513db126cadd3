package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"history-recorder/internal/dispatch"
	"history-recorder/internal/record"
)

const startCmd = "/start"

// EventsFromUpdate maps one Telegram update to zero or more inbound events.
// botID identifies the bot itself in membership changes.
func EventsFromUpdate(u tgbotapi.Update, botID int64) []dispatch.Event {
	if u.EditedMessage != nil {
		return editEvents(u.EditedMessage)
	}
	if u.Message == nil || u.Message.Chat == nil {
		return nil
	}
	msg := u.Message
	base := dispatch.Event{
		ConversationID: strconv.FormatInt(msg.Chat.ID, 10),
		MessageID:      strconv.Itoa(msg.MessageID),
		Sender:         senderOf(msg),
		Timestamp:      int64(msg.Date),
	}

	var events []dispatch.Event
	if len(msg.NewChatMembers) > 0 {
		var joined []string
		for _, m := range msg.NewChatMembers {
			if m.ID == botID {
				events = append(events, withKind(base, dispatch.EventNewConversation))
				continue
			}
			joined = append(joined, strconv.FormatInt(m.ID, 10))
		}
		if len(joined) > 0 {
			ev := withKind(base, dispatch.EventMemberJoin)
			ev.UserIDs = joined
			events = append(events, ev)
		}
		return events
	}
	if msg.LeftChatMember != nil {
		if msg.LeftChatMember.ID == botID {
			events = append(events, withKind(base, dispatch.EventBotRemoved))
		}
		return events
	}

	switch {
	case len(msg.Photo) > 0:
		ev := withKind(base, dispatch.EventImage)
		ev.Asset = photoAsset(msg)
		events = append(events, ev)
	case msg.Video != nil:
		events = append(events, videoEvent(base, msg.Video))
	case msg.Document != nil:
		ev := withKind(base, dispatch.EventAttachment)
		ev.Asset = record.Asset{
			MimeType: msg.Document.MimeType,
			Key:      msg.Document.FileID,
			Name:     msg.Document.FileName,
			Size:     int64(msg.Document.FileSize),
		}
		events = append(events, ev)
	case msg.Text != "":
		kind := dispatch.EventText
		if msg.Chat.IsPrivate() && isStart(msg.Text) {
			kind = dispatch.EventNewConversation
		}
		ev := withKind(base, kind)
		ev.Text = msg.Text
		return append(events, ev)
	}

	// Captions are kept as a text record next to the media they describe.
	if len(events) > 0 && msg.Caption != "" {
		ev := withKind(base, dispatch.EventText)
		ev.MessageID = captionID(msg.MessageID)
		ev.Text = msg.Caption
		ev.Caption = true
		events = append(events, ev)
	}
	return events
}

func editEvents(msg *tgbotapi.Message) []dispatch.Event {
	if msg.Chat == nil {
		return nil
	}
	ev := dispatch.Event{
		Kind:           dispatch.EventEdit,
		ConversationID: strconv.FormatInt(msg.Chat.ID, 10),
		MessageID:      strconv.Itoa(msg.MessageID),
		Sender:         senderOf(msg),
		Text:           msg.Text,
		Timestamp:      int64(msg.EditDate),
	}
	if msg.Text == "" {
		if msg.Caption == "" {
			return nil
		}
		ev.MessageID = captionID(msg.MessageID)
		ev.Text = msg.Caption
	}
	return []dispatch.Event{ev}
}

func withKind(ev dispatch.Event, kind dispatch.EventKind) dispatch.Event {
	ev.Kind = kind
	return ev
}

func isStart(text string) bool {
	cmd := strings.ToLower(strings.TrimSpace(text))
	return cmd == startCmd || strings.HasPrefix(cmd, startCmd+"@") || strings.HasPrefix(cmd, startCmd+" ")
}

func captionID(messageID int) string {
	return fmt.Sprintf("%d-caption", messageID)
}

// photoAsset picks the largest size Telegram offers.
func photoAsset(msg *tgbotapi.Message) record.Asset {
	best := msg.Photo[0]
	for _, p := range msg.Photo[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return record.Asset{
		MimeType: "image/jpeg",
		Key:      best.FileID,
		Name:     fmt.Sprintf("photo_%d.jpg", msg.MessageID),
		Size:     int64(best.FileSize),
		Width:    best.Width,
		Height:   best.Height,
	}
}

// videoEvent records the preview frame of a video as an image, falling
// back to the video file itself when Telegram sent no thumbnail.
func videoEvent(base dispatch.Event, v *tgbotapi.Video) dispatch.Event {
	name := v.FileName
	if name == "" {
		name = "video_" + base.MessageID
	}
	if v.Thumbnail != nil {
		ev := withKind(base, dispatch.EventImage)
		ev.Asset = record.Asset{
			MimeType: "image/jpeg",
			Key:      v.Thumbnail.FileID,
			Name:     name + ".jpg",
			Size:     int64(v.Thumbnail.FileSize),
			Width:    v.Thumbnail.Width,
			Height:   v.Thumbnail.Height,
		}
		return ev
	}
	ev := withKind(base, dispatch.EventAttachment)
	ev.Asset = record.Asset{MimeType: v.MimeType, Key: v.FileID, Name: name, Size: int64(v.FileSize)}
	return ev
}

func senderOf(msg *tgbotapi.Message) record.Sender {
	if msg.From == nil {
		if msg.Chat != nil {
			return record.Sender{ID: strconv.FormatInt(msg.Chat.ID, 10), Name: msg.Chat.Title, Accent: accentFor(msg.Chat.ID)}
		}
		return record.Sender{}
	}
	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	if name == "" {
		name = msg.From.UserName
	}
	return record.Sender{ID: strconv.FormatInt(msg.From.ID, 10), Name: name, Accent: accentFor(msg.From.ID)}
}

// accentFor spreads users over the seven accent colours.
func accentFor(id int64) int {
	if id < 0 {
		id = -id
	}
	return int(id%7) + 1
}
