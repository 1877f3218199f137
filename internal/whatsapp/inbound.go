package whatsapp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"cashback_backend/internal/adapters/storage"
	"cashback_backend/internal/chat"
	"cashback_backend/platform/apperr"
	"cashback_backend/platform/logger"
)

// Inbound receives messages once they are translated to chat vocabulary.
type Inbound interface {
	HandleInbound(ctx context.Context, msg chat.InboundMessage) error
}

// MediaSource downloads attachments from the gateway.
type MediaSource interface {
	DownloadMedia(ctx context.Context, mediaPath string) (Media, error)
}

// Receiver turns webhook payloads into inbound chat messages, copying any
// attached image into the media store first. Attachments the store refuses
// are dropped and the caption is still delivered.
type Receiver struct {
	inbound Inbound
	source  MediaSource
	media   storage.MediaStore
	log     *logger.Logger
	now     func() time.Time
}

// NewReceiver creates a receiver. Without a media source or a media store
// attachments are dropped and only captions are kept.
func NewReceiver(inbound Inbound, source MediaSource, media storage.MediaStore, log *logger.Logger) *Receiver {
	return &Receiver{inbound: inbound, source: source, media: media, log: log, now: time.Now}
}

// Receive handles one webhook payload. It reports whether the payload was
// accepted for processing; group chats are ignored.
func (r *Receiver) Receive(ctx context.Context, payload WebhookPayload) (bool, error) {
	if payload.IsGroup() {
		r.log.Debug("whatsapp: group message ignored", "chatId", payload.ChatID)
		return false, nil
	}
	key := payload.Key()
	if key.Participant == "" {
		return false, apperr.Validation("chat id has no participant")
	}
	ctx = context.WithValue(ctx, logger.IdentityKey, key.String())

	var mediaRef, mediaType string
	switch {
	case payload.Image == nil:
	case r.source == nil || r.media == nil:
		r.log.WithContext(ctx).Warn("whatsapp: attachment dropped, media handling not configured", "messageId", payload.Message.ID)
	default:
		ref, contentType, err := r.storeImage(ctx, key, payload)
		if err != nil {
			return false, err
		}
		mediaRef, mediaType = ref, contentType
	}

	unit := payload.Unit(mediaRef, mediaType, r.now())
	if unit.Text == "" && mediaRef == "" {
		return false, nil
	}

	msg := chat.InboundMessage{Key: key, Unit: unit, FromMe: payload.IsFromMe}
	if err := r.inbound.HandleInbound(ctx, msg); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Receiver) storeImage(ctx context.Context, key chat.Key, payload WebhookPayload) (string, string, error) {
	media, err := r.source.DownloadMedia(ctx, payload.Image.MediaPath)
	if err != nil {
		return "", "", apperr.Upstream("download chat attachment", err)
	}
	defer func() {
		_ = media.Body.Close()
	}()

	contentType := storage.NormalizeContentType(media.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.NormalizeContentType(payload.Image.MimeType)
	}
	if err := r.media.ValidateContentType(contentType); err != nil {
		r.log.WithContext(ctx).Warn("whatsapp: attachment rejected", "error", err)
		return "", "", nil
	}

	data, err := io.ReadAll(io.LimitReader(media.Body, maxMediaBytes+1))
	if err != nil {
		return "", "", apperr.Upstream("read chat attachment", err)
	}
	if err := r.media.ValidateFileSize(int64(len(data))); err != nil {
		r.log.WithContext(ctx).Warn("whatsapp: attachment rejected", "error", err)
		return "", "", nil
	}

	fileName := path.Base(payload.Image.MediaPath)
	if payload.Message.ID != "" {
		fileName = payload.Message.ID + path.Ext(fileName)
	}
	ref, err := r.media.UploadMedia(ctx, fmt.Sprintf("%s/%s", key.Channel, key.Participant), fileName, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", apperr.Unavailable("store chat attachment", err)
	}
	r.log.WithContext(ctx).Debug("whatsapp: attachment stored", "ref", ref, "bytes", len(data))
	return ref, contentType, nil
}
