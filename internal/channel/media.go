package channel

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// MaxMediaBytes bounds a single decoded media attachment (§4.7 step 7).
const MaxMediaBytes = 25 * 1024 * 1024

// MediaStore is the blob-storage collaborator the pipeline needs to persist
// decoded media. blobstore.Store satisfies this via PutMedia.
type MediaStore interface {
	PutMedia(ctx context.Context, sessionKey, ext, mimeType string, data []byte) (string, error)
}

// Transcriber converts decoded audio bytes to text. The concrete providers
// (workers-ai, openai) are out of scope per §1; only this shape is consumed.
type Transcriber interface {
	Transcribe(ctx context.Context, mimeType string, data []byte) (string, error)
}

// MediaProcessor implements §4.7 step 7: decode base64, size-check,
// transcribe audio, store, and strip the payload down to a resolved
// Attachment (base64 data never survives past this step).
type MediaProcessor struct {
	Store       MediaStore
	Transcriber Transcriber // may be nil: transcription then degrades to absent
}

// Process resolves every inbound media attachment for sessionKey. An
// oversized or malformed attachment is dropped (logged by the caller) rather
// than failing the whole inbound message.
func (p *MediaProcessor) Process(ctx context.Context, sessionKey string, media []models.ChannelMedia) ([]models.Attachment, []error) {
	var out []models.Attachment
	var errs []error

	for _, m := range media {
		att, err := p.processOne(ctx, sessionKey, m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, att)
	}
	return out, errs
}

func (p *MediaProcessor) processOne(ctx context.Context, sessionKey string, m models.ChannelMedia) (models.Attachment, error) {
	if m.Data == "" {
		return models.Attachment{}, fmt.Errorf("channel: media attachment has no inline data")
	}
	raw, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("channel: decode media: %w", err)
	}
	if len(raw) > MaxMediaBytes {
		return models.Attachment{}, fmt.Errorf("channel: media attachment %d bytes exceeds %d byte limit", len(raw), MaxMediaBytes)
	}

	transcription := m.Transcription
	if m.Type == models.MediaAudio && transcription == "" && p.Transcriber != nil {
		text, err := p.Transcriber.Transcribe(ctx, m.MimeType, raw)
		if err != nil {
			transcription = ""
		} else {
			transcription = text
		}
	}

	ext := extensionFor(m.MimeType, m.Filename)
	key, err := p.Store.PutMedia(ctx, sessionKey, ext, m.MimeType, raw)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("channel: store media: %w", err)
	}

	return models.Attachment{
		R2Key:         key,
		Type:          string(m.Type),
		MimeType:      m.MimeType,
		Filename:      m.Filename,
		Size:          int64(len(raw)),
		DurationMs:    m.DurationMs,
		Transcription: transcription,
	}, nil
}

func extensionFor(mimeType, filename string) string {
	if filename != "" {
		if idx := strings.LastIndex(filename, "."); idx >= 0 && idx < len(filename)-1 {
			return filename[idx+1:]
		}
	}
	if idx := strings.LastIndex(mimeType, "/"); idx >= 0 && idx < len(mimeType)-1 {
		return mimeType[idx+1:]
	}
	return "bin"
}
