package channel

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// PairingStore persists held first-contact DMs under dmPolicy=pairing,
// keyed by "{channel}:{normalizedSenderId}" so a sender's first message is
// idempotent — re-sending before approval never creates a duplicate record.
//
// Grounded on the teacher's internal/pairing.Store request/allowlist split;
// generalized here onto the shared pstore.TypedStore backend instead of a
// dedicated per-channel JSON file, matching every other registry in this
// gateway.
type PairingStore struct {
	store *pstore.TypedStore[models.PairingRecord]
}

// NewPairingStore wraps kv for the pairing-records namespace.
func NewPairingStore(kv pstore.KV) *PairingStore {
	return &PairingStore{store: pstore.NewTypedStore[models.PairingRecord](kv, "pairing/")}
}

func pairingKey(channel models.ChannelType, senderID string) string {
	return string(channel) + ":" + senderID
}

// Record upserts a pairing request for (channel, normalized senderID). It
// returns created=true only the first time this sender is recorded pending
// approval; subsequent calls before approval touch nothing but RequestedAt
// being already set is what makes the admission step idempotent.
func (s *PairingStore) Record(ctx context.Context, channel models.ChannelType, senderID, senderName, firstMessage string, now time.Time) (created bool, err error) {
	key := pairingKey(channel, senderID)
	_, ok, err := s.store.Load(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	err = s.store.Save(ctx, key, models.PairingRecord{
		Channel:      channel,
		SenderID:     senderID,
		SenderName:   senderName,
		RequestedAt:  now,
		FirstMessage: firstMessage,
	})
	return err == nil, err
}

// List returns every pending pairing record for an operator to review.
func (s *PairingStore) List(ctx context.Context) (map[string]models.PairingRecord, error) {
	return s.store.List(ctx)
}

// Approve removes the pending record; the caller is responsible for
// appending senderID to the channel's persisted allowFrom list via the
// config store so future messages admit under dmPolicy=allowlist-equivalent
// checking.
func (s *PairingStore) Approve(ctx context.Context, channel models.ChannelType, senderID string) error {
	return s.store.Delete(ctx, pairingKey(channel, senderID))
}

// Deny removes the pending record without granting access.
func (s *PairingStore) Deny(ctx context.Context, channel models.ChannelType, senderID string) error {
	return s.store.Delete(ctx, pairingKey(channel, senderID))
}

var phoneLikeRE = regexp.MustCompile(`^\+?[0-9()\-.\s]{7,20}$`)
var nonDigitRE = regexp.MustCompile(`[^0-9]`)

// NormalizeSenderID normalizes phone-like ids to E.164 (leading "+" plus
// digits only); non-phone ids (handles, platform-specific numeric ids) pass
// through lowercased/trimmed unchanged. This must be explicit and applied
// once at admission time — never relied on lazily at lookup time, per §9.
func NormalizeSenderID(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !phoneLikeRE.MatchString(trimmed) {
		return strings.ToLower(trimmed)
	}
	digits := nonDigitRE.ReplaceAllString(trimmed, "")
	if digits == "" {
		return strings.ToLower(trimmed)
	}
	return "+" + digits
}

// AllowListed reports whether normalized id appears in allowFrom (which is
// itself normalized at comparison time, never assumed pre-normalized on
// disk).
func AllowListed(allowFrom []string, normalizedID string) bool {
	for _, entry := range allowFrom {
		if NormalizeSenderID(entry) == normalizedID {
			return true
		}
	}
	return false
}
