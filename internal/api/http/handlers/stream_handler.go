package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/spec-kit/locker-service/internal/api/dto"
	"github.com/spec-kit/locker-service/internal/events"
	"github.com/spec-kit/locker-service/internal/service"
	apperrors "github.com/spec-kit/locker-service/pkg/util/errorutil"
)

type fetchFunc func(ctx context.Context) (any, error)

// StreamHandler pushes reservation lists as server-sent events.
type StreamHandler struct {
	reservations *service.ReservationService
	feed         events.Feed
	interval     time.Duration
	root         context.Context
	logger       *zap.Logger
}

// NewStreamHandler constructs handler. Streams end when root is cancelled.
func NewStreamHandler(root context.Context, reservations *service.ReservationService, feed events.Feed, interval time.Duration, logger *zap.Logger) *StreamHandler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StreamHandler{reservations: reservations, feed: feed, interval: interval, root: root, logger: logger}
}

// StreamAll GET /stream/reservations.
func (h *StreamHandler) StreamAll(c *fiber.Ctx) error {
	ttl := h.reservations.HoldTTL()
	return h.stream(c, func(ctx context.Context) (any, error) {
		list, err := h.reservations.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		return dto.NewAdminReservationList(list, ttl), nil
	})
}

// StreamByUser GET /stream/reservations/:user_id.
func (h *StreamHandler) StreamByUser(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	if !principal.CanActFor(userID) {
		return apperrors.NewForbidden("cannot view another user's reservations")
	}

	ttl := h.reservations.HoldTTL()
	return h.stream(c, func(ctx context.Context) (any, error) {
		list, err := h.reservations.ListByUser(ctx, principal, userID)
		if err != nil {
			return nil, err
		}
		return dto.NewReservationList(list, ttl), nil
	})
}

func (h *StreamHandler) stream(c *fiber.Ctx, fetch fetchFunc) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(h.root)
		defer cancel()
		h.pump(ctx, w, fetch)
	})
	return nil
}

// pump writes the current payload, then re-reads on every tick and feed
// message until ctx ends or the client goes away.
func (h *StreamHandler) pump(ctx context.Context, w *bufio.Writer, fetch fetchFunc) {
	var changes <-chan events.Event
	if h.feed != nil {
		sub, err := h.feed.Subscribe(ctx)
		if err != nil {
			h.logger.Warn("change feed unavailable, polling only", zap.Error(err))
		} else {
			defer sub.Close()
			changes = sub.C
		}
	}

	var fp payloadFingerprint
	if err := h.push(ctx, w, fetch, &fp); err != nil {
		h.logger.Debug("stream closed", zap.Error(err))
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case _, ok := <-changes:
			if !ok {
				changes = nil
			}
		}
		if err := h.push(ctx, w, fetch, &fp); err != nil {
			h.logger.Debug("stream closed", zap.Error(err))
			return
		}
	}
}

func (h *StreamHandler) push(ctx context.Context, w *bufio.Writer, fetch fetchFunc, fp *payloadFingerprint) error {
	payload, err := fetch(ctx)
	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		body, _ := json.Marshal(fiber.Map{"detail": domainErr.Message, "code": domainErr.Code})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", body)
		return w.Flush()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if fp.changed(body) {
		fmt.Fprintf(w, "event: reservations\ndata: %s\n\n", body)
	} else {
		fmt.Fprint(w, ": keepalive\n\n")
	}
	return w.Flush()
}

// payloadFingerprint remembers the digest of the last payload sent.
type payloadFingerprint struct {
	sent bool
	last [32]byte
}

func (f *payloadFingerprint) changed(body []byte) bool {
	sum := blake3.Sum256(body)
	if f.sent && sum == f.last {
		return false
	}
	f.sent = true
	f.last = sum
	return true
}
