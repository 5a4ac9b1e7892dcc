// Package ws serves the realtime bidding socket. A connection authenticates
// with a bearer token before the upgrade, then joins auction rooms, places
// bids and receives room and personal events pushed by the hub.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"antique-auction/internal/auth"
	"antique-auction/internal/biddingerrors"
	"antique-auction/internal/models"
	"antique-auction/internal/money"
	"antique-auction/internal/ratelimit"
	"antique-auction/internal/realtime"
	"antique-auction/services/bidding/helpers"
	"antique-auction/utils"

	"github.com/shopspring/decimal"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	DefaultReadTimeout = 60 * time.Second
	DefaultOutboxSize  = 32
	writeTimeout       = 3 * time.Second
)

// Client message types
const (
	TypeJoin     = "join_auction"
	TypeLeave    = "leave_auction"
	TypePlaceBid = "place_bid"
	TypePing     = "ping"
)

// Direct reply types
const (
	TypeJoined      = "joined"
	TypeLeft        = "left"
	TypeBidAccepted = "bid_accepted"
	TypeBidRejected = "bid_rejected"
	TypeError       = "error"
	TypePong        = "pong"
)

type ClientMessage struct {
	Type            string           `json:"type"`
	AuctionID       string           `json:"auctionId,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	ClientTimestamp *time.Time       `json:"clientTimestamp,omitempty"`
}

type SnapshotPayload struct {
	AuctionID       string `json:"auctionId"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	CurrentBid      string `json:"currentBid"`
	CurrentLeaderID string `json:"currentLeaderId,omitempty"`
	BidCount        int    `json:"bidCount"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	ServerTime      string `json:"serverTime"`
	RemainingMS     int64  `json:"remainingMs"`
}

type BidAcceptedPayload struct {
	AuctionID string `json:"auctionId"`
	BidID     string `json:"bidId"`
	Amount    string `json:"amount"`
	BidCount  int    `json:"bidCount"`
}

type BidRejectedPayload struct {
	AuctionID string `json:"auctionId"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// BidService is the part of the bidding service the socket needs
type BidService interface {
	SubmitBid(ctx context.Context, auctionID, bidderID string, amount int64, clientTimestamp time.Time) (models.AcceptedBid, error)
	Snapshot(ctx context.Context, auctionID string) (models.AuctionSnapshot, error)
}

type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// BidLimiter caps how many bids a user may place; the HTTP bid route shares it
type BidLimiter interface {
	Allow(ctx context.Context, userID string) (ratelimit.Decision, error)
}

type Handler struct {
	svc         BidService
	hub         *realtime.Hub
	verifier    TokenVerifier
	limiter     BidLimiter
	readTimeout time.Duration
	outboxSize  int
}

type HandlerOption func(*Handler)

func WithBidLimiter(l BidLimiter) HandlerOption {
	return func(h *Handler) { h.limiter = l }
}

func NewHandler(svc BidService, hub *realtime.Hub, verifier TokenVerifier, readTimeout time.Duration, opts ...HandlerOption) *Handler {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	h := &Handler{
		svc:         svc,
		hub:         hub,
		verifier:    verifier,
		readTimeout: readTimeout,
		outboxSize:  DefaultOutboxSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.verifier.Verify(auth.TokenFromRequest(r))
	if err != nil {
		utils.Warn("ws: rejected connection", map[string]any{"remote": r.RemoteAddr, "error": err.Error()})
		http.Error(w, biddingerrors.ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // browser clients are served from other origins
	})
	if err != nil {
		utils.Warn("ws: upgrade failed", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	client := &realtime.Client{
		ID:     utils.GenerateConnID(),
		UserID: userID,
		Outbox: make(chan realtime.Envelope, h.outboxSize),
	}
	ctx := r.Context()
	if !h.hub.Send(ctx, realtime.Register{Client: client}) {
		utils.Error("ws: hub unavailable", map[string]any{"user_id": userID, "error": biddingerrors.ErrConnectionLost.Error()})
		conn.Close(websocket.StatusTryAgainLater, "hub unavailable")
		return
	}
	defer h.hub.Send(context.Background(), realtime.Unregister{ClientID: client.ID})

	utils.Info("ws: connected", map[string]any{"client_id": client.ID, "user_id": userID})

	// Writer goroutine. The hub closes the outbox when it drops the client.
	go func() {
		for env := range client.Outbox {
			if err := h.write(ctx, conn, env.Type, env.Data); err != nil {
				break
			}
		}
		conn.Close(websocket.StatusPolicyViolation, "connection dropped")
	}()

	// Reader loop
	for {
		readCtx, cancel := context.WithTimeout(ctx, h.readTimeout)
		_, data, err := conn.Read(readCtx)
		cancel()
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				utils.Debug("ws: read ended", map[string]any{"client_id": client.ID, "error": err.Error()})
			}
			utils.Info("ws: disconnected", map[string]any{"client_id": client.ID, "user_id": userID})
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(ctx, conn, TypeError, ErrorPayload{Message: "bad json"})
			continue
		}
		h.dispatch(ctx, conn, client, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, conn *websocket.Conn, client *realtime.Client, msg ClientMessage) {
	switch msg.Type {
	case TypeJoin:
		h.join(ctx, conn, client, msg.AuctionID)

	case TypeLeave:
		if msg.AuctionID == "" {
			h.reply(ctx, conn, TypeError, ErrorPayload{Message: "missing auctionId"})
			return
		}
		h.hub.Send(ctx, realtime.Leave{ClientID: client.ID, AuctionID: msg.AuctionID})
		h.reply(ctx, conn, TypeLeft, map[string]string{"auctionId": msg.AuctionID})

	case TypePlaceBid:
		h.placeBid(ctx, conn, client, msg)

	case TypePing:
		h.reply(ctx, conn, TypePong, map[string]string{"serverTime": time.Now().UTC().Format(time.RFC3339Nano)})

	default:
		h.reply(ctx, conn, TypeError, ErrorPayload{Message: fmt.Sprintf("unknown type %q", msg.Type)})
	}
}

// join subscribes before taking the snapshot, so no event between the two is
// lost; clients drop events whose bidCount is not newer than the snapshot.
func (h *Handler) join(ctx context.Context, conn *websocket.Conn, client *realtime.Client, auctionID string) {
	if auctionID == "" {
		h.reply(ctx, conn, TypeError, ErrorPayload{Message: "missing auctionId"})
		return
	}
	h.hub.Send(ctx, realtime.Join{ClientID: client.ID, AuctionID: auctionID})

	snap, err := h.svc.Snapshot(ctx, auctionID)
	if err != nil {
		h.hub.Send(ctx, realtime.Leave{ClientID: client.ID, AuctionID: auctionID})
		_, message := helpers.MapErrorToHTTP(err)
		h.reply(ctx, conn, TypeError, ErrorPayload{Message: message})
		return
	}
	h.reply(ctx, conn, TypeJoined, toSnapshotPayload(snap))
}

func (h *Handler) placeBid(ctx context.Context, conn *websocket.Conn, client *realtime.Client, msg ClientMessage) {
	reject := func(reason, message string) {
		h.reply(ctx, conn, TypeBidRejected, BidRejectedPayload{AuctionID: msg.AuctionID, Reason: reason, Message: message})
	}

	if msg.AuctionID == "" || msg.Amount == nil {
		reject(helpers.ReasonInvalidBid, "auctionId and amount are required")
		return
	}
	amount, err := money.FromDecimal(*msg.Amount)
	if err != nil {
		reject(helpers.ReasonInvalidBid, err.Error())
		return
	}

	if h.limiter != nil {
		d, err := h.limiter.Allow(ctx, client.UserID)
		if err != nil {
			utils.Warn("ws: rate limiter error, allowing bid", map[string]any{"user_id": client.UserID, "error": err.Error()})
		} else if !d.Allowed {
			reject(helpers.ReasonRateLimited, fmt.Sprintf("too many bids, retry in %ds", int(d.RetryAfter.Seconds())+1))
			utils.Info("ws: bid rate limited", map[string]any{"client_id": client.ID, "user_id": client.UserID, "limit": d.Limit})
			return
		}
	}

	var clientTS time.Time
	if msg.ClientTimestamp != nil {
		clientTS = msg.ClientTimestamp.UTC()
	}

	accepted, err := h.svc.SubmitBid(ctx, msg.AuctionID, client.UserID, amount, clientTS)
	if err != nil {
		_, message := helpers.MapErrorToHTTP(err)
		reject(helpers.BidRejectReason(err), message)
		utils.Info("ws: bid rejected", map[string]any{
			"client_id":  client.ID,
			"auction_id": msg.AuctionID,
			"bidder_id":  client.UserID,
			"amount":     msg.Amount.String(),
			"error":      err.Error(),
		})
		return
	}

	h.reply(ctx, conn, TypeBidAccepted, BidAcceptedPayload{
		AuctionID: accepted.Auction.AuctionID,
		BidID:     accepted.Bid.BidID,
		Amount:    money.Format(accepted.Bid.Amount),
		BidCount:  accepted.Auction.BidCount,
	})
}

func (h *Handler) reply(ctx context.Context, conn *websocket.Conn, typ string, data any) {
	if err := h.write(ctx, conn, typ, data); err != nil && !errors.Is(err, context.Canceled) {
		utils.Debug("ws: reply failed", map[string]any{"type": typ, "error": err.Error()})
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, realtime.Envelope{Type: typ, Data: data})
}

func toSnapshotPayload(s models.AuctionSnapshot) SnapshotPayload {
	a := s.Auction
	return SnapshotPayload{
		AuctionID:       a.AuctionID,
		Title:           a.Title,
		Status:          string(a.Status),
		CurrentBid:      money.Format(a.CurrentBid),
		CurrentLeaderID: a.CurrentLeaderID,
		BidCount:        a.BidCount,
		StartTime:       a.StartTime.UTC().Format(time.RFC3339),
		EndTime:         a.EndTime.UTC().Format(time.RFC3339),
		ServerTime:      s.ServerTime.UTC().Format(time.RFC3339Nano),
		RemainingMS:     s.Remaining.Milliseconds(),
	}
}
