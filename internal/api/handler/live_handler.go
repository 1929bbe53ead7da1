package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/schooltrack/alert-engine/internal/api/metrics"
	"github.com/schooltrack/alert-engine/internal/api/middleware"
	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/service"
	"github.com/schooltrack/alert-engine/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4 << 10
	sendBuffer     = 32
	resolveTimeout = 5 * time.Second

	// inbound messages per second, with a small burst for reconnect storms
	messageRate  = 5
	messageBurst = 10
)

// LiveHandler upgrades GET /ws to the per-viewer live channel.
type LiveHandler struct {
	secret    string
	scopes    service.ScopeResolver
	hub       *service.Hub
	eta       *service.EtaService
	prefs     service.PreferenceLookup
	validator *echoValidator
	upgrader  websocket.Upgrader
	log       zerolog.Logger
}

// NewLiveHandler wires the live channel. prefs may be nil, in which case
// preference-aware delivery behaves like plain delivery.
func NewLiveHandler(
	secret string,
	scopes service.ScopeResolver,
	hub *service.Hub,
	eta *service.EtaService,
	prefs service.PreferenceLookup,
	log zerolog.Logger,
) *LiveHandler {
	return &LiveHandler{
		secret:    secret,
		scopes:    scopes,
		hub:       hub,
		eta:       eta,
		prefs:     prefs,
		validator: NewValidator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: logger.Component(log, "live"),
	}
}

// Serve godoc
// @Summary      Live alert channel
// @Description  WebSocket. Send {"event":"authenticate","data":{"token":"..."}} to receive
// @Description  "allAlerts" batches for the devices in scope, and {"event":"getDeviceId","data":{"DeviceId":"..."}}
// @Description  to receive "etaAlerts" for one device.
// @Tags         live
// @Success      101  {string}  string  "Switching Protocols"
// @Router       /ws [get]
func (h *LiveHandler) Serve(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already replied
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	conn := &liveConn{
		h:       h,
		id:      uuid.NewString(),
		ws:      ws,
		send:    make(chan outbound, sendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(messageRate, messageBurst),
	}
	conn.log = h.log.With().Str("connection_id", conn.id).Logger()
	conn.run(c.Request().Context())
	return nil
}

// liveConn is one viewer connection. The read loop owns the authentication
// state; a single writer goroutine owns the socket for writes.
type liveConn struct {
	h       *LiveHandler
	id      string
	ws      *websocket.Conn
	send    chan outbound
	done    chan struct{}
	limiter *rate.Limiter
	log     zerolog.Logger

	sub       domain.Subscriber
	authed    bool
	closeOnce sync.Once
}

func (c *liveConn) run(ctx context.Context) {
	c.log.Debug().Msg("viewer connected")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	c.readLoop(ctx)

	c.h.hub.Unsubscribe(c.id)
	c.h.eta.Unwatch(c.id)
	c.close()
	wg.Wait()
	c.log.Debug().Msg("viewer disconnected")
}

func (c *liveConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *liveConn) readLoop(ctx context.Context) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		if !c.limiter.Allow() {
			c.log.Warn().Msg("inbound rate exceeded, message dropped")
			continue
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.notify(noticeBadMessage)
			continue
		}

		switch msg.Event {
		case eventAuthenticate:
			c.authenticate(ctx, msg.Data)
		case eventGetDeviceID:
			c.watchDevice(msg.Data)
		default:
			c.log.Debug().Str("event", msg.Event).Msg("ignoring unknown event")
		}
	}
}

func (c *liveConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.log.Debug().Err(err).Str("event", msg.Event).Msg("write failed")
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// emit queues a message for the writer. A viewer too slow to drain its
// buffer loses the message rather than stalling the producer.
func (c *liveConn) emit(stream string, msg outbound) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		metrics.DeliveriesDroppedTotal.WithLabelValues(stream).Inc()
		c.log.Warn().Str("event", msg.Event).Msg("send buffer full, message dropped")
	}
}

func (c *liveConn) notify(message string) {
	c.emit("notices", outbound{Event: eventNotification, Data: notificationMessage{Message: message}})
}

func (c *liveConn) authenticate(ctx context.Context, data json.RawMessage) {
	var msg authenticateMessage
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			c.notify(noticeBadMessage)
			return
		}
	}

	claims, err := middleware.ParseToken(msg.Token, c.h.secret)
	if err != nil {
		c.deauthorize()
		if errors.Is(err, middleware.ErrMissingToken) {
			metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
			c.notify(noticeNoToken)
			return
		}
		metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
		c.log.Info().Err(err).Msg("rejected credential")
		c.notify(noticeInvalidToken)
		return
	}

	rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	devices, err := c.h.scopes.Resolve(rctx, claims)
	if err != nil {
		c.deauthorize()
		metrics.AuthFailuresTotal.WithLabelValues("scope").Inc()
		c.log.Warn().Err(err).Str("role", string(claims.Role)).Msg("device scope resolution failed")
		c.notify(noticeScopeFailed)
		return
	}

	if c.authed {
		// the ETA device may be outside the new scope
		c.h.eta.Unwatch(c.id)
	}
	c.sub = domain.Subscriber{
		ConnectionID:      c.id,
		Role:              claims.Role,
		AuthorizedDevices: devices,
		UsePreferences:    msg.Preferences,
	}
	c.authed = true

	s := c.h.hub.Subscribe(c.sub)
	go c.forwardAlerts(s)
	c.notify(noticeAuthenticated)

	c.log.Info().Str("role", string(claims.Role)).Int("devices", len(devices)).Bool("preferences", msg.Preferences).Msg("viewer authenticated")
}

// deauthorize drops any earlier subscription after a failed re-authentication.
func (c *liveConn) deauthorize() {
	if !c.authed {
		return
	}
	c.authed = false
	c.sub = domain.Subscriber{}
	c.h.hub.Unsubscribe(c.id)
	c.h.eta.Unwatch(c.id)
}

func (c *liveConn) watchDevice(data json.RawMessage) {
	if !c.authed {
		c.notify(noticeAuthRequired)
		return
	}

	var msg getDeviceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.notify(noticeBadMessage)
		return
	}
	if err := c.h.validator.Validate(msg); err != nil {
		c.notify(noticeBadMessage)
		return
	}

	id := string(msg.DeviceID)
	if !c.sub.AuthorizedDevices.Contains(id) {
		c.log.Info().Str("device_id", id).Msg("eta watch denied")
		c.notify(noticeDeviceDenied)
		return
	}

	ch := c.h.eta.Watch(c.id, id)
	go c.forwardEta(ch)
}

func (c *liveConn) forwardAlerts(s *service.Subscription) {
	for batch := range s.C {
		events := service.FilterBatch(batch.Events, s.Subscriber, c.h.prefs)
		if len(events) == 0 {
			continue
		}
		c.emit("alerts", outbound{Event: eventAllAlerts, Data: events})
	}
}

func (c *liveConn) forwardEta(ch <-chan []domain.EtaAlert) {
	for alerts := range ch {
		c.emit("eta", outbound{Event: eventEtaAlerts, Data: alerts})
	}
}
