// Package wizard drives the three-step credit purchase flow: enter a
// quantity, review the priced preview, confirm and hand off to the payment
// gateway. Each user has at most one in-flight session, held in memory.
package wizard

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	api "blocklytics/portal/pkg/api/coreapi"
	"blocklytics/portal/pkg/cache"
	"blocklytics/portal/pkg/logging"
	"blocklytics/portal/pkg/models"
)

// Step identifies the wizard position.
type Step string

const (
	StepQuantity    Step = "quantity"
	StepReview      Step = "review"
	StepRedirecting Step = "redirecting"
)

// Session is one user's wizard state. Quantity survives a failed preview so
// the user never retypes it.
type Session struct {
	UserID     string                 `json:"user_id"`
	Step       Step                   `json:"step"`
	Quantity   int64                  `json:"quantity"`
	Preview    *models.PricingPreview `json:"preview,omitempty"`
	GatewayURL string                 `json:"gateway_url,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// FormattedQuantity returns the quantity with display separators.
func (s *Session) FormattedQuantity() string {
	if s.Quantity == 0 {
		return ""
	}
	return FormatQuantity(s.Quantity)
}

// CoreAPI is the slice of the core API client the wizard needs.
type CoreAPI interface {
	PreviewOrder(ctx context.Context, token string, apiCalls int64) (*models.PricingPreview, error)
	CreateOrder(ctx context.Context, token string, req *api.CreateOrderRequest) (*api.CreateOrderResponse, error)
}

// Manager owns all wizard sessions.
type Manager struct {
	mu         sync.Mutex
	client     CoreAPI
	sessions   *cache.Cache
	gatewayURL string
	sessionTTL time.Duration
	logger     logging.Logger
}

// Config configures a wizard Manager.
type Config struct {
	Client     CoreAPI
	GatewayURL string
	SessionTTL time.Duration
	Logger     logging.Logger
}

// NewManager creates a wizard manager with its own session store.
func NewManager(config Config) *Manager {
	if config.SessionTTL == 0 {
		config.SessionTTL = 30 * time.Minute
	}

	return &Manager{
		client: config.Client,
		sessions: cache.New(cache.Options{
			TTL:        config.SessionTTL,
			MaxEntries: 10000,
		}, cache.MetricsHooks{}),
		gatewayURL: config.GatewayURL,
		sessionTTL: config.SessionTTL,
		logger:     config.Logger,
	}
}

// Session returns the user's current session, creating a fresh one at the
// quantity step when none exists.
func (m *Manager) Session(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session(userID)
}

func (m *Manager) session(userID string) *Session {
	if v, ok := m.sessions.Peek(sessionKey(userID)); ok {
		if s, ok := v.(*Session); ok {
			return s
		}
	}

	s := &Session{UserID: userID, Step: StepQuantity, UpdatedAt: time.Now()}
	m.sessions.Set(sessionKey(userID), s, m.sessionTTL)
	return s
}

func (m *Manager) save(s *Session) {
	s.UpdatedAt = time.Now()
	m.sessions.Set(sessionKey(s.UserID), s, m.sessionTTL)
}

func sessionKey(userID string) string {
	return "wizard:" + userID
}

// EnterQuantity parses the entered quantity and requests a price preview.
// On success the session advances to the review step. On failure it stays at
// the quantity step with the parsed quantity retained.
func (m *Manager) EnterQuantity(ctx context.Context, userID, token, input string) (*Session, error) {
	quantity, err := ParseQuantity(input)
	if err != nil {
		return m.Session(userID), err
	}

	m.mu.Lock()
	s := m.session(userID)
	if s.Step == StepRedirecting {
		m.mu.Unlock()
		return s, fmt.Errorf("a payment is already in progress")
	}
	s.Quantity = quantity
	s.Preview = nil
	s.Step = StepQuantity
	m.save(s)
	m.mu.Unlock()

	preview, err := m.client.PreviewOrder(ctx, token, quantity)

	m.mu.Lock()
	defer m.mu.Unlock()
	s = m.session(userID)
	if err != nil {
		if m.logger != nil {
			m.logger.WithError(err).WithField("user_id", userID).Warn("Price preview failed")
		}
		m.save(s)
		return s, err
	}

	s.Preview = preview
	s.Step = StepReview
	m.save(s)
	return s, nil
}

// Confirm submits the order for the reviewed preview. The session moves to
// the redirecting step before the order call returns, and stays there even
// when the call fails; a stuck session must be reset explicitly. On success
// GatewayURL carries the payment handoff target.
func (m *Manager) Confirm(ctx context.Context, userID, token string) (*Session, error) {
	m.mu.Lock()
	s := m.session(userID)
	if s.Step != StepReview || s.Preview == nil {
		m.mu.Unlock()
		return s, fmt.Errorf("nothing to confirm")
	}

	preview := s.Preview
	s.Step = StepRedirecting
	m.save(s)
	m.mu.Unlock()

	resp, err := m.client.CreateOrder(ctx, token, &api.CreateOrderRequest{
		Amount:           1,
		Currency:         "EUR",
		PriceEur:         preview.TotalEur,
		PriceBtc:         preview.TotalBtc,
		APICallsQuantity: preview.APICalls,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	s = m.session(userID)
	if err != nil {
		if m.logger != nil {
			m.logger.WithError(err).WithField("user_id", userID).Error("Order creation failed")
		}
		m.save(s)
		return s, err
	}

	s.GatewayURL = m.gatewayURL + "/?key=" + url.QueryEscape(resp.EncryptedKey)
	m.save(s)
	return s, nil
}

// Reset discards the user's session. Used after the gateway callback lands
// or when the user abandons a stuck payment.
func (m *Manager) Reset(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Delete(sessionKey(userID))
}
