package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrDocumentChanged is returned when a write targets a document that has
	// since been replaced.
	ErrDocumentChanged = errors.New("session document changed")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Settings are the per-session knobs a user can tune. Zero values mean the
// configured defaults apply.
type Settings struct {
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	MaxChars     int      `json:"max_chars,omitempty"`
	SummaryWords int      `json:"summary_words,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Sector       string   `json:"sector,omitempty"`
}

type Document struct {
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	SHA256     string    `json:"sha256"`
	Text       string    `json:"-"`
	Pages      int       `json:"pages"`
	Chars      int       `json:"chars"`
	Truncated  bool      `json:"truncated"`
	Extractor  string    `json:"extractor"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type Session struct {
	ID           string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Document     *Document `json:"document,omitempty"`
	DocumentRev  int       `json:"document_rev"`
	Summary      string    `json:"summary,omitempty"`
	SummaryModel string    `json:"summary_model,omitempty"`
	SummaryAt    time.Time `json:"summary_at,omitempty"`
	History      []Turn    `json:"history"`
	Settings     Settings  `json:"settings"`
}

func (s *Session) clone() Session {
	out := *s
	if s.Document != nil {
		d := *s.Document
		out.Document = &d
	}
	if s.Settings.Temperature != nil {
		t := *s.Settings.Temperature
		out.Settings.Temperature = &t
	}
	out.History = append(make([]Turn, 0, len(s.History)), s.History...)
	return out
}

// Store keeps sessions in memory. Nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{sessions: map[string]*Session{}, ttl: ttl, now: time.Now}
}

func (s *Store) Create(settings Settings) Session {
	now := s.now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		History:   []Turn{},
		Settings:  settings,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess.clone()
}

func (s *Store) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess.clone(), nil
}

func (s *Store) update(id string, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if err := fn(sess); err != nil {
		return Session{}, err
	}
	sess.UpdatedAt = s.now().UTC()
	return sess.clone(), nil
}

func checkRev(sess *Session, rev int) error {
	if sess.DocumentRev != rev {
		return ErrDocumentChanged
	}
	return nil
}

// SetDocument replaces the session document and bumps DocumentRev. The
// previous summary and chat history belong to the old document and are
// dropped.
func (s *Store) SetDocument(id string, doc Document) (Session, error) {
	return s.update(id, func(sess *Session) error {
		sess.Document = &doc
		sess.DocumentRev++
		sess.Summary = ""
		sess.SummaryModel = ""
		sess.SummaryAt = time.Time{}
		sess.History = []Turn{}
		return nil
	})
}

// SetSummary stores the summary of document revision rev.
func (s *Store) SetSummary(id string, rev int, summary, model string) (Session, error) {
	return s.update(id, func(sess *Session) error {
		if err := checkRev(sess, rev); err != nil {
			return err
		}
		sess.Summary = summary
		sess.SummaryModel = model
		sess.SummaryAt = s.now().UTC()
		return nil
	})
}

func (s *Store) UpdateSettings(id string, settings Settings) (Session, error) {
	return s.update(id, func(sess *Session) error {
		sess.Settings = settings
		return nil
	})
}

// AppendExchange adds a question and its answer as two consecutive turns,
// provided the session still holds document revision rev.
func (s *Store) AppendExchange(id string, rev int, question, answer string) (Session, error) {
	return s.update(id, func(sess *Session) error {
		if err := checkRev(sess, rev); err != nil {
			return err
		}
		at := s.now().UTC()
		sess.History = append(sess.History,
			Turn{Role: RoleUser, Content: question, At: at},
			Turn{Role: RoleAssistant, Content: answer, At: at},
		)
		return nil
	})
}

func (s *Store) ClearHistory(id string) (Session, error) {
	return s.update(id, func(sess *Session) error {
		sess.History = []Turn{}
		return nil
	})
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were dropped. A zero TTL disables expiry.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.UpdatedAt) > s.ttl {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps on every tick until ctx is done. onSweep, when set, receives the
// number of expired sessions for each non-empty sweep.
func (s *Store) Run(ctx context.Context, every time.Duration, onSweep func(int)) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Sweep(now); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
