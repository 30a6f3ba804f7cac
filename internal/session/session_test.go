package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreateAndGetReturnsCopies(t *testing.T) {
	s := NewStore(time.Hour)
	temp := 0.3
	sess := s.Create(Settings{Provider: "ollama", Temperature: &temp})
	require.NotEmpty(t, sess.ID)

	doc, err := s.SetDocument(sess.ID, Document{Filename: "rapport.pdf", Pages: 2})
	require.NoError(t, err)
	_, err = s.AppendExchange(sess.ID, doc.DocumentRev, "q", "a")
	require.NoError(t, err)

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	got.History[0].Content = "changed"
	got.Document.Filename = "other.pdf"
	*got.Settings.Temperature = 0.9

	again, err := s.Get(sess.ID)
	require.NoError(t, err)
	require.Equal(t, "q", again.History[0].Content)
	require.Equal(t, "rapport.pdf", again.Document.Filename)
	require.Equal(t, 0.3, *again.Settings.Temperature)
}

func TestSetDocumentResetsSummaryAndHistory(t *testing.T) {
	s := NewStore(time.Hour)
	sess := s.Create(Settings{})
	first, _ := s.SetDocument(sess.ID, Document{Filename: "a.pdf"})
	_, _ = s.SetSummary(sess.ID, first.DocumentRev, "résumé", "mistral")
	_, _ = s.AppendExchange(sess.ID, first.DocumentRev, "q", "a")

	got, err := s.SetDocument(sess.ID, Document{Filename: "b.pdf"})
	require.NoError(t, err)
	require.Equal(t, "b.pdf", got.Document.Filename)
	require.Empty(t, got.Summary)
	require.Empty(t, got.SummaryModel)
	require.Empty(t, got.History)
	require.Equal(t, first.DocumentRev+1, got.DocumentRev)
}

func TestWritesForReplacedDocumentAreRejected(t *testing.T) {
	s := NewStore(time.Hour)
	sess := s.Create(Settings{})
	old, err := s.SetDocument(sess.ID, Document{Filename: "ancien.pdf"})
	require.NoError(t, err)
	_, err = s.SetDocument(sess.ID, Document{Filename: "nouveau.pdf"})
	require.NoError(t, err)

	_, err = s.SetSummary(sess.ID, old.DocumentRev, "résumé de l'ancien", "m")
	require.ErrorIs(t, err, ErrDocumentChanged)
	_, err = s.AppendExchange(sess.ID, old.DocumentRev, "q", "a")
	require.ErrorIs(t, err, ErrDocumentChanged)

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	require.Equal(t, "nouveau.pdf", got.Document.Filename)
	require.Empty(t, got.Summary)
	require.Empty(t, got.History)
}

func TestAppendExchangeKeepsOrder(t *testing.T) {
	s := NewStore(time.Hour)
	sess := s.Create(Settings{})
	for _, q := range []string{"un", "deux", "trois"} {
		_, err := s.AppendExchange(sess.ID, 0, q, "réponse "+q)
		require.NoError(t, err)
	}
	got, _ := s.Get(sess.ID)
	require.Len(t, got.History, 6)
	for i, q := range []string{"un", "deux", "trois"} {
		require.Equal(t, RoleUser, got.History[2*i].Role)
		require.Equal(t, q, got.History[2*i].Content)
		require.Equal(t, RoleAssistant, got.History[2*i+1].Role)
		require.Equal(t, "réponse "+q, got.History[2*i+1].Content)
	}

	cleared, err := s.ClearHistory(sess.ID)
	require.NoError(t, err)
	require.Empty(t, cleared.History)
	require.NotNil(t, cleared.History)
}

func TestConcurrentAppendsStayPaired(t *testing.T) {
	s := NewStore(time.Hour)
	sess := s.Create(Settings{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AppendExchange(sess.ID, 0, "q", "a")
		}()
	}
	wg.Wait()
	got, _ := s.Get(sess.ID)
	require.Len(t, got.History, 100)
	for i := 0; i < len(got.History); i += 2 {
		require.Equal(t, RoleUser, got.History[i].Role)
		require.Equal(t, RoleAssistant, got.History[i+1].Role)
	}
}

func TestUnknownSession(t *testing.T) {
	s := NewStore(time.Hour)
	_, err := s.Get("missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.AppendExchange("missing", 0, "q", "a")
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, s.Delete("missing"), ErrSessionNotFound)
}

func TestSweepDropsIdleSessions(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(30 * time.Minute)
	s.now = fixedClock(start)
	old := s.Create(Settings{})

	s.now = fixedClock(start.Add(20 * time.Minute))
	fresh := s.Create(Settings{})

	require.Equal(t, 1, s.Sweep(start.Add(45*time.Minute)))
	_, err := s.Get(old.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Get(fresh.ID)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
}

func TestSweepDisabledWithoutTTL(t *testing.T) {
	s := NewStore(0)
	s.Create(Settings{})
	require.Equal(t, 0, s.Sweep(time.Now().Add(24*time.Hour)))
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewStore(time.Nanosecond)
	s.Create(Settings{})
	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond, func(n int) {
			select {
			case swept <- n:
			default:
			}
		})
		close(done)
	}()
	select {
	case n := <-swept:
		require.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not run")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
