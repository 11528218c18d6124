package kad

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(5*time.Second, 2, log, WithBaseURL(server.URL), WithPause(0, 0))
}

func TestClientFetchCase(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("number") != "А32-1/2024" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, cardFixture)
	})

	result, err := client.FetchCase(context.Background(), "А32-1/2024")
	if err != nil {
		t.Fatalf("fetch case: %v", err)
	}
	if result.EventDate != "01.06.2024" || result.EventsCount != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClientBlockedPageIsNoData(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>Доступ к сервису ограничен</html>")
	})

	_, err := client.FetchCase(context.Background(), "А32-1/2024")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestClientRetriesThenGivesUp(t *testing.T) {
	t.Parallel()

	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchCase(context.Background(), "А40-2/2023")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestClientRecoversOnRetry(t *testing.T) {
	t.Parallel()

	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, cardFixture)
	})

	result, err := client.FetchCase(context.Background(), "А40-2/2023")
	if err != nil {
		t.Fatalf("fetch case: %v", err)
	}
	if result.EventTitle != "Определение" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClientHonorsCancellation(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchCase(ctx, "А40-2/2023")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
