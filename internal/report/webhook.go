package report

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/dreamware/sshchic/internal/keygen"
	"github.com/dreamware/sshchic/internal/search"
)

// DefaultWebhookQueue is how many notifications may wait for delivery
// before new ones are dropped.
const DefaultWebhookQueue = 64

var httpClient = &http.Client{Timeout: 5 * time.Second}

// Webhook posts the public part of every match to a URL as JSON. Delivery
// runs on its own goroutine behind a bounded queue so workers never wait on
// the network; when the queue is full the notification is dropped.
// Private keys are never sent.
type Webhook struct {
	queue   chan MatchRecord
	post    func(ctx context.Context, url string, body any) error
	url     string
	encoder keygen.Encoder
	wg      sync.WaitGroup
	mu      sync.Mutex // Guards closed against concurrent Match/Close
	dropped int
	closed  bool
}

// NewWebhook starts a webhook reporter for url.
func NewWebhook(url string, enc keygen.Encoder) *Webhook {
	w := &Webhook{
		url:     url,
		encoder: enc,
		queue:   make(chan MatchRecord, DefaultWebhookQueue),
		post:    PostJSON,
	}
	w.wg.Add(1)
	go w.deliver()
	return w
}

// Match queues a notification for m.
func (w *Webhook) Match(m search.Match) {
	rec, err := NewMatchRecord(m, w.encoder, false)
	if err != nil {
		log.Printf("webhook: %v", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- rec:
	default:
		w.dropped++
	}
}

// Progress is a no-op.
func (w *Webhook) Progress(search.Sample) {}

// Close stops accepting notifications, waits for queued ones to be
// delivered, and returns how many were dropped because the queue was full.
func (w *Webhook) Close() int {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dropped > 0 {
		log.Printf("webhook: dropped %d notifications", w.dropped)
	}
	return w.dropped
}

func (w *Webhook) deliver() {
	defer w.wg.Done()
	for rec := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.post(ctx, w.url, rec); err != nil {
			log.Printf("webhook %s: %v", w.url, err)
		}
		cancel()
	}
}

// PostJSON sends body as a JSON POST and fails on any non-2xx status.
func PostJSON(ctx context.Context, url string, body any) error {
	reqBody, err := sonnet.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return nil
}
