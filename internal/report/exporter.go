// Package report ships payout outcome reports to an external webhook for
// bookkeeping. Delivery is best-effort and never blocks a payout run.
package report

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/affiliate-performance/internal/model"
	"github.com/yourorg/affiliate-performance/internal/security"
)

// ExporterConfig holds configuration for outcome report export
type ExporterConfig struct {
	Enabled        bool          `json:"enabled"`
	WebhookURL     string        `json:"webhook_url"`
	WebhookAPIKey  string        `json:"webhook_api_key,omitempty"`
	BatchSize      int           `json:"batch_size"`
	ExportInterval time.Duration `json:"export_interval"`
}

// Exporter batches payout outcomes and posts them to the configured webhook
// on an interval. A nil Signer ships reports unsigned.
type Exporter struct {
	config     ExporterConfig
	httpClient *http.Client
	signer     *security.Signer

	mu         sync.Mutex
	batch      []model.PayoutOutcome
	lastExport time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExporter creates an outcome exporter. When disabled it is inert and all
// methods are no-ops.
func NewExporter(config ExporterConfig, signer *security.Signer) *Exporter {
	if !config.Enabled {
		return &Exporter{config: config}
	}

	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.ExportInterval <= 0 {
		config.ExportInterval = time.Minute
	}

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			IdleConnTimeout: 90 * time.Second,
		},
	}

	e := &Exporter{
		config:     config,
		httpClient: httpClient,
		signer:     signer,
		batch:      make([]model.PayoutOutcome, 0, config.BatchSize),
		done:       make(chan struct{}),
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	go e.run()
	return e
}

// Add queues outcomes for the next export. Full batches flush immediately.
func (e *Exporter) Add(outcomes []model.PayoutOutcome) {
	if !e.config.Enabled {
		return
	}

	e.mu.Lock()
	e.batch = append(e.batch, outcomes...)
	flushNow := len(e.batch) >= e.config.BatchSize
	e.mu.Unlock()

	if flushNow {
		e.flush()
	}
}

// Stop flushes any pending outcomes and stops the background loop.
func (e *Exporter) Stop() {
	if !e.config.Enabled {
		return
	}
	e.cancel()
	<-e.done
	e.flush()
}

// run is the periodic export loop.
func (e *Exporter) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.config.ExportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.flush()
		case <-e.ctx.Done():
			return
		}
	}
}

// flush posts the pending batch to the webhook.
func (e *Exporter) flush() {
	e.mu.Lock()
	if len(e.batch) == 0 {
		e.mu.Unlock()
		return
	}
	pending := e.batch
	e.batch = make([]model.PayoutOutcome, 0, e.config.BatchSize)
	e.lastExport = time.Now()
	e.mu.Unlock()

	if err := e.post(pending); err != nil {
		logrus.Warnf("Failed to export %d payout outcomes: %v", len(pending), err)
		return
	}
	logrus.Debugf("Exported %d payout outcomes", len(pending))
}

// post delivers one batch, signed when a signer is configured.
func (e *Exporter) post(outcomes []model.PayoutOutcome) error {
	payload := map[string]interface{}{
		"outcomes":    outcomes,
		"exported_at": time.Now().Unix(),
		"source":      "affiliate-performance",
	}

	var body []byte
	var err error
	if e.signer != nil {
		signed, signErr := e.signer.Sign(payload)
		if signErr != nil {
			return fmt.Errorf("signing report: %w", signErr)
		}
		body, err = json.Marshal(signed)
	} else {
		body, err = json.Marshal(payload)
	}
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	// Independent of the loop context so the final flush during Stop still delivers.
	ctx, cancel := context.WithTimeout(context.Background(), e.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.WebhookAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.WebhookAPIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
