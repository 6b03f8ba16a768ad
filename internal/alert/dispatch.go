package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

// Environment variables read at dispatch time, not cached at startup,
// so channels can be re-pointed without a restart.
const (
	EnvProcessorURL = "ALERT_PROCESSOR_URL"
	EnvAlertEmail   = "ALERT_EMAIL"
	EnvSlackWebhook = "SLACK_PERFORMANCE_WEBHOOK"
	EnvTeamsWebhook = "TEAMS_PERFORMANCE_WEBHOOK"
)

// Sink persists dispatched alerts for the history endpoint.
type Sink interface {
	InsertAlert(ev model.AlertEvent) error
}

// Notifier pushes dispatched alerts to live listeners.
type Notifier interface {
	BroadcastAlert(ev model.AlertEvent)
}

// Dispatcher delivers classified alerts. Preferred path is the internal
// processing endpoint; on failure it falls back to per-severity channel
// fan-out. Channel failures are collected and logged, never returned:
// by the time Dispatch runs, the HTTP response has already committed to
// success.
type Dispatcher struct {
	client   *http.Client
	sink     Sink
	notifier Notifier
	env      func(string) string // swapped in tests
}

// NewDispatcher creates a dispatcher whose outbound calls share one
// client with the given timeout. sink and notifier may be nil.
func NewDispatcher(timeout time.Duration, sink Sink, notifier Notifier) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		client:   &http.Client{Timeout: timeout},
		sink:     sink,
		notifier: notifier,
		env:      os.Getenv,
	}
}

// Dispatch delivers ev and returns the per-channel outcomes. The
// correlation ID links the delivery back to the ingestion request.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.AlertEvent, correlationID string) []model.ChannelResult {
	var results []model.ChannelResult

	if url := d.env(EnvProcessorURL); url != "" {
		r := d.postProcessor(ctx, url, ev, correlationID)
		results = append(results, r)
		if r.OK {
			d.finish(ev, results)
			return results
		}
		log.Warn().Str("alertId", ev.ID).Str("error", r.Err).
			Msg("[dispatch] processor rejected alert, falling back to channels")
	}

	switch ev.Severity {
	case model.SeverityCritical:
		results = append(results, d.fanOut(ctx, ev,
			channel{"email", d.sendEmail},
			channel{"slack", d.sendSlack},
			channel{"teams", d.sendTeams},
		)...)
	case model.SeverityHigh:
		results = append(results, d.fanOut(ctx, ev,
			channel{"slack", d.sendSlack},
			channel{"teams", d.sendTeams},
		)...)
	default:
		log.Info().Str("alertId", ev.ID).Str("metric", ev.Metric).
			Str("severity", string(ev.Severity)).Float64("value", ev.Value).
			Msg("[dispatch] alert logged for analysis")
		results = append(results, model.ChannelResult{Channel: "log", OK: true})
	}

	d.finish(ev, results)
	return results
}

type channel struct {
	name string
	send func(ctx context.Context, ev model.AlertEvent) error
}

// fanOut runs every channel concurrently and waits for all of them to
// settle, recording each outcome. No retries, no backoff.
func (d *Dispatcher) fanOut(ctx context.Context, ev model.AlertEvent, channels ...channel) []model.ChannelResult {
	results := make([]model.ChannelResult, len(channels))
	done := make(chan struct{})
	for i, ch := range channels {
		go func(i int, ch channel) {
			start := time.Now()
			err := ch.send(ctx, ev)
			results[i] = model.ChannelResult{
				Channel: ch.name,
				OK:      err == nil,
				Elapsed: time.Since(start),
			}
			if err != nil {
				results[i].Err = err.Error()
			}
			done <- struct{}{}
		}(i, ch)
	}
	for range channels {
		<-done
	}
	for _, r := range results {
		if !r.OK {
			log.Warn().Str("alertId", ev.ID).Str("channel", r.Channel).
				Str("error", r.Err).Msg("[dispatch] channel delivery failed")
		}
	}
	return results
}

// finish persists and broadcasts the alert; both are best-effort.
func (d *Dispatcher) finish(ev model.AlertEvent, results []model.ChannelResult) {
	if d.sink != nil {
		if err := d.sink.InsertAlert(ev); err != nil {
			log.Warn().Err(err).Str("alertId", ev.ID).Msg("[dispatch] history insert failed")
		}
	}
	if d.notifier != nil {
		d.notifier.BroadcastAlert(ev)
	}
	ok := 0
	for _, r := range results {
		if r.OK {
			ok++
		}
	}
	log.Info().Str("alertId", ev.ID).Str("metric", ev.Metric).
		Str("severity", string(ev.Severity)).
		Int("channels_ok", ok).Int("channels", len(results)).
		Msg("[dispatch] alert processed")
}

// postProcessor forwards the alert to the internal processing endpoint
// with correlation headers. Any non-2xx status counts as failure.
func (d *Dispatcher) postProcessor(ctx context.Context, url string, ev model.AlertEvent, correlationID string) model.ChannelResult {
	start := time.Now()
	r := model.ChannelResult{Channel: "processor"}

	body, err := json.Marshal(ev)
	if err != nil {
		r.Err = err.Error()
		return r
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		r.Err = err.Error()
		return r
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", correlationID)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := d.client.Do(req)
	if err != nil {
		r.Err = err.Error()
		r.Elapsed = time.Since(start)
		return r
	}
	defer resp.Body.Close()
	r.Elapsed = time.Since(start)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.Err = fmt.Sprintf("processor returned %d", resp.StatusCode)
		return r
	}
	r.OK = true
	return r
}

func (d *Dispatcher) postJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// sendEmail stages the critical-alert email. Delivery itself is handled
// by the mail relay; here the message is only composed and logged.
// TODO: post to the Resend API once the sending domain is verified.
func (d *Dispatcher) sendEmail(_ context.Context, ev model.AlertEvent) error {
	to := d.env(EnvAlertEmail)
	if to == "" {
		return fmt.Errorf("%s not configured", EnvAlertEmail)
	}
	log.Info().Str("alertId", ev.ID).Str("to", to).
		Str("subject", fmt.Sprintf("Critical Performance Alert - %s", ev.Metric)).
		Msg("[dispatch] email staged")
	return nil
}

// sendSlack posts the Slack attachment payload to the performance
// channel webhook.
func (d *Dispatcher) sendSlack(ctx context.Context, ev model.AlertEvent) error {
	url := d.env(EnvSlackWebhook)
	if url == "" {
		return fmt.Errorf("%s not configured", EnvSlackWebhook)
	}
	type field struct {
		Title string `json:"title"`
		Value string `json:"value"`
		Short bool   `json:"short"`
	}
	payload := map[string]any{
		"text": fmt.Sprintf("Performance Alert: %s", ev.Metric),
		"attachments": []map[string]any{{
			"color": severityColor(ev.Severity),
			"fields": []field{
				{"Metric", ev.Metric, true},
				{"Value", fmt.Sprintf("%g%s", ev.Value, metricUnit(ev.Metric)), true},
				{"Severity", strings.ToUpper(string(ev.Severity)), true},
				{"URL", ev.URL, false},
				{"Session", ev.SessionID, true},
				{"Alert ID", ev.ID, true},
			},
			"ts": ev.Timestamp / 1000,
		}},
	}
	return d.postJSON(ctx, url, payload)
}

// sendTeams posts the MessageCard payload to the Teams webhook.
func (d *Dispatcher) sendTeams(ctx context.Context, ev model.AlertEvent) error {
	url := d.env(EnvTeamsWebhook)
	if url == "" {
		return fmt.Errorf("%s not configured", EnvTeamsWebhook)
	}
	type fact struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	payload := map[string]any{
		"@type":      "MessageCard",
		"@context":   "https://schema.org/extensions",
		"summary":    fmt.Sprintf("Performance Alert: %s", ev.Metric),
		"themeColor": severityColor(ev.Severity),
		"sections": []map[string]any{{
			"activityTitle":    fmt.Sprintf("Performance Alert - %s", strings.ToUpper(string(ev.Severity))),
			"activitySubtitle": fmt.Sprintf("%s performance issue detected", ev.Metric),
			"facts": []fact{
				{"Metric", ev.Metric},
				{"Value", fmt.Sprintf("%g%s", ev.Value, metricUnit(ev.Metric))},
				{"URL", ev.URL},
				{"Session ID", ev.SessionID},
				{"Alert ID", ev.ID},
				{"Timestamp", time.UnixMilli(ev.Timestamp).UTC().Format(time.RFC3339)},
			},
		}},
	}
	return d.postJSON(ctx, url, payload)
}

func severityColor(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "#DC2626"
	case model.SeverityHigh:
		return "#EA580C"
	case model.SeverityMedium:
		return "#CA8A04"
	default:
		return "#16A34A"
	}
}

// metricUnit returns the display unit. CLS is a unitless score; every
// other tracked metric is in milliseconds.
func metricUnit(metric string) string {
	if metric == "CLS" {
		return ""
	}
	return "ms"
}
