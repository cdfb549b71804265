package delivery

import (
	"context"
	"fmt"

	xhttp "SignalFlow/pkg/http"
)

// WebhookSink POSTs signals as JSON to a configured endpoint.
type WebhookSink struct {
	client  *xhttp.Client
	url     string
	headers map[string]string
}

func NewWebhookSink(client *xhttp.Client, url string, headers map[string]string) *WebhookSink {
	return &WebhookSink{client: client, url: url, headers: headers}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, payload interface{}) error {
	if s.url == "" {
		return fmt.Errorf("webhook url not configured")
	}
	return s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     s.url,
		Headers: s.headers,
		Body:    payload,
	}, nil)
}
