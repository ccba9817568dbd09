package webhook

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gemdqm/hvlumi/pkg/bridge"
	"github.com/gemdqm/hvlumi/pkg/models"
)

// Poster is the subset of bridge.Client used to deliver reports.
type Poster interface {
	PostJSON(ctx context.Context, payload, out interface{}) error
}

// Client posts finished run reports to a webhook
type Client struct {
	url    string
	poster Poster
	quiet  bool
}

// NewClient creates a webhook client for url
func NewClient(url string, quiet bool) *Client {
	return &Client{
		url:    url,
		poster: bridge.NewClient(url, 45*time.Second),
		quiet:  quiet,
	}
}

// NewClientWithPoster is NewClient over a caller supplied transport.
func NewClientWithPoster(url string, p Poster, quiet bool) *Client {
	return &Client{url: url, poster: p, quiet: quiet}
}

// Send delivers report
func (c *Client) Send(ctx context.Context, report models.RunReport) error {
	if err := c.poster.PostJSON(ctx, report, nil); err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	if !c.quiet {
		log.Printf("📨 Webhook sent - ID: %s, Run: %d, Chambers: %d, Invalid: %d",
			report.ID, report.RunNumber, len(report.BadLumisections), len(report.InvalidChambers))
	}
	return nil
}
