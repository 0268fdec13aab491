package dns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudflare/cloudflare-go"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

// DefaultTTL is the TTL written with every record update, in seconds.
const DefaultTTL = 120

// cloudflareAPI is the part of *cloudflare.API used here.
type cloudflareAPI interface {
	ListDNSRecords(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.ListDNSRecordsParams) ([]cloudflare.DNSRecord, *cloudflare.ResultInfo, error)
	UpdateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.UpdateDNSRecordParams) (cloudflare.DNSRecord, error)
}

// CloudflareOption configures a Cloudflare provider.
type CloudflareOption = func(*Cloudflare) error

// Cloudflare manages one record in one Cloudflare zone. Updates are always
// written unproxied so that clients resolve the failover address directly.
type Cloudflare struct {
	l          *slog.Logger
	api        cloudflareAPI
	zone       *cloudflare.ResourceContainer
	name       string
	recordType string
	ttl        int
}

// WithTTL sets the TTL written on updates.
func WithTTL(ttl int) CloudflareOption {
	return func(c *Cloudflare) error {
		if ttl < 1 {
			return fmt.Errorf("ttl must be positive, got %d", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// WithAPIToken authenticates against the Cloudflare API with a scoped token.
// HTTP calls made by the client time out after timeout.
func WithAPIToken(token string, timeout time.Duration) CloudflareOption {
	return func(c *Cloudflare) error {
		api, err := cloudflare.NewWithAPIToken(token,
			cloudflare.HTTPClient(&http.Client{Timeout: timeout}),
			cloudflare.UserAgent("cloudflare-failover"),
		)
		if err != nil {
			return fmt.Errorf("failed to create cloudflare client: %w", err)
		}
		c.api = api
		return nil
	}
}

// withAPI injects the API implementation.
func withAPI(api cloudflareAPI) CloudflareOption {
	return func(c *Cloudflare) error {
		c.api = api
		return nil
	}
}

// NewCloudflare returns a provider for the record name/recordType in zoneID.
func NewCloudflare(l *slog.Logger, zoneID, name, recordType string, opts ...CloudflareOption) (*Cloudflare, error) {
	if zoneID == "" {
		return nil, errors.New("zone id cannot be empty")
	}

	c := &Cloudflare{
		l:          l,
		zone:       cloudflare.ZoneIdentifier(zoneID),
		name:       name,
		recordType: recordType,
		ttl:        DefaultTTL,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.api == nil {
		return nil, errors.New("no cloudflare credentials configured")
	}

	return c, nil
}

func (c *Cloudflare) GetRecord(ctx context.Context, name, recordType string) (*Record, error) {
	records, _, err := c.api.ListDNSRecords(ctx, c.zone, cloudflare.ListDNSRecordsParams{
		Name: name,
		Type: recordType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list dns records: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrRecordNotFound, recordType, name)
	}
	if len(records) > 1 {
		c.l.Warn("multiple records match, using the first",
			slog.String(logging.KeyDomain, name),
			slog.String(logging.KeyRecordType, recordType),
			slog.Int("matches", len(records)),
		)
	}

	r := records[0]
	return &Record{
		ID:      r.ID,
		Name:    r.Name,
		Type:    r.Type,
		Content: r.Content,
		TTL:     r.TTL,
	}, nil
}

func (c *Cloudflare) UpdateRecord(ctx context.Context, recordID, content string) error {
	_, err := c.api.UpdateDNSRecord(ctx, c.zone, cloudflare.UpdateDNSRecordParams{
		ID:      recordID,
		Type:    c.recordType,
		Name:    c.name,
		Content: content,
		TTL:     c.ttl,
		Proxied: cloudflare.BoolPtr(false),
	})
	if err != nil {
		return fmt.Errorf("failed to update dns record %s: %w", recordID, err)
	}

	c.l.Info("dns record updated",
		slog.String(logging.KeyDomain, c.name),
		slog.String(logging.KeyTarget, content),
	)
	return nil
}
