package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zonegate/zonegate/internal/model"
)

// PowerDNS talks to the PowerDNS authoritative API (zones endpoint,
// RRset PATCH semantics).
type PowerDNS struct {
	baseURL    string
	apiKey     string
	serverID   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPowerDNS creates a PowerDNS gateway.
func NewPowerDNS(baseURL, apiKey, serverID string, logger *slog.Logger) *PowerDNS {
	if serverID == "" {
		serverID = "localhost"
	}
	return &PowerDNS{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		serverID: serverID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// Name implements Gateway.
func (p *PowerDNS) Name() string {
	return "powerdns"
}

type pdnsRRSet struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	TTL        int64        `json:"ttl,omitempty"`
	ChangeType string       `json:"changetype"`
	Records    []pdnsRecord `json:"records,omitempty"`
}

type pdnsRecord struct {
	Content  string `json:"content"`
	Disabled bool   `json:"disabled"`
}

// Apply implements Gateway by patching the zone's RRsets.
func (p *PowerDNS) Apply(ctx context.Context, zone string, changes []model.RecordChange) error {
	rrsets := make([]pdnsRRSet, 0, len(changes))
	for _, ch := range changes {
		set := pdnsRRSet{
			Name: fqdn(ch.Name),
			Type: ch.Type,
		}
		if ch.Operation == model.OpDelete {
			set.ChangeType = "DELETE"
		} else {
			set.ChangeType = "REPLACE"
			set.TTL = ch.TTL
			if set.TTL == 0 {
				set.TTL = 300
			}
			set.Records = []pdnsRecord{{Content: ch.Value}}
		}
		rrsets = append(rrsets, set)
	}

	body, err := json.Marshal(map[string]any{"rrsets": rrsets})
	if err != nil {
		return &Error{Backend: p.Name(), Err: fmt.Errorf("marshal rrsets: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/api/v1/servers/%s/zones/%s",
		p.baseURL, url.PathEscape(p.serverID), url.PathEscape(fqdn(zone)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{Backend: p.Name(), Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("X-API-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &Error{Backend: p.Name(), Temporary: true, Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		p.logger.Error("powerdns zone patch failed",
			"zone", zone,
			"status", resp.StatusCode,
			"body", string(detail),
		)
		return &Error{
			Backend:   p.Name(),
			Temporary: resp.StatusCode >= 500,
			Err:       fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	p.logger.Info("powerdns zone updated", "zone", zone, "changes", len(changes))
	return nil
}

// fqdn appends the trailing dot PowerDNS expects on owner names.
func fqdn(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}
