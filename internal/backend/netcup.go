package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zonegate/zonegate/internal/model"
)

const netcupEndpoint = "https://ccp.netcup.net/run/webservice/servers/endpoint.php?JSON"

// Netcup talks to the Netcup CCP DNS webservice (JSON requests with
// per-call session handling: login, updateDnsRecords, logout).
type Netcup struct {
	endpoint       string
	customerNumber string
	apiKey         string
	apiPassword    string
	httpClient     *http.Client
	logger         *slog.Logger
}

// NewNetcup creates a Netcup gateway. endpoint may be empty to use the
// production webservice URL.
func NewNetcup(endpoint, customerNumber, apiKey, apiPassword string, logger *slog.Logger) *Netcup {
	if endpoint == "" {
		endpoint = netcupEndpoint
	}
	return &Netcup{
		endpoint:       endpoint,
		customerNumber: customerNumber,
		apiKey:         apiKey,
		apiPassword:    apiPassword,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Name implements Gateway.
func (n *Netcup) Name() string {
	return "netcup"
}

type netcupRequest struct {
	Action string         `json:"action"`
	Param  map[string]any `json:"param"`
}

type netcupResponse struct {
	Status       string          `json:"status"`
	StatusCode   int             `json:"statuscode"`
	ShortMessage string          `json:"shortmessage"`
	ResponseData json.RawMessage `json:"responsedata"`
}

type netcupDNSRecord struct {
	ID           string `json:"id,omitempty"`
	Hostname     string `json:"hostname"`
	Type         string `json:"type"`
	Destination  string `json:"destination"`
	DeleteRecord bool   `json:"deleterecord,omitempty"`
}

// Apply implements Gateway. Netcup has no partial-zone PATCH: the
// existing record set is fetched, merged with the change set and
// written back in one updateDnsRecords call.
func (n *Netcup) Apply(ctx context.Context, zone string, changes []model.RecordChange) error {
	session, err := n.login(ctx)
	if err != nil {
		return err
	}
	defer n.logout(ctx, session)

	existing, err := n.infoDNSRecords(ctx, session, zone)
	if err != nil {
		return err
	}

	records := make([]netcupDNSRecord, 0, len(changes))
	for _, ch := range changes {
		host := relativeName(ch.Name, zone)
		rec := netcupDNSRecord{
			Hostname:    host,
			Type:        ch.Type,
			Destination: ch.Value,
		}
		// Reuse the record ID when one already exists for this
		// hostname and type, otherwise Netcup appends a duplicate.
		for _, ex := range existing {
			if strings.EqualFold(ex.Hostname, host) && ex.Type == ch.Type {
				rec.ID = ex.ID
				if ch.Operation == model.OpDelete {
					rec.Destination = ex.Destination
				}
				break
			}
		}
		if ch.Operation == model.OpDelete {
			if rec.ID == "" {
				continue // nothing to delete
			}
			rec.DeleteRecord = true
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil
	}

	_, err = n.call(ctx, "updateDnsRecords", map[string]any{
		"domainname":     zone,
		"customernumber": n.customerNumber,
		"apikey":         n.apiKey,
		"apisessionid":   session,
		"dnsrecordset":   map[string]any{"dnsrecords": records},
	})
	if err != nil {
		return err
	}

	n.logger.Info("netcup zone updated", "zone", zone, "changes", len(records))
	return nil
}

func (n *Netcup) login(ctx context.Context) (string, error) {
	data, err := n.call(ctx, "login", map[string]any{
		"customernumber": n.customerNumber,
		"apikey":         n.apiKey,
		"apipassword":    n.apiPassword,
	})
	if err != nil {
		return "", err
	}
	var result struct {
		APISessionID string `json:"apisessionid"`
	}
	if err := json.Unmarshal(data, &result); err != nil || result.APISessionID == "" {
		return "", &Error{Backend: n.Name(), Temporary: true, Err: fmt.Errorf("login returned no session")}
	}
	return result.APISessionID, nil
}

func (n *Netcup) logout(ctx context.Context, session string) {
	_, err := n.call(ctx, "logout", map[string]any{
		"customernumber": n.customerNumber,
		"apikey":         n.apiKey,
		"apisessionid":   session,
	})
	if err != nil {
		n.logger.Debug("netcup logout failed", "error", err)
	}
}

func (n *Netcup) infoDNSRecords(ctx context.Context, session, zone string) ([]netcupDNSRecord, error) {
	data, err := n.call(ctx, "infoDnsRecords", map[string]any{
		"domainname":     zone,
		"customernumber": n.customerNumber,
		"apikey":         n.apiKey,
		"apisessionid":   session,
	})
	if err != nil {
		return nil, err
	}
	var result struct {
		DNSRecords []netcupDNSRecord `json:"dnsrecords"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &Error{Backend: n.Name(), Err: fmt.Errorf("decode dns records: %w", err)}
	}
	return result.DNSRecords, nil
}

func (n *Netcup) call(ctx context.Context, action string, param map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(netcupRequest{Action: action, Param: param})
	if err != nil {
		return nil, &Error{Backend: n.Name(), Err: fmt.Errorf("marshal %s: %w", action, err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Backend: n.Name(), Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Backend: n.Name(), Temporary: true, Err: fmt.Errorf("%s: %w", action, err)}
	}
	defer resp.Body.Close()

	var ncResp netcupResponse
	if err := json.NewDecoder(resp.Body).Decode(&ncResp); err != nil {
		return nil, &Error{Backend: n.Name(), Temporary: true, Err: fmt.Errorf("decode %s response: %w", action, err)}
	}

	if ncResp.Status != "success" {
		return nil, &Error{
			Backend: n.Name(),
			// 4xxx status codes are client/config errors, 5xxx are
			// service-side and worth retrying.
			Temporary: ncResp.StatusCode >= 5000,
			Err:       fmt.Errorf("%s failed: %d %s", action, ncResp.StatusCode, ncResp.ShortMessage),
		}
	}
	return ncResp.ResponseData, nil
}

// relativeName strips the zone suffix from an owner name; the zone
// apex becomes "@".
func relativeName(name, zone string) string {
	name = strings.TrimSuffix(strings.ToLower(name), ".")
	zone = strings.TrimSuffix(strings.ToLower(zone), ".")
	if name == zone {
		return "@"
	}
	return strings.TrimSuffix(name, "."+zone)
}
