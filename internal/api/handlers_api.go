package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zonegate/zonegate/internal/ddns"
	"github.com/zonegate/zonegate/internal/model"
)

// RecordPayload is one record mutation in an update request.
type RecordPayload struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	TTL   int64  `json:"ttl,omitempty"`
}

// UpdateRequest is the request body for POST /api/v1/records/update.
type UpdateRequest struct {
	Hostname  string          `json:"hostname"`
	Operation string          `json:"operation,omitempty"` // default: update
	Records   []RecordPayload `json:"records"`
}

// UpdateResponse is the success response for POST /api/v1/records/update.
type UpdateResponse struct {
	Status   string `json:"status"` // "ok" or "nochg"
	Hostname string `json:"hostname"`
	Applied  int    `json:"applied"`
}

// RealmResponse is the response for GET /api/v1/realm.
type RealmResponse struct {
	RealmID     string            `json:"realm_id"`
	Type        model.RealmType   `json:"type"`
	Value       string            `json:"value"`
	RecordTypes []string          `json:"record_types,omitempty"`
	Operations  []model.Operation `json:"operations,omitempty"`
	TokenAlias  string            `json:"token_alias"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse is the error response of the JSON API.
type ErrorResponse struct {
	Status    string `json:"status"` // always "error"
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// handleUpdateRecords handles POST /api/v1/records/update.
func (s *Server) handleUpdateRecords(w http.ResponseWriter, r *http.Request) {
	presented := bearerToken(r)
	sourceIP := s.clientIP(r)

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.recordRejected(sourceIP, "invalid_request")
		s.sendError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Hostname == "" {
		s.recordRejected(sourceIP, "invalid_request")
		s.sendError(w, http.StatusBadRequest, "invalid_request", "hostname is required")
		return
	}
	if len(req.Records) == 0 {
		s.recordRejected(sourceIP, "invalid_request")
		s.sendError(w, http.StatusBadRequest, "invalid_request", "records is required")
		return
	}

	op := model.OpUpdate
	if req.Operation != "" {
		switch model.Operation(req.Operation) {
		case model.OpCreate, model.OpUpdate, model.OpDelete:
			op = model.Operation(req.Operation)
		default:
			s.recordRejected(sourceIP, "invalid_request")
			s.sendError(w, http.StatusBadRequest, "invalid_request",
				"operation must be create, update or delete")
			return
		}
	}

	changes := make([]model.RecordChange, 0, len(req.Records))
	for _, rec := range req.Records {
		rtype := strings.ToUpper(strings.TrimSpace(rec.Type))
		if rtype == "" || (rec.Value == "" && op != model.OpDelete) {
			s.recordRejected(sourceIP, "invalid_request")
			s.sendError(w, http.StatusBadRequest, "invalid_request",
				"every record needs a type and a value")
			return
		}
		changes = append(changes, model.RecordChange{
			Operation: op,
			Name:      req.Hostname,
			Type:      rtype,
			TTL:       rec.TTL,
			Value:     rec.Value,
		})
	}

	out := s.processUpdate(r.Context(), &updateInput{
		protocol:  "api",
		presented: presented,
		hostname:  req.Hostname,
		operation: op,
		changes:   changes,
		sourceIP:  sourceIP,
	})

	if out.errorCode != "" {
		s.sendError(w, out.httpStatus, out.errorCode, out.message)
		return
	}

	status := "ok"
	applied := len(changes)
	if out.cond == ddns.CondNoChange {
		status = "nochg"
		applied = 0
	}
	s.sendJSON(w, http.StatusOK, &UpdateResponse{
		Status:   status,
		Hostname: req.Hostname,
		Applied:  applied,
	})
}

// handleRealmInfo handles GET /api/v1/realm: what is the presented
// token allowed to do.
func (s *Server) handleRealmInfo(w http.ResponseWriter, r *http.Request) {
	presented := bearerToken(r)
	sourceIP := s.clientIP(r)
	sourceStr := ""
	if sourceIP != nil {
		sourceStr = sourceIP.String()
	}

	auth, err := s.auth.Authenticate(presented)
	if err != nil {
		s.logger.Error("token lookup failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if !auth.OK {
		if err := s.audit.Record(&model.ActivityEntry{
			Type:      model.ActivityFailedAuth,
			Status:    model.StatusFailure,
			Severity:  "warning",
			ErrorCode: string(auth.Reason),
			SourceIP:  sourceStr,
			Detail:    "token " + auth.Fingerprint,
		}); err != nil && s.metrics != nil {
			s.metrics.AuditWriteFailuresTotal.Inc()
		}
		s.sendError(w, http.StatusUnauthorized, "authentication_failed", "invalid or unknown token")
		return
	}

	if err := s.audit.Record(&model.ActivityEntry{
		AccountID: auth.Realm.AccountID,
		RealmID:   auth.Realm.ID,
		TokenID:   auth.Token.ID,
		Type:      model.ActivityRealmInfo,
		Status:    model.StatusSuccess,
		Severity:  "info",
		SourceIP:  sourceStr,
	}); err != nil && s.metrics != nil {
		s.metrics.AuditWriteFailuresTotal.Inc()
	}

	s.sendJSON(w, http.StatusOK, &RealmResponse{
		RealmID:     auth.Realm.ID,
		Type:        auth.Realm.Type,
		Value:       auth.Realm.Value,
		RecordTypes: auth.Realm.RecordTypes,
		Operations:  auth.Realm.Operations,
		TokenAlias:  auth.Token.Alias,
		ExpiresAt:   auth.Token.ExpiresAt,
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, &HealthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// recordRejected audits a request dropped before authentication.
func (s *Server) recordRejected(sourceIP net.IP, code string) {
	source := ""
	if sourceIP != nil {
		source = sourceIP.String()
	}
	if err := s.audit.Record(&model.ActivityEntry{
		Type:      model.ActivityDNSUpdate,
		Status:    model.StatusFailure,
		Severity:  "warning",
		ErrorCode: code,
		SourceIP:  source,
	}); err != nil && s.metrics != nil {
		s.metrics.AuditWriteFailuresTotal.Inc()
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	s.sendJSON(w, status, &ErrorResponse{
		Status:    "error",
		ErrorCode: code,
		Message:   message,
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
