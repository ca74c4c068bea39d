package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/zonegate/zonegate/internal/authz"
	"github.com/zonegate/zonegate/internal/ddns"
	"github.com/zonegate/zonegate/internal/ipfilter"
	"github.com/zonegate/zonegate/internal/model"
	"github.com/zonegate/zonegate/internal/ratelimit"
)

// updateInput is one update attempt, normalized from whichever endpoint
// received it.
type updateInput struct {
	protocol  string // "dyndns2", "noip" or "api"
	presented string // raw credential as presented by the client
	hostname  string
	operation model.Operation
	changes   []model.RecordChange
	sourceIP  net.IP
}

// updateOutcome is the terminal result of the pipeline, ready to be
// rendered by either protocol adapter or the JSON layer.
type updateOutcome struct {
	cond       ddns.Condition
	httpStatus int
	errorCode  string
	message    string
	ip         string // echoed on success responses
}

func (o *updateOutcome) label() string {
	if o.errorCode != "" {
		return o.errorCode
	}
	if o.cond == ddns.CondNoChange {
		return "nochg"
	}
	return "good"
}

// processUpdate runs one update attempt through the full decision
// pipeline. It always terminates in an outcome and always writes
// exactly one activity log entry, whatever path the request takes.
func (s *Server) processUpdate(ctx context.Context, in *updateInput) *updateOutcome {
	sourceIP := ""
	if in.sourceIP != nil {
		sourceIP = in.sourceIP.String()
	}

	entry := &model.ActivityEntry{
		Type:       model.ActivityDNSUpdate,
		Status:     model.StatusSuccess,
		Severity:   "info",
		SourceIP:   sourceIP,
		Domain:     authz.Normalize(in.hostname),
		RecordType: strings.Join(changeTypes(in.changes), ","),
		Operation:  string(in.operation),
	}

	out := &updateOutcome{cond: ddns.CondGood, httpStatus: http.StatusOK}

	defer func() {
		if err := s.audit.Record(entry); err != nil && s.metrics != nil {
			s.metrics.AuditWriteFailuresTotal.Inc()
		}
		if s.metrics != nil {
			s.metrics.UpdatesTotal.WithLabelValues(in.protocol, out.label()).Inc()
		}
	}()

	fail := func(cond ddns.Condition, status int, code, message string) *updateOutcome {
		out.cond = cond
		out.httpStatus = status
		out.errorCode = code
		out.message = message
		return out
	}

	// 1. Authenticate the presented token.
	auth, err := s.auth.Authenticate(in.presented)
	if err != nil {
		s.logger.Error("token lookup failed", "error", err)
		entry.Type = model.ActivityFailedAuth
		entry.Status = model.StatusError
		entry.Severity = "critical"
		entry.ErrorCode = "internal_error"
		return fail(ddns.CondServerError, http.StatusInternalServerError,
			"internal_error", "internal server error")
	}
	if !auth.OK {
		if s.metrics != nil {
			s.metrics.AuthFailedTotal.WithLabelValues(string(auth.Reason)).Inc()
		}
		entry.Type = model.ActivityFailedAuth
		entry.Status = model.StatusFailure
		entry.Severity = "warning"
		entry.ErrorCode = string(auth.Reason)
		entry.Detail = "token " + auth.Fingerprint
		// The response never distinguishes why the credential was
		// rejected.
		return fail(ddns.CondBadAuth, http.StatusUnauthorized,
			"authentication_failed", "invalid or unknown token")
	}

	entry.TokenID = auth.Token.ID
	entry.RealmID = auth.Realm.ID
	entry.AccountID = auth.Realm.AccountID

	// 2. Validate the target hostname.
	host := authz.Normalize(in.hostname)
	if !validHostname(host) {
		entry.Status = model.StatusFailure
		entry.Severity = "warning"
		entry.ErrorCode = "invalid_hostname"
		return fail(ddns.CondBadHostname, http.StatusBadRequest,
			"invalid_hostname", "hostname is not a fully-qualified domain name")
	}

	// 3. Source IP whitelist of the realm. A broken whitelist entry
	// denies the request instead of widening access.
	allowed, err := ipfilter.Evaluate(auth.Realm.AllowedIPRanges, in.sourceIP,
		s.config.Security.AllowAnyIPRange)
	if err != nil {
		s.logger.Warn("realm whitelist rejected",
			"realm_id", auth.Realm.ID, "error", err)
		entry.Type = model.ActivitySecurityEvent
		entry.Status = model.StatusError
		entry.Severity = "error"
		entry.ErrorCode = "whitelist_config_error"
		entry.Detail = err.Error()
		return fail(ddns.CondNotYours, http.StatusForbidden,
			"whitelist_config_error", "source address not permitted")
	}
	if !allowed {
		entry.Type = model.ActivitySecurityEvent
		entry.Status = model.StatusFailure
		entry.Severity = "warning"
		entry.ErrorCode = "ip_not_allowed"
		return fail(ddns.CondNotYours, http.StatusForbidden,
			"ip_not_allowed", "source address not permitted")
	}

	// 4. Rate limits.
	if s.limiter != nil {
		res, err := s.limiter.Allow(ctx, &ratelimit.Request{
			TokenID: auth.Token.ID,
			IP:      sourceIP,
		})
		if err != nil {
			s.logger.Error("rate limit check failed", "error", err)
		} else if !res.Allowed {
			if s.metrics != nil {
				s.metrics.RateLimitedTotal.WithLabelValues(string(res.DeniedBy)).Inc()
			}
			entry.Type = model.ActivitySecurityEvent
			entry.Status = model.StatusFailure
			entry.Severity = "warning"
			entry.ErrorCode = "rate_limited"
			entry.Detail = "denied at " + string(res.DeniedBy) + " level"
			return fail(ddns.CondAbuse, http.StatusTooManyRequests,
				"rate_limited", "update rate limit exceeded")
		}
	}

	// 5. Authorize against the realm and the managed root's policy.
	root, err := s.store.RootFor(host)
	if err != nil {
		s.logger.Error("root lookup failed", "domain", host, "error", err)
		entry.Status = model.StatusError
		entry.Severity = "critical"
		entry.ErrorCode = "internal_error"
		return fail(ddns.CondServerError, http.StatusInternalServerError,
			"internal_error", "internal server error")
	}
	policy := model.DefaultRootPolicy()
	rootDomain := ""
	if root != nil {
		policy = root.Policy()
		rootDomain = root.Domain
	}

	decision := authz.Authorize(authz.Request{
		Realm:       auth.Realm,
		Domain:      host,
		RecordTypes: changeTypes(in.changes),
		Operation:   in.operation,
		RootDomain:  rootDomain,
		Root:        policy,
	})
	if s.metrics != nil {
		result := "allow"
		if !decision.Allowed {
			result = string(decision.Reason)
		}
		s.metrics.DecisionsTotal.WithLabelValues(result).Inc()
	}
	if !decision.Allowed {
		entry.Type = model.ActivitySecurityEvent
		entry.Status = model.StatusFailure
		entry.Severity = "warning"
		entry.ErrorCode = string(decision.Reason)
		return fail(ddns.CondNotYours, http.StatusForbidden,
			string(decision.Reason), "not authorized for this change")
	}

	// 6. Apply through the backend owning the root.
	if root == nil {
		entry.Status = model.StatusFailure
		entry.Severity = "error"
		entry.ErrorCode = "unmanaged_domain"
		return fail(ddns.CondDNSError, http.StatusBadGateway,
			"unmanaged_domain", "no DNS backend manages this domain")
	}

	if len(in.changes) > 0 {
		out.ip = in.changes[0].Value
	}

	// Short-circuit updates that would not change anything.
	if in.operation == model.OpUpdate && s.unchanged(host, in.changes) {
		entry.Detail = "no change"
		out.cond = ddns.CondNoChange
		return out
	}

	gw, err := s.registry.For(root)
	if err != nil {
		s.logger.Error("no gateway for root", "root", root.Domain, "error", err)
		entry.Status = model.StatusFailure
		entry.Severity = "error"
		entry.ErrorCode = "backend_unavailable"
		return fail(ddns.CondDNSError, http.StatusBadGateway,
			"backend_unavailable", "DNS backend unavailable")
	}

	start := time.Now()
	err = gw.Apply(ctx, root.Domain, in.changes)
	if s.metrics != nil {
		s.metrics.BackendDurationSeconds.WithLabelValues(gw.Name()).
			Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "error"
		}
		s.metrics.BackendRequestsTotal.WithLabelValues(gw.Name(), result).Inc()
	}
	if err != nil {
		s.logger.Error("backend apply failed",
			"backend", gw.Name(), "domain", host, "error", err)
		entry.Status = model.StatusFailure
		entry.Severity = "error"
		entry.ErrorCode = "backend_error"
		entry.Detail = err.Error()
		return fail(ddns.CondDNSError, http.StatusBadGateway,
			"backend_error", "DNS backend failed to apply the change")
	}

	s.rememberApplied(host, in.operation, in.changes)

	s.logger.Info("dns update applied",
		"domain", host,
		"backend", gw.Name(),
		"changes", len(in.changes),
		"token_id", auth.Token.ID,
	)
	return out
}

// unchanged reports whether every change matches the last applied value
// for its record type.
func (s *Server) unchanged(host string, changes []model.RecordChange) bool {
	if len(changes) == 0 {
		return false
	}
	for _, ch := range changes {
		last, err := s.store.LastApplied(host, ch.Type)
		if err != nil || last == "" || last != ch.Value {
			return false
		}
	}
	return true
}

// rememberApplied stores the applied values for future no-change
// detection. Best effort.
func (s *Server) rememberApplied(host string, op model.Operation, changes []model.RecordChange) {
	for _, ch := range changes {
		value := ch.Value
		if op == model.OpDelete {
			value = ""
		}
		if err := s.store.SetLastApplied(host, ch.Type, value); err != nil {
			s.logger.Warn("failed to store last applied value",
				"domain", host, "type", ch.Type, "error", err)
		}
	}
}

// changeTypes returns the distinct record types of a change set.
func changeTypes(changes []model.RecordChange) []string {
	var types []string
	seen := make(map[string]bool)
	for _, ch := range changes {
		if !seen[ch.Type] {
			seen[ch.Type] = true
			types = append(types, ch.Type)
		}
	}
	return types
}

// validHostname accepts normalized, fully-qualified hostnames only.
func validHostname(host string) bool {
	if host == "" || !strings.Contains(host, ".") {
		return false
	}
	if _, ok := dns.IsDomainName(host); !ok {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return false
		}
	}
	return true
}
