package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/zonegate/zonegate/internal/ddns"
	"github.com/zonegate/zonegate/internal/model"
)

// handleDynDNS2 handles GET /nic/update.
func (s *Server) handleDynDNS2(w http.ResponseWriter, r *http.Request) {
	s.handleDDNS(w, r, ddns.DynDNS2)
}

// handleNoIP handles GET /noip/update.
func (s *Server) handleNoIP(w http.ResponseWriter, r *http.Request) {
	s.handleDDNS(w, r, ddns.NoIP)
}

// handleDDNS serves both legacy protocols. The request carries the
// credential either as the Basic auth password (the username is
// ignored) or as a bearer token. Multiple hostnames are processed
// independently, one response line each, matching the legacy services.
func (s *Server) handleDDNS(w http.ResponseWriter, r *http.Request, p ddns.Protocol) {
	presented := ddnsCredential(r)
	sourceIP := s.clientIP(r)

	ips, ok := updateAddresses(r.URL.Query().Get("myip"), sourceIP)
	if !ok {
		s.recordRejected(sourceIP, "invalid_myip")
		writeDDNS(w, ddns.Render(p, ddns.CondBadHostname, ""))
		return
	}
	if len(ips) == 0 {
		// No myip and the peer address itself was unusable.
		s.recordRejected(sourceIP, "no_source_address")
		writeDDNS(w, ddns.Render(p, ddns.CondBadHostname, ""))
		return
	}

	hostnames := splitHostnames(r.URL.Query().Get("hostname"))
	if len(hostnames) == 0 {
		hostnames = []string{""} // runs the pipeline so the attempt is audited
	}

	lines := make([]string, 0, len(hostnames))
	for _, hostname := range hostnames {
		changes := make([]model.RecordChange, 0, len(ips))
		for _, ip := range ips {
			rtype := "A"
			if ip.To4() == nil {
				rtype = "AAAA"
			}
			changes = append(changes, model.RecordChange{
				Operation: model.OpUpdate,
				Name:      hostname,
				Type:      rtype,
				Value:     ip.String(),
			})
		}

		out := s.processUpdate(r.Context(), &updateInput{
			protocol:  p.String(),
			presented: presented,
			hostname:  hostname,
			operation: model.OpUpdate,
			changes:   changes,
			sourceIP:  sourceIP,
		})
		lines = append(lines, ddns.Render(p, out.cond, out.ip))
	}

	writeDDNS(w, strings.Join(lines, "\n"))
}

func writeDDNS(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body + "\n"))
}

// ddnsCredential extracts the presented token: Basic auth password
// first (the legacy client convention), then a bearer token.
func ddnsCredential(r *http.Request) string {
	if _, pass, ok := r.BasicAuth(); ok {
		return pass
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// updateAddresses parses the myip parameter (comma-separated for dual
// stack clients). An unparsable value fails the request as a format
// error; an absent myip falls back to the detected client address.
func updateAddresses(myip string, detected net.IP) ([]net.IP, bool) {
	var ips []net.IP
	for _, part := range strings.Split(myip, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ip := net.ParseIP(part)
		if ip == nil {
			return nil, false
		}
		ips = append(ips, ip)
	}
	if len(ips) == 0 && detected != nil {
		ips = append(ips, detected)
	}
	return ips, true
}

func splitHostnames(hostname string) []string {
	var hosts []string
	for _, part := range strings.Split(hostname, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			hosts = append(hosts, part)
		}
	}
	return hosts
}
