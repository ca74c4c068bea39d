// Package ddns renders internal decisions into the plain-text response
// vocabularies of the two supported legacy dynamic-DNS protocols.
//
// The mapping is a single pure function over a tagged protocol variant
// so the whole table stays exhaustively testable. Responses are the
// exact first-token bodies these clients parse; nothing else may be
// appended.
package ddns

// Protocol selects the response vocabulary, based on which endpoint
// was invoked. The two vocabularies must never mix.
type Protocol int

const (
	DynDNS2 Protocol = iota
	NoIP
)

func (p Protocol) String() string {
	switch p {
	case DynDNS2:
		return "dyndns2"
	case NoIP:
		return "noip"
	default:
		return "unknown"
	}
}

// Condition is the internal outcome to render.
type Condition int

const (
	// CondGood: update applied, IP changed.
	CondGood Condition = iota
	// CondNoChange: update accepted, IP identical to the stored value.
	CondNoChange
	// CondBadAuth: authentication failed (unknown token, bad secret,
	// expired or disabled — indistinguishable on the wire).
	CondBadAuth
	// CondNotYours: authenticated but the hostname is outside the
	// realm's scope or otherwise denied.
	CondNotYours
	// CondBadHostname: the hostname (or myip) parameter is malformed.
	CondBadHostname
	// CondDNSError: the DNS backend failed to apply the change.
	CondDNSError
	// CondAbuse: the client is rate limited or blocked for abuse.
	CondAbuse
	// CondServerError: unexpected internal fault.
	CondServerError
)

// Render maps a condition onto the protocol's exact response body.
// ip is appended only to the success codes.
func Render(p Protocol, c Condition, ip string) string {
	switch c {
	case CondGood:
		return "good " + ip
	case CondNoChange:
		return "nochg " + ip
	case CondBadAuth:
		return "badauth"
	case CondNotYours:
		if p == NoIP {
			return "nohost"
		}
		return "!yours"
	case CondBadHostname:
		// No-IP has no dedicated malformed-hostname token; its
		// documented code for an unusable hostname is nohost.
		if p == NoIP {
			return "nohost"
		}
		return "notfqdn"
	case CondDNSError:
		return "dnserr"
	case CondAbuse:
		return "abuse"
	case CondServerError:
		return "911"
	default:
		return "911"
	}
}
