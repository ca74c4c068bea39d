// Package authz implements the realm authorization engine: given an
// authenticated token's realm, a target domain, the requested record
// types and operation, plus the policy of the managed domain root, it
// produces an explicit allow/deny decision.
//
// Denial paths never throw or short-circuit through errors; every code
// path terminates in a Decision so the protocol adapter always has a
// terminal outcome to render.
package authz

import (
	"strings"

	"github.com/miekg/dns"

	"github.com/zonegate/zonegate/internal/model"
)

// DenyReason is the machine-readable reason of a denial.
type DenyReason string

const (
	DenyOutOfScope      DenyReason = "out_of_scope"
	DenyRecordType      DenyReason = "record_type_not_allowed"
	DenyOperation       DenyReason = "operation_not_allowed"
	DenyApex            DenyReason = "apex_denied"
	DenyDepthOutOfRange DenyReason = "depth_out_of_range"
)

// Decision is the terminal outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow is the positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny produces a negative decision with a reason.
func Deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Request carries everything the engine needs for one decision.
// RootDomain is the managed root the target falls under ("" if none);
// Root is that root's policy (DefaultRootPolicy when unmanaged).
type Request struct {
	Realm       *model.Realm
	Domain      string
	RecordTypes []string
	Operation   model.Operation
	RootDomain  string
	Root        model.RootPolicy
}

// Authorize decides whether the realm permits the requested change.
//
// Checks run scope-first: an out-of-scope request is denied before any
// record-type or operation detail is consulted, so the response never
// reveals what an in-scope request would have been allowed to do.
func Authorize(req Request) Decision {
	target := Normalize(req.Domain)
	value := Normalize(req.Realm.Value)
	root := Normalize(req.RootDomain)

	switch req.Realm.Type {
	case model.RealmHost:
		if target != value {
			return Deny(DenyOutOfScope)
		}
	case model.RealmSubdomain:
		if target != value && !isStrictSubdomain(target, value) {
			return Deny(DenyOutOfScope)
		}
	case model.RealmWildcard:
		// Wildcards never authorize the bare realm value, regardless
		// of any apex policy at the root layer.
		if target == value {
			return Deny(DenyApex)
		}
		if !isStrictSubdomain(target, value) {
			return Deny(DenyOutOfScope)
		}
	default:
		return Deny(DenyOutOfScope)
	}

	if root != "" {
		if target == root {
			if !req.Root.AllowApex {
				return Deny(DenyApex)
			}
		} else {
			depth := labelDepth(target, root)
			if req.Root.MinDepth > 0 && depth < req.Root.MinDepth {
				return Deny(DenyDepthOutOfRange)
			}
			if req.Root.MaxDepth > 0 && depth > req.Root.MaxDepth {
				return Deny(DenyDepthOutOfRange)
			}
		}
	}

	// Effective permissions are the intersection of realm and root
	// restrictions: an empty set at either layer restricts nothing,
	// but never loosens the other layer.
	for _, rt := range req.RecordTypes {
		if !typeAllowed(req.Realm.RecordTypes, rt) || !typeAllowed(req.Root.RecordTypes, rt) {
			return Deny(DenyRecordType)
		}
	}

	if !operationAllowed(req.Realm.Operations, req.Operation) ||
		!operationAllowed(req.Root.Operations, req.Operation) {
		return Deny(DenyOperation)
	}

	return Allow()
}

// Normalize lowercases a domain and strips the trailing dot.
func Normalize(domain string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
}

// isStrictSubdomain reports whether target sits at least one label
// below parent. Both arguments must be normalized. Matching is done on
// whole labels: "evilexample.com" and "example.com.evil.com" are not
// subdomains of "example.com".
func isStrictSubdomain(target, parent string) bool {
	if parent == "" || target == parent {
		return false
	}
	return strings.HasSuffix(target, "."+parent)
}

// labelDepth counts how many labels target sits below ancestor.
func labelDepth(target, ancestor string) int {
	return dns.CountLabel(dns.Fqdn(target)) - dns.CountLabel(dns.Fqdn(ancestor))
}

// typeAllowed checks a requested record type against a restriction
// set. An empty set allows every type; otherwise the match is exact
// and case-sensitive against canonical type symbols.
func typeAllowed(allowed []string, requested string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if t == requested {
			return true
		}
	}
	return false
}

// operationAllowed checks a requested operation against a restriction
// set; empty allows all.
func operationAllowed(allowed []model.Operation, requested model.Operation) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, op := range allowed {
		if op == requested {
			return true
		}
	}
	return false
}
