package ddns

import "testing"

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		protocol Protocol
		cond     Condition
		ip       string
		want     string
	}{
		{"dyndns2 good", DynDNS2, CondGood, "203.0.113.5", "good 203.0.113.5"},
		{"dyndns2 nochg", DynDNS2, CondNoChange, "203.0.113.5", "nochg 203.0.113.5"},
		{"dyndns2 badauth", DynDNS2, CondBadAuth, "", "badauth"},
		{"dyndns2 not yours", DynDNS2, CondNotYours, "", "!yours"},
		{"dyndns2 bad hostname", DynDNS2, CondBadHostname, "", "notfqdn"},
		{"dyndns2 dns error", DynDNS2, CondDNSError, "", "dnserr"},
		{"dyndns2 abuse", DynDNS2, CondAbuse, "", "abuse"},
		{"dyndns2 server error", DynDNS2, CondServerError, "", "911"},

		{"noip good", NoIP, CondGood, "2001:db8::1", "good 2001:db8::1"},
		{"noip nochg", NoIP, CondNoChange, "203.0.113.5", "nochg 203.0.113.5"},
		{"noip badauth", NoIP, CondBadAuth, "", "badauth"},
		{"noip not yours", NoIP, CondNotYours, "", "nohost"},
		{"noip bad hostname", NoIP, CondBadHostname, "", "nohost"},
		{"noip dns error", NoIP, CondDNSError, "", "dnserr"},
		{"noip abuse", NoIP, CondAbuse, "", "abuse"},
		{"noip server error", NoIP, CondServerError, "", "911"},

		{"unknown condition falls back to 911", DynDNS2, Condition(99), "", "911"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.protocol, tt.cond, tt.ip); got != tt.want {
				t.Errorf("Render(%v, %v, %q) = %q, want %q",
					tt.protocol, tt.cond, tt.ip, got, tt.want)
			}
		})
	}
}

func TestProtocolString(t *testing.T) {
	if DynDNS2.String() != "dyndns2" {
		t.Errorf("DynDNS2.String() = %q", DynDNS2.String())
	}
	if NoIP.String() != "noip" {
		t.Errorf("NoIP.String() = %q", NoIP.String())
	}
}
