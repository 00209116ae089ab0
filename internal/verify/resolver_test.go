package verify

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startDNSServer runs an in-process DNS server answering from the given
// name → addresses table. Unknown names get NXDOMAIN.
func startDNSServer(t *testing.T, records map[string][]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)

		q := req.Question[0]
		addrs, ok := records[q.Name]
		if !ok {
			m.Rcode = dns.RcodeNameError
		} else if q.Qtype == dns.TypeA {
			for _, addr := range addrs {
				m.Answer = append(m.Answer, &dns.A{
					Hdr: dns.RR_Header{
						Name:   q.Name,
						Rrtype: dns.TypeA,
						Class:  dns.ClassINET,
						Ttl:    300,
					},
					A: net.ParseIP(addr),
				})
			}
		}

		_ = w.WriteMsg(m)
	})

	server := &dns.Server{PacketConn: pc, Handler: handler}
	go func() {
		_ = server.ActivateAndServe()
	}()
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.ShutdownContext(shutdownCtx)
	})

	return pc.LocalAddr().String()
}

func TestNew_DefaultPort(t *testing.T) {
	r := New("ipa.example.com")
	if r.server != "ipa.example.com:53" {
		t.Errorf("expected default port 53, got %s", r.server)
	}

	r = New("ipa.example.com:5353")
	if r.server != "ipa.example.com:5353" {
		t.Errorf("expected explicit port kept, got %s", r.server)
	}
}

func TestLookupA(t *testing.T) {
	addr := startDNSServer(t, map[string][]string{
		"smoke.example.com.": {"10.0.0.1", "10.0.0.2"},
	})
	r := New(addr, WithLogger(discardLogger()))

	addrs, err := r.LookupA(context.Background(), "smoke.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses, got %v", addrs)
	}
	if addrs[0] != "10.0.0.1" || addrs[1] != "10.0.0.2" {
		t.Errorf("unexpected addresses: %v", addrs)
	}
}

func TestLookupA_NXDomain(t *testing.T) {
	addr := startDNSServer(t, nil)
	r := New(addr, WithLogger(discardLogger()))

	addrs, err := r.LookupA(context.Background(), "missing.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(addrs) != 0 {
		t.Errorf("expected no addresses, got %v", addrs)
	}
}

func TestExpectA(t *testing.T) {
	addr := startDNSServer(t, map[string][]string{
		"smoke.example.com.": {"10.0.0.1"},
	})
	r := New(addr, WithLogger(discardLogger()))

	if err := r.ExpectA(context.Background(), "smoke.example.com", "10.0.0.1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := r.ExpectA(context.Background(), "smoke.example.com", "10.0.0.9")
	if err == nil {
		t.Error("expected mismatch error, got nil")
	}
}

func TestExpectAbsent(t *testing.T) {
	addr := startDNSServer(t, map[string][]string{
		"smoke.example.com.": {"10.0.0.1"},
	})
	r := New(addr, WithLogger(discardLogger()))

	if err := r.ExpectAbsent(context.Background(), "gone.example.com"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := r.ExpectAbsent(context.Background(), "smoke.example.com"); err == nil {
		t.Error("expected error for lingering record, got nil")
	}
}

func TestLookupA_ServerUnreachable(t *testing.T) {
	r := New("127.0.0.1:1", WithLogger(discardLogger()), WithTimeout(500*time.Millisecond))

	if _, err := r.LookupA(context.Background(), "smoke.example.com"); err == nil {
		t.Error("expected error, got nil")
	}
}
