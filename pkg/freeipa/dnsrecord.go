package freeipa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// ARecord identifies a DNS A record within a FreeIPA-managed zone. Either
// Addresses (the arecord list) or Address (the single a_part_ip_address
// form) must be set to identify the record.
type ARecord struct {
	// Zone is the managed zone name (dnszoneidnsname).
	Zone string

	// Name is the record name within the zone (idnsname).
	Name string

	// Addresses holds one or more IPv4 addresses (arecord).
	Addresses []string

	// Address is the single-address convenience form (a_part_ip_address).
	Address string
}

func (r ARecord) validate() error {
	if r.Zone == "" {
		return errMissing("dnszoneidnsname")
	}
	if r.Name == "" {
		return errMissing("idnsname")
	}
	if len(r.Addresses) == 0 && r.Address == "" {
		return &ValidationError{
			Field:   "arecord",
			Message: "at least one of arecord or a_part_ip_address is required",
		}
	}
	return nil
}

func (r ARecord) params() map[string]any {
	p := map[string]any{
		"dnszoneidnsname": r.Zone,
		"idnsname":        r.Name,
	}
	if len(r.Addresses) > 0 {
		p["arecord"] = r.Addresses
	}
	if r.Address != "" {
		p["a_part_ip_address"] = r.Address
	}
	return p
}

// addResult mirrors the subset of the dnsrecord_add response needed to build
// a display summary.
type addResult struct {
	Summary string `json:"summary"`
	Result  struct {
		IDNSName []struct {
			DNSName string `json:"__dns_name__"`
		} `json:"idnsname"`
	} `json:"result"`
}

// addRecordSummary extracts a human-readable summary from a dnsrecord_add
// result. It prefers the server-provided summary and falls back to the
// record name buried in the add-specific response shape. The fallback is
// deliberately scoped to dnsrecord_add and must not be generalized to other
// methods.
func addRecordSummary(raw json.RawMessage) string {
	var res addResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return ""
	}
	if res.Summary != "" {
		return res.Summary
	}
	if len(res.Result.IDNSName) > 0 && res.Result.IDNSName[0].DNSName != "" {
		return "Added record " + res.Result.IDNSName[0].DNSName
	}
	return ""
}

// DNSRecordAdd creates an A record via dnsrecord_add and returns the
// server's summary of the change.
func (c *Client) DNSRecordAdd(ctx context.Context, record ARecord) (string, error) {
	if err := record.validate(); err != nil {
		return "", err
	}

	result, err := c.Call(ctx, "dnsrecord_add", record.params())
	if err != nil {
		return "", fmt.Errorf("adding A record %s in zone %s: %w", record.Name, record.Zone, err)
	}

	c.logger.Info("added A record",
		slog.String("name", record.Name),
		slog.String("zone", record.Zone),
	)

	return addRecordSummary(result), nil
}

// DNSRecordDel removes an A record via dnsrecord_del.
func (c *Client) DNSRecordDel(ctx context.Context, record ARecord) error {
	if err := record.validate(); err != nil {
		return err
	}

	if _, err := c.Call(ctx, "dnsrecord_del", record.params()); err != nil {
		return fmt.Errorf("deleting A record %s in zone %s: %w", record.Name, record.Zone, err)
	}

	c.logger.Info("deleted A record",
		slog.String("name", record.Name),
		slog.String("zone", record.Zone),
	)

	return nil
}
