package localseal

import (
	"context"
	"encoding/json"
	"fmt"

	sealbox "github.com/walrus-haulout/sealbox-go"
)

// Approval is the deserialized policy-approval payload. The engine checks
// that every identity being decrypted is listed before consulting the
// authorization hook.
type Approval struct {
	PackageID   string   `json:"package_id"`
	Module      string   `json:"module"`
	TimestampMs int64    `json:"timestamp_ms,omitempty"`
	ClockObject string   `json:"clock_object,omitempty"`
	Identities  []string `json:"identities"`
}

// Covers reports whether the approval lists the identity.
func (a *Approval) Covers(identity string) bool {
	for _, id := range a.Identities {
		if id == identity {
			return true
		}
	}
	return false
}

// ApprovalBuilder serializes policy approvals as JSON. A real deployment
// would build a chain transaction here; localseal only needs a payload the
// engine can parse back.
type ApprovalBuilder struct{}

// BuildApproval serializes an approval covering the given identities.
func (ApprovalBuilder) BuildApproval(ctx context.Context, packageID string, module sealbox.PolicyModule, args sealbox.PolicyArgs, identities []string) ([]byte, error) {
	if len(identities) == 0 {
		return nil, fmt.Errorf("approval must cover at least one identity")
	}
	approval := Approval{
		PackageID:   packageID,
		Module:      string(module),
		TimestampMs: args.TimestampMs,
		ClockObject: args.ClockObject,
		Identities:  identities,
	}
	return json.Marshal(approval)
}

func parseApproval(data []byte) (*Approval, error) {
	var approval Approval
	if err := json.Unmarshal(data, &approval); err != nil {
		return nil, fmt.Errorf("parse approval: %w", err)
	}
	return &approval, nil
}
