package sealbox

import (
	"context"
	"fmt"
)

// PolicyModule names the on-chain access-control module gating decryption.
// Empty means no policy approval is attached to the call.
type PolicyModule string

const (
	// PolicyModuleNone attaches no approval payload.
	PolicyModuleNone PolicyModule = ""

	// PolicyModuleOpenAccess is the time-bounded open-access module: anyone
	// may decrypt until a deadline, checked against an on-chain clock.
	PolicyModuleOpenAccess PolicyModule = "open_access"

	// PolicyModuleAllowlist gates decryption on membership of the caller's
	// address in an on-chain allowlist.
	PolicyModuleAllowlist PolicyModule = "allowlist"
)

// Plausible bounds on policy timestamps, in Unix milliseconds. Anything
// outside [2000-01-01, 2100-01-01) is a unit mistake (seconds or
// microseconds passed as milliseconds) and fails fast instead of silently
// producing a policy that is always or never satisfied.
const (
	minPolicyTimestampMs = 946684800000
	maxPolicyTimestampMs = 4102444800000
)

// PolicyArgs carries the per-module arguments of a policy approval.
// Which fields are required depends on the module.
type PolicyArgs struct {
	// TimestampMs is the open-access deadline in Unix milliseconds.
	TimestampMs int64

	// ClockObject references the on-chain clock the deadline is checked
	// against.
	ClockObject string
}

// validatePolicyArgs checks module-specific argument requirements before
// any network or crypto work begins.
func validatePolicyArgs(module PolicyModule, args PolicyArgs) error {
	switch module {
	case PolicyModuleNone:
		return nil
	case PolicyModuleOpenAccess:
		if args.TimestampMs < minPolicyTimestampMs || args.TimestampMs >= maxPolicyTimestampMs {
			return fmt.Errorf("%w: timestamp %d ms outside plausible range [%d, %d)",
				ErrInvalidPolicyArgs, args.TimestampMs, minPolicyTimestampMs, maxPolicyTimestampMs)
		}
		if args.ClockObject == "" {
			return fmt.Errorf("%w: open_access requires a clock object reference", ErrInvalidPolicyArgs)
		}
		return nil
	case PolicyModuleAllowlist:
		return nil
	default:
		return fmt.Errorf("%w: unknown policy module %q", ErrInvalidPolicyArgs, module)
	}
}

// buildApproval validates the policy arguments and produces the serialized
// approval payload. A nil payload with nil error means no module was named
// and no approval travels with the call.
func (c *Client) buildApproval(ctx context.Context, packageID string, module PolicyModule, args PolicyArgs, identities []string) ([]byte, error) {
	if module == PolicyModuleNone {
		return nil, nil
	}
	if err := validatePolicyArgs(module, args); err != nil {
		return nil, err
	}
	approval, err := c.txBuilder.BuildApproval(ctx, packageID, module, args, identities)
	if err != nil {
		return nil, fmt.Errorf("build approval transaction: %w", err)
	}
	return approval, nil
}
