package navagent

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// OTPFetcher retrieves the current one-time-passcode, e.g. by polling a
// mailbox. Grounded on the original's GmailOTPClientAsync.get_otp_code,
// generalized to an interface so navagent doesn't depend on a specific
// mail provider.
type OTPFetcher interface {
	GetCode(ctx context.Context) (string, error)
}

// digitFieldTarget matches a per-digit OTP box target like "{_3}".
var digitFieldTarget = regexp.MustCompile(`^\{_(\d+)\}$`)

type digitStep struct {
	digitIndex int
	stepIndex  int
}

// ApplyOTP scans steps for OTP fill targets — either a step whose Value
// is the literal "OTP" (the whole code goes in one field) or a
// per-digit sequence of fields named "{_1}", "{_2}", ... with Value
// "*" — fetches the code once if any such target is found, and fills
// it in. It returns the number of steps updated; 0 means no OTP-related
// targets were present, not an error, so the caller proceeds with steps
// unchanged.
func ApplyOTP(ctx context.Context, fetcher OTPFetcher, steps []models.LLMStep) (int, error) {
	var otpFillIndices []int
	var digitSteps []digitStep

	for i, step := range steps {
		if step.Action != models.ActionFill {
			continue
		}
		if step.Value == "OTP" {
			otpFillIndices = append(otpFillIndices, i)
			continue
		}
		if m := digitFieldTarget.FindStringSubmatch(step.Target); m != nil && step.Value == "*" {
			var digitIndex int
			fmt.Sscanf(m[1], "%d", &digitIndex)
			digitSteps = append(digitSteps, digitStep{digitIndex: digitIndex, stepIndex: i})
		}
	}

	if len(otpFillIndices) == 0 && len(digitSteps) == 0 {
		return 0, nil
	}

	code, err := fetcher.GetCode(ctx)
	if err != nil {
		return 0, fmt.Errorf("navagent: fetch otp code: %w", err)
	}
	if code == "" {
		return 0, fmt.Errorf("navagent: no otp code available")
	}

	replacements := 0
	for _, idx := range otpFillIndices {
		steps[idx].Value = code
		replacements++
	}

	if len(digitSteps) > 0 {
		sort.Slice(digitSteps, func(i, j int) bool { return digitSteps[i].digitIndex < digitSteps[j].digitIndex })
		sequential := true
		for i, d := range digitSteps {
			if d.digitIndex != i+1 {
				sequential = false
				break
			}
		}
		if sequential && len(code) == len(digitSteps) {
			for i, d := range digitSteps {
				if steps[d.stepIndex].Value == "*" {
					steps[d.stepIndex].Value = string(code[i])
					replacements++
				}
			}
		}
	}

	return replacements, nil
}
