// pkg/tools/requirements.go
package tools

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

// Requirement names one external tool a scan needs before it may run.
// MinVersion, when set, is a semver constraint (e.g. ">= 3.19") checked
// against the version recorded in the snapshot; when empty, presence of the
// tool is enough.
type Requirement struct {
	Tool       string
	MinVersion string
}

// Require is shorthand for a list of presence-only requirements.
func Require(names ...string) []Requirement {
	reqs := make([]Requirement, 0, len(names))
	for _, name := range names {
		reqs = append(reqs, Requirement{Tool: name})
	}
	return reqs
}

// RequirementError is the fatal precondition failure raised when a directly
// invoked scan is missing one of its tools. The operator needs both names to
// know what to install and re-run.
type RequirementError struct {
	Tool string
	Scan string
	// Reason distinguishes "not installed" from "version too old".
	Reason string
}

func (e *RequirementError) Error() string {
	return color.New(color.FgHiRed).Sprintf(
		"[!!] %s is %s, and is required to run %s", e.Tool, e.Reason, e.Scan)
}

// MeetsRequirements checks every requirement against the loaded tool state.
//
// The same function backs both gating call sites so the policy cannot drift:
// discovery prunes capabilities with raiseOnFailure=false and gets a boolean,
// while execution guards with raiseOnFailure=true and gets a
// *RequirementError naming the missing tool and the requesting scan on the
// first unmet requirement. Checking short-circuits either way.
func (s *State) MeetsRequirements(scan string, reqs []Requirement, raiseOnFailure bool) (bool, error) {
	for _, req := range reqs {
		info := s.Get(req.Tool)

		if !info.Installed {
			if raiseOnFailure {
				return false, &RequirementError{Tool: req.Tool, Scan: scan, Reason: "not installed"}
			}
			return false, nil
		}

		if req.MinVersion == "" {
			continue
		}
		ok, err := versionSatisfies(info.Version, req.MinVersion)
		if err != nil {
			// An unparseable recorded version is an installer defect, not an
			// operator one. Log and treat presence as sufficient.
			log.Warn().Err(err).Str("tool", req.Tool).Str("version", info.Version).
				Msg("cannot compare tool version, accepting installed tool")
			continue
		}
		if !ok {
			if raiseOnFailure {
				return false, &RequirementError{
					Tool: req.Tool, Scan: scan,
					Reason: fmt.Sprintf("installed at %s (need %s)", info.Version, req.MinVersion),
				}
			}
			return false, nil
		}
	}
	return true, nil
}

func versionSatisfies(version, constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("parse constraint %q: %w", constraint, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", version, err)
	}
	return c.Check(v), nil
}
