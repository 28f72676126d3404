package announce

import "strings"

type Router struct{}

func (r Router) MatchTargets(targets []Target, s Summary) []Target {
	if len(targets) == 0 {
		return nil
	}
	out := make([]Target, 0, len(targets))
	for _, target := range targets {
		if !target.Enabled {
			continue
		}
		if !scopeMatches(target, s) {
			continue
		}
		if !statusAllowed(target.StatusAllowlist, s.Status) {
			continue
		}
		out = append(out, target)
	}
	return out
}

func scopeMatches(target Target, s Summary) bool {
	switch target.ScopeType {
	case "all":
		return true
	case "tenant":
		return target.ScopeValue != "" && target.ScopeValue == s.TenantID
	default:
		return false
	}
}

func statusAllowed(allowlist []string, status string) bool {
	if len(allowlist) == 0 {
		return true
	}
	status = strings.ToLower(strings.TrimSpace(status))
	for _, v := range allowlist {
		if v != "" && strings.ToLower(strings.TrimSpace(v)) == status {
			return true
		}
	}
	return false
}
