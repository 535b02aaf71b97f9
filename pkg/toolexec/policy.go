package toolexec

// Policy defines which tools a run may use
type Policy struct {
	Allow []string `json:"allow"` // allowed tool names (* for all)
	Deny  []string `json:"deny"`  // denied tool names (overrides allow)
}

// IsAllowed checks if a tool is allowed by the policy
func (p *Policy) IsAllowed(toolName string) bool {
	if p == nil {
		// No policy means allow all
		return true
	}

	// Deny list overrides allow list
	for _, denied := range p.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	for _, allowed := range p.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	// No explicit allow means deny
	return false
}
