package rbac

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/nebari-dev/accessd/internal/models"
)

// MatchMode selects how a request endpoint is mapped to a Resource.
type MatchMode string

const (
	// MatchContains picks resources whose endpoint contains the request
	// endpoint. Exact match wins, then the shortest endpoint.
	MatchContains MatchMode = "contains"
	// MatchPrefix picks resources whose endpoint is a prefix of the request
	// endpoint. The longest endpoint wins.
	MatchPrefix MatchMode = "prefix"
)

// ParseMatchMode validates a configured match mode. Empty means contains.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(s)) {
	case "", MatchContains:
		return MatchContains, nil
	case MatchPrefix:
		return MatchPrefix, nil
	default:
		return "", fmt.Errorf("invalid match mode %q (supported: contains, prefix)", s)
	}
}

// ActionCode maps an HTTP method to an action code. Unknown methods are
// treated as reads.
func ActionCode(method string) string {
	switch strings.ToUpper(method) {
	case http.MethodPost:
		return models.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return models.ActionEdit
	case http.MethodDelete:
		return models.ActionDelete
	default:
		return models.ActionView
	}
}

type endpointEntry struct {
	resource models.Resource
	lower    string
}

// matchResource returns the resource selected for endpoint, or false when
// none qualifies. Remaining ties go to the lowest ID; entries are sorted by
// ID so the first candidate found wins.
func matchResource(entries []endpointEntry, endpoint string, mode MatchMode) (*models.Resource, bool) {
	target := strings.ToLower(endpoint)
	if target == "" {
		return nil, false
	}

	var best *endpointEntry
	for i := range entries {
		e := &entries[i]
		switch mode {
		case MatchPrefix:
			if !strings.HasPrefix(target, e.lower) || e.lower == "" {
				continue
			}
			if best == nil || len(e.lower) > len(best.lower) {
				best = e
			}
		default:
			if !strings.Contains(e.lower, target) {
				continue
			}
			if best == nil || betterContains(e, best, target) {
				best = e
			}
		}
	}
	if best == nil {
		return nil, false
	}
	r := best.resource
	return &r, true
}

func betterContains(candidate, current *endpointEntry, target string) bool {
	candExact, curExact := candidate.lower == target, current.lower == target
	if candExact != curExact {
		return candExact
	}
	return len(candidate.lower) < len(current.lower)
}
