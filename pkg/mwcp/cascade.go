package mwcp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// urlRE matches scheme://host[:port][/path] loosely enough for the URLs
// malware actually embeds. The host group tolerates bracketed IPv6.
var urlRE = regexp.MustCompile(`[a-z\.-]{1,40}://(\[?[^/]+\]?)(/[^?]+)?`)

var portDigitsRE = regexp.MustCompile(`^[0-9]{1,5}$`)

// pair is one pending record operation in the cascade worklist.
type pair struct {
	key   string
	value any
}

// cascade applies subfield derivation rules on top of a Store. Reporting
// one compound value fans out into its component fields: a filepath yields
// its filename and directory, a URL yields its socket address, and so on.
// Derivations are processed breadth-first off a worklist; each derived
// value passes through the same validation and dedup as a direct report.
type cascade struct {
	store   *Store
	enabled bool
}

// Record stores key/value plus everything derivable from it. The returned
// outcome describes the directly reported value only; derived values
// succeed or fail independently.
func (c *cascade) Record(key string, value any) Outcome {
	queue := []pair{{key, value}}
	overall := OutcomeDropped
	first := true

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		items := c.store.Add(p.key, p.value)
		if first {
			overall = combineOutcomes(items)
			first = false
		}
		if !c.enabled {
			continue
		}
		for _, it := range items {
			if it.Outcome == OutcomeDropped {
				continue
			}
			// Duplicates still derive: the compound value may repeat while
			// a component field it implies has not been seen yet.
			queue = append(queue, c.derive(it)...)
		}
	}
	return overall
}

// derive returns the record operations implied by one stored item.
func (c *cascade) derive(it Item) []pair {
	switch it.Field {
	case "filepath":
		return c.deriveFilepath(it.Value)
	case "c2_url":
		out := []pair{{"url", it.Value}}
		return append(out, c.deriveURL(it.Value, true)...)
	case "url":
		return c.deriveURL(it.Value, false)
	case "c2_address":
		return []pair{{"address", it.Value}}
	case "c2_socketaddress":
		return c.deriveC2SocketAddress(it.Tuple)
	case "socketaddress":
		return c.deriveSocketAddress(it.Tuple)
	case "credential":
		return c.deriveCredential(it.Tuple)
	case "port", "listenport":
		c.checkPort(it.Field, it.Tuple)
		return nil
	case "registrypathdata":
		return c.derivePair(it.Field, it.Tuple, "registrypath", "registrydata")
	case "service":
		return c.deriveService(it.Tuple)
	case "serviceimage":
		// Strip arguments commonly appended after the executable path.
		if idx := strings.Index(strings.ToLower(it.Value), ".exe"); idx >= 0 {
			return []pair{{"filepath", it.Value[:idx+4]}}
		}
		return nil
	case "servicedll":
		return []pair{{"filepath", it.Value}}
	default:
		return nil
	}
}

func (c *cascade) deriveFilepath(path string) []pair {
	dir, base := ntSplit(path)
	var out []pair
	if base != "" {
		out = append(out, pair{"filename", base})
	}
	if dir != "" {
		out = append(out, pair{"directory", dir})
	}
	return out
}

// deriveURL parses a URL into its endpoint and path components. The c2
// flag routes the endpoint through the c2_ variants, preserving the
// one-way relationship: a c2_url implies c2 infrastructure, a bare url
// does not.
func (c *cascade) deriveURL(value string, c2 bool) []pair {
	match := urlRE.FindStringSubmatch(value)
	if match == nil {
		c.store.AddDebug(fmt.Sprintf("Error parsing as url: %s", value))
		return nil
	}

	var out []pair
	if path := match[2]; path != "" {
		out = append(out, pair{"urlpath", path})
	}

	host, port := splitHostPort(match[1])
	if host == "" {
		return out
	}
	sockField, addrField := "socketaddress", "address"
	if c2 {
		sockField, addrField = "c2_socketaddress", "c2_address"
	}
	if port != "" {
		out = append(out, pair{sockField, []string{host, port, "tcp"}})
	} else {
		out = append(out, pair{addrField, host})
	}
	return out
}

// splitHostPort separates the authority component of a URL. Bracketed
// IPv6 literals split on the closing bracket; everything else splits on
// the last colon.
func splitHostPort(authority string) (host, port string) {
	if strings.HasPrefix(authority, "[") {
		end := strings.Index(authority, "]")
		if end < 0 {
			return strings.TrimPrefix(authority, "["), ""
		}
		host = authority[1:end]
		rest := authority[end+1:]
		if strings.HasPrefix(rest, ":") {
			port = rest[1:]
		}
		return host, port
	}
	if i := strings.LastIndex(authority, ":"); i >= 0 {
		return authority[:i], authority[i+1:]
	}
	return authority, ""
}

func (c *cascade) deriveC2SocketAddress(tuple []string) []pair {
	out := []pair{{"socketaddress", tuple}}
	if len(tuple) > 0 && tuple[0] != "" {
		out = append(out, pair{"c2_address", tuple[0]})
	}
	return out
}

func (c *cascade) deriveSocketAddress(tuple []string) []pair {
	if len(tuple) != 3 {
		c.store.AddDebug(fmt.Sprintf("Expected three elements in socketaddress, got %d", len(tuple)))
	}
	var out []pair
	if len(tuple) > 0 && tuple[0] != "" {
		out = append(out, pair{"address", tuple[0]})
	}
	if len(tuple) >= 3 {
		out = append(out, pair{"port", []string{tuple[1], tuple[2]}})
	}
	return out
}

func (c *cascade) deriveCredential(tuple []string) []pair {
	if len(tuple) != 2 {
		c.store.AddDebug(fmt.Sprintf("Expected two elements in credential, got %d", len(tuple)))
	}
	var out []pair
	if len(tuple) > 0 && tuple[0] != "" {
		out = append(out, pair{"username", tuple[0]})
	}
	if len(tuple) > 1 && tuple[1] != "" {
		out = append(out, pair{"password", tuple[1]})
	}
	return out
}

// checkPort validates a (number, protocol) tuple after it is stored. The
// value stays recorded either way; the checks only annotate the debug
// trace so analysts can spot parser bugs.
func (c *cascade) checkPort(field string, tuple []string) {
	if len(tuple) != 2 {
		c.store.AddDebug(fmt.Sprintf("Expected two elements in %s, got %d", field, len(tuple)))
		return
	}
	num, proto := tuple[0], tuple[1]
	if !portDigitsRE.MatchString(num) {
		c.store.AddDebug(fmt.Sprintf("Expected port to be a number between 0 and 65535: %s", num))
	} else if n, err := strconv.Atoi(num); err != nil || n > 65535 {
		c.store.AddDebug(fmt.Sprintf("Expected port to be a number between 0 and 65535: %s", num))
	}
	switch strings.ToLower(proto) {
	case "tcp", "udp", "icmp":
	default:
		c.store.AddDebug(fmt.Sprintf("Expected port protocol to be tcp, udp, or icmp: %s", proto))
	}
}

func (c *cascade) derivePair(field string, tuple []string, firstField, secondField string) []pair {
	if len(tuple) != 2 {
		c.store.AddDebug(fmt.Sprintf("Expected two elements in %s, got %d", field, len(tuple)))
	}
	var out []pair
	if len(tuple) > 0 && tuple[0] != "" {
		out = append(out, pair{firstField, tuple[0]})
	}
	if len(tuple) > 1 && tuple[1] != "" {
		out = append(out, pair{secondField, tuple[1]})
	}
	return out
}

var servicePositionFields = []string{
	"servicename", "servicedisplayname", "servicedescription", "serviceimage", "servicedll",
}

func (c *cascade) deriveService(tuple []string) []pair {
	if len(tuple) != len(servicePositionFields) {
		c.store.AddDebug(fmt.Sprintf("Expected %d elements in service, got %d", len(servicePositionFields), len(tuple)))
	}
	var out []pair
	for i, field := range servicePositionFields {
		if i < len(tuple) && tuple[i] != "" {
			out = append(out, pair{field, tuple[i]})
		}
	}
	return out
}

// combineOutcomes folds per-value outcomes into one summary: any accept
// wins, then any duplicate, then dropped.
func combineOutcomes(items []Item) Outcome {
	out := OutcomeDropped
	for _, it := range items {
		switch it.Outcome {
		case OutcomeAccepted:
			return OutcomeAccepted
		case OutcomeDuplicate:
			out = OutcomeDuplicate
		}
	}
	return out
}

// ntSplit splits a path on its last separator, accepting both Windows and
// POSIX separators since reported paths come from inside samples, not from
// the analysis host. Drive roots keep their trailing separator so
// "C:\evil.exe" yields directory "C:\".
func ntSplit(path string) (dir, base string) {
	i := strings.LastIndexAny(path, `\/`)
	if i < 0 {
		return "", path
	}
	head, tail := path[:i+1], path[i+1:]
	trimmed := strings.TrimRight(head, `\/`)
	if trimmed != "" && !strings.HasSuffix(trimmed, ":") {
		head = trimmed
	}
	return head, tail
}
