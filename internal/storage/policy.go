package storage

import "strings"

// Policy bounds what a single bucket accepts per operation.
type Policy struct {
	MaxFileBytes int64
	MaxFiles     int
	allowed      map[string]struct{}
}

// NewPolicy builds a bucket policy from an allowed MIME type list.
func NewPolicy(maxFileBytes int64, maxFiles int, allowedTypes []string) Policy {
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			allowed[t] = struct{}{}
		}
	}
	return Policy{
		MaxFileBytes: maxFileBytes,
		MaxFiles:     maxFiles,
		allowed:      allowed,
	}
}

// AllowsType checks a content type against the allow-list, ignoring
// media type parameters such as charset.
func (p Policy) AllowsType(contentType string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	_, ok := p.allowed[mediaType]
	return ok
}
