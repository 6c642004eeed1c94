package publish

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultKey names the default comment identity.
const DefaultKey = "pr-risk-analysis"

// Marker returns the hidden HTML comment identifying the analysis comment
// for key. It is stable across runs and versions.
func Marker(key string) string {
	sum := sha256.Sum256([]byte("prrisk/" + key))
	return fmt.Sprintf("<!-- prrisk:%s -->", hex.EncodeToString(sum[:8]))
}

// Stamp identifies the run that produced a comment body.
type Stamp struct {
	GeneratedAt time.Time
	HeadSHA     string
}

var (
	stampRe     = regexp.MustCompile(`<!-- prrisk-stamp generated=(\S+) head=(\S*) -->`)
	stampLineRe = regexp.MustCompile(`^<!-- prrisk-stamp generated=\S+ head=\S* -->$`)
)

func (s Stamp) String() string {
	return fmt.Sprintf("<!-- prrisk-stamp generated=%s head=%s -->",
		s.GeneratedAt.UTC().Format(time.RFC3339Nano), s.HeadSHA)
}

// ParseStamp extracts the stamp from a comment body.
func ParseStamp(body string) (Stamp, bool) {
	m := stampRe.FindStringSubmatch(body)
	if m == nil {
		return Stamp{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, m[1])
	if err != nil {
		return Stamp{}, false
	}
	return Stamp{GeneratedAt: t, HeadSHA: m[2]}, true
}

// Newer reports whether s was generated after other.
func (s Stamp) Newer(other Stamp) bool {
	return s.GeneratedAt.After(other.GeneratedAt)
}

// owned reports whether body ends with marker followed by a stamp.
func owned(body, marker string) bool {
	body = strings.TrimRight(body, "\r\n")
	i := strings.LastIndex(body, marker)
	if i < 0 {
		return false
	}
	return stampLineRe.MatchString(strings.TrimSpace(body[i+len(marker):]))
}

// compose appends the marker and stamp to a rendered body.
func compose(body, marker string, stamp Stamp) string {
	return strings.TrimRight(body, "\n") + "\n\n" + marker + "\n" + stamp.String() + "\n"
}
