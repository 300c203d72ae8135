// Package notes writes the user-editable notes document and reads edited
// documents back into resource drafts.
//
// Two layouts exist. Continuous:
//
//	<galaxy> / CONTINUOUS-LIST / <epoch-seconds>
//	<name>, <class>
//	...
//
// Per planet, repeated for each planet with eligible resources:
//
//	<galaxy> / <planet> / <epoch-seconds>
//	swgcraft_start
//	<name>, <class>
//	<name>, <class> **
//	swgcraft_end
//
// Edited resource lines may carry stats: "<name>, <class>, <s1>, <s2>, ..."
// in the positional order the class defines.
package notes

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Contractual tokens; hand-edited files depend on them.
const (
	ContinuousToken = "CONTINUOUS-LIST"
	BlockStart      = "swgcraft_start"
	BlockEnd        = "swgcraft_end"
	DuplicateMark   = "**"
	CommentPrefix   = "#"
)

var (
	// ErrHeaderNotFound is returned when no usable header line exists.
	ErrHeaderNotFound = errors.New("notes header not found")
	// ErrStaleArtifact is returned when the document is too old and staleness was not accepted.
	ErrStaleArtifact = errors.New("notes document is stale")
	// ErrAborted is returned when the user aborts a read.
	ErrAborted = errors.New("notes read aborted")
)

// Mode selects the document layout.
type Mode int

const (
	Continuous Mode = iota
	PerPlanet
)

func (m Mode) String() string {
	if m == PerPlanet {
		return "per-planet"
	}
	return "continuous"
}

// ParseMode parses "continuous" or "per-planet".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continuous", "":
		return Continuous, nil
	case "per-planet", "planet", "planets":
		return PerPlanet, nil
	}
	return Continuous, fmt.Errorf("unknown notes mode %q", s)
}

// DedupPolicy decides what happens to a resource already written to an
// earlier planet block of the same document.
type DedupPolicy int

const (
	// DedupSkip omits the repeated resource.
	DedupSkip DedupPolicy = iota
	// DedupMark moves it to the end of the block with a trailing "**".
	DedupMark
)

func (p DedupPolicy) String() string {
	if p == DedupMark {
		return "mark"
	}
	return "skip"
}

// ParseDedupPolicy parses "skip" or "mark".
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip", "":
		return DedupSkip, nil
	case "mark":
		return DedupMark, nil
	}
	return DedupSkip, fmt.Errorf("unknown dedup policy %q", s)
}

// Header is a parsed "<token> / <token> / <epoch>" line.
type Header struct {
	Galaxy string
	Token  string
	Epoch  int64
	// Line is the 1-based line number of the header.
	Line int
}

// Time returns the header epoch as a time.
func (h Header) Time() time.Time { return time.Unix(h.Epoch, 0) }

func (h Header) String() string {
	return fmt.Sprintf("%s / %s / %d", h.Galaxy, h.Token, h.Epoch)
}

var headerRE = regexp.MustCompile(`^([^/,]+?)\s*/\s*([^/,]+?)\s*/\s*(\d+)$`)

// ParseHeader parses a header line.
func ParseHeader(line string) (Header, bool) {
	m := headerRE.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Header{}, false
	}
	epoch, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return Header{}, false
	}
	return Header{Galaxy: strings.TrimSpace(m[1]), Token: strings.TrimSpace(m[2]), Epoch: epoch}, true
}

func isComment(line string) bool {
	return strings.HasPrefix(line, CommentPrefix) || strings.HasPrefix(line, "//")
}

var helpFooter = []string{
	"# Add stats after the class, in the order the class defines, e.g.",
	"#   Oakwood, Hard Wood, 512, 733, 901, 640, 322",
	"# Lines starting with # are ignored. Lines ending with ** repeat a",
	"# resource already listed for an earlier planet.",
}
