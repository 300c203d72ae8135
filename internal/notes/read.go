package notes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/twistedatrocity/swgaide/internal/classes"
	"github.com/twistedatrocity/swgaide/internal/models"
)

// LineError is a recoverable problem with one resource line.
type LineError struct {
	// Line is the 1-based line number in the document.
	Line int
	Text string
	Msg  string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// Action is the caller's answer to a LineError.
type Action int

const (
	// Abort stops the read; nothing further is parsed.
	Abort Action = iota
	// Edit re-parses a replacement text for the same line.
	Edit
	// Skip discards the line and continues with the next one.
	Skip
)

func (a Action) String() string {
	switch a {
	case Edit:
		return "edit"
	case Skip:
		return "skip"
	default:
		return "abort"
	}
}

// Decision answers a LineError.
type Decision struct {
	Action      Action
	Replacement string
}

// Resolver supplies decisions during an interactive read. Calls block until
// the user has answered.
type Resolver interface {
	ResolveLine(ctx context.Context, lerr *LineError) (Decision, error)
	ConfirmStale(ctx context.Context, subject string, age time.Duration) (bool, error)
}

// ReadOptions configures a read.
type ReadOptions struct {
	Mode Mode
	// Galaxy restricts the read to headers of this galaxy when set.
	Galaxy string
	// MaxAge is the staleness threshold of the document; zero disables the check.
	MaxAge time.Duration
	Now    time.Time
}

// ReadResult summarizes a read.
type ReadResult struct {
	// Matched lists wrappers named by a valid line, in document order.
	Matched []*models.Wrapper
	// Augmented counts lines that carried stats.
	Augmented int
	// Skipped lists lines the user discarded.
	Skipped []*LineError
	Aborted bool
}

// Unrecovered returns the number of lines that could not be applied.
func (r *ReadResult) Unrecovered() int { return len(r.Skipped) }

// Read parses text without interaction: malformed lines are skipped and
// returned, a stale document fails with ErrStaleArtifact.
func (c *Codec) Read(text string, wrappers []*models.Wrapper, opts ReadOptions) (*ReadResult, []*LineError, error) {
	res, err := c.ReadInteractive(context.Background(), text, wrappers, opts, skipAll{})
	if err != nil {
		return res, nil, err
	}
	return res, res.Skipped, nil
}

type skipAll struct{}

func (skipAll) ResolveLine(context.Context, *LineError) (Decision, error) {
	return Decision{Action: Skip}, nil
}

func (skipAll) ConfirmStale(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}

// ReadInteractive parses text and writes the stats it finds into the drafts
// of wrappers. Every malformed line is handed to r; lines parsed before an
// abort keep their updates.
func (c *Codec) ReadInteractive(ctx context.Context, text string, wrappers []*models.Wrapper, opts ReadOptions, r Resolver) (*ReadResult, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	index := make(map[string]*models.Wrapper, len(wrappers))
	for _, w := range wrappers {
		if _, dup := index[w.Name()]; !dup {
			index[w.Name()] = w
		}
	}

	var spans [][2]int
	var newest Header
	switch opts.Mode {
	case PerPlanet:
		headers := c.findHeaders(lines, opts.Galaxy, func(h Header) bool {
			_, ok := models.ParsePlanet(h.Token)
			return ok
		})
		if len(headers) == 0 {
			return nil, ErrHeaderNotFound
		}
		newest = headers[0]
		for _, h := range headers[1:] {
			if h.Epoch > newest.Epoch {
				newest = h
			}
		}
		// Blocks appended by older write cycles carry an older epoch and
		// are left alone.
		for i, h := range headers {
			if h.Epoch != newest.Epoch {
				continue
			}
			end := len(lines)
			if i+1 < len(headers) {
				end = headers[i+1].Line - 1
			}
			if s, ok := c.bracket(lines, h.Line, end); ok {
				spans = append(spans, s)
			}
		}
	default:
		headers := c.findHeaders(lines, opts.Galaxy, func(h Header) bool {
			return strings.EqualFold(h.Token, ContinuousToken)
		})
		if len(headers) == 0 {
			return nil, ErrHeaderNotFound
		}
		newest = headers[len(headers)-1]
		spans = append(spans, [2]int{newest.Line, len(lines)})
	}

	if opts.MaxAge > 0 {
		if age := now.Sub(newest.Time()); age > opts.MaxAge {
			ok, err := r.ConfirmStale(ctx, "notes document", age)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrStaleArtifact
			}
			c.log.Warn().Dur("age", age).Msg("reading stale notes document")
		}
	}

	res := &ReadResult{}
	for _, span := range spans {
		for i := span[0]; i < span[1]; i++ {
			raw := strings.TrimSpace(lines[i])
			if raw == "" || isComment(raw) || raw == BlockStart || raw == BlockEnd {
				continue
			}
			if err := c.resolveLine(ctx, i+1, raw, index, res, r); err != nil {
				return res, err
			}
		}
	}

	c.log.Info().
		Int("matched", len(res.Matched)).
		Int("augmented", res.Augmented).
		Int("skipped", len(res.Skipped)).
		Msg("notes read")
	return res, nil
}

// resolveLine parses one line, looping on Edit decisions.
func (c *Codec) resolveLine(ctx context.Context, lineNo int, text string, index map[string]*models.Wrapper, res *ReadResult, r Resolver) error {
	for {
		w, stats, msg := c.parseLine(text, index)
		if msg == "" {
			if stats != nil {
				w.Resource.Stats = *stats
				res.Augmented++
			}
			res.Matched = append(res.Matched, w)
			return nil
		}

		lerr := &LineError{Line: lineNo, Text: text, Msg: msg}
		d, err := r.ResolveLine(ctx, lerr)
		if err != nil {
			return err
		}
		switch d.Action {
		case Edit:
			text = strings.TrimSpace(d.Replacement)
			if text == "" {
				res.Skipped = append(res.Skipped, lerr)
				return nil
			}
		case Skip:
			c.log.Warn().Int("line", lineNo).Str("reason", msg).Msg("notes line skipped")
			res.Skipped = append(res.Skipped, lerr)
			return nil
		default:
			res.Aborted = true
			return ErrAborted
		}
	}
}

// findHeaders returns matching headers in document order.
func (c *Codec) findHeaders(lines []string, galaxy string, match func(Header) bool) []Header {
	var out []Header
	for i, l := range lines {
		h, ok := ParseHeader(l)
		if !ok || !match(h) {
			continue
		}
		if galaxy != "" && !strings.EqualFold(h.Galaxy, galaxy) {
			c.log.Debug().Str("galaxy", h.Galaxy).Int("line", i+1).Msg("header for another galaxy ignored")
			continue
		}
		h.Line = i + 1
		out = append(out, h)
	}
	return out
}

// bracket locates the start/end sentinels between a header at line (1-based)
// and end (exclusive index). An unterminated block runs to end.
func (c *Codec) bracket(lines []string, line, end int) ([2]int, bool) {
	start := -1
	for i := line; i < end; i++ {
		t := strings.TrimSpace(lines[i])
		if start < 0 {
			if t == BlockStart {
				start = i + 1
			}
			continue
		}
		if t == BlockEnd {
			return [2]int{start, i}, true
		}
	}
	if start < 0 {
		c.log.Warn().Int("line", line).Msg("planet header without " + BlockStart)
		return [2]int{}, false
	}
	c.log.Warn().Int("line", line).Msg("block without " + BlockEnd)
	return [2]int{start, end}, true
}

var statTag = fmt.Sprintf("min=%d,max=%d", classes.MinStat, classes.MaxStat)

// parseLine parses "name, class[, stats...]". It returns an error message
// instead of an error so callers can wrap it with line context.
func (c *Codec) parseLine(text string, index map[string]*models.Wrapper) (*models.Wrapper, *models.StatBlock, string) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), DuplicateMark))
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	for len(parts) > 2 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil, "expected \"name, class[, stats]\""
	}

	w, ok := index[parts[0]]
	if !ok {
		return nil, nil, fmt.Sprintf("unknown resource %q", parts[0])
	}
	if !strings.EqualFold(parts[1], w.Class()) {
		return nil, nil, fmt.Sprintf("class %q does not match %q", parts[1], w.Class())
	}

	values := parts[2:]
	if len(values) == 0 {
		return w, nil, ""
	}
	order, err := c.tree.StatOrder(w.Class())
	if err != nil {
		return nil, nil, err.Error()
	}
	if len(values) != len(order) {
		return nil, nil, fmt.Sprintf("%s takes %d stats (%s), got %d", w.Class(), len(order), statList(order), len(values))
	}

	var block models.StatBlock
	for i, s := range order {
		v, err := strconv.Atoi(values[i])
		if err != nil {
			return nil, nil, fmt.Sprintf("%s: %q is not a number", s, values[i])
		}
		if err := c.validate.Var(v, statTag); err != nil {
			return nil, nil, fmt.Sprintf("%s: %d is outside %d..%d", s, v, classes.MinStat, classes.MaxStat)
		}
		block[s] = v
	}
	return w, &block, ""
}

func statList(order []models.Stat) string {
	names := make([]string, len(order))
	for i, s := range order {
		names[i] = s.String()
	}
	return strings.Join(names, " ")
}
