package notes

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/twistedatrocity/swgaide/internal/classes"
	"github.com/twistedatrocity/swgaide/internal/models"
)

// Codec writes and reads notes documents.
type Codec struct {
	tree     *classes.Tree
	validate *validator.Validate
	log      zerolog.Logger
}

// New creates a codec using tree for blacklists and stat ordering.
func New(tree *classes.Tree, log zerolog.Logger) *Codec {
	return &Codec{
		tree:     tree,
		validate: validator.New(),
		log:      log.With().Str("component", "notes").Logger(),
	}
}

// WriteOptions configures Write.
type WriteOptions struct {
	Mode   Mode
	Galaxy string
	// Blacklist lists classes whose resources, and those of every descendant class, are left out.
	Blacklist []string
	Dedup     DedupPolicy
	Footer    bool
	Now       time.Time
}

// Write renders resources, in the given order, as a notes document.
func (c *Codec) Write(resources []*models.Wrapper, opts WriteOptions) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	eligible := make([]*models.Wrapper, 0, len(resources))
	for _, w := range resources {
		if c.tree.UnderAny(w.Class(), opts.Blacklist) {
			continue
		}
		eligible = append(eligible, w)
	}

	var b strings.Builder
	switch opts.Mode {
	case PerPlanet:
		c.writePlanets(&b, eligible, opts, now)
	default:
		fmt.Fprintf(&b, "%s / %s / %d\n", opts.Galaxy, ContinuousToken, now.Unix())
		for _, w := range eligible {
			b.WriteString(resourceLine(w))
			b.WriteByte('\n')
		}
	}

	if opts.Footer {
		b.WriteByte('\n')
		for _, l := range helpFooter {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}

	c.log.Debug().Str("mode", opts.Mode.String()).Int("resources", len(eligible)).Msg("notes written")
	return b.String()
}

func (c *Codec) writePlanets(b *strings.Builder, eligible []*models.Wrapper, opts WriteOptions, now time.Time) {
	for _, w := range eligible {
		w.Written = false
	}
	defer func() {
		for _, w := range eligible {
			w.Written = false
		}
	}()

	for _, p := range models.Planets() {
		var lines, deferred []string
		for _, w := range eligible {
			if !w.Resource.Availability.Has(p) {
				continue
			}
			if !w.Written {
				w.Written = true
				lines = append(lines, resourceLine(w))
				continue
			}
			if opts.Dedup == DedupMark {
				deferred = append(deferred, resourceLine(w)+" "+DuplicateMark)
			}
		}
		// A planet whose resources were all written under earlier planets
		// gets no block.
		if len(lines) == 0 && len(deferred) == 0 {
			continue
		}

		fmt.Fprintf(b, "%s / %s / %d\n", opts.Galaxy, p, now.Unix())
		b.WriteString(BlockStart + "\n")
		for _, l := range append(lines, deferred...) {
			b.WriteString(l)
			b.WriteByte('\n')
		}
		b.WriteString(BlockEnd + "\n\n")
	}
}

func resourceLine(w *models.Wrapper) string {
	return w.Name() + ", " + w.Class()
}
