package notes

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/twistedatrocity/swgaide/internal/classes"
	"github.com/twistedatrocity/swgaide/internal/models"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newTestCodec() *Codec {
	return New(classes.Default(), zerolog.Nop())
}

func wrapper(name, class string, planets ...models.Planet) *models.Wrapper {
	return &models.Wrapper{Resource: &models.ResourceDraft{
		Name:         name,
		Class:        class,
		Galaxy:       "Starsider",
		Availability: models.NewPlanetSet(planets...),
	}}
}

// scripted answers line errors from a queue and records what it saw.
type scripted struct {
	decisions []Decision
	seen      []*LineError
	stale     bool
	staleAsks int
}

func (s *scripted) ResolveLine(ctx context.Context, lerr *LineError) (Decision, error) {
	s.seen = append(s.seen, lerr)
	if len(s.decisions) == 0 {
		return Decision{Action: Skip}, nil
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

func (s *scripted) ConfirmStale(ctx context.Context, subject string, age time.Duration) (bool, error) {
	s.staleAsks++
	return s.stale, nil
}

func TestRoundTripContinuous(t *testing.T) {
	c := newTestCodec()
	ws := []*models.Wrapper{
		wrapper("Ironia", "Iron", models.Naboo),
		wrapper("Oakwood", "Hard Wood", models.Naboo),
		wrapper("Birchy", "Soft Wood", models.Rori),
	}
	doc := c.Write(ws, WriteOptions{Mode: Continuous, Galaxy: "Starsider", Dedup: DedupSkip, Now: testNow})

	res, lerrs, err := c.Read(doc, ws, ReadOptions{Mode: Continuous, Galaxy: "Starsider", MaxAge: time.Hour, Now: testNow})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(lerrs) != 0 {
		t.Fatalf("Expected no line errors, got %v", lerrs)
	}
	if len(res.Matched) != len(ws) {
		t.Fatalf("Expected %d matched, got %d", len(ws), len(res.Matched))
	}
	for i, w := range res.Matched {
		if w != ws[i] {
			t.Errorf("position %d: expected %s, got %s", i, ws[i].Name(), w.Name())
		}
		if w.Resource.HasStats() {
			t.Errorf("%s: expected no stats after round trip", w.Name())
		}
	}
	if res.Augmented != 0 {
		t.Errorf("Expected no augmented lines, got %d", res.Augmented)
	}
}

func TestWriteContinuousHeaderAndBlacklist(t *testing.T) {
	c := newTestCodec()
	ws := []*models.Wrapper{
		wrapper("Ironia", "Iron", models.Naboo),
		wrapper("Oakwood", "Hard Wood", models.Naboo),
	}
	doc := c.Write(ws, WriteOptions{Mode: Continuous, Galaxy: "Starsider", Blacklist: []string{"Flora"}, Now: testNow})

	want := "Starsider / CONTINUOUS-LIST / 1792238400\nIronia, Iron\n"
	if doc != want {
		t.Errorf("Unexpected document:\n%q\nwant\n%q", doc, want)
	}
}

func TestPerPlanetDuplicateMarking(t *testing.T) {
	c := newTestCodec()
	w := wrapper("Oakwood", "Hard Wood", models.Naboo, models.Tatooine)
	other := wrapper("Pinewood", "Soft Wood", models.Tatooine)

	marked := c.Write([]*models.Wrapper{w, other}, WriteOptions{Mode: PerPlanet, Galaxy: "Starsider", Dedup: DedupMark, Now: testNow})
	wantMarked := "Starsider / Naboo / 1792238400\n" +
		"swgcraft_start\nOakwood, Hard Wood\nswgcraft_end\n\n" +
		"Starsider / Tatooine / 1792238400\n" +
		"swgcraft_start\nPinewood, Soft Wood\nOakwood, Hard Wood **\nswgcraft_end\n\n"
	if marked != wantMarked {
		t.Errorf("mark policy:\n%s\nwant\n%s", marked, wantMarked)
	}

	skipped := c.Write([]*models.Wrapper{w, other}, WriteOptions{Mode: PerPlanet, Galaxy: "Starsider", Dedup: DedupSkip, Now: testNow})
	if strings.Count(skipped, "Oakwood") != 1 {
		t.Errorf("skip policy should list Oakwood once:\n%s", skipped)
	}
	if !strings.Contains(skipped, "Tatooine / 1792238400\nswgcraft_start\nPinewood, Soft Wood\nswgcraft_end") {
		t.Errorf("skip policy should omit Oakwood from Tatooine:\n%s", skipped)
	}

	if w.Written || other.Written {
		t.Error("Expected write-cycle flags to be reset after writing")
	}
}

func TestWriteFooter(t *testing.T) {
	c := newTestCodec()
	doc := c.Write(nil, WriteOptions{Mode: Continuous, Galaxy: "Starsider", Footer: true, Now: testNow})
	if !strings.Contains(doc, "\n# Lines starting with # are ignored.") {
		t.Errorf("Expected help footer, got:\n%s", doc)
	}
}

const perPlanetDoc = `some unrelated notes
Starsider / Naboo / 1792238400
this line is commentary
swgcraft_start
Oakwood, Hard Wood, 500, 600, 700, 800, 900
Ironia, Iron
swgcraft_end
Starsider / Tatooine / 1792238400
swgcraft_start
# a comment
Oakwood, Hard Wood, 1, 2, 3, 4, 5 **
swgcraft_end
`

func TestReadPerPlanet(t *testing.T) {
	c := newTestCodec()
	oak := wrapper("Oakwood", "Hard Wood", models.Naboo, models.Tatooine)
	iron := wrapper("Ironia", "Iron", models.Naboo)

	res, lerrs, err := c.Read(perPlanetDoc, []*models.Wrapper{oak, iron}, ReadOptions{Mode: PerPlanet, Galaxy: "starsider", Now: testNow})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(lerrs) != 0 {
		t.Fatalf("Unexpected line errors: %v", lerrs)
	}
	if len(res.Matched) != 3 || res.Augmented != 2 {
		t.Errorf("Expected 3 matched and 2 augmented, got %d and %d", len(res.Matched), res.Augmented)
	}
	// The later block wins.
	if got := oak.Resource.Stats[models.DR]; got != 1 {
		t.Errorf("Expected DR 1 from the Tatooine block, got %d", got)
	}
	if got := oak.Resource.Stats[models.UT]; got != 5 {
		t.Errorf("Expected UT 5, got %d", got)
	}
}

func TestReadPerPlanetLatestCycle(t *testing.T) {
	c := newTestCodec()
	old := c.Write([]*models.Wrapper{wrapper("Oldwood", "Hard Wood", models.Naboo)},
		WriteOptions{Mode: PerPlanet, Galaxy: "Starsider", Now: testNow.Add(-3 * time.Hour)})
	oak := wrapper("Oakwood", "Hard Wood", models.Naboo)
	current := c.Write([]*models.Wrapper{oak}, WriteOptions{Mode: PerPlanet, Galaxy: "Starsider", Now: testNow})
	doc := old + current

	r := &scripted{}
	res, err := c.ReadInteractive(context.Background(), doc, []*models.Wrapper{oak}, ReadOptions{Mode: PerPlanet, Galaxy: "Starsider", MaxAge: time.Hour, Now: testNow}, r)
	if err != nil {
		t.Fatalf("ReadInteractive failed: %v", err)
	}
	if len(r.seen) != 0 {
		t.Errorf("Expected blocks of the earlier write to be ignored, got line errors %v", r.seen)
	}
	if r.staleAsks != 0 {
		t.Errorf("Expected no stale prompt for a current document, got %d", r.staleAsks)
	}
	if len(res.Matched) != 1 || res.Unrecovered() != 0 {
		t.Errorf("Expected 1 matched and 0 unrecovered, got %d and %d", len(res.Matched), res.Unrecovered())
	}
}

func TestPerPlanetSkipOmitsEmptyBlock(t *testing.T) {
	c := newTestCodec()
	w := wrapper("Oakwood", "Hard Wood", models.Naboo, models.Tatooine)

	doc := c.Write([]*models.Wrapper{w}, WriteOptions{Mode: PerPlanet, Galaxy: "Starsider", Dedup: DedupSkip, Now: testNow})
	want := "Starsider / Naboo / 1792238400\nswgcraft_start\nOakwood, Hard Wood\nswgcraft_end\n\n"
	if doc != want {
		t.Errorf("Unexpected document:\n%s\nwant\n%s", doc, want)
	}
	if strings.Contains(doc, "Tatooine") {
		t.Errorf("Expected no Tatooine block, got:\n%s", doc)
	}
}

const malformedDoc = `Starsider / CONTINUOUS-LIST / 1792238400
Ironia, Iron
Oakwood, Hard Wood, 500, 600, 700, 800, 900
Birchy, Soft Wood
Pinewood, Soft Wood, 100, 200, abc, 400, 500
Cedar, Soft Wood, 10, 20, 30, 40, 50
`

func malformedSet() (ws []*models.Wrapper, pine *models.Wrapper, cedar *models.Wrapper) {
	pine = wrapper("Pinewood", "Soft Wood", models.Naboo)
	cedar = wrapper("Cedar", "Soft Wood", models.Naboo)
	ws = []*models.Wrapper{
		wrapper("Ironia", "Iron", models.Naboo),
		wrapper("Oakwood", "Hard Wood", models.Naboo),
		wrapper("Birchy", "Soft Wood", models.Naboo),
		pine,
		cedar,
	}
	return ws, pine, cedar
}

func TestLineErrorSkip(t *testing.T) {
	c := newTestCodec()
	ws, pine, cedar := malformedSet()
	r := &scripted{decisions: []Decision{{Action: Skip}}}

	res, err := c.ReadInteractive(context.Background(), malformedDoc, ws, ReadOptions{Mode: Continuous, Now: testNow}, r)
	if err != nil {
		t.Fatalf("ReadInteractive failed: %v", err)
	}
	if len(r.seen) != 1 || r.seen[0].Line != 5 {
		t.Fatalf("Expected one error on line 5, got %v", r.seen)
	}
	if pine.Resource.HasStats() {
		t.Error("Skipped line must leave Pinewood unchanged")
	}
	if cedar.Resource.Stats[models.UT] != 50 {
		t.Errorf("Expected Cedar parsed after the skipped line, got %v", cedar.Resource.Stats)
	}
	if len(res.Matched) != 4 || res.Unrecovered() != 1 {
		t.Errorf("Expected 4 matched and 1 unrecovered, got %d and %d", len(res.Matched), res.Unrecovered())
	}
}

func TestLineErrorEdit(t *testing.T) {
	c := newTestCodec()
	ws, pine, _ := malformedSet()
	r := &scripted{decisions: []Decision{
		{Action: Edit, Replacement: "Pinewood, Soft Wood, 100, 200, 2000, 400, 500"},
		{Action: Edit, Replacement: "Pinewood, Soft Wood, 100, 200, 300, 400, 500"},
	}}

	res, err := c.ReadInteractive(context.Background(), malformedDoc, ws, ReadOptions{Mode: Continuous, Now: testNow}, r)
	if err != nil {
		t.Fatalf("ReadInteractive failed: %v", err)
	}
	if len(r.seen) != 2 {
		t.Fatalf("Expected the out-of-range edit to be re-raised, got %d errors", len(r.seen))
	}
	if !strings.Contains(r.seen[1].Msg, "outside 1..1000") {
		t.Errorf("Unexpected message: %s", r.seen[1].Msg)
	}
	if r.seen[1].Line != 5 {
		t.Errorf("Expected edited line to keep its number, got %d", r.seen[1].Line)
	}
	if pine.Resource.Stats[models.OQ] != 300 {
		t.Errorf("Expected edited stats applied, got %v", pine.Resource.Stats)
	}
	if res.Unrecovered() != 0 || res.Augmented != 3 {
		t.Errorf("Expected 0 unrecovered and 3 augmented, got %d and %d", res.Unrecovered(), res.Augmented)
	}
}

func TestLineErrorAbort(t *testing.T) {
	c := newTestCodec()
	ws, _, cedar := malformedSet()
	r := &scripted{decisions: []Decision{{Action: Abort}}}

	res, err := c.ReadInteractive(context.Background(), malformedDoc, ws, ReadOptions{Mode: Continuous, Now: testNow}, r)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("Expected ErrAborted, got %v", err)
	}
	if !res.Aborted {
		t.Error("Expected result to be flagged aborted")
	}
	if cedar.Resource.HasStats() {
		t.Error("Lines after an abort must not be parsed")
	}
	if ws[1].Resource.Stats[models.UT] != 900 {
		t.Error("Lines before an abort keep their updates")
	}
}

func TestLineErrorMessages(t *testing.T) {
	c := newTestCodec()
	ws := []*models.Wrapper{wrapper("Oakwood", "Hard Wood")}
	index := map[string]*models.Wrapper{"Oakwood": ws[0]}

	tests := []struct {
		line string
		want string
	}{
		{"Oakwood", "expected"},
		{"Mystery, Hard Wood", "unknown resource"},
		{"Oakwood, Iron", "does not match"},
		{"Oakwood, Hard Wood, 1, 2", "takes 5 stats (DR HR OQ SR UT)"},
		{"Oakwood, Hard Wood, 1, 2, 3, 4, 0", "UT: 0 is outside"},
	}
	for _, tt := range tests {
		_, _, msg := c.parseLine(tt.line, index)
		if !strings.Contains(msg, tt.want) {
			t.Errorf("parseLine(%q) = %q, want it to contain %q", tt.line, msg, tt.want)
		}
	}

	if _, stats, msg := c.parseLine("Oakwood, hard wood, 1, 2, 3, 4, 5,", index); msg != "" || stats == nil {
		t.Errorf("Expected trailing comma and class case to be tolerated, got %q", msg)
	}
}

func TestReadStale(t *testing.T) {
	c := newTestCodec()
	ws := []*models.Wrapper{wrapper("Ironia", "Iron")}
	doc := "Starsider / CONTINUOUS-LIST / 1792238400\nIronia, Iron\n"
	opts := ReadOptions{Mode: Continuous, MaxAge: time.Hour, Now: testNow.Add(3 * time.Hour)}

	if _, _, err := c.Read(doc, ws, opts); !errors.Is(err, ErrStaleArtifact) {
		t.Errorf("Expected ErrStaleArtifact, got %v", err)
	}

	r := &scripted{stale: true}
	res, err := c.ReadInteractive(context.Background(), doc, ws, opts, r)
	if err != nil {
		t.Fatalf("Expected accepted staleness to proceed, got %v", err)
	}
	if r.staleAsks != 1 || len(res.Matched) != 1 {
		t.Errorf("Expected one stale prompt and one match, got %d and %d", r.staleAsks, len(res.Matched))
	}
}

func TestReadHeaderNotFound(t *testing.T) {
	c := newTestCodec()
	if _, _, err := c.Read("nothing here\n", nil, ReadOptions{Mode: Continuous}); !errors.Is(err, ErrHeaderNotFound) {
		t.Errorf("Expected ErrHeaderNotFound, got %v", err)
	}
	doc := "Bria / CONTINUOUS-LIST / 1792238400\n"
	if _, _, err := c.Read(doc, nil, ReadOptions{Mode: Continuous, Galaxy: "Starsider"}); !errors.Is(err, ErrHeaderNotFound) {
		t.Errorf("Expected header of another galaxy to be ignored, got %v", err)
	}
	if _, _, err := c.Read(doc, nil, ReadOptions{Mode: PerPlanet}); !errors.Is(err, ErrHeaderNotFound) {
		t.Errorf("Expected continuous header not to satisfy per-planet mode, got %v", err)
	}
}

func TestParseHeader(t *testing.T) {
	h, ok := ParseHeader("  Starsider / Yavin 4 / 1792238400 ")
	if !ok || h.Galaxy != "Starsider" || h.Token != "Yavin 4" || h.Epoch != 1792238400 {
		t.Errorf("Unexpected header: %+v, %v", h, ok)
	}
	for _, bad := range []string{"Oakwood, Hard Wood", "a / b / c", "a / b", "a, x / b / 12"} {
		if _, ok := ParseHeader(bad); ok {
			t.Errorf("Expected %q not to parse as header", bad)
		}
	}
}

func TestParseModeAndPolicy(t *testing.T) {
	if m, err := ParseMode("per-planet"); err != nil || m != PerPlanet {
		t.Errorf("ParseMode(per-planet) = %v, %v", m, err)
	}
	if _, err := ParseMode("spiral"); err == nil {
		t.Error("Expected error for unknown mode")
	}
	if p, err := ParseDedupPolicy("MARK"); err != nil || p != DedupMark {
		t.Errorf("ParseDedupPolicy(MARK) = %v, %v", p, err)
	}
	if _, err := ParseDedupPolicy("drop"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}
