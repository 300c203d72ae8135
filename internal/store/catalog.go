package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/twistedatrocity/swgaide/internal/classes"
	"github.com/twistedatrocity/swgaide/internal/models"
)

// maxNameSlack is how many characters a near-miss name may add or drop.
const maxNameSlack = 2

// Catalog is an offline catalog client backed by the local database.
type Catalog struct {
	store *Store
	tree  *classes.Tree
	now   func() time.Time
}

// NewCatalog creates a catalog client over s.
func NewCatalog(s *Store, tree *classes.Tree) *Catalog {
	if tree == nil {
		tree = classes.Default()
	}
	return &Catalog{store: s, tree: tree, now: time.Now}
}

// Name returns the client identifier.
func (c *Catalog) Name() string { return "local" }

// FetchSnapshot reads the galaxy's resources into a snapshot.
func (c *Catalog) FetchSnapshot(ctx context.Context, galaxy string) (*models.CatalogSnapshot, error) {
	rows, err := c.store.ListResources(galaxy)
	if err != nil {
		return nil, err
	}
	now := c.now()
	recs := make([]models.CatalogRecord, len(rows))
	for i, r := range rows {
		recs[i] = r.CatalogRecord
		recs[i].AgeSeconds = int64(now.Sub(r.UpdatedAt).Seconds())
	}
	return models.NewSnapshot(galaxy, now, recs), nil
}

func transient(err error) models.Outcome {
	return models.Failure(models.OutcomeTransientFailure, err.Error())
}

// SubmitNew adds a resource unless it exists or resembles an existing name.
func (c *Catalog) SubmitNew(ctx context.Context, d *models.ResourceDraft) models.Outcome {
	if _, ok := c.tree.Lookup(d.Class); !ok {
		return models.Failure(models.OutcomeWrongResourceClass, fmt.Sprintf("unknown class %q", d.Class))
	}

	existing, err := c.store.FindResource(d.Galaxy, d.Name)
	switch {
	case err == nil:
		return c.existingNew(existing, d)
	case !errors.Is(err, ErrNotFound):
		return transient(err)
	}

	if !d.ForceNew {
		names, err := c.store.ResourceNames(d.Galaxy)
		if err != nil {
			return transient(err)
		}
		if near := NearMisses(d.Name, names); len(near) > 0 {
			return models.Collision(near...)
		}
	}

	rec := &models.CatalogRecord{
		Name:         d.Name,
		Class:        d.Class,
		Availability: d.Availability.Clone(),
	}
	if d.HasStats() {
		st := d.Stats
		rec.Stats = &st
	}
	if rec.Availability == nil {
		rec.Availability = models.NewPlanetSet()
	}
	if _, err := c.store.InsertResource(d.Galaxy, rec); err != nil {
		return transient(err)
	}
	return models.Success()
}

// existingNew answers a new-resource submission whose name is taken. Missing
// stats and planets are back-filled before reporting AlreadyExists.
func (c *Catalog) existingNew(r *Resource, d *models.ResourceDraft) models.Outcome {
	if !strings.EqualFold(r.Class, d.Class) {
		return models.Failure(models.OutcomeWrongResourceClass, fmt.Sprintf("%s is listed as %s", r.Name, r.Class))
	}
	if r.Depleted {
		return models.Failure(models.OutcomeStaleRecord, r.Name+" is depleted")
	}
	if d.HasStats() && !r.HasStats() {
		if err := c.store.SetStats(r.ID, d.Stats); err != nil {
			return transient(err)
		}
	}
	for _, p := range d.Availability.Sorted() {
		if _, err := c.store.AddAvailability(r.ID, p); err != nil {
			return transient(err)
		}
	}
	return models.Outcome{Kind: models.OutcomeAlreadyExists}
}

// current loads the live row behind ref, mapping a vanished or depleted
// record to StaleRecord.
func (c *Catalog) current(ref *models.CatalogRecord) (*Resource, *models.Outcome) {
	r, err := c.store.GetResource(ref.ID)
	if errors.Is(err, ErrNotFound) {
		o := models.Failure(models.OutcomeStaleRecord, ref.Name+" is no longer in the catalog")
		return nil, &o
	}
	if err != nil {
		o := transient(err)
		return nil, &o
	}
	return r, nil
}

// SubmitEdit records stats on an existing resource.
func (c *Catalog) SubmitEdit(ctx context.Context, ref *models.CatalogRecord, d *models.ResourceDraft) models.Outcome {
	r, bad := c.current(ref)
	if bad != nil {
		return *bad
	}
	if !strings.EqualFold(r.Class, d.Class) {
		return models.Failure(models.OutcomeWrongResourceClass, fmt.Sprintf("%s is listed as %s", r.Name, r.Class))
	}
	if r.Depleted {
		return models.Failure(models.OutcomeStaleRecord, r.Name+" is depleted")
	}
	if r.HasStats() {
		return models.Outcome{Kind: models.OutcomeAlreadyExists, Detail: "stats already recorded"}
	}
	if err := c.store.SetStats(r.ID, d.Stats); err != nil {
		return transient(err)
	}
	return models.Success()
}

// SubmitAvailability lists an existing resource on planet.
func (c *Catalog) SubmitAvailability(ctx context.Context, ref *models.CatalogRecord, planet models.Planet) models.Outcome {
	r, bad := c.current(ref)
	if bad != nil {
		return *bad
	}
	if r.Depleted {
		return models.Failure(models.OutcomeStaleRecord, r.Name+" is depleted")
	}
	added, err := c.store.AddAvailability(r.ID, planet)
	if err != nil {
		return transient(err)
	}
	if !added {
		return models.Outcome{Kind: models.OutcomeAlreadyExists}
	}
	return models.Success()
}

// SubmitDepleted flags an existing resource as depleted. A resource reported
// available after asOf is left alone.
func (c *Catalog) SubmitDepleted(ctx context.Context, ref *models.CatalogRecord, asOf time.Time) models.Outcome {
	r, bad := c.current(ref)
	if bad != nil {
		return *bad
	}
	if r.Depleted {
		return models.Outcome{Kind: models.OutcomeAlreadyExists}
	}
	last, err := c.store.LastReported(r.ID)
	if err != nil {
		return transient(err)
	}
	if last.After(asOf) {
		return models.Failure(models.OutcomeStaleRecord, fmt.Sprintf("%s was reported at %s", r.Name, last.Format(time.RFC3339)))
	}
	if err := c.store.MarkDepleted(r.ID, asOf); err != nil {
		return transient(err)
	}
	return models.Success()
}

// NearMisses returns existing names that resemble name: one holds the
// other's letters in order and their lengths differ by at most two.
// Exact matches are excluded; results are ordered best first.
func NearMisses(name string, existing []string) []string {
	lname := strings.ToLower(name)
	lower := make([]string, len(existing))
	for i, n := range existing {
		lower[i] = strings.ToLower(n)
	}

	seen := make(map[int]bool)
	var out []string
	add := func(i int) {
		if seen[i] || existing[i] == name {
			return
		}
		seen[i] = true
		out = append(out, existing[i])
	}

	for _, m := range fuzzy.Find(lname, lower) {
		if len(m.Str)-len(lname) <= maxNameSlack {
			add(m.Index)
		}
	}
	for i, n := range lower {
		if len(lname)-len(n) > maxNameSlack || len(n) >= len(lname) {
			continue
		}
		if len(fuzzy.Find(n, []string{lname})) > 0 {
			add(i)
		}
	}
	return out
}
