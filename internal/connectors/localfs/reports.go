package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/twistedatrocity/swgaide/internal/models"
	"gopkg.in/yaml.v3"
)

// ReportDir reads survey reports from YAML files in a directory.
type ReportDir struct {
	dir    string
	galaxy string
}

// NewReportDir creates a report source for dir. Only reports for galaxy are returned.
func NewReportDir(dir, galaxy string) *ReportDir {
	return &ReportDir{dir: dir, galaxy: galaxy}
}

// Name returns the source identifier.
func (r *ReportDir) Name() string {
	return "localfs"
}

// FetchReports loads every *.yaml/*.yml report captured by character,
// ordered by capture time.
func (r *ReportDir) FetchReports(ctx context.Context, character string) ([]models.SurveyReport, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reports dir: %w", err)
	}

	var reports []models.SurveyReport
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		rep, err := readReport(filepath.Join(r.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if character != "" && !strings.EqualFold(rep.Character, character) {
			continue
		}
		if r.galaxy != "" && !strings.EqualFold(rep.Galaxy, r.galaxy) {
			continue
		}
		reports = append(reports, *rep)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CapturedAt.Before(reports[j].CapturedAt)
	})
	return reports, nil
}

func readReport(path string) (*models.SurveyReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var rep models.SurveyReport
	if err := yaml.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", filepath.Base(path), err)
	}
	planet, ok := models.ParsePlanet(string(rep.Planet))
	if !ok {
		return nil, fmt.Errorf("report %s: unknown planet %q", filepath.Base(path), rep.Planet)
	}
	rep.Planet = planet
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	if rep.SourceID == "" {
		rep.SourceID = filepath.Base(path)
	}
	for i, f := range rep.Findings {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("report %s: resource %d has no name", filepath.Base(path), i+1)
		}
		rep.Findings[i].Name = strings.TrimSpace(f.Name)
		rep.Findings[i].Class = strings.TrimSpace(f.Class)
	}
	return &rep, nil
}
