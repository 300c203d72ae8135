package models

import "sort"

// ClassRank maps a class name to its sort position.
type ClassRank func(class string) int

func compareClassName(a, b *Wrapper, rank ClassRank) int {
	ra, rb := rank(a.Class()), rank(b.Class())
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if a.Class() != b.Class() {
		if a.Class() < b.Class() {
			return -1
		}
		return 1
	}
	switch {
	case a.Name() < b.Name():
		return -1
	case a.Name() > b.Name():
		return 1
	}
	return 0
}

// SortByClassName orders wrappers by (class, name).
func SortByClassName(ws []*Wrapper, rank ClassRank) {
	sort.SliceStable(ws, func(i, j int) bool {
		return compareClassName(ws[i], ws[j], rank) < 0
	})
}

// SortByClassNamePlanet orders wrappers by (class, name, planet).
func SortByClassNamePlanet(ws []*Wrapper, rank ClassRank) {
	sort.SliceStable(ws, func(i, j int) bool {
		if c := compareClassName(ws[i], ws[j], rank); c != 0 {
			return c < 0
		}
		return ws[i].Planet.Index() < ws[j].Planet.Index()
	})
}
