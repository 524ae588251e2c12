package domain

import (
	"time"

	"example.com/reactivities/internal/errorx"
)

// PredicateFilters is the raw filter set of a list request. At most one may be active.
type PredicateFilters struct {
	StartDate *time.Time
	IsGoing   bool
	IsHost    bool
}

// NewPredicate collapses the supplied filters into a single predicate.
func NewPredicate(f PredicateFilters) (Predicate, error) {
	var p Predicate
	active := 0
	if f.StartDate != nil {
		active++
		p = Predicate{Kind: PredicateStartDate, StartDate: f.StartDate.UTC()}
	}
	if f.IsGoing {
		active++
		p = Predicate{Kind: PredicateIsGoing}
	}
	if f.IsHost {
		active++
		p = Predicate{Kind: PredicateIsHost}
	}
	if active > 1 {
		return Predicate{}, errorx.Validation(map[string]string{
			"predicate": "only one of startDate, isGoing, isHost may be set",
		})
	}
	return p, nil
}

func (p Predicate) validate() error {
	switch p.Kind {
	case PredicateNone, PredicateIsGoing, PredicateIsHost:
		return nil
	case PredicateStartDate:
		if p.StartDate.IsZero() {
			return errorx.Validation(map[string]string{"startDate": "startDate must not be empty"})
		}
		return nil
	default:
		return errorx.Validation(map[string]string{"predicate": "unknown predicate " + string(p.Kind)})
	}
}
