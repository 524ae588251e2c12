package domain

import (
	"math"
	"time"
)

// Category enumerates the kinds of activity a host may schedule.
type Category string

const (
	CategoryDrinks  Category = "drinks"
	CategoryCulture Category = "culture"
	CategoryFilm    Category = "film"
	CategoryFood    Category = "food"
	CategoryMusic   Category = "music"
	CategoryTravel  Category = "travel"
)

// Categories lists every accepted category in display order.
var Categories = []Category{CategoryDrinks, CategoryCulture, CategoryFilm, CategoryFood, CategoryMusic, CategoryTravel}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Activity is a scheduled event together with its attendees.
type Activity struct {
	ID          string
	Title       string
	Description string
	Category    Category
	Date        time.Time
	City        string
	Venue       string
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Attendees   []Attendee
}

// Host returns the hosting attendee, if one is recorded.
func (a Activity) Host() (Attendee, bool) {
	for _, at := range a.Attendees {
		if at.IsHost {
			return at, true
		}
	}
	return Attendee{}, false
}

// Attendee returns the attendance row for userID, if present.
func (a Activity) Attendee(userID string) (Attendee, bool) {
	for _, at := range a.Attendees {
		if at.UserID == userID {
			return at, true
		}
	}
	return Attendee{}, false
}

// Attendee links one user to one activity.
type Attendee struct {
	UserID      string
	Username    string
	DisplayName string
	Image       string
	IsHost      bool
	DateJoined  time.Time
}

// AppUser is a registered member. Users are created outside this service.
type AppUser struct {
	ID          string
	Username    string
	DisplayName string
	Bio         string
	Image       string
}

// Value is the demo record seeded with the schema.
type Value struct {
	ID   int
	Name string
}

// PredicateKind names the single filter applied to a list query.
type PredicateKind string

const (
	PredicateNone      PredicateKind = ""
	PredicateStartDate PredicateKind = "startDate"
	PredicateIsGoing   PredicateKind = "isGoing"
	PredicateIsHost    PredicateKind = "isHost"
)

// Predicate is the active list filter. StartDate is only read for PredicateStartDate.
type Predicate struct {
	Kind      PredicateKind
	StartDate time.Time
}

// ListQuery describes one page of the activity list.
type ListQuery struct {
	Limit     int
	Offset    int
	Predicate Predicate
}

// Envelope bundles a page of activities with the size of the whole filtered set.
type Envelope struct {
	Activities    []Activity
	ActivityCount int
}

// TotalPages returns ceil(count / pageSize), or zero when pageSize is not positive.
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 || count <= 0 {
		return 0
	}
	return int(math.Ceil(float64(count) / float64(pageSize)))
}

// Profile is the public view of an AppUser.
type Profile struct {
	Username    string
	DisplayName string
	Bio         string
	Image       string
}

// Profile projects the user onto its public view.
func (u AppUser) Profile() Profile {
	return Profile{Username: u.Username, DisplayName: u.DisplayName, Bio: u.Bio, Image: u.Image}
}
