package api

import (
	"time"

	"example.com/reactivities/internal/domain"
)

// ActivityView is the JSON shape of an activity with its attendees. IsGoing and IsHost
// are computed for the caller.
type ActivityView struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Date         time.Time      `json:"date"`
	City         string         `json:"city"`
	Venue        string         `json:"venue"`
	Version      int            `json:"version"`
	HostUsername string         `json:"hostUsername,omitempty"`
	IsGoing      bool           `json:"isGoing"`
	IsHost       bool           `json:"isHost"`
	Attendees    []AttendeeView `json:"attendees"`
}

// AttendeeView is one attendee of an activity.
type AttendeeView struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Image       string    `json:"image,omitempty"`
	IsHost      bool      `json:"isHost"`
	DateJoined  time.Time `json:"dateJoined"`
}

// ListActivitiesResponse packages a page of activities.
type ListActivitiesResponse struct {
	Activities    []ActivityView `json:"activities"`
	ActivityCount int            `json:"activityCount"`
	TotalPages    int            `json:"totalPages"`
}

// ProfileView is the public profile of a user.
type ProfileView struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio,omitempty"`
	Image       string `json:"image,omitempty"`
}

// ValueView is a demo value.
type ValueView struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func toActivityView(a domain.Activity, caller string) ActivityView {
	view := ActivityView{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Category:    string(a.Category),
		Date:        a.Date,
		City:        a.City,
		Venue:       a.Venue,
		Version:     a.Version,
		Attendees:   make([]AttendeeView, 0, len(a.Attendees)),
	}
	for _, at := range a.Attendees {
		view.Attendees = append(view.Attendees, AttendeeView{
			Username:    at.Username,
			DisplayName: at.DisplayName,
			Image:       at.Image,
			IsHost:      at.IsHost,
			DateJoined:  at.DateJoined,
		})
		if at.IsHost {
			view.HostUsername = at.Username
		}
		if caller != "" && at.Username == caller {
			view.IsGoing = true
			view.IsHost = at.IsHost
		}
	}
	return view
}

func toProfileView(p domain.Profile) ProfileView {
	return ProfileView{Username: p.Username, DisplayName: p.DisplayName, Bio: p.Bio, Image: p.Image}
}
