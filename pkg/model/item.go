package model

import (
	"errors"
	"strconv"
)

// ErrNotFound is returned by trackers when the requested item does not exist
var ErrNotFound = errors.New("not found")

// ItemKind distinguishes issues from pull requests
type ItemKind string

const (
	KindIssue       ItemKind = "issue"
	KindPullRequest ItemKind = "pr"
)

// ItemState is the open/closed/merged status of an item
type ItemState string

const (
	StateOpen   ItemState = "open"
	StateClosed ItemState = "closed"
	StateMerged ItemState = "merged"
)

// IsClosed reports whether the state is closed or merged
func (s ItemState) IsClosed() bool {
	return s == StateClosed || s == StateMerged
}

// Item is an issue or a pull request as seen on a tracker
type Item struct {
	Number  int
	Title   string
	Body    string
	Author  string
	Labels  []string
	State   ItemState
	HTMLURL string
	// HeadRef is only set for pull requests
	HeadRef string
}

// Key returns the identifier used in the state file
func (i *Item) Key() string {
	return strconv.Itoa(i.Number)
}

// Comment is a discussion comment on an issue or a pull request
type Comment struct {
	Author string
	Body   string
}

// Review is a submitted pull request review
type Review struct {
	Author string
	State  string
	Body   string
}

// NewIssue holds the fields used to open an issue
type NewIssue struct {
	Title  string
	Body   string
	Labels []string
}

// NewPullRequest holds the fields used to open a pull request
type NewPullRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
}
