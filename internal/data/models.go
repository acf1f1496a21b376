package data

import (
	"time"
)

// Format identifies the markup language of a page's raw source.
type Format int

const (
	FormatMarkdown Format = 0
	FormatRest     Format = 1
)

// PageTypePublished is the only page type the service writes today.
const PageTypePublished = "published"

// Page represents a single wiki page row. The relational store is the
// source of truth; HTML is the persisted render of Data under Format as
// of the last committed write.
type Page struct {
	ID       int64     `db:"id"`
	Path     string    `db:"path"`
	Title    string    `db:"title"`
	Data     string    `db:"data"`
	HTML     string    `db:"html"`
	Format   Format    `db:"format"`
	PageType string    `db:"pagetype"`
	Version  int64     `db:"version"`
	Created  time.Time `db:"created"`
	Updated  time.Time `db:"updated"`
	Writer   int64     `db:"writer"`
}

// Revision is an immutable snapshot of a page at a given version. For a
// page, revision numbers are contiguous and share the page's version
// counter.
type Revision struct {
	ID             int64     `db:"id"`
	PageID         int64     `db:"page_id"`
	RevisionNumber int64     `db:"revision_number"`
	Title          string    `db:"title"`
	RawText        string    `db:"rawtext"`
	Why            string    `db:"why"`
	Writer         int64     `db:"writer"`
	Created        time.Time `db:"created"`
}

// Tag names a page. Tag names are globally unique, so a tag belongs to
// exactly one page.
type Tag struct {
	ID     int64  `db:"id"`
	Name   string `db:"name"`
	PageID int64  `db:"page_id"`
}

// User is owned by the external auth subsystem; pages and revisions
// reference it through the writer foreign key only.
type User struct {
	ID           int64     `db:"id"`
	UserName     string    `db:"user_name"`
	EmailAddress string    `db:"email_address"`
	DisplayName  string    `db:"display_name"`
	Created      time.Time `db:"created"`
	Updated      time.Time `db:"updated"`
}

// Group is part of the external authorization graph.
type Group struct {
	ID          int64     `db:"id"`
	GroupName   string    `db:"group_name"`
	DisplayName string    `db:"display_name"`
	Created     time.Time `db:"created"`
}

// UserGroup links users to groups.
type UserGroup struct {
	UserID  int64 `db:"user_id"`
	GroupID int64 `db:"group_id"`
}

// UserVisit records a session of the external auth subsystem.
type UserVisit struct {
	ID       int64      `db:"id"`
	UserID   int64      `db:"user_id"`
	VisitKey string     `db:"visit_key"`
	UserIP   string     `db:"user_ip"`
	Created  time.Time  `db:"created"`
	Expiry   *time.Time `db:"expiry"`
}
