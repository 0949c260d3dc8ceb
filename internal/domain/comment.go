package domain

import "time"

// Comment is a message posted on a ticket thread.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorName string
	Body       string
	CreatedAt  time.Time
}
