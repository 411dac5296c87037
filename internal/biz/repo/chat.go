package repo

import "context"

// ChatRepo produces conversational replies for messages no other handler answers
type ChatRepo interface {
	// Reply returns a reply for text from the given user, "" for no reply
	Reply(ctx context.Context, userID, text string) (string, error)
}
