package domain

import "errors"

var (
	// ErrMessageNotFound no message with that id
	ErrMessageNotFound = errors.New("message not found")
	// ErrConversationNotFound no conversation with that id or pair
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrNotParticipant caller is not one of the two participants
	ErrNotParticipant = errors.New("not a participant of this conversation")
	// ErrInvalidRecipient recipient missing, unknown or self
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrEmptyContent message content is blank
	ErrEmptyContent = errors.New("message content is empty")
	// ErrMemberNotFound no member matches the query
	ErrMemberNotFound = errors.New("member not found")
	// ErrEmailExists register with a used email
	ErrEmailExists = errors.New("email already exists")
	// ErrInvalidCredentials login failed
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrMissingProfileField register without name or email
	ErrMissingProfileField = errors.New("name and email are required")
	// ErrAvatarDisabled object storage is not configured
	ErrAvatarDisabled = errors.New("avatar storage is disabled")
)
