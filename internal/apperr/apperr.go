// Package apperr defines the domain error taxonomy shared by services and
// handlers. Every failure carries a wire reason code and a kind that maps to
// an HTTP status. Read-path authorization failures deliberately reuse the
// NotFound kind so resource existence is never leaked to non-members.
package apperr

import "errors"

// Kind classifies an error for transport mapping.
type Kind int

// Error kinds.
const (
	KindNotFound Kind = iota
	KindBadRequest
	KindUnauthorized
)

// Error is a coded domain error.
type Error struct {
	Code string
	Kind Kind
}

func (e *Error) Error() string { return e.Code }

// NotFound builds a not-found error with the given reason code.
func NotFound(code string) *Error { return &Error{Code: code, Kind: KindNotFound} }

// BadRequest builds a bad-request error with the given reason code.
func BadRequest(code string) *Error { return &Error{Code: code, Kind: KindBadRequest} }

// Unauthorized builds an unauthorized error with the given reason code.
func Unauthorized(code string) *Error { return &Error{Code: code, Kind: KindUnauthorized} }

// Shared reason codes.
var (
	ErrAuthorizationRequired = Unauthorized("AuthorizationRequired")
	ErrInvalidToken          = Unauthorized("InvalidToken")
	ErrNotUserToken          = Unauthorized("NotUserToken")
	ErrInvalidSignature      = Unauthorized("InvalidSignature")
	ErrInsufficientPerms     = Unauthorized("InsufficientPermissions")

	ErrUserNotFound            = NotFound("UserNotFound")
	ErrRecipientNotFound       = NotFound("RecipientNotFound")
	ErrRecipientMemberNotFound = NotFound("RecipientMemberNotFound")
	ErrConversationNotFound    = NotFound("ConversationNotFound")
	ErrChannelNotFound         = NotFound("ChannelNotFound")
	ErrCommunityNotFound       = NotFound("CommunityNotFound")
	ErrMessageNotFound         = NotFound("MessageNotFound")
	ErrGroupNotFound           = NotFound("GroupNotFound")
	ErrRoomNotFound            = NotFound("RoomNotFound")

	ErrInvalidUser             = BadRequest("InvalidUser")
	ErrEmailInUse              = BadRequest("EmailInUse")
	ErrUsernameTaken           = BadRequest("UsernameTaken")
	ErrNotFriends              = BadRequest("NotFriends")
	ErrAlreadyExists           = BadRequest("AlreadyExists")
	ErrInvalidConversationType = BadRequest("InvalidConversationType")
	ErrWrongChannelType        = BadRequest("WrongChannelType")
	ErrWrongMessageType        = BadRequest("WrongMessageType")
	ErrDeliveryFailed          = BadRequest("DeliveryFailed")
	ErrInvalidPayload          = BadRequest("InvalidPayload")

	// InsufficientPermissions surfaces as bad request on conversation
	// member management paths, matching the write-path policy where the
	// actor can already see the resource.
	ErrMemberPermissions = BadRequest("InsufficientPermissions")
)

// CodeOf extracts the wire reason code, or the raw message for uncoded errors.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return err.Error()
}

// KindOf reports the kind of a coded error. Uncoded errors report ok=false.
func KindOf(err error) (Kind, bool) {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Kind, true
	}
	return 0, false
}
