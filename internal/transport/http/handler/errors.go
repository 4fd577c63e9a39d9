package handler

const (
	errInvalidBody  = "Invalid request body"
	errNotLoggedIn  = "You are not logged in! Please log in to get access."
	msgTokenSent    = "Token sent to email!"
	statusSuccess   = "success"
	resetPathSuffix = "/api/v1/users/resetPassword"
)
