// Package ui renders the device-code sign-in view and the plain CLI output.
//
// LoginModel is a Bubble Tea model that shows the user code and the
// verification URL while an auth.Session polls. ProgramPresenter bridges the
// session's presenter callbacks into the running program; TextPresenter is
// the non-interactive fallback. RunLogin ties the two together and always
// cancels the session when the view exits.
//
// Keys: c copies the code, o or enter opens the URL, T cycles the theme, and
// q, esc or ctrl+c cancels.
package ui
