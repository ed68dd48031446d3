package service

// Toaster surfaces transient user-visible notices for the most common
// flows. The rendering layer owns presentation; services only hand it the
// text. Every service treats its toaster as optional, mirroring how the
// real-time notifier is wired.
type Toaster interface {
	Toast(message string)
}
