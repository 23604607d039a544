package core

// Logger is any logger the app can report to.
// args may hold errors, extra data (map[string]interface{}) and the user the message is about.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
