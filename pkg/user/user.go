package user

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserDataInvalid = errors.New("invalid user data")
)

type User struct {
	Id          int
	Uid         string
	Username    string
	DisplayName string
	Settings    Settings
}

type Settings struct {
	Timezone       string
	GoogleCalendar GoogleCalendarSettings
}

type GoogleCalendarSettings struct {
	// CalendarId is empty until the user picks one; callers fall back to the configured default.
	CalendarId string
}
