package google

// CalendarScope grants read/write access to calendars and events.
const CalendarScope = "https://www.googleapis.com/auth/calendar"

// DefaultTokenURL is Google's OAuth 2.0 token endpoint. It is also the
// audience of delegated assertions.
const DefaultTokenURL = "https://oauth2.googleapis.com/token"

// DefaultScopes are requested when the settings name none.
// The broker only ever talks to Calendar, so nothing else is asked for.
var DefaultScopes = []string{
	CalendarScope,
}
