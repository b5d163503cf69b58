package constants

const (
	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the format used for meal time labels when one is parsed (HH:MM)
	TimeFormat = "15:04"
)
