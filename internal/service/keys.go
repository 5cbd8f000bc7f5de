package service

// Store keys, one JSON-serialized collection per key.
const (
	urlsKey      = "shortener.urls"
	analyticsKey = "shortener.analytics"
	logsKey      = "shortener.logs"
)
