package service

import "errors"

var (
	ErrInvalidURL = errors.New("invalid URL format")
	ErrInvalidTTL = errors.New("ttl must be greater than zero")
	ErrNotFound   = errors.New("URL not found")
	ErrExpired    = errors.New("URL has expired")
)
