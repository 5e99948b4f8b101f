package models

import (
	"net/http"

	"abfahrt.transitboard.org/internal/clock"
)

// ResponseModel is the envelope wrapping every API response.
type ResponseModel struct {
	Code        int         `json:"code"`
	CurrentTime int64       `json:"currentTime"`
	Text        string      `json:"text"`
	Version     int         `json:"version"`
	Data        interface{} `json:"data,omitempty"`
}

// ResponseCurrentTime returns the timestamp stamped onto response envelopes.
func ResponseCurrentTime(c clock.Clock) int64 {
	return c.NowUnixMilli()
}

// NewOKResponse wraps data in a 200 envelope.
func NewOKResponse(data interface{}, c clock.Clock) ResponseModel {
	return NewResponse(http.StatusOK, "OK", data, c)
}

// NewCreatedResponse wraps data in a 201 envelope.
func NewCreatedResponse(data interface{}, c clock.Clock) ResponseModel {
	return NewResponse(http.StatusCreated, "Created", data, c)
}

func NewResponse(code int, text string, data interface{}, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        code,
		CurrentTime: ResponseCurrentTime(c),
		Text:        text,
		Version:     2,
		Data:        data,
	}
}
