package embed

import (
	"errors"
	"regexp"
)

// WidgetType selects the booking flow rendered inside the embed
type WidgetType string

const (
	WidgetFarebook  WidgetType = "farebook"
	WidgetMultistep WidgetType = "multistep"
	WidgetList      WidgetType = "list"
	WidgetQuickbook WidgetType = "quickbook"
	WidgetResolvex  WidgetType = "resolvex"
)

// IsValid checks if the widget type is supported
func (t WidgetType) IsValid() bool {
	switch t {
	case WidgetFarebook, WidgetMultistep, WidgetList, WidgetQuickbook, WidgetResolvex:
		return true
	}
	return false
}

// Format is the kind of artifact produced for a host page
type Format string

const (
	FormatURL    Format = "url"
	FormatScript Format = "script"
	FormatIframe Format = "iframe"
	FormatReact  Format = "react"
)

func (f Format) IsValid() bool {
	switch f {
	case FormatURL, FormatScript, FormatIframe, FormatReact:
		return true
	}
	return false
}

var (
	ErrUnknownWidgetType = errors.New("unknown widget type")
	ErrUnknownFormat     = errors.New("unknown embed format")
	ErrInvalidBaseURL    = errors.New("invalid embed base URL")
)

const (
	DefaultPrimaryColor = "#2563eb"
	DefaultAspectRatio  = 75.0
)

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Options describes one artifact to generate
type Options struct {
	BaseURL      string
	LoaderPath   string
	WidgetType   WidgetType
	EmbedKey     string
	PrimaryColor string
	// AspectRatio is the wrapper padding-top percentage used before the first resize message
	AspectRatio float64
	// AllowedOrigins restricts which origins may resize the iframe. Empty accepts any origin.
	AllowedOrigins []string
}

// Target is one widget in a bulk generation request
type Target struct {
	WidgetID     string     `json:"widget_id"`
	WidgetType   WidgetType `json:"widget_type"`
	EmbedKey     string     `json:"embed_key"`
	PrimaryColor string     `json:"primary_color,omitempty"`
}

// Result is the outcome for one Target. Exactly one of Code and Error is set.
type Result struct {
	WidgetID string `json:"widget_id"`
	Format   Format `json:"format"`
	Code     string `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// OK reports whether the artifact was generated
func (r Result) OK() bool {
	return r.Error == ""
}
