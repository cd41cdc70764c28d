package embed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	texttemplate "text/template"

	"bookingtms/internal/embedkey"
)

// GenerateEmbedURL builds {baseURL}/embed?widgetId=..&widgetKey=..
// The key is validated first; no URL is built for an invalid key.
func GenerateEmbedURL(baseURL string, widgetType WidgetType, key string) (string, error) {
	if err := embedkey.AssertValid(key); err != nil {
		return "", err
	}
	if !widgetType.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownWidgetType, widgetType)
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", ErrInvalidBaseURL
	}

	q := url.Values{}
	q.Set("widgetId", string(widgetType))
	q.Set("widgetKey", key)
	return base.String() + "/embed?" + q.Encode(), nil
}

func (o Options) normalized() (Options, error) {
	if err := embedkey.AssertValid(o.EmbedKey); err != nil {
		return o, err
	}
	if !o.WidgetType.IsValid() {
		return o, fmt.Errorf("%w: %q", ErrUnknownWidgetType, o.WidgetType)
	}
	if !colorPattern.MatchString(o.PrimaryColor) {
		o.PrimaryColor = DefaultPrimaryColor
	}
	if o.AspectRatio <= 0 || o.AspectRatio > 400 {
		o.AspectRatio = DefaultAspectRatio
	}
	if o.LoaderPath == "" {
		o.LoaderPath = "/embed/loader.js"
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return o, nil
}

func frameID(key string) string {
	return "bookingtms-frame-" + strings.TrimPrefix(key, embedkey.Prefix)
}

var scriptTemplate = template.Must(template.New("script").Parse(
	`<div id="bookingtms-widget-{{.Suffix}}" data-widget-key="{{.Key}}" data-widget-type="{{.Type}}" data-primary-color="{{.Color}}"></div>
<script src="{{.LoaderURL}}" data-widget-key="{{.Key}}" data-widget-type="{{.Type}}" data-primary-color="{{.Color}}" data-target="bookingtms-widget-{{.Suffix}}" async></script>
`))

// GenerateScriptEmbed returns the host div plus the loader script tag
func GenerateScriptEmbed(opts Options) (string, error) {
	o, err := opts.normalized()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = scriptTemplate.Execute(&buf, map[string]interface{}{
		"Suffix":    strings.TrimPrefix(o.EmbedKey, embedkey.Prefix),
		"Key":       o.EmbedKey,
		"Type":      string(o.WidgetType),
		"Color":     o.PrimaryColor,
		"LoaderURL": o.BaseURL + o.LoaderPath,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render script embed: %w", err)
	}
	return buf.String(), nil
}

var iframeTemplate = template.Must(template.New("iframe").Parse(
	`<div class="bookingtms-embed" style="position:relative; padding-top:{{.Aspect}}%; width:100%;">
  <iframe id="{{.FrameID}}" src="{{.URL}}" title="Book now" style="position:absolute; top:0; left:0; width:100%; height:100%; border:0;" allow="payment; camera" loading="lazy"></iframe>
</div>
<script>{{.Listener}}</script>
`))

// GenerateIframeCode returns the responsive iframe wrapper and its resize listener
func GenerateIframeCode(opts Options) (string, error) {
	o, err := opts.normalized()
	if err != nil {
		return "", err
	}
	src, err := GenerateEmbedURL(o.BaseURL, o.WidgetType, o.EmbedKey)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = iframeTemplate.Execute(&buf, map[string]interface{}{
		"Aspect":   strconv.FormatFloat(o.AspectRatio, 'f', -1, 64),
		"FrameID":  frameID(o.EmbedKey),
		"URL":      src,
		"Listener": template.JS(ResizeListenerScript(frameID(o.EmbedKey), o.AllowedOrigins)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render iframe embed: %w", err)
	}
	return buf.String(), nil
}

var reactTemplate = texttemplate.Must(texttemplate.New("react").Parse(`import { useEffect, useRef } from "react";

const EMBED_URL = {{.URL}};
const ALLOWED_ORIGINS = {{.Origins}};
const RESIZE_TYPES = ["resize-iframe", "BOOKINGTMS_RESIZE"];

export default function BookingWidget() {
  const wrapperRef = useRef(null);
  const frameRef = useRef(null);

  useEffect(() => {
    function onMessage(event) {
      if (ALLOWED_ORIGINS.length > 0 && ALLOWED_ORIGINS.indexOf(event.origin) === -1) return;
      let data = event.data;
      if (typeof data === "string") {
        try { data = JSON.parse(data); } catch (e) { return; }
      }
      if (!data || typeof data !== "object") return;
      if (RESIZE_TYPES.indexOf(data.type) === -1) return;
      if (typeof data.height !== "number" || !isFinite(data.height) || data.height <= 0) return;
      const height = Math.ceil(data.height) + "px";
      if (frameRef.current) frameRef.current.style.height = height;
      if (wrapperRef.current) {
        wrapperRef.current.style.paddingTop = "0";
        wrapperRef.current.style.height = height;
      }
    }
    window.addEventListener("message", onMessage);
    return () => window.removeEventListener("message", onMessage);
  }, []);

  return (
    <div ref={wrapperRef} style={{ position: "relative", paddingTop: "{{.Aspect}}%", width: "100%" }}>
      <iframe
        ref={frameRef}
        src={EMBED_URL}
        title="Book now"
        allow="payment; camera"
        loading="lazy"
        style={{ position: "absolute", top: 0, left: 0, width: "100%", height: "100%", border: 0 }}
      />
    </div>
  );
}
`))

// GenerateReactCode returns source for a React component wrapping the iframe.
// The output is documentation for the host developer and is never executed here.
func GenerateReactCode(opts Options) (string, error) {
	o, err := opts.normalized()
	if err != nil {
		return "", err
	}
	src, err := GenerateEmbedURL(o.BaseURL, o.WidgetType, o.EmbedKey)
	if err != nil {
		return "", err
	}

	urlLiteral, _ := json.Marshal(src)
	origins := o.AllowedOrigins
	if origins == nil {
		origins = []string{}
	}
	originsLiteral, _ := json.Marshal(origins)

	var buf bytes.Buffer
	err = reactTemplate.Execute(&buf, map[string]interface{}{
		"URL":     string(urlLiteral),
		"Origins": string(originsLiteral),
		"Aspect":  strconv.FormatFloat(o.AspectRatio, 'f', -1, 64),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render react embed: %w", err)
	}
	return buf.String(), nil
}

// Generate dispatches on format
func Generate(format Format, opts Options) (string, error) {
	switch format {
	case FormatURL:
		return GenerateEmbedURL(opts.BaseURL, opts.WidgetType, opts.EmbedKey)
	case FormatScript:
		return GenerateScriptEmbed(opts)
	case FormatIframe:
		return GenerateIframeCode(opts)
	case FormatReact:
		return GenerateReactCode(opts)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// GenerateAll generates one artifact per target. A failing target yields a failed
// Result and never stops the others.
func GenerateAll(base Options, format Format, targets []Target) []Result {
	results := make([]Result, 0, len(targets))
	for _, t := range targets {
		opts := base
		opts.WidgetType = t.WidgetType
		opts.EmbedKey = t.EmbedKey
		if t.PrimaryColor != "" {
			opts.PrimaryColor = t.PrimaryColor
		}

		res := Result{WidgetID: t.WidgetID, Format: format}
		code, err := Generate(format, opts)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Code = code
		}
		results = append(results, res)
	}
	return results
}
