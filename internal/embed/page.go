package embed

import (
	"encoding/json"
	"html/template"
	"strings"
)

// Config carries the deployment settings the embed artifacts point at
type Config struct {
	BaseURL        string
	LoaderPath     string
	BundleURL      string
	APIBasePath    string
	AllowedOrigins []string
	DefaultColor   string
}

// Options returns artifact options for one widget
func (c Config) Options(widgetType WidgetType, key, color string) Options {
	if color == "" {
		color = c.DefaultColor
	}
	return Options{
		BaseURL:        c.BaseURL,
		LoaderPath:     c.LoaderPath,
		WidgetType:     widgetType,
		EmbedKey:       key,
		PrimaryColor:   color,
		AllowedOrigins: c.AllowedOrigins,
	}
}

// frameAncestors is the CSP directive controlling which hosts may frame the embed page
func (c Config) frameAncestors() string {
	if len(c.AllowedOrigins) == 0 {
		return "frame-ancestors *"
	}
	return "frame-ancestors " + strings.Join(c.AllowedOrigins, " ")
}

type pageData struct {
	Title       string
	Unavailable bool
	Message     string
	Key         string
	Type        string
	APIBase     string
	BundleURL   string
	Poster      template.JS
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <style>body { margin: 0; font-family: system-ui, sans-serif; } .bookingtms-unavailable { padding: 2rem; text-align: center; color: #4b5563; }</style>
</head>
<body>
{{- if .Unavailable}}
  <div class="bookingtms-unavailable" role="status"><p>{{.Message}}</p></div>
{{- else}}
  <div id="bookingtms-root" data-widget-key="{{.Key}}" data-widget-type="{{.Type}}" data-api-base="{{.APIBase}}"></div>
  <script src="{{.BundleURL}}" defer></script>
{{- end}}
  <script>{{.Poster}}</script>
</body>
</html>
`))

// LoaderScript returns the script served at the loader path. It finds every host div
// created by the script embed, mounts the iframe into it and installs the resize listener.
func LoaderScript(cfg Config) string {
	base, _ := json.Marshal(strings.TrimRight(cfg.BaseURL, "/"))
	origins := cfg.AllowedOrigins
	if origins == nil {
		origins = []string{}
	}
	originsLiteral, _ := json.Marshal(origins)

	return `(function () {
  var base = ` + string(base) + `;
  var allowed = ` + string(originsLiteral) + `;
  var types = ["` + ResizeMessageType + `", "` + LegacyResizeMessageType + `"];
  var keyPattern = /^emb_[a-z0-9]{12}$/;
  var frames = {};

  function mount(host) {
    var key = host.getAttribute("data-widget-key");
    var type = host.getAttribute("data-widget-type") || "farebook";
    if (!keyPattern.test(key || "") || host.getAttribute("data-mounted")) return;
    host.setAttribute("data-mounted", "1");
    var frame = document.createElement("iframe");
    frame.src = base + "/embed?widgetId=" + encodeURIComponent(type) + "&widgetKey=" + encodeURIComponent(key);
    frame.title = "Book now";
    frame.setAttribute("allow", "payment; camera");
    frame.style.width = "100%";
    frame.style.border = "0";
    frame.style.minHeight = "600px";
    host.appendChild(frame);
    frames[key] = frame;
  }

  window.addEventListener("message", function (event) {
    if (allowed.length > 0 && allowed.indexOf(event.origin) === -1) return;
    var data = event.data;
    if (typeof data === "string") {
      try { data = JSON.parse(data); } catch (e) { return; }
    }
    if (!data || typeof data !== "object") return;
    if (types.indexOf(data.type) === -1) return;
    if (typeof data.height !== "number" || !isFinite(data.height) || data.height <= 0) return;
    for (var k in frames) {
      if (frames[k].contentWindow === event.source) {
        frames[k].style.height = Math.ceil(data.height) + "px";
      }
    }
  });

  var hosts = document.querySelectorAll("div[data-widget-key]");
  for (var i = 0; i < hosts.length; i++) mount(hosts[i]);
})();`
}
