package embed

import (
	"bytes"
	"encoding/json"
	"math"
)

// Message types accepted by the resize listener. BOOKINGTMS_RESIZE is the legacy alias.
const (
	ResizeMessageType       = "resize-iframe"
	LegacyResizeMessageType = "BOOKINGTMS_RESIZE"
)

// ResizeMessage is the only payload the embedded page posts to its host unsolicited
type ResizeMessage struct {
	Type   string  `json:"type"`
	Height float64 `json:"height"`
}

// ParseResizeMessage validates a postMessage payload. Anything that is not an object
// with a known type and a finite positive numeric height is ignored (ok == false).
func ParseResizeMessage(data []byte) (ResizeMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return ResizeMessage{}, false
	}

	var msgType string
	if err := json.Unmarshal(fields["type"], &msgType); err != nil {
		return ResizeMessage{}, false
	}
	if msgType != ResizeMessageType && msgType != LegacyResizeMessageType {
		return ResizeMessage{}, false
	}

	rawHeight := bytes.TrimSpace(fields["height"])
	if len(rawHeight) == 0 || rawHeight[0] == '"' {
		return ResizeMessage{}, false
	}
	var height float64
	if err := json.Unmarshal(rawHeight, &height); err != nil {
		return ResizeMessage{}, false
	}
	if math.IsNaN(height) || math.IsInf(height, 0) || height <= 0 {
		return ResizeMessage{}, false
	}

	return ResizeMessage{Type: msgType, Height: height}, true
}

// ResizeListenerScript returns the host-page listener that applies resize messages to
// the iframe with the given id. With no allowed origins, messages from any origin are accepted.
func ResizeListenerScript(iframeID string, allowedOrigins []string) string {
	if allowedOrigins == nil {
		allowedOrigins = []string{}
	}
	idLiteral, _ := json.Marshal(iframeID)
	originsLiteral, _ := json.Marshal(allowedOrigins)

	return `(function () {
  var allowed = ` + string(originsLiteral) + `;
  var types = ["` + ResizeMessageType + `", "` + LegacyResizeMessageType + `"];
  window.addEventListener("message", function (event) {
    if (allowed.length > 0 && allowed.indexOf(event.origin) === -1) return;
    var data = event.data;
    if (typeof data === "string") {
      try { data = JSON.parse(data); } catch (e) { return; }
    }
    if (!data || typeof data !== "object") return;
    if (types.indexOf(data.type) === -1) return;
    if (typeof data.height !== "number" || !isFinite(data.height) || data.height <= 0) return;
    var frame = document.getElementById(` + string(idLiteral) + `);
    if (!frame) return;
    var height = Math.ceil(data.height) + "px";
    frame.style.height = height;
    if (frame.parentNode && frame.parentNode.style) {
      frame.parentNode.style.paddingTop = "0";
      frame.parentNode.style.height = height;
    }
  });
})();`
}

// ResizePosterScript returns the script run inside the embedded page. It posts the
// document height whenever it changes; delivery is fire-and-forget.
func ResizePosterScript() string {
	return `(function () {
  if (window.parent === window) return;
  var last = 0;
  function post() {
    var height = Math.ceil(document.documentElement.scrollHeight);
    if (!height || height === last) return;
    last = height;
    window.parent.postMessage({ type: "` + ResizeMessageType + `", height: height }, "*");
  }
  if (window.ResizeObserver) {
    new ResizeObserver(post).observe(document.documentElement);
  } else {
    setInterval(post, 500);
  }
  window.addEventListener("load", post);
})();`
}
