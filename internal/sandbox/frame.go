package sandbox

import (
	"bytes"
	"fmt"
	"html/template"
)

// Frame describes one preview host page.
type Frame struct {
	SessionID  string
	Title      string
	Viewport   Viewport
	ContentURL string
	StateURL   string
	Version    int64
}

// HostPage renders the page that embeds the untrusted document in a sandboxed
// iframe. allow-scripts is granted so AI-authored interactivity works;
// allow-same-origin, storage, and top-navigation are not, which keeps the
// previewed page out of the hosting application's cookies and storage. The
// refresh script tries to carry the scroll position across content swaps and
// resets it when the sandbox denies introspection.
func HostPage(f Frame) (string, error) {
	var buf bytes.Buffer
	if err := hostTmpl.Execute(&buf, hostData{
		Frame:    f,
		Width:    f.Viewport.Width(),
		Fluid:    f.Viewport.Fluid(),
		MaxWidth: fmt.Sprintf("%dpx", f.Viewport.Width()),
	}); err != nil {
		return "", fmt.Errorf("render host page: %w", err)
	}
	return buf.String(), nil
}

type hostData struct {
	Frame
	Width    int
	Fluid    bool
	MaxWidth string
}

var hostTmpl = template.Must(template.New("host").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} — preview</title>
<style>
  html, body { margin: 0; height: 100%; background: #e9e9ee; }
  .surface {
    margin: 0 auto;
    height: 100%;
    {{if .Fluid}}max-width: {{.MaxWidth}}; width: 100%;{{else}}width: {{.Width}}px;{{end}}
    background: #fff;
    box-shadow: 0 0 12px rgba(0,0,0,.15);
  }
  iframe { display: block; width: 100%; height: 100%; border: 0; }
</style>
</head>
<body>
<div class="surface">
  <iframe id="preview" sandbox="allow-scripts" src="{{.ContentURL}}?v={{.Version}}"></iframe>
</div>
<script>
(function () {
  var frame = document.getElementById('preview');
  var version = {{.Version}};

  function savedScroll() {
    try {
      // Only possible when the frame is same-origin introspectable; the
      // sandbox usually denies this and we fall back to a scroll reset.
      var w = frame.contentWindow;
      return { x: w.scrollX, y: w.scrollY };
    } catch (e) {
      return null;
    }
  }

  function restoreScroll(pos) {
    if (!pos) return;
    try { frame.contentWindow.scrollTo(pos.x, pos.y); } catch (e) { /* reset */ }
  }

  function poll() {
    fetch({{.StateURL}})
      .then(function (r) { return r.json(); })
      .then(function (state) {
        if (state.version !== version) {
          version = state.version;
          var pos = savedScroll();
          frame.onload = function () { restoreScroll(pos); };
          frame.src = {{.ContentURL}} + '?v=' + version;
        }
      })
      .catch(function () { /* transient; keep polling */ })
      .then(function () { setTimeout(poll, 1000); });
  }
  setTimeout(poll, 1000);
})();
</script>
</body>
</html>
`))
