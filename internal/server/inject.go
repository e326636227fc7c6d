package server

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// reloadClient is the script injected into every served HTML page. It keeps
// one websocket to the server, reconnecting after drops, and reacts to the
// two message kinds the hub sends: css_update re-links stylesheets in place,
// everything else reloads the page.
const reloadClient = `(function() {
  var retry = null;
  function freshenStylesheets() {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var u = new URL(links[i].href, location.href);
      u.searchParams.set('weft', Date.now().toString(36));
      links[i].href = u.toString();
    }
  }
  function connect() {
    var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
    var ws = new WebSocket(proto + '//' + location.host + '/_weft/ws');
    ws.onopen = function() {
      if (retry) { clearInterval(retry); retry = null; }
    };
    ws.onmessage = function(ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (e) { msg = {}; }
      if (msg.type === 'css_update') { freshenStylesheets(); return; }
      location.reload();
    };
    ws.onclose = function() {
      if (!retry) { retry = setInterval(connect, 2000); }
    };
  }
  connect();
})();`

// injectReloadScript parses the page and appends the reload client to its
// body element. The parser is forgiving, so even sloppy hand-written pages
// get a proper tree; if no body node comes back the script is appended as
// trailing text, which browsers tolerate.
func injectReloadScript(page []byte) []byte {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return appendScriptText(page)
	}

	body := findNode(doc, atom.Body)
	if body == nil {
		return appendScriptText(page)
	}

	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
	}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: reloadClient})
	body.AppendChild(script)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return appendScriptText(page)
	}

	return buf.Bytes()
}

func appendScriptText(page []byte) []byte {
	out := make([]byte, 0, len(page)+len(reloadClient)+len("<script></script>"))
	out = append(out, page...)
	out = append(out, "<script>"...)
	out = append(out, reloadClient...)
	out = append(out, "</script>"...)

	return out
}

func findNode(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, a); found != nil {
			return found
		}
	}

	return nil
}
