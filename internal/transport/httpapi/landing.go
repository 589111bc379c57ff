package httpapi

import "net/http"

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Vector Search</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; max-width: 640px; margin: 3rem auto; color: #1e293b; }
  code { background: #f1f5f9; padding: 0.1rem 0.3rem; border-radius: 4px; }
  li { margin: 0.4rem 0; }
</style>
</head>
<body>
<h1>Vector Search</h1>
<p>Semantic retrieval over merchant products, FAQs, documents and web pages.</p>
<ul>
  <li><code>POST /vector/products</code>, <code>GET /vector/products</code>: similar products</li>
  <li><code>POST /vector/unified</code>: FAQs, documents and web knowledge in one ranking</li>
  <li><code>POST /vector/bot-faqs/search</code>: platform FAQs</li>
  <li><code>/mcp</code>: MCP Streamable HTTP</li>
  <li><a href="/health"><code>/health</code></a>, <a href="/metrics"><code>/metrics</code></a></li>
</ul>
</body>
</html>`

// landingHandler serves a short endpoint index at /.
func landingHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(landingHTML))
}
