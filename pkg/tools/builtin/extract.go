package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/germanamz/assistant/pkg/retrieval"
	"github.com/germanamz/assistant/pkg/tools/toolbox"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	maxExtractURLs  = 5
	maxExtractBytes = 2 << 20
	maxPromptChars  = 24000
)

// Summarizer condenses text with a model.
type Summarizer interface {
	Summarize(ctx context.Context, instructions, text string) (string, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, instructions, text string) (string, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, instructions, text string) (string, error) {
	return f(ctx, instructions, text)
}

// Page is the readable content of one fetched URL.
type Page struct {
	URL    string   `json:"url"`
	Title  string   `json:"title,omitempty"`
	Text   string   `json:"rawContent"`
	Images []string `json:"images,omitempty"`
	Stored string   `json:"storedId,omitempty"`
}

// Extraction is the structured result of extract_content.
type Extraction struct {
	Results []Page   `json:"results"`
	Failed  []string `json:"failedUrls,omitempty"`
	Summary string   `json:"summary,omitempty"`
}

// Extractor fetches web pages, strips them to text and optionally stores
// them in the knowledge base.
type Extractor struct {
	client     *http.Client
	summarizer Summarizer
	ingester   retrieval.Ingester
}

// NewExtractor creates an Extractor. A nil client gets one that refuses
// private and loopback addresses.
func NewExtractor(client *http.Client, summarizer Summarizer, ingester retrieval.Ingester) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second, Transport: publicTransport()}
	}
	return &Extractor{client: client, summarizer: summarizer, ingester: ingester}
}

// Tool returns the extract_content tool.
func (x *Extractor) Tool() toolbox.Tool {
	return toolbox.Tool{
		Name:        "extract_content",
		Description: "Extract and summarise the readable content of web pages. Can also store the content in the knowledge base for future questions.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{` +
			`"urls":{"type":"string","description":"Single URL or comma-separated list of URLs to extract content from"},` +
			`"include_images":{"type":"boolean","description":"Whether to list the images found on the pages"},` +
			`"should_vectorize":{"type":"boolean","description":"Whether to store the content in the knowledge base for future reference"}},` +
			`"required":["urls"]}`),
		Handler: x.handle,
	}
}

type extractInput struct {
	URLs            string `json:"urls"`
	IncludeImages   bool   `json:"include_images"`
	ShouldVectorize bool   `json:"should_vectorize"`
}

func (x *Extractor) handle(ctx context.Context, call toolbox.Call) (toolbox.Output, error) {
	var in extractInput
	if err := json.Unmarshal(call.Args, &in); err != nil {
		return toolbox.Failed("extract_content: invalid input"), nil
	}

	urls := splitURLs(in.URLs)
	if len(urls) == 0 {
		return toolbox.Failed("extract_content: no URLs given"), nil
	}
	if len(urls) > maxExtractURLs {
		return toolbox.Failed(fmt.Sprintf("extract_content: at most %d URLs per call", maxExtractURLs)), nil
	}
	if in.ShouldVectorize && x.ingester == nil {
		return toolbox.Failed("extract_content: the knowledge base is not configured"), nil
	}

	var ex Extraction
	for _, u := range urls {
		page, err := x.fetch(ctx, u, in.IncludeImages)
		if err != nil {
			ex.Failed = append(ex.Failed, u)
			continue
		}

		if in.ShouldVectorize {
			stored, err := x.ingester.Ingest(ctx, retrieval.IngestDocument{
				Type:     "webpage",
				Title:    page.Title,
				Content:  page.Text,
				Metadata: map[string]string{"url": page.URL},
			})
			if err != nil {
				return toolbox.Output{}, fmt.Errorf("extract_content: store %s: %w", page.URL, err)
			}
			page.Stored = stored.ID
		}

		ex.Results = append(ex.Results, page)
	}

	if len(ex.Results) == 0 {
		out := toolbox.Failed("extract_content: no content could be extracted")
		out.Data = ex
		return out, nil
	}

	if x.summarizer == nil {
		return toolbox.Output{Content: clip(pagesPrompt(ex.Results), 4000), Data: ex}, nil
	}

	summary, err := x.summarizer.Summarize(ctx, extractInstructions, pagesPrompt(ex.Results))
	if err != nil {
		return toolbox.Output{}, fmt.Errorf("extract_content: summarise: %w", err)
	}
	ex.Summary = summary
	if strings.TrimSpace(summary) == "" {
		summary = "Content extracted but no summary could be generated"
	}

	return toolbox.Output{Content: summary, Data: ex}, nil
}

func splitURLs(s string) []string {
	var out []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func pagesPrompt(pages []Page) string {
	var b strings.Builder
	b.WriteString("Extracted content:\n")
	for i, p := range pages {
		fmt.Fprintf(&b, "\n[%d] URL: %s\n", i+1, p.URL)
		if p.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", p.Title)
		}
		b.WriteString(p.Text)
		b.WriteString("\n")
	}
	return clip(b.String(), maxPromptChars)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func (x *Extractor) fetch(ctx context.Context, raw string, images bool) (Page, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Page{}, fmt.Errorf("invalid url %q", raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")

	resp, err := x.client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return Page{}, fmt.Errorf("%s: status %d", raw, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxExtractBytes)
	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		data, err := io.ReadAll(body)
		if err != nil {
			return Page{}, err
		}
		return Page{URL: u.String(), Text: strings.TrimSpace(string(data))}, nil
	}

	doc, err := html.Parse(body)
	if err != nil {
		return Page{}, err
	}

	page := readable(doc, u, images)
	page.URL = u.String()
	if page.Text == "" {
		return Page{}, fmt.Errorf("%s: no readable text", raw)
	}
	return page, nil
}

// skipped elements never hold readable content.
var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Svg: true,
	atom.Nav: true, atom.Footer: true, atom.Header: true, atom.Form: true,
	atom.Iframe: true, atom.Template: true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Article: true, atom.Section: true, atom.Blockquote: true, atom.Pre: true,
}

// readable walks the document collecting its title, visible text and,
// when asked, absolute image URLs.
func readable(doc *html.Node, base *url.URL, images bool) Page {
	var (
		page Page
		b    strings.Builder
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.Title && page.Title == "":
				if n.FirstChild != nil {
					page.Title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case n.DataAtom == atom.Img && images:
				if src := attr(n, "src"); src != "" {
					if ref, err := base.Parse(src); err == nil {
						page.Images = append(page.Images, ref.String())
					}
				}
			case skipped[n.DataAtom]:
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blocks[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	page.Text = tidyLines(b.String())
	return page
}

func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// publicTransport dials only public addresses, checked after resolution.
func publicTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}

	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			for _, ip := range ips {
				if ip.IP.IsLoopback() || ip.IP.IsPrivate() || ip.IP.IsLinkLocalUnicast() || ip.IP.IsUnspecified() {
					return nil, fmt.Errorf("connection to private address %s blocked", ip.IP)
				}
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
		},
	}
}
