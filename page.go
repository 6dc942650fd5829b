package plotview

import (
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"
	"time"
)

//go:embed assets/page.html
var pageTemplate string

//go:embed assets/channel.js
var channelScript string

var pageTmpl = template.Must(template.New("page").Parse(pageTemplate))

// document holds everything the page template needs.
type document struct {
	RuntimeInline string
	RuntimeURL    string
	FetchRuntime  bool
	Channel       string
	Events        string
	Redacted      string
	Routing       Routing
	TimeoutMillis int64
	Figure        string
	DataURL       string
}

var eventsJSON = func() string {
	b, _ := json.Marshal(Events[:])
	return string(b)
}()

var redactedJSON = func() string {
	b, _ := json.Marshal(redactedFields[:])
	return string(b)
}()

func newDocument(routing Routing, timeout time.Duration) document {
	return document{
		Channel:       channelScript,
		Events:        eventsJSON,
		Redacted:      redactedJSON,
		Routing:       routing,
		TimeoutMillis: timeout.Milliseconds(),
	}
}

func (d document) render() (string, error) {
	var sb strings.Builder
	if err := pageTmpl.Execute(&sb, d); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// escapeScript keeps inline source from terminating its script element.
func escapeScript(src string) string {
	return strings.ReplaceAll(src, "</script", `<\/script`)
}

// pushUpdateScript is evaluated in the page to deliver a figure to the
// listeners attached through the channel client.
func pushUpdateScript(figure string) string {
	lit, _ := json.Marshal(figure)
	return `window.plotview && window.plotview.emit("pushUpdate", ` + string(lit) + `);`
}
