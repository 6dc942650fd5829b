package plotview

// EventType names a notification forwarded from the page to the host. The
// values are the Plotly event names without their "plotly_" prefix.
type EventType string

// Chart interaction events.
const (
	EventClick             EventType = "click"
	EventLegendClick       EventType = "legendclick"
	EventSelecting         EventType = "selecting"
	EventSelected          EventType = "selected"
	EventHover             EventType = "hover"
	EventUnhover           EventType = "unhover"
	EventLegendDoubleClick EventType = "legenddoubleclick"
	EventRestyle           EventType = "restyle"
	EventRelayout          EventType = "relayout"
	EventWebGLContextLost  EventType = "webglcontextlost"
	EventAfterPlot         EventType = "afterplot"
	EventAutosize          EventType = "autosize"
	EventDeselect          EventType = "deselect"
	EventDoubleClick       EventType = "doubleclick"
	EventRedraw            EventType = "redraw"
	EventAnimated          EventType = "animated"
)

// Lifecycle notifications.
const (
	EventReady  EventType = "ready"
	EventUpdate EventType = "update"
)

// Events is the closed set of chart events the page listens for, in the order
// the listeners are attached.
var Events = [...]EventType{
	EventClick,
	EventLegendClick,
	EventSelecting,
	EventSelected,
	EventHover,
	EventUnhover,
	EventLegendDoubleClick,
	EventRestyle,
	EventRelayout,
	EventWebGLContextLost,
	EventAfterPlot,
	EventAutosize,
	EventDeselect,
	EventDoubleClick,
	EventRedraw,
	EventAnimated,
}

var eventIndex = func() map[EventType]int {
	m := make(map[EventType]int, len(Events))
	for i, e := range Events {
		m[e] = i
	}
	return m
}()

// index returns the slot of e in Events.
func (e EventType) index() (int, bool) {
	i, ok := eventIndex[e]
	return i, ok
}

// Known reports whether e is one of Events.
func (e EventType) Known() bool {
	_, ok := eventIndex[e]
	return ok
}

// DOMEvent returns the name Plotly emits on the plot element.
func (e EventType) DOMEvent() string {
	return "plotly_" + string(e)
}

// Envelope is a single event forwarded from the page.
type Envelope struct {
	Type    EventType
	Payload string
}
