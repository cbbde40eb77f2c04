package models

// Control channel message types
const (
	MessageSkipWaiting   = "SKIP_WAITING"
	MessagePreloadRoutes = "PRELOAD_ROUTES"
)

// ControlMessage is a directive sent to the cache layer's control channel
type ControlMessage struct {
	Type   string   `json:"type" binding:"required,oneof=SKIP_WAITING PRELOAD_ROUTES"`
	Routes []string `json:"routes" binding:"max=200,dive,required,startswith=/"`
}

// PreloadReport summarizes a PRELOAD_ROUTES run
type PreloadReport struct {
	Cached []string `json:"cached"`
	Failed []string `json:"failed"`
}

// PushAction is a notification action button
type PushAction struct {
	Action string `json:"action" binding:"required"`
	Title  string `json:"title" binding:"required"`
	Icon   string `json:"icon,omitempty"`
}

// PushNotification is the payload delivered to the push boundary.
// Display and click handling happen in the browser.
type PushNotification struct {
	Title   string                 `json:"title" binding:"required,max=120"`
	Body    string                 `json:"body" binding:"max=1000"`
	Icon    string                 `json:"icon,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Actions []PushAction           `json:"actions,omitempty" binding:"max=3,dive"`
}
