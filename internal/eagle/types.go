package eagle

import "github.com/hamed0406/topologycheck/internal/domain"

// entitiesResponse is the generic entity search envelope. For a group-by
// query each element of Obj is one group: its key values and the
// aggregated values in query order.
type entitiesResponse struct {
	Success   bool           `json:"success"`
	Exception string         `json:"exception,omitempty"`
	Obj       []groupedValue `json:"obj"`
}

type groupedValue struct {
	Key   []string  `json:"key"`
	Value []float64 `json:"value"`
}

type appResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Exception string      `json:"exception,omitempty"`
	Data      *appSummary `json:"data"`
}

type appSummary struct {
	AppID  string           `json:"appId"`
	Site   string           `json:"siteId"`
	Status domain.RunStatus `json:"status"`
}
