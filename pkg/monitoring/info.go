package monitoring

import (
	"time"

	"github.com/irctrakz/streammon/pkg/logging"
)

// Kinds of tree nodes an Info can describe.
const (
	KindHost        = "host"
	KindApplication = "application"
	KindStream      = "stream"
)

// Info is the structured report record of one node, optionally with its children.
type Info struct {
	Kind        string          `json:"kind"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	CreatedTime time.Time       `json:"created_time"`
	OriginID    *uint32         `json:"origin_id,omitempty"`
	Counters    CounterSnapshot `json:"counters"`
	Children    []Info          `json:"children,omitempty"`
}

// Walk calls fn for the record and every descendant, parents first.
func (i Info) Walk(fn func(Info)) {
	fn(i)
	for _, c := range i.Children {
		c.Walk(fn)
	}
}

func (i Info) log() {
	i.Walk(func(n Info) {
		fields := logging.Fields{
			"kind":         n.Kind,
			"id":           n.ID,
			"name":         n.Name,
			"created":      n.CreatedTime.Format(time.RFC3339),
			"bytes_in":     n.Counters.BytesIn,
			"bytes_out":    n.Counters.TotalBytesOut,
			"connections":  n.Counters.TotalConnections,
			"max_sessions": n.Counters.MaxTotalConnections,
		}
		if n.OriginID != nil {
			fields["origin"] = *n.OriginID
		}
		log.WithFields(fields).Infof("%s info", n.Kind)
	})
}
