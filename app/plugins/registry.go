package plugins

import (
	"github.com/kilianp07/essim/core/demand"
	coremetrics "github.com/kilianp07/essim/core/metrics"
	"github.com/kilianp07/essim/core/strategy"
)

// Kind names a family of pluggable modules.
type Kind string

const (
	KindStrategy Kind = "strategy"
	KindDemand   Kind = "demand"
	KindSink     Kind = "sink"
)

// Kinds lists the module families in display order.
func Kinds() []Kind { return []Kind{KindStrategy, KindDemand, KindSink} }

// Names returns the registered module types of kind, sorted.
func Names(kind Kind) []string {
	switch kind {
	case KindStrategy:
		return strategy.Names()
	case KindDemand:
		return demand.Names()
	case KindSink:
		return coremetrics.SinkNames()
	}
	return nil
}
